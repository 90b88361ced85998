package postgres

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"text/template"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/staysearch/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// RenderMigrations returns the schema statements for a catalog of dimension dim, in file order.
func RenderMigrations(dim int) ([]string, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		raw, err := migrationFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		tpl, err := template.New(name).Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := tpl.Execute(&buf, struct{ Dimensions int }{dim}); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		out = append(out, buf.String())
	}
	return out, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dim int) error {
	stmts, err := RenderMigrations(dim)
	if err != nil {
		return err
	}
	for _, sql := range stmts {
		if _, err := pool.Exec(ctx, sql); err != nil {
			return &db.Error{Op: db.OpMigrate, Err: err}
		}
	}
	return nil
}

// Bootstrap applies migrations over a short-lived pool without pgvector type
// registration, which would fail before the extension exists.
func Bootstrap(ctx context.Context, dsn string, dim int) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("bootstrap pool: %w", err)
	}
	defer pool.Close()
	return Migrate(ctx, pool, dim)
}
