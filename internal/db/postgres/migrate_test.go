package postgres

import (
	"strings"
	"testing"
)

func TestRenderMigrations_SubstitutesDimension(t *testing.T) {
	stmts, err := RenderMigrations(768)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmts) == 0 {
		t.Fatal("expected at least one migration")
	}
	sql := stmts[0]
	if !strings.Contains(sql, "embedding              vector(768) NOT NULL") {
		t.Errorf("table dimension not rendered:\n%s", sql)
	}
	if !strings.Contains(sql, "query_embedding vector(768)") {
		t.Error("function dimension not rendered")
	}
	if strings.Contains(sql, "{{") {
		t.Error("unrendered template action left in SQL")
	}
}

func TestRenderMigrations_InvalidDimension(t *testing.T) {
	if _, err := RenderMigrations(0); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "stay", Password: "p@ss", Database: "staysearch", SSLMode: "disable"}
	want := "postgres://stay:p%40ss@db:5432/staysearch?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
