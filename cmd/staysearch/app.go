package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/staysearch/internal/config"
	"github.com/kailas-cloud/staysearch/internal/db"
	"github.com/kailas-cloud/staysearch/internal/db/memory"
	"github.com/kailas-cloud/staysearch/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/staysearch/internal/db/redis"
	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/listing"
	"github.com/kailas-cloud/staysearch/internal/metrics"
	"github.com/kailas-cloud/staysearch/internal/repository/embcache"
	listingrepo "github.com/kailas-cloud/staysearch/internal/repository/listing"
	openaiTransport "github.com/kailas-cloud/staysearch/internal/transport/openai"
	answeruc "github.com/kailas-cloud/staysearch/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/staysearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/staysearch/internal/usecase/health"
	"github.com/kailas-cloud/staysearch/internal/usecase/retrieval"
)

// catalog is what the composition root needs from a listing backend.
type catalog interface {
	db.VectorStore
	HealthCheck(ctx context.Context) error
}

// app holds the wired services shared by every subcommand.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	answers   *answeruc.Service
	retriever *retrieval.Service
	prices    *answeruc.PriceFormatter
	health    *healthuc.Service
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp is the composition root.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.Register()

	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	cat, hoods, err := a.openCatalog(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Catalog ready",
		zap.String("backend", cfg.Catalog.Backend),
		zap.String("source", cfg.Catalog.Source),
		zap.Int("listings", cat.Len()),
		zap.Int("dimensions", cat.Dimension()),
		zap.Int("neighbourhoods", len(hoods)),
	)
	if cat.Len() == 0 {
		logger.Warn("Catalog is empty, every query will return no match")
	}

	cache, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}

	base, embedder := a.buildEmbedder(cache)
	limiter := openaiTransport.NewLimiter(cfg.LLM.RPS)
	extractor := a.buildExtractor(hoods, limiter)

	a.retriever = retrieval.New(cat, embedder, extractor, retrieval.Config{
		Extractor:            cfg.Retrieval.Extractor,
		ExtractTimeout:       cfg.LLM.ExtractionTimeout(),
		RetryInitialInterval: cfg.Retrieval.RetryInitial(),
	})

	a.prices, err = answeruc.NewPriceFormatter(cfg.Answer.Currency, cfg.Answer.Locale)
	if err != nil {
		return nil, fmt.Errorf("answer price format: %w", err)
	}

	var counter answeruc.TokenCounter
	if cfg.Answer.MaxDocumentTokens > 0 {
		tok, err := openaiTransport.NewTokenizer(cfg.Answer.TokenizerEncoding)
		if err != nil {
			return nil, err
		}
		counter = tok
	}

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.ChatModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Limiter:     limiter,
		Logger:      logger,
	})
	a.answers = answeruc.New(
		a.retriever,
		generator,
		answeruc.NewPromptBuilder(a.prices, counter, cfg.Answer.MaxDocumentTokens),
		a.prices,
		answeruc.Config{Model: cfg.LLM.ChatModel, GenerationTimeout: cfg.LLM.GenerationTimeout()},
	)

	// Pass nil interface (not typed nil pointer!) when the cache is disabled.
	var cachePinger healthuc.CachePinger
	if cache != nil {
		cachePinger = cache
	}
	a.health = healthuc.New(cat, base, cachePinger)

	ok = true
	return a, nil
}

// openCatalog returns the searchable catalog and its known neighbourhoods.
func (a *app) openCatalog(ctx context.Context) (catalog, []string, error) {
	cfg := a.cfg
	dim := cfg.Embedding.Dimensions

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		p, err := a.openPostgres(ctx, dim)
		if err != nil {
			return nil, nil, err
		}
		pool = p
	}

	if cfg.Catalog.Backend == config.BackendPostgres {
		store, err := postgres.NewListingStore(ctx, pool, dim)
		if err != nil {
			return nil, nil, fmt.Errorf("open listing store: %w", err)
		}
		hoods, err := store.Neighbourhoods(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load neighbourhoods: %w", err)
		}
		return store, hoods, nil
	}

	listings, err := a.loadListings(ctx, pool, dim)
	if err != nil {
		return nil, nil, err
	}
	store, err := memory.New(dim, listings)
	if err != nil {
		return nil, nil, fmt.Errorf("build memory catalog: %w", err)
	}
	return store, store.Neighbourhoods(), nil
}

// listingSource loads the full catalog for the memory backend.
type listingSource interface {
	LoadAll(ctx context.Context) ([]listing.Listing, error)
}

func (a *app) loadListings(ctx context.Context, pool *pgxpool.Pool, dim int) ([]listing.Listing, error) {
	var src listingSource
	switch a.cfg.Catalog.Source {
	case config.SourceFile:
		src = listingrepo.NewFileSource(a.cfg.Catalog.Path, a.logger)
	default:
		store, err := postgres.NewListingStore(ctx, pool, dim)
		if err != nil {
			return nil, fmt.Errorf("open listing store: %w", err)
		}
		src = store
	}

	start := time.Now()
	listings, err := src.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	a.logger.Info("Listings loaded",
		zap.Int("count", len(listings)),
		zap.Duration("took", time.Since(start)),
	)
	return listings, nil
}

func (a *app) openPostgres(ctx context.Context, dim int) (*pgxpool.Pool, error) {
	d := a.cfg.Database
	dsn := postgres.Config{
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		Database: d.Name,
		SSLMode:  d.SSLMode,
	}.DSN()

	readyCtx, cancel := context.WithTimeout(ctx, time.Duration(d.ReadinessTimeout)*time.Second)
	defer cancel()

	if d.Migrate {
		if err := postgres.Bootstrap(readyCtx, dsn, dim); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.logger.Info("Migrations applied")
	}

	pool, err := postgres.NewPool(readyCtx, dsn, d.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.logger.Info("Connected to postgres", zap.String("host", d.Host), zap.String("database", d.Name))
	return pool, nil
}

// openCache returns nil when the cache is disabled.
func (a *app) openCache(ctx context.Context) (*dbRedis.Store, error) {
	c := a.cfg.Cache
	if !c.Enabled {
		return nil, nil
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    c.Addrs,
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
		LocalTTL: c.LocalTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create cache store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(c.ReadinessTimeout)*time.Second); err != nil {
		return nil, fmt.Errorf("cache not ready: %w", err)
	}
	a.logger.Info("Connected to cache", zap.Strings("addrs", c.Addrs))
	return store, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// The base provider is returned separately for health checks.
func (a *app) buildEmbedder(cache *dbRedis.Store) (*openaiTransport.Embedder, domain.Embedder) {
	e := a.cfg.Embedding

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:         e.APIKey,
		BaseURL:        e.BaseURL,
		Model:          e.Model,
		Dimensions:     e.Dimensions,
		SendDimensions: e.SendDimensions,
	})

	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, embcache.Options{
			Model:      e.Model,
			Dimensions: e.Dimensions,
			TTL:        a.cfg.Cache.TTL(),
		}, metrics.EmbeddingCacheTotal, a.logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, e.Provider, e.Model, e.Timeout(), a.logger)

	// Instruction prefix (outermost, so the cache key includes it)
	if e.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, e.QueryInstruction)
	}

	a.logger.Info("Embedder created",
		zap.String("provider", e.Provider),
		zap.String("model", e.Model),
		zap.Int("dimensions", e.Dimensions),
		zap.Bool("cached", cache != nil),
	)
	return base, embedder
}

func (a *app) buildExtractor(hoods []string, limiter *rate.Limiter) retrieval.FilterExtractor {
	switch a.cfg.Retrieval.Extractor {
	case config.ExtractorLLM:
		return openaiTransport.NewFilterExtractor(&openaiTransport.ExtractorConfig{
			APIKey:  a.cfg.LLM.APIKey,
			BaseURL: a.cfg.LLM.BaseURL,
			Model:   a.cfg.LLM.ExtractionModel,
			Limiter: limiter,
		})
	case config.ExtractorRules:
		return retrieval.NewRuleExtractor(hoods)
	default:
		return retrieval.NoopExtractor{}
	}
}
