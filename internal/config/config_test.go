package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Database:  DatabaseConfig{Host: "localhost"},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small", Dimensions: 1536},
		LLM:       LLMConfig{ChatModel: "gpt-4o-mini"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"backend", func(c *Config) { c.Catalog.Backend = "sqlite" }, "catalog.backend"},
		{"source", func(c *Config) { c.Catalog.Source = "s3" }, "catalog.source"},
		{"file without path", func(c *Config) { c.Catalog.Source = SourceFile }, "catalog.path"},
		{"postgres without host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"cache without addrs", func(c *Config) { c.Cache.Enabled = true }, "cache.addrs"},
		{"embedding model", func(c *Config) { c.Embedding.Model = "" }, "embedding.model"},
		{"dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, "embedding.dimensions"},
		{"chat model", func(c *Config) { c.LLM.ChatModel = "" }, "llm.chat_model"},
		{"rps", func(c *Config) { c.LLM.RPS = -1 }, "llm.rps"},
		{"extractor", func(c *Config) { c.Retrieval.Extractor = "magic" }, "retrieval.extractor"},
		{"top_k", func(c *Config) { c.Retrieval.TopK = 51 }, "retrieval.top_k"},
		{"threshold", func(c *Config) { v := 1.0; c.Retrieval.Threshold = &v }, "retrieval.threshold"},
		{"doc tokens", func(c *Config) { c.Answer.MaxDocumentTokens = -1 }, "answer.max_document_tokens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidate_FileCatalogWithoutPostgres(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = ""
	cfg.Catalog.Source = SourceFile
	cfg.Catalog.Path = "data/listings.jsonl"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.UsesPostgres() {
		t.Error("memory backend with file source should not use postgres")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		Embedding: EmbeddingConfig{BaseURL: "https://api.example.com/v1", APIKey: "k"},
		LLM:       LLMConfig{ChatModel: "chat"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("ReadTimeoutSec = %d, expected 10", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 120 {
		t.Errorf("WriteTimeoutSec = %d, expected 120", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Port != 5432 || cfg.Database.SSLMode != "disable" || cfg.Database.MaxConns != 10 {
		t.Errorf("database defaults = %+v", cfg.Database)
	}
	if cfg.Catalog.Backend != BackendMemory || cfg.Catalog.Source != SourcePostgres {
		t.Errorf("catalog defaults = %+v", cfg.Catalog)
	}
	if cfg.LLM.BaseURL != cfg.Embedding.BaseURL || cfg.LLM.APIKey != "k" {
		t.Errorf("llm should inherit embedding endpoint, got %+v", cfg.LLM)
	}
	if cfg.LLM.ExtractionModel != "chat" {
		t.Errorf("ExtractionModel = %q, expected chat", cfg.LLM.ExtractionModel)
	}
	if cfg.Retrieval.TopK != 5 || *cfg.Retrieval.Threshold != 0.5 || cfg.Retrieval.Extractor != ExtractorRules {
		t.Errorf("retrieval defaults = %+v", cfg.Retrieval)
	}
	if cfg.Answer.Currency != "¥" || cfg.Answer.Locale != "ja" {
		t.Errorf("answer defaults = %+v", cfg.Answer)
	}
	if cfg.LLM.GenerationTimeout() != time.Minute || cfg.Retrieval.RetryInitial() != 200*time.Millisecond {
		t.Errorf("durations = %v %v", cfg.LLM.GenerationTimeout(), cfg.Retrieval.RetryInitial())
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	zero := 0.0
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 300},
		Retrieval: RetrievalConfig{TopK: 8, Threshold: &zero, Extractor: ExtractorNone},
		LLM:       LLMConfig{ChatModel: "chat", ExtractionModel: "small"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 || cfg.HTTP.WriteTimeoutSec != 300 {
		t.Errorf("http overridden: %+v", cfg.HTTP)
	}
	if cfg.Retrieval.TopK != 8 || *cfg.Retrieval.Threshold != 0 || cfg.Retrieval.Extractor != ExtractorNone {
		t.Errorf("retrieval overridden: %+v", cfg.Retrieval)
	}
	if cfg.LLM.ExtractionModel != "small" {
		t.Errorf("ExtractionModel = %q", cfg.LLM.ExtractionModel)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("STAYSEARCH_TEST_KEY", "secret")
	in := []byte("a: ${STAYSEARCH_TEST_KEY}\nb: ${STAYSEARCH_TEST_UNSET:-fallback}\nc: ${STAYSEARCH_TEST_UNSET}")
	got := string(expandEnvVars(in))
	want := "a: secret\nb: fallback\nc: "
	if got != want {
		t.Errorf("expandEnvVars() = %q, want %q", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("STAYSEARCH_TEST_DIM", "768")
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	yaml := `
http:
  port: 9090
catalog:
  backend: memory
  source: file
  path: data/listings.jsonl
embedding:
  model: nomic-embed-text
  dimensions: ${STAYSEARCH_TEST_DIM}
llm:
  chat_model: gpt-4o-mini
retrieval:
  threshold: 0
  extractor: none
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTP.Port != 9090 || cfg.Embedding.Dimensions != 768 {
		t.Errorf("cfg = %+v", cfg)
	}
	if *cfg.Retrieval.Threshold != 0 {
		t.Errorf("explicit zero threshold lost: %v", *cfg.Retrieval.Threshold)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("expected invalid config error, got %v", err)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if GetEnv() != "local" {
		t.Errorf("GetEnv() = %q, want local", GetEnv())
	}
	t.Setenv("ENV", "prod")
	if GetEnv() != "prod" {
		t.Errorf("GetEnv() = %q, want prod", GetEnv())
	}
}
