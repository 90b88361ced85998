package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Catalog backends and sources.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	SourcePostgres  = "postgres"
	SourceFile      = "file"
)

// Filter extractors.
const (
	ExtractorLLM   = "llm"
	ExtractorRules = "rules"
	ExtractorNone  = "none"
)

// Config holds the staysearch configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port           int `yaml:"port"`
	ReadTimeoutSec int `yaml:"read_timeout_sec"`
	// WriteTimeoutSec bounds a whole response, including a streamed answer.
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the Postgres listing store connection settings.
type DatabaseConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Name             string `yaml:"name"`
	SSLMode          string `yaml:"sslmode"`
	MaxConns         int32  `yaml:"max_conns"`
	Migrate          bool   `yaml:"migrate"` // apply embedded migrations at startup
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// CacheConfig holds the Redis query embedding cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	LocalTTLSec      int      `yaml:"local_ttl_sec"` // client-side cache; 0 = off
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CatalogConfig selects where listings are searched and loaded from.
type CatalogConfig struct {
	Backend string `yaml:"backend"` // memory | postgres
	Source  string `yaml:"source"`  // postgres | file (memory backend only)
	Path    string `yaml:"path"`    // JSONL file for source=file
}

// EmbeddingConfig holds the query vectorizer. Model and dimensions must match ingestion.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // log label
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// SendDimensions asks the provider to shorten vectors to Dimensions.
	SendDimensions   bool   `yaml:"send_dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	TimeoutSec       int    `yaml:"timeout_sec"`
}

// LLMConfig holds the chat model used for generation and filter extraction.
type LLMConfig struct {
	BaseURL              string  `yaml:"base_url"`
	APIKey               string  `yaml:"api_key"`
	ChatModel            string  `yaml:"chat_model"`
	ExtractionModel      string  `yaml:"extraction_model"`
	Temperature          float32 `yaml:"temperature"`
	MaxTokens            int     `yaml:"max_tokens"`
	GenerationTimeoutSec int     `yaml:"generation_timeout_sec"`
	ExtractionTimeoutSec int     `yaml:"extraction_timeout_sec"`
	RPS                  float64 `yaml:"rps"` // 0 = unlimited
}

// RetrievalConfig holds search defaults.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// Threshold is a pointer so an explicit 0 survives ApplyDefaults.
	Threshold      *float64 `yaml:"threshold"`
	RetryInitialMs int      `yaml:"retry_initial_ms"`
	Extractor      string   `yaml:"extractor"` // llm | rules | none
}

// AnswerConfig holds answer rendering settings.
type AnswerConfig struct {
	Currency          string `yaml:"currency"`
	Locale            string `yaml:"locale"`
	MaxDocumentTokens int    `yaml:"max_document_tokens"` // 0 = untruncated
	TokenizerEncoding string `yaml:"tokenizer_encoding"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path. A .env file in the working directory is loaded first.
func LoadFile(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.Port <= 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Cache.TTLSec < 0 {
		c.Cache.TTLSec = 0
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.Catalog.Backend == "" {
		c.Catalog.Backend = BackendMemory
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = SourcePostgres
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = c.Embedding.BaseURL
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = c.Embedding.APIKey
	}
	if c.LLM.ExtractionModel == "" {
		c.LLM.ExtractionModel = c.LLM.ChatModel
	}
	if c.LLM.GenerationTimeoutSec <= 0 {
		c.LLM.GenerationTimeoutSec = 60
	}
	if c.LLM.ExtractionTimeoutSec <= 0 {
		c.LLM.ExtractionTimeoutSec = 5
	}

	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.Threshold == nil {
		t := 0.5
		c.Retrieval.Threshold = &t
	}
	if c.Retrieval.RetryInitialMs <= 0 {
		c.Retrieval.RetryInitialMs = 200
	}
	if c.Retrieval.Extractor == "" {
		c.Retrieval.Extractor = ExtractorRules
	}

	if c.Answer.Currency == "" {
		c.Answer.Currency = "¥"
	}
	if c.Answer.Locale == "" {
		c.Answer.Locale = "ja"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Catalog.Backend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("catalog.backend must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Catalog.Backend)
	}
	switch c.Catalog.Source {
	case SourcePostgres:
	case SourceFile:
		if c.Catalog.Path == "" {
			return fmt.Errorf("catalog.path is required when catalog.source is %q", SourceFile)
		}
	default:
		return fmt.Errorf("catalog.source must be %q or %q, got %q", SourcePostgres, SourceFile, c.Catalog.Source)
	}
	if c.UsesPostgres() && c.Database.Host == "" {
		return fmt.Errorf("database.host is required for the postgres catalog")
	}

	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}

	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}

	if c.LLM.ChatModel == "" {
		return fmt.Errorf("llm.chat_model is required")
	}
	if c.LLM.RPS < 0 {
		return fmt.Errorf("llm.rps must not be negative, got %v", c.LLM.RPS)
	}

	switch c.Retrieval.Extractor {
	case ExtractorLLM, ExtractorRules, ExtractorNone:
	default:
		return fmt.Errorf("retrieval.extractor must be %q, %q or %q, got %q",
			ExtractorLLM, ExtractorRules, ExtractorNone, c.Retrieval.Extractor)
	}
	if c.Retrieval.TopK > 50 {
		return fmt.Errorf("retrieval.top_k must be at most 50, got %d", c.Retrieval.TopK)
	}
	if t := c.Retrieval.Threshold; t != nil && (*t < -1 || *t >= 1) {
		return fmt.Errorf("retrieval.threshold must be in [-1, 1), got %v", *t)
	}
	if c.Answer.MaxDocumentTokens < 0 {
		return fmt.Errorf("answer.max_document_tokens must not be negative, got %d", c.Answer.MaxDocumentTokens)
	}
	return nil
}

// UsesPostgres reports whether the catalog is searched in or loaded from Postgres.
func (c *Config) UsesPostgres() bool {
	return c.Catalog.Backend == BackendPostgres || c.Catalog.Source == SourcePostgres
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Timeout returns the per-call embedding timeout.
func (c EmbeddingConfig) Timeout() time.Duration { return seconds(c.TimeoutSec) }

// GenerationTimeout bounds a whole answer stream.
func (c LLMConfig) GenerationTimeout() time.Duration { return seconds(c.GenerationTimeoutSec) }

// ExtractionTimeout bounds one filter extraction call.
func (c LLMConfig) ExtractionTimeout() time.Duration { return seconds(c.ExtractionTimeoutSec) }

// TTL returns the cache entry lifetime. Zero means no expiry.
func (c CacheConfig) TTL() time.Duration { return seconds(c.TTLSec) }

// LocalTTL returns the client-side cache lifetime.
func (c CacheConfig) LocalTTL() time.Duration { return seconds(c.LocalTTLSec) }

// RetryInitial returns the delay before the single store retry.
func (c RetrievalConfig) RetryInitial() time.Duration {
	return time.Duration(c.RetryInitialMs) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
