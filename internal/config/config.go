// Package config provides YAML-based configuration for docqa.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DOCQA_CONFIG environment variable
//  3. ~/.docqa/config.yaml
//  4. ./docqa.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Answer configures the answer-synthesis chat model.
	Answer AnswerConfig `yaml:"answer"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Chunking configures the semantic chunker budgets.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Ingest configures the ingestion pipeline.
	Ingest IngestConfig `yaml:"ingest"`

	// Retrieval configures retrieval ranking.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Catalog configures the document catalog database.
	Catalog CatalogConfig `yaml:"catalog"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: gemini, openai, ollama.
	Provider string `yaml:"provider"`
	// Model is the embedding model name (e.g. "text-embedding-004").
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// BatchSize is the maximum number of texts per embedding request.
	BatchSize int `yaml:"batch_size"`
	// RequestsPerSecond caps the outbound embedding request rate.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// MaxAttempts bounds retries of transient embedding failures.
	MaxAttempts int `yaml:"max_attempts"`
	// Parallelism bounds concurrent in-flight embedding batches.
	Parallelism int `yaml:"parallelism"`
}

// AnswerConfig holds answer-synthesis chat model settings.
type AnswerConfig struct {
	// Provider selects the chat backend: gemini, openai, ollama.
	Provider string `yaml:"provider"`
	// Model is the chat model name (e.g. "gemini-2.0-flash").
	Model string `yaml:"model"`
	// APIKey is the chat API key. Prefer env vars GOOGLE_API_KEY / OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the chat API endpoint (Ollama host or OpenAI-compatible base URL).
	Endpoint string `yaml:"endpoint"`
	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ChunkingConfig holds semantic chunker budgets.
type ChunkingConfig struct {
	// MaxTokens is the hard upper bound on chunk size.
	MaxTokens int `yaml:"max_tokens"`
	// MinTokens is the lower bound below which boundaries are not considered.
	MinTokens int `yaml:"min_tokens"`
	// OverlapTokens is how many trailing tokens repeat at the next chunk's head.
	OverlapTokens int `yaml:"overlap_tokens"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	// DocTimeoutSeconds is the overall per-document ingestion timeout.
	DocTimeoutSeconds int `yaml:"doc_timeout_seconds"`
	// DefaultLanguage is the language hint applied when the caller gives none.
	DefaultLanguage string `yaml:"default_language"`
}

// RetrievalConfig holds retrieval ranking settings.
type RetrievalConfig struct {
	// TopK is the default result count.
	TopK int `yaml:"top_k"`
	// MinScore drops candidates below this similarity.
	MinScore float64 `yaml:"min_score"`
	// RecencyWeight scales the recency boost on document age.
	RecencyWeight float64 `yaml:"recency_weight"`
	// KeywordWeight scales the lexical query-term boost.
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var DOCQA_API_KEY.
	APIKey string `yaml:"api_key"`
}

// CatalogConfig holds document catalog settings.
type CatalogConfig struct {
	// DBPath is the SQLite database path. Set to ":memory:" for tests.
	DBPath string `yaml:"db_path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_BATCH_SIZE", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"EMBEDDING_RPS", func(c *Config) string { return floatStr(c.Embedding.RequestsPerSecond) }},
	{"EMBEDDING_MAX_ATTEMPTS", func(c *Config) string { return intStr(c.Embedding.MaxAttempts) }},
	{"EMBEDDING_PARALLELISM", func(c *Config) string { return intStr(c.Embedding.Parallelism) }},
	{"ANSWER_PROVIDER", func(c *Config) string { return c.Answer.Provider }},
	{"ANSWER_MODEL", func(c *Config) string { return c.Answer.Model }},
	{"ANSWER_API_KEY", func(c *Config) string { return c.Answer.APIKey }},
	{"ANSWER_ENDPOINT", func(c *Config) string { return c.Answer.Endpoint }},
	{"ANSWER_MAX_TOKENS", func(c *Config) string { return intStr(c.Answer.MaxTokens) }},
	{"ANSWER_TEMPERATURE", func(c *Config) string { return floatStr(c.Answer.Temperature) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"CHUNK_MAX_TOKENS", func(c *Config) string { return intStr(c.Chunking.MaxTokens) }},
	{"CHUNK_MIN_TOKENS", func(c *Config) string { return intStr(c.Chunking.MinTokens) }},
	{"CHUNK_OVERLAP_TOKENS", func(c *Config) string { return intStr(c.Chunking.OverlapTokens) }},
	{"INGEST_DOC_TIMEOUT", func(c *Config) string { return intStr(c.Ingest.DocTimeoutSeconds) }},
	{"INGEST_DEFAULT_LANGUAGE", func(c *Config) string { return c.Ingest.DefaultLanguage }},
	{"RETRIEVE_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"RETRIEVE_MIN_SCORE", func(c *Config) string { return floatStr(c.Retrieval.MinScore) }},
	{"RETRIEVE_RECENCY_WEIGHT", func(c *Config) string { return floatStr(c.Retrieval.RecencyWeight) }},
	{"RETRIEVE_KEYWORD_WEIGHT", func(c *Config) string { return floatStr(c.Retrieval.KeywordWeight) }},
	{"DOCQA_HOST", func(c *Config) string { return c.Server.Host }},
	{"DOCQA_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"DOCQA_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"DOCQA_CATALOG_DB", func(c *Config) string { return c.Catalog.DBPath }},
	{"DOCQA_LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"DOCQA_LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("DOCQA_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".docqa", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("docqa.yaml"); err == nil {
		return "docqa.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// floatStr converts a float64 to string, returning "" for zero values.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
