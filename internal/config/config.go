package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Database (explanation history)
	DatabasePath string

	// Pattern store
	PatternStoreBackend string // "embedded", "hosted" or "memory" (default: embedded)
	PatternStorePath    string // Directory owned by the embedded backend (default: data/patterns)
	ChromaHost          string
	ChromaPort          int
	ChromaAPIKey        string
	ChromaTenant        string
	ChromaDatabase      string
	PatternStoreTimeout time.Duration
	PatternCount        int  // Patterns retrieved to ground each explanation
	SeedOnStart         bool // Seed empty partitions with the built-in patterns

	// Embeddings
	EmbedProvider    string // "ollama" or "openai" (default: ollama)
	OllamaHost       string
	OllamaModel      string // Ollama model for embeddings (default: nomic-embed-text)
	OpenAIEmbedModel string
	EmbedDimension   int

	// Language model
	LLMProvider     string // "anthropic", "openai" or "gemini" (default: anthropic)
	LLMModel        string // Empty means the provider default
	LLMTemperature  float64
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string

	// Scraping
	KYMBaseURL      string
	ScrapeTimeout   time.Duration
	ScrapeRetries   int
	ScrapeBackoff   time.Duration
	ScrapeCacheSize int
	ScrapeCacheTTL  time.Duration

	// Generation
	GenerateTimeout time.Duration
	GenerateRetries int
	GenerateBackoff time.Duration

	// Media
	YouTubeBaseURL string

	// Server
	ListenAddr string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:        getEnv("DATABASE_PATH", "data/memexplain.db"),
		PatternStoreBackend: getEnv("PATTERN_STORE_BACKEND", "embedded"),
		PatternStorePath:    getEnv("PATTERN_STORE_PATH", "data/patterns"),
		ChromaHost:          getEnv("CHROMA_HOST", ""),
		ChromaAPIKey:        getEnv("CHROMA_API_KEY", ""),
		ChromaTenant:        getEnv("CHROMA_TENANT", ""),
		ChromaDatabase:      getEnv("CHROMA_DATABASE", ""),
		EmbedProvider:       getEnv("EMBED_PROVIDER", "ollama"),
		OllamaHost:          normalizeOllamaHost(getEnv("OLLAMA_HOST", "http://localhost:11434")),
		OllamaModel:         getEnv("OLLAMA_MODEL", "nomic-embed-text"),
		OpenAIEmbedModel:    getEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		LLMProvider:         getEnv("LLM_PROVIDER", "anthropic"),
		LLMModel:            getEnv("LLM_MODEL", ""),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		KYMBaseURL:          getEnv("KYM_BASE_URL", "https://knowyourmeme.com"),
		YouTubeBaseURL:      getEnv("YOUTUBE_BASE_URL", "https://www.youtube.com"),
		ListenAddr:          getEnv("LISTEN_ADDR", ":8000"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	// Parse durations
	var err error
	if cfg.PatternStoreTimeout, err = time.ParseDuration(getEnv("PATTERN_STORE_TIMEOUT", "5s")); err != nil {
		return nil, fmt.Errorf("invalid PATTERN_STORE_TIMEOUT: %w", err)
	}
	if cfg.ScrapeTimeout, err = time.ParseDuration(getEnv("SCRAPE_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_TIMEOUT: %w", err)
	}
	if cfg.ScrapeBackoff, err = time.ParseDuration(getEnv("SCRAPE_BACKOFF", "500ms")); err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_BACKOFF: %w", err)
	}
	if cfg.ScrapeCacheTTL, err = time.ParseDuration(getEnv("SCRAPE_CACHE_TTL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_CACHE_TTL: %w", err)
	}
	if cfg.GenerateTimeout, err = time.ParseDuration(getEnv("GENERATE_TIMEOUT", "60s")); err != nil {
		return nil, fmt.Errorf("invalid GENERATE_TIMEOUT: %w", err)
	}
	if cfg.GenerateBackoff, err = time.ParseDuration(getEnv("GENERATE_BACKOFF", "1s")); err != nil {
		return nil, fmt.Errorf("invalid GENERATE_BACKOFF: %w", err)
	}

	// Parse integers
	if cfg.ChromaPort, err = strconv.Atoi(getEnv("CHROMA_PORT", "8000")); err != nil {
		return nil, fmt.Errorf("invalid CHROMA_PORT: %w", err)
	}
	if cfg.PatternCount, err = strconv.Atoi(getEnv("PATTERN_COUNT", "5")); err != nil {
		return nil, fmt.Errorf("invalid PATTERN_COUNT: %w", err)
	}
	if cfg.EmbedDimension, err = strconv.Atoi(getEnv("EMBED_DIMENSION", "768")); err != nil {
		return nil, fmt.Errorf("invalid EMBED_DIMENSION: %w", err)
	}
	if cfg.ScrapeRetries, err = strconv.Atoi(getEnv("SCRAPE_RETRIES", "2")); err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_RETRIES: %w", err)
	}
	if cfg.ScrapeCacheSize, err = strconv.Atoi(getEnv("SCRAPE_CACHE_SIZE", "256")); err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_CACHE_SIZE: %w", err)
	}
	if cfg.GenerateRetries, err = strconv.Atoi(getEnv("GENERATE_RETRIES", "1")); err != nil {
		return nil, fmt.Errorf("invalid GENERATE_RETRIES: %w", err)
	}

	if cfg.SeedOnStart, err = strconv.ParseBool(getEnv("SEED_ON_START", "true")); err != nil {
		return nil, fmt.Errorf("invalid SEED_ON_START: %w", err)
	}
	if cfg.LLMTemperature, err = strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0.7"), 64); err != nil {
		return nil, fmt.Errorf("invalid LLM_TEMPERATURE: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.ScrapeRetries < 0 {
		return fmt.Errorf("SCRAPE_RETRIES must not be negative")
	}
	if c.GenerateRetries < 0 {
		return fmt.Errorf("GENERATE_RETRIES must not be negative")
	}
	return nil
}

// ValidateForPatternStore checks configuration needed to open the pattern store.
func (c *Config) ValidateForPatternStore() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch c.PatternStoreBackend {
	case "embedded", "hosted", "":
		if c.PatternStorePath == "" {
			return fmt.Errorf("PATTERN_STORE_PATH is required")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid PATTERN_STORE_BACKEND: %s (must be 'embedded', 'hosted' or 'memory')", c.PatternStoreBackend)
	}
	return c.ValidateForEmbedding()
}

// ValidateForEmbedding checks configuration needed for embedding generation.
func (c *Config) ValidateForEmbedding() error {
	switch c.EmbedProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EMBED_PROVIDER is openai")
		}
	case "ollama", "":
		if c.OllamaHost == "" {
			return fmt.Errorf("OLLAMA_HOST is required for embedding")
		}
	default:
		return fmt.Errorf("invalid EMBED_PROVIDER: %s (must be 'ollama' or 'openai')", c.EmbedProvider)
	}
	return nil
}

// ValidateForGeneration checks configuration needed to call the language model.
func (c *Config) ValidateForGeneration() error {
	switch c.LLMProvider {
	case "anthropic", "":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER is anthropic")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER is openai")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER is gemini")
		}
	default:
		return fmt.Errorf("invalid LLM_PROVIDER: %s (must be 'anthropic', 'openai' or 'gemini')", c.LLMProvider)
	}
	return nil
}

// ValidateForSeed checks configuration needed for seeding patterns.
func (c *Config) ValidateForSeed() error {
	return c.ValidateForPatternStore()
}

// ValidateForExplain checks configuration needed to run the explain pipeline.
func (c *Config) ValidateForExplain() error {
	if err := c.ValidateForPatternStore(); err != nil {
		return err
	}
	if c.KYMBaseURL == "" {
		return fmt.Errorf("KYM_BASE_URL is required")
	}
	return c.ValidateForGeneration()
}

// ValidateForServe checks all configuration needed for serve mode.
func (c *Config) ValidateForServe() error {
	if err := c.ValidateForExplain(); err != nil {
		return err
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR is required")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// normalizeOllamaHost ensures the Ollama host has a proper URL scheme.
// OLLAMA_HOST is often set to the server bind address ("0.0.0.0")
// rather than a client URL.
func normalizeOllamaHost(host string) string {
	if host == "" || host == "0.0.0.0" || host == "0.0.0.0:11434" {
		return "http://localhost:11434"
	}

	if len(host) < 4 || host[:4] != "http" {
		return "http://" + host
	}

	return host
}
