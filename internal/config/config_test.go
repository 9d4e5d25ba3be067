package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env and restore after test
	origEnv := os.Environ()
	t.Cleanup(func() {
		os.Clearenv()
		for _, e := range origEnv {
			for i := 0; i < len(e); i++ {
				if e[i] == '=' {
					os.Setenv(e[:i], e[i+1:])
					break
				}
			}
		}
	})

	t.Run("defaults", func(t *testing.T) {
		os.Clearenv()
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "data/memexplain.db", cfg.DatabasePath)
		assert.Equal(t, "embedded", cfg.PatternStoreBackend)
		assert.Equal(t, "data/patterns", cfg.PatternStorePath)
		assert.Equal(t, 8000, cfg.ChromaPort)
		assert.Equal(t, "http://localhost:11434", cfg.OllamaHost)
		assert.Equal(t, "anthropic", cfg.LLMProvider)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 10*time.Second, cfg.ScrapeTimeout)
		assert.Equal(t, 2, cfg.ScrapeRetries)
		assert.Equal(t, 500*time.Millisecond, cfg.ScrapeBackoff)
		assert.Equal(t, 60*time.Second, cfg.GenerateTimeout)
		assert.Equal(t, 1, cfg.GenerateRetries)
		assert.Equal(t, 5, cfg.PatternCount)
		assert.Equal(t, 5*time.Second, cfg.PatternStoreTimeout)
		assert.True(t, cfg.SeedOnStart)
		assert.InDelta(t, 0.7, cfg.LLMTemperature, 0.0001)
	})

	t.Run("custom values", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("DATABASE_PATH", "/custom/path.db")
		os.Setenv("PATTERN_STORE_BACKEND", "hosted")
		os.Setenv("CHROMA_HOST", "api.trychroma.com")
		os.Setenv("CHROMA_PORT", "443")
		os.Setenv("CHROMA_TENANT", "tenant-1")
		os.Setenv("LLM_PROVIDER", "gemini")
		os.Setenv("SCRAPE_RETRIES", "4")
		os.Setenv("GENERATE_TIMEOUT", "2m")
		os.Setenv("SEED_ON_START", "false")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "/custom/path.db", cfg.DatabasePath)
		assert.Equal(t, "hosted", cfg.PatternStoreBackend)
		assert.Equal(t, "api.trychroma.com", cfg.ChromaHost)
		assert.Equal(t, 443, cfg.ChromaPort)
		assert.Equal(t, "tenant-1", cfg.ChromaTenant)
		assert.Equal(t, "gemini", cfg.LLMProvider)
		assert.Equal(t, 4, cfg.ScrapeRetries)
		assert.Equal(t, 2*time.Minute, cfg.GenerateTimeout)
		assert.False(t, cfg.SeedOnStart)
	})

	t.Run("invalid duration", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("SCRAPE_TIMEOUT", "invalid")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "SCRAPE_TIMEOUT")
	})

	t.Run("invalid integer", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("PATTERN_COUNT", "notanumber")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "PATTERN_COUNT")
	})

	t.Run("invalid bool", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("SEED_ON_START", "maybe")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "SEED_ON_START")
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := &Config{DatabasePath: "test.db"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing database path", func(t *testing.T) {
		cfg := &Config{}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_PATH")
	})

	t.Run("negative retries", func(t *testing.T) {
		cfg := &Config{DatabasePath: "test.db", ScrapeRetries: -1}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "SCRAPE_RETRIES")
	})
}

func TestConfig_ValidateForPatternStore(t *testing.T) {
	base := func() *Config {
		return &Config{
			DatabasePath:        "test.db",
			PatternStoreBackend: "embedded",
			PatternStorePath:    "data/patterns",
			EmbedProvider:       "ollama",
			OllamaHost:          "http://localhost:11434",
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().ValidateForPatternStore())
	})

	t.Run("memory needs no path", func(t *testing.T) {
		cfg := base()
		cfg.PatternStoreBackend = "memory"
		cfg.PatternStorePath = ""
		assert.NoError(t, cfg.ValidateForPatternStore())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := base()
		cfg.PatternStoreBackend = "redis"
		err := cfg.ValidateForPatternStore()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "PATTERN_STORE_BACKEND")
	})

	t.Run("openai embeddings need a key", func(t *testing.T) {
		cfg := base()
		cfg.EmbedProvider = "openai"
		err := cfg.ValidateForPatternStore()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	})
}

func TestConfig_ValidateForGeneration(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"anthropic ok", Config{LLMProvider: "anthropic", AnthropicAPIKey: "sk"}, ""},
		{"anthropic missing key", Config{LLMProvider: "anthropic"}, "ANTHROPIC_API_KEY"},
		{"openai missing key", Config{LLMProvider: "openai"}, "OPENAI_API_KEY"},
		{"gemini ok", Config{LLMProvider: "gemini", GeminiAPIKey: "g"}, ""},
		{"gemini missing key", Config{LLMProvider: "gemini"}, "GEMINI_API_KEY"},
		{"unknown provider", Config{LLMProvider: "llama"}, "LLM_PROVIDER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateForGeneration()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeOllamaHost(t *testing.T) {
	assert.Equal(t, "http://localhost:11434", normalizeOllamaHost(""))
	assert.Equal(t, "http://localhost:11434", normalizeOllamaHost("0.0.0.0"))
	assert.Equal(t, "http://ollama:11434", normalizeOllamaHost("ollama:11434"))
	assert.Equal(t, "https://ollama.example.com", normalizeOllamaHost("https://ollama.example.com"))
}
