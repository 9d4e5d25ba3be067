package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/abdulachik/memexplain/internal/config"
	"github.com/abdulachik/memexplain/internal/embedder"
	"github.com/abdulachik/memexplain/internal/extractor"
	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/abdulachik/memexplain/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DatabasePath:        filepath.Join(t.TempDir(), "memexplain.db"),
		PatternStoreBackend: "memory",
		EmbedProvider:       "ollama",
		OllamaHost:          "http://127.0.0.1:1",
		EmbedDimension:      16,
		LLMProvider:         "anthropic",
		AnthropicAPIKey:     "test-key",
		PatternCount:        5,
	}
}

type stubScraper struct{}

func (stubScraper) Scrape(ctx context.Context, topic string) (*meme.RawContent, error) {
	return &meme.RawContent{
		Topic:        topic,
		Markup:       "<html><body><h1>Stonks</h1><h2>About</h2><p>Stocks, but wrong.</p></body></html>",
		CanonicalURL: "https://knowyourmeme.com/memes/stonks",
	}, nil
}

type stubExplainer struct{ err error }

func (s stubExplainer) Explain(ctx context.Context, rec *meme.FactRecord, sl meme.Sociolect) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return rec.Name + " explained for " + string(sl), nil
}

func newTestApp(t *testing.T, explainer pipeline.Explainer) *App {
	t.Helper()

	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	cfg := pipeline.DefaultConfig()
	cfg.Scrape.Backoff = 0
	cfg.Explain.Backoff = 0
	a.Pipeline = pipeline.New(stubScraper{}, extractor.NewCurator(), explainer, cfg)
	return a
}

func TestNew(t *testing.T) {
	a := newTestApp(t, stubExplainer{})

	assert.Equal(t, "memory", a.Patterns.Backend())
	assert.Equal(t, "anthropic:claude-sonnet-4-20250514", a.LLM.Name())
	assert.True(t, a.Health.GetStatus(ComponentPatternStore).Healthy)
	assert.True(t, a.Health.GetStatus(ComponentLLM).Healthy)
	// testConfig points at a closed port.
	assert.False(t, a.Health.GetStatus(ComponentEmbedder).Healthy)
}

func TestCheckEmbedder(t *testing.T) {
	t.Run("reachable with model", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"}]}`))
		}))
		defer server.Close()

		health := NewHealth()
		emb := embedder.New(embedder.Config{Host: server.URL})

		assert.True(t, CheckEmbedder(context.Background(), emb, health))
		assert.True(t, health.GetStatus(ComponentEmbedder).Healthy)
	})

	t.Run("model missing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
		}))
		defer server.Close()

		health := NewHealth()
		emb := embedder.New(embedder.Config{Host: server.URL})

		assert.False(t, CheckEmbedder(context.Background(), emb, health))
		status := health.GetStatus(ComponentEmbedder)
		assert.False(t, status.Healthy)
		assert.Contains(t, status.Message, "not found")
	})

	t.Run("embedder without health check", func(t *testing.T) {
		health := NewHealth()

		assert.True(t, CheckEmbedder(context.Background(), plainEmbedder{}, health))
		assert.True(t, health.GetStatus(ComponentEmbedder).Healthy)
	})
}

type plainEmbedder struct{}

func (plainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 16), nil
}

func (plainEmbedder) Dimension() int { return 16 }

func TestNew_SeedFailureIsDegraded(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedOnStart = true

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.Health.GetStatus(ComponentPatternStore).Healthy)
}

func TestNew_MissingLLMKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.AnthropicAPIKey = ""

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestApp_Explain(t *testing.T) {
	ctx := context.Background()

	t.Run("records history", func(t *testing.T) {
		a := newTestApp(t, stubExplainer{})

		result, err := a.Explain(ctx, "stonks", "gen-z")
		require.NoError(t, err)
		assert.Equal(t, "Stonks", result.MemeName)
		assert.Equal(t, "Stonks explained for gen-z", result.Explanation)

		rows, err := a.History.ListRecentExplanations(ctx, 10)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "stonks", rows[0].Topic)
		assert.Equal(t, "gen-z", rows[0].Sociolect)

		var sources []string
		require.NoError(t, json.Unmarshal([]byte(rows[0].Sources), &sources))
		assert.Equal(t, []string{"https://knowyourmeme.com/memes/stonks"}, sources)

		stats, err := a.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Explanations)
		assert.Equal(t, "memory", stats.Backend)
		assert.Len(t, stats.Patterns, 4)
	})

	t.Run("generation failure marks the llm unhealthy", func(t *testing.T) {
		a := newTestApp(t, stubExplainer{err: fmt.Errorf("%w: 429", meme.ErrGeneration)})

		_, err := a.Explain(ctx, "stonks", "boomer")

		var stageErr *pipeline.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, pipeline.StageExplain, stageErr.Stage)
		assert.False(t, a.Health.GetStatus(ComponentLLM).Healthy)

		n, err := a.History.CountExplanations(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}
