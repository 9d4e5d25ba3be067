// Package app wires the pipeline, pattern store, history and media lookup
// into one container shared by the CLI and the HTTP server.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/memexplain/internal/config"
	"github.com/abdulachik/memexplain/internal/db"
	"github.com/abdulachik/memexplain/internal/embedder"
	"github.com/abdulachik/memexplain/internal/extractor"
	"github.com/abdulachik/memexplain/internal/generator"
	"github.com/abdulachik/memexplain/internal/llm"
	"github.com/abdulachik/memexplain/internal/media"
	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/abdulachik/memexplain/internal/pipeline"
	"github.com/abdulachik/memexplain/internal/vectorstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const embedderPingTimeout = 5 * time.Second

// App is the main application container holding all dependencies.
type App struct {
	Config    *config.Config
	History   *db.Store
	Embedder  embedder.Embedder
	Patterns  *vectorstore.PatternStore
	LLM       llm.Client
	Generator *generator.Generator
	Scraper   *extractor.CachedScraper
	Pipeline  *pipeline.Pipeline
	Media     *media.YouTube
	Health    *Health
	Registry  *prometheus.Registry
}

// New creates a new application instance with all dependencies wired up.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	health := NewHealth()

	// Explanation history
	history, err := OpenHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	health.SetHealthy(ComponentHistory, cfg.DatabasePath)

	// Pattern store
	emb := NewEmbedder(cfg)
	patterns, err := OpenPatternStore(ctx, cfg, emb)
	if err != nil {
		history.Close()
		return nil, err
	}
	health.SetHealthy(ComponentPatternStore, patterns.Backend())
	CheckEmbedder(ctx, emb, health)

	if cfg.SeedOnStart {
		if err := seedEmpty(ctx, patterns); err != nil {
			slog.Warn("seeding pattern store failed, explanations will be ungrounded", "error", err)
			health.SetUnhealthy(ComponentPatternStore, err)
		}
	}

	// Language model
	client, err := NewLLM(ctx, cfg)
	if err != nil {
		patterns.Close()
		history.Close()
		return nil, err
	}
	health.SetHealthy(ComponentLLM, client.Name())

	scraper := extractor.NewCachedScraper(
		extractor.NewScraper(extractor.ScraperConfig{
			BaseURL: cfg.KYMBaseURL,
			Timeout: cfg.ScrapeTimeout,
		}),
		cfg.ScrapeCacheSize,
		cfg.ScrapeCacheTTL,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := pipeline.NewMetrics(registry)

	gen := generator.New(client, patterns, generator.Config{
		PatternCount: cfg.PatternCount,
		Timeout:      cfg.GenerateTimeout,
		Degraded:     metrics.Degraded(),
	})

	p := pipeline.New(scraper, extractor.NewCurator(), gen, pipeline.Config{
		Scrape:        pipeline.RetryPolicy{Retries: cfg.ScrapeRetries, Backoff: cfg.ScrapeBackoff},
		Explain:       pipeline.RetryPolicy{Retries: cfg.GenerateRetries, Backoff: cfg.GenerateBackoff},
		ScrapeTimeout: cfg.ScrapeTimeout,
		Metrics:       metrics,
	})

	return &App{
		Config:    cfg,
		History:   history,
		Embedder:  emb,
		Patterns:  patterns,
		LLM:       client,
		Generator: gen,
		Scraper:   scraper,
		Pipeline:  p,
		Media:     media.NewYouTube(media.Config{BaseURL: cfg.YouTubeBaseURL, Timeout: cfg.ScrapeTimeout}),
		Health:    health,
		Registry:  registry,
	}, nil
}

// CheckEmbedder pings emb when it supports it and records the outcome. An
// unreachable embedder only degrades grounding, so the error is not returned.
func CheckEmbedder(ctx context.Context, emb embedder.Embedder, health *Health) bool {
	pinger, ok := emb.(embedder.Pinger)
	if !ok {
		health.SetHealthy(ComponentEmbedder, "no health check")
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, embedderPingTimeout)
	defer cancel()

	if err := pinger.Ping(ctx); err != nil {
		slog.Warn("embedder unavailable, explanations will be ungrounded", "error", err)
		health.SetUnhealthy(ComponentEmbedder, err)
		return false
	}
	health.SetHealthy(ComponentEmbedder, "reachable")
	return true
}

// OpenHistory opens and migrates the explanation history database.
func OpenHistory(ctx context.Context, cfg *config.Config) (*db.Store, error) {
	store, err := db.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

// NewEmbedder returns the embedder selected by EMBED_PROVIDER.
func NewEmbedder(cfg *config.Config) embedder.Embedder {
	if cfg.EmbedProvider == "openai" {
		return embedder.NewOpenAI(embedder.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.OpenAIEmbedModel,
			Dimension: cfg.EmbedDimension,
		})
	}
	return embedder.New(embedder.Config{
		Host:      cfg.OllamaHost,
		Model:     cfg.OllamaModel,
		Dimension: cfg.EmbedDimension,
	})
}

// OpenPatternStore builds the pattern store from configuration.
func OpenPatternStore(ctx context.Context, cfg *config.Config, emb embedder.Embedder) (*vectorstore.PatternStore, error) {
	return vectorstore.Open(ctx, vectorstore.Config{
		Kind:        vectorstore.Kind(cfg.PatternStoreBackend),
		Host:        cfg.ChromaHost,
		Port:        cfg.ChromaPort,
		APIKey:      cfg.ChromaAPIKey,
		Tenant:      cfg.ChromaTenant,
		Database:    cfg.ChromaDatabase,
		PersistPath: cfg.PatternStorePath,
		Timeout:     cfg.PatternStoreTimeout,
	}, emb)
}

// NewLLM returns the language model client selected by LLM_PROVIDER.
func NewLLM(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	var key string
	switch cfg.LLMProvider {
	case "openai":
		key = cfg.OpenAIAPIKey
	case "gemini":
		key = cfg.GeminiAPIKey
	default:
		key = cfg.AnthropicAPIKey
	}

	return llm.New(ctx, llm.Config{
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		APIKey:      key,
		Temperature: cfg.LLMTemperature,
	})
}

func seedEmpty(ctx context.Context, patterns *vectorstore.PatternStore) error {
	seed, err := vectorstore.DefaultSeed()
	if err != nil {
		return err
	}
	_, err = patterns.Seed(ctx, seed, vectorstore.SeedOptions{OnlyEmpty: true})
	return err
}

// Explain runs the pipeline and records the result in the history.
func (a *App) Explain(ctx context.Context, topic, sociolect string) (*pipeline.Result, error) {
	state, err := a.Pipeline.Run(ctx, topic, sociolect)
	if err != nil {
		a.trackFailure(err)
		return nil, err
	}

	result, ok := state.Result()
	if !ok {
		return nil, fmt.Errorf("pipeline stopped in %s state", state.Status())
	}

	if a.LLM != nil {
		a.Health.SetHealthy(ComponentLLM, a.LLM.Name())
	}
	a.recordHistory(ctx, state, result)

	return result, nil
}

func (a *App) trackFailure(err error) {
	switch meme.KindOf(err) {
	case meme.KindGeneration:
		a.Health.SetUnhealthy(ComponentLLM, err)
	case meme.KindTransientFetch:
		a.Health.SetUnhealthy(ComponentScraper, err)
	}
}

// recordHistory stores a successful result. Failures are logged only.
func (a *App) recordHistory(ctx context.Context, state *pipeline.State, result *pipeline.Result) {
	if a.History == nil {
		return
	}

	sources, err := json.Marshal(result.Sources)
	if err != nil {
		slog.Warn("failed to encode sources", "run_id", state.RunID, "error", err)
		return
	}

	_, err = a.History.CreateExplanation(ctx, db.CreateExplanationParams{
		RunID:       state.RunID,
		Topic:       state.Topic,
		Sociolect:   string(state.Sociolect),
		MemeName:    result.MemeName,
		Explanation: result.Explanation,
		Sources:     string(sources),
	})
	if err != nil {
		slog.Warn("failed to record explanation", "run_id", state.RunID, "error", err)
		a.Health.SetUnhealthy(ComponentHistory, err)
		return
	}
	a.Health.SetHealthy(ComponentHistory, a.Config.DatabasePath)
}

// Videos looks up explainer videos for topic.
func (a *App) Videos(ctx context.Context, topic string, maxResults int) (*media.VideosResponse, error) {
	return a.Media.Videos(ctx, topic, maxResults)
}

// YouTubeVideos returns only the YouTube results for topic.
func (a *App) YouTubeVideos(ctx context.Context, topic string, maxResults int) ([]meme.VideoResult, error) {
	return a.Media.Search(ctx, topic, maxResults)
}

// Stats summarizes stored patterns and recorded explanations.
type Stats struct {
	Backend      string                 `json:"backend"`
	Patterns     map[meme.Sociolect]int `json:"patterns"`
	Explanations int64                  `json:"explanations"`
	ScrapeCache  int                    `json:"scrape_cache"`
}

// Stats gathers counts from the pattern store and history.
func (a *App) Stats(ctx context.Context) (*Stats, error) {
	counts, err := a.Patterns.Counts(ctx)
	if err != nil {
		a.Health.SetUnhealthy(ComponentPatternStore, err)
		return nil, err
	}
	a.Health.SetHealthy(ComponentPatternStore, a.Patterns.Backend())

	stats := &Stats{
		Backend:  a.Patterns.Backend(),
		Patterns: counts,
	}
	if a.Scraper != nil {
		stats.ScrapeCache = a.Scraper.Len()
	}
	if a.History != nil {
		n, err := a.History.CountExplanations(ctx)
		if err != nil {
			return nil, fmt.Errorf("count explanations: %w", err)
		}
		stats.Explanations = n
	}
	return stats, nil
}

// Close closes all resources.
func (a *App) Close() error {
	var firstErr error
	if a.Patterns != nil {
		if err := a.Patterns.Close(); err != nil {
			firstErr = err
		}
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
