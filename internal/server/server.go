// Package server exposes the explain pipeline and media lookup over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/abdulachik/memexplain/internal/app"
	"github.com/abdulachik/memexplain/internal/media"
	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/abdulachik/memexplain/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is what the HTTP layer needs from the application.
type Service interface {
	Explain(ctx context.Context, topic, sociolect string) (*pipeline.Result, error)
	Videos(ctx context.Context, topic string, maxResults int) (*media.VideosResponse, error)
	YouTubeVideos(ctx context.Context, topic string, maxResults int) ([]meme.VideoResult, error)
}

// Config holds configuration for the router.
type Config struct {
	Service Service
	Health  *app.Health
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	h := &handlers{svc: cfg.Service, health: cfg.Health}
	if h.health == nil {
		h.health = app.NewHealth()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/", h.root)
	r.Get("/health", h.healthCheck)
	r.Get("/explain/explanation", h.explain)
	r.Route("/media", func(r chi.Router) {
		r.Get("/videos", h.videos)
		r.Get("/youtube", h.youtube)
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// Run serves handler on addr until ctx is canceled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type handlers struct {
	svc    Service
	health *app.Health
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "memexplain",
		"message": "Explains internet memes in the voice of a generation",
		"endpoints": map[string]string{
			"explain": "/explain/explanation?topic={topic}&sociolect={boomer|gen-x|millennial|gen-z}",
			"videos":  "/media/videos?topic={topic}&max_results={1-10}",
			"youtube": "/media/youtube?topic={topic}&max_results={1-10}",
			"health":  "/health",
			"metrics": "/metrics",
		},
	})
}

type healthResponse struct {
	Status     string                       `json:"status"`
	Components map[string]*app.HealthStatus `json:"components"`
}

func (h *handlers) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.health.IsOverallHealthy() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     status,
		Components: h.health.GetAllStatuses(),
	})
}

func (h *handlers) explain(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topic := q.Get("topic")
	sociolect := q.Get("sociolect")
	if topic == "" {
		writeError(w, fmt.Errorf("%w: topic is required", meme.ErrInvalidInput))
		return
	}
	if sociolect == "" {
		writeError(w, fmt.Errorf("%w: sociolect is required", meme.ErrInvalidInput))
		return
	}

	result, err := h.svc.Explain(r.Context(), topic, sociolect)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) videos(w http.ResponseWriter, r *http.Request) {
	topic, maxResults, err := mediaParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.svc.Videos(r.Context(), topic, maxResults)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) youtube(w http.ResponseWriter, r *http.Request) {
	topic, maxResults, err := mediaParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	videos, err := h.svc.YouTubeVideos(r.Context(), topic, maxResults)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

func mediaParams(r *http.Request) (string, int, error) {
	q := r.URL.Query()
	topic := q.Get("topic")
	if topic == "" {
		return "", 0, fmt.Errorf("%w: topic is required", meme.ErrInvalidInput)
	}

	maxResults := media.DefaultMaxResults
	if raw := q.Get("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", 0, fmt.Errorf("%w: max_results must be an integer", meme.ErrInvalidInput)
		}
		if n < 1 || n > media.MaxResultsLimit {
			return "", 0, fmt.Errorf("%w: max_results must be between 1 and %d", meme.ErrInvalidInput, media.MaxResultsLimit)
		}
		maxResults = n
	}
	return topic, maxResults, nil
}
