package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/abdulachik/memexplain/internal/pipeline"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind    meme.Kind      `json:"kind"`
	Stage   pipeline.Stage `json:"stage,omitempty"`
	Message string         `json:"message"`
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind meme.Kind) int {
	switch kind {
	case meme.KindInvalidInput:
		return http.StatusBadRequest
	case meme.KindNotFound:
		return http.StatusNotFound
	case meme.KindMalformedContent:
		return http.StatusUnprocessableEntity
	case meme.KindTransientFetch, meme.KindGeneration, meme.KindStoreUnavailable, meme.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{
		Kind:    meme.KindOf(err),
		Message: err.Error(),
	}

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		resp.Kind = stageErr.Kind
		resp.Stage = stageErr.Stage
	}

	status := StatusFor(resp.Kind)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		resp.Message = "internal error"
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
