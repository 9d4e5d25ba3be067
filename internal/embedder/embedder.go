// Package embedder computes text embeddings for the pattern store.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

const (
	defaultModel     = "nomic-embed-text"
	defaultDimension = 768
)

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Pinger is implemented by embedders that can check their server before use.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Embedder = (*Ollama)(nil)
	_ Pinger   = (*Ollama)(nil)
)

// Ollama generates embeddings using a local Ollama server.
type Ollama struct {
	host       string
	model      string
	dimension  int
	httpClient *http.Client
}

// Config holds configuration for the Ollama embedder.
type Config struct {
	Host      string
	Model     string
	Dimension int
}

// New creates a new Ollama embedder.
func New(cfg Config) *Ollama {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = defaultDimension
	}

	return &Ollama{
		host:      cfg.Host,
		model:     model,
		dimension: dim,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ollamaRequest is the request body for Ollama embedding API.
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaResponse is the response from Ollama embedding API.
type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Dimension returns the configured vector size.
func (e *Ollama) Dimension() int {
	return e.dimension
}

// Embed generates an embedding for the given text.
func (e *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	req := ollamaRequest{
		Model:  e.model,
		Prompt: text,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embeddings", e.host)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(ollamaResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	return toFloat32(ollamaResp.Embedding), nil
}

// Ping checks if Ollama is available and has the required model.
func (e *Ollama) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/tags", e.host)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return fmt.Errorf("decode tags response: %w", err)
	}

	for _, model := range tagsResp.Models {
		if model.Name == e.model || model.Name == e.model+":latest" {
			slog.Debug("found embedding model", "model", model.Name)
			return nil
		}
	}

	return fmt.Errorf("model %s not found in Ollama (run: ollama pull %s)", e.model, e.model)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// CosineSimilarity computes the cosine similarity between two embeddings.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Normalize normalizes an embedding to unit length.
func Normalize(embedding []float32) []float32 {
	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}

	if norm == 0 {
		return embedding
	}

	norm = math.Sqrt(norm)
	result := make([]float32, len(embedding))
	for i, v := range embedding {
		result[i] = float32(float64(v) / norm)
	}

	return result
}
