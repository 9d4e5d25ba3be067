package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abdulachik/memexplain/internal/meme"
)

const (
	defaultTenant   = "default_tenant"
	defaultDatabase = "default_database"
)

// chromaBackend talks to a Chroma server over its v2 REST API. Embeddings are
// computed client-side and sent with each add and query.
type chromaBackend struct {
	baseURL    string
	apiKey     string
	tenant     string
	database   string
	httpClient *http.Client

	mu          sync.Mutex
	collections map[meme.Sociolect]string
}

func newChroma(cfg Config, timeout time.Duration) *chromaBackend {
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = defaultTenant
	}
	database := cfg.Database
	if database == "" {
		database = defaultDatabase
	}

	return &chromaBackend{
		baseURL:  chromaBaseURL(cfg.Host, cfg.Port),
		apiKey:   cfg.APIKey,
		tenant:   tenant,
		database: database,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		collections: make(map[meme.Sociolect]string),
	}
}

// openChroma creates the client and verifies the server is reachable.
func openChroma(ctx context.Context, cfg Config, timeout time.Duration) (*chromaBackend, error) {
	c := newChroma(cfg, timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.heartbeat(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// chromaBaseURL builds the server URL. A host with a scheme is used as is.
func chromaBaseURL(host string, port int) string {
	host = strings.TrimRight(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	switch port {
	case 0:
		return "http://" + host
	case 443:
		return "https://" + host
	default:
		return "http://" + host + ":" + strconv.Itoa(port)
	}
}

func (c *chromaBackend) Name() string { return string(KindHosted) }

func (c *chromaBackend) heartbeat(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil, nil); err != nil {
		return fmt.Errorf("chroma heartbeat: %w", err)
	}
	return nil
}

func (c *chromaBackend) collectionsPath() string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s/collections",
		url.PathEscape(c.tenant), url.PathEscape(c.database))
}

// collectionID gets or creates the partition's collection.
func (c *chromaBackend) collectionID(ctx context.Context, s meme.Sociolect) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.collections[s]; ok {
		return id, nil
	}

	req := map[string]any{
		"name":          collectionName(s),
		"get_or_create": true,
		"metadata": map[string]any{
			"hnsw:space": "cosine",
			"sociolect":  string(s),
		},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, c.collectionsPath(), req, &resp); err != nil {
		return "", fmt.Errorf("get or create collection: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("get or create collection: empty id")
	}

	c.collections[s] = resp.ID
	return resp.ID, nil
}

type chromaGetResponse struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

type chromaQueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

func (c *chromaBackend) Has(ctx context.Context, s meme.Sociolect, id string) (bool, error) {
	collID, err := c.collectionID(ctx, s)
	if err != nil {
		return false, err
	}

	req := map[string]any{
		"ids":     []string{id},
		"include": []string{},
	}
	var resp chromaGetResponse
	if err := c.do(ctx, http.MethodPost, c.collectionsPath()+"/"+collID+"/get", req, &resp); err != nil {
		return false, fmt.Errorf("get pattern: %w", err)
	}
	return len(resp.IDs) > 0, nil
}

func (c *chromaBackend) Insert(ctx context.Context, s meme.Sociolect, p meme.LanguagePattern, vec []float32) error {
	collID, err := c.collectionID(ctx, s)
	if err != nil {
		return err
	}

	req := map[string]any{
		"ids":        []string{p.ID},
		"embeddings": [][]float32{vec},
		"documents":  []string{p.Text},
		"metadatas": []map[string]any{{
			"category":  string(p.Category),
			"context":   p.Context,
			"sociolect": string(s),
		}},
	}
	if err := c.do(ctx, http.MethodPost, c.collectionsPath()+"/"+collID+"/add", req, nil); err != nil {
		return fmt.Errorf("add pattern: %w", err)
	}
	return nil
}

func (c *chromaBackend) Search(ctx context.Context, s meme.Sociolect, vec []float32, k int, category meme.Category) ([]meme.LanguagePattern, error) {
	collID, err := c.collectionID(ctx, s)
	if err != nil {
		return nil, err
	}

	req := map[string]any{
		"query_embeddings": [][]float32{vec},
		"n_results":        k,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if category != "" {
		req["where"] = map[string]any{"category": string(category)}
	}

	var resp chromaQueryResponse
	if err := c.do(ctx, http.MethodPost, c.collectionsPath()+"/"+collID+"/query", req, &resp); err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	out := make([]meme.LanguagePattern, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		p := meme.LanguagePattern{ID: id, Sociolect: s}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			p.Text = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			applyMetadata(&p, resp.Metadatas[0][i])
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			// cosine distance -> similarity
			p.Score = float32(1 - resp.Distances[0][i])
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *chromaBackend) All(ctx context.Context, s meme.Sociolect) ([]meme.LanguagePattern, error) {
	collID, err := c.collectionID(ctx, s)
	if err != nil {
		return nil, err
	}

	req := map[string]any{
		"include": []string{"documents", "metadatas"},
	}
	var resp chromaGetResponse
	if err := c.do(ctx, http.MethodPost, c.collectionsPath()+"/"+collID+"/get", req, &resp); err != nil {
		return nil, fmt.Errorf("get patterns: %w", err)
	}

	out := make([]meme.LanguagePattern, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		p := meme.LanguagePattern{ID: id, Sociolect: s}
		if i < len(resp.Documents) {
			p.Text = resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			applyMetadata(&p, resp.Metadatas[i])
		}
		out = append(out, p)
	}
	return out, nil
}

// Clear deletes the partition's collection by name and forgets its ID, so
// the next call creates it again.
func (c *chromaBackend) Clear(ctx context.Context, s meme.Sociolect) (int, error) {
	collID, err := c.collectionID(ctx, s)
	if err != nil {
		return 0, err
	}
	var count int
	if err := c.do(ctx, http.MethodGet, c.collectionsPath()+"/"+collID+"/count", nil, &count); err != nil {
		return 0, fmt.Errorf("count patterns: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.collectionsPath() + "/" + url.PathEscape(collectionName(s))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return 0, fmt.Errorf("delete collection: %w", err)
	}
	delete(c.collections, s)
	return count, nil
}

func (c *chromaBackend) Close() error { return nil }

func applyMetadata(p *meme.LanguagePattern, md map[string]any) {
	if md == nil {
		return
	}
	if category, ok := md["category"].(string); ok {
		p.Category = meme.Category(category)
	}
	if context, ok := md["context"].(string); ok {
		p.Context = context
	}
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (c *chromaBackend) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-chroma-token", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Chroma error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
