// Package vectorstore provides the per-sociolect language pattern store used
// to ground explanations.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/abdulachik/memexplain/internal/embedder"
	"github.com/abdulachik/memexplain/internal/meme"
)

const defaultTimeout = 5 * time.Second

// Kind selects the storage backend.
type Kind string

const (
	KindEmbedded Kind = "embedded"
	KindHosted   Kind = "hosted"
	KindMemory   Kind = "memory"
)

// Config holds configuration for the PatternStore.
type Config struct {
	Kind Kind

	// Hosted (Chroma) options.
	Host     string
	Port     int
	APIKey   string
	Tenant   string
	Database string

	// PersistPath is the directory owned by the embedded backend.
	PersistPath string

	// Timeout bounds every backend call, embedding included.
	Timeout time.Duration
}

// resolveKind applies the rule that hosted needs at least a host.
func (c Config) resolveKind() Kind {
	switch c.Kind {
	case KindHosted:
		if c.Host == "" {
			return KindEmbedded
		}
		return KindHosted
	case KindMemory:
		return KindMemory
	default:
		return KindEmbedded
	}
}

// backend is the storage behind a PatternStore. Patterns are keyed by ID
// inside a sociolect partition.
type backend interface {
	Name() string
	Has(ctx context.Context, s meme.Sociolect, id string) (bool, error)
	Insert(ctx context.Context, s meme.Sociolect, p meme.LanguagePattern, vec []float32) error
	Search(ctx context.Context, s meme.Sociolect, vec []float32, k int, category meme.Category) ([]meme.LanguagePattern, error)
	All(ctx context.Context, s meme.Sociolect) ([]meme.LanguagePattern, error)
	// Clear removes the whole partition and reports how many patterns it held.
	Clear(ctx context.Context, s meme.Sociolect) (int, error)
	Close() error
}

// PatternStore is a similarity-searchable set of language patterns,
// partitioned by sociolect. The backend is fixed at construction.
type PatternStore struct {
	backend  backend
	embedder embedder.Embedder
	timeout  time.Duration
}

// Open builds a PatternStore. A hosted backend is verified eagerly; if it is
// unreachable the store falls back to the embedded backend once.
func Open(ctx context.Context, cfg Config, emb embedder.Embedder) (*PatternStore, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var (
		b   backend
		err error
	)

	switch cfg.resolveKind() {
	case KindMemory:
		b = newMemoryBackend()
	case KindHosted:
		b, err = openChroma(ctx, cfg, timeout)
		if err != nil {
			slog.Warn("hosted pattern store unreachable, falling back to embedded",
				"host", cfg.Host,
				"error", err,
			)
			b, err = openEmbedded(ctx, cfg.PersistPath, emb.Dimension())
		}
	default:
		if cfg.Kind == KindHosted {
			slog.Warn("hosted pattern store selected without CHROMA_HOST, using embedded")
		}
		b, err = openEmbedded(ctx, cfg.PersistPath, emb.Dimension())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", meme.ErrStoreUnavailable, err)
	}

	slog.Info("pattern store ready", "backend", b.Name())

	return newPatternStore(b, emb, timeout), nil
}

func newPatternStore(b backend, emb embedder.Embedder, timeout time.Duration) *PatternStore {
	return &PatternStore{
		backend:  b,
		embedder: emb,
		timeout:  timeout,
	}
}

// Backend returns the name of the selected backend.
func (s *PatternStore) Backend() string {
	return s.backend.Name()
}

// Close releases the backend.
func (s *PatternStore) Close() error {
	return s.backend.Close()
}

// Query returns up to k patterns from the sociolect partition, nearest first.
func (s *PatternStore) Query(ctx context.Context, sociolect meme.Sociolect, text string, k int) ([]meme.LanguagePattern, error) {
	return s.QueryCategory(ctx, sociolect, text, k, "")
}

// QueryCategory is Query restricted to one category. An empty category
// matches everything.
func (s *PatternStore) QueryCategory(ctx context.Context, sociolect meme.Sociolect, text string, k int, category meme.Category) ([]meme.LanguagePattern, error) {
	if !sociolect.Valid() {
		return nil, fmt.Errorf("%w: unknown sociolect %q", meme.ErrInvalidInput, sociolect)
	}
	if k <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", meme.ErrStoreUnavailable, err)
	}

	results, err := s.backend.Search(ctx, sociolect, vec, k, category)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", meme.ErrStoreUnavailable, sociolect, err)
	}

	sortByScore(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// AddPatterns embeds and stores patterns. Text already present in the
// partition is skipped. It returns how many patterns were inserted.
func (s *PatternStore) AddPatterns(ctx context.Context, sociolect meme.Sociolect, patterns []meme.PatternInput) (int, error) {
	if !sociolect.Valid() {
		return 0, fmt.Errorf("%w: unknown sociolect %q", meme.ErrInvalidInput, sociolect)
	}

	seen := make(map[string]bool, len(patterns))
	added := 0

	for _, p := range patterns {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			return added, fmt.Errorf("%w: pattern text is empty", meme.ErrInvalidInput)
		}

		id := PatternID(text)
		if seen[id] {
			continue
		}
		seen[id] = true

		inserted, err := s.addOne(ctx, sociolect, id, text, p)
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}

	slog.Debug("added language patterns", "sociolect", sociolect, "added", added, "skipped", len(patterns)-added)
	return added, nil
}

func (s *PatternStore) addOne(ctx context.Context, sociolect meme.Sociolect, id, text string, p meme.PatternInput) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.backend.Has(ctx, sociolect, id)
	if err != nil {
		return false, fmt.Errorf("%w: check pattern: %w", meme.ErrStoreUnavailable, err)
	}
	if exists {
		return false, nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return false, fmt.Errorf("%w: embed pattern: %w", meme.ErrStoreUnavailable, err)
	}

	category := p.Category
	if category == "" {
		category = meme.CategoryGeneral
	}

	pattern := meme.LanguagePattern{
		ID:        id,
		Text:      text,
		Category:  category,
		Context:   strings.TrimSpace(p.Context),
		Sociolect: sociolect,
	}
	if err := s.backend.Insert(ctx, sociolect, pattern, vec); err != nil {
		return false, fmt.Errorf("%w: insert pattern: %w", meme.ErrStoreUnavailable, err)
	}
	return true, nil
}

// AllPatterns lists every pattern in the partition in no particular order.
func (s *PatternStore) AllPatterns(ctx context.Context, sociolect meme.Sociolect) ([]meme.LanguagePattern, error) {
	if !sociolect.Valid() {
		return nil, fmt.Errorf("%w: unknown sociolect %q", meme.ErrInvalidInput, sociolect)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	patterns, err := s.backend.All(ctx, sociolect)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", meme.ErrStoreUnavailable, sociolect, err)
	}
	return patterns, nil
}

// Clear deletes every pattern in the partition. Patterns are corrected by
// clearing and seeding again.
func (s *PatternStore) Clear(ctx context.Context, sociolect meme.Sociolect) (int, error) {
	if !sociolect.Valid() {
		return 0, fmt.Errorf("%w: unknown sociolect %q", meme.ErrInvalidInput, sociolect)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.backend.Clear(ctx, sociolect)
	if err != nil {
		return 0, fmt.Errorf("%w: clear %s: %w", meme.ErrStoreUnavailable, sociolect, err)
	}

	slog.Info("cleared language patterns", "sociolect", sociolect, "backend", s.backend.Name(), "removed", removed)
	return removed, nil
}

// Counts returns the number of patterns in each partition.
func (s *PatternStore) Counts(ctx context.Context) (map[meme.Sociolect]int, error) {
	counts := make(map[meme.Sociolect]int, len(meme.Sociolects))
	for _, sl := range meme.Sociolects {
		patterns, err := s.AllPatterns(ctx, sl)
		if err != nil {
			return nil, err
		}
		counts[sl] = len(patterns)
	}
	return counts, nil
}

// PatternID is the stable identity of a pattern text inside a partition.
func PatternID(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:16])
}

// sortByScore orders results nearest first, breaking ties by text so equal
// scores come back in the same order every time.
func sortByScore(patterns []meme.LanguagePattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Score != patterns[j].Score {
			return patterns[i].Score > patterns[j].Score
		}
		return patterns[i].Text < patterns[j].Text
	})
}
