package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/abdul-hamid-achik/veclite"
	"github.com/abdulachik/memexplain/internal/db"
	"github.com/abdulachik/memexplain/internal/meme"
)

const vectorFile = "patterns.veclite"

// embeddedBackend keeps vectors in VecLite (one collection per sociolect) and
// the pattern catalog in SQLite, both under one directory.
type embeddedBackend struct {
	mu        sync.RWMutex
	dir       string
	dimension int
	vecdb     *veclite.DB
	catalog   *db.Store
	colls     map[meme.Sociolect]*veclite.Collection
}

func openEmbedded(ctx context.Context, dir string, dimension int) (*embeddedBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("persist path is required for the embedded backend")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	slog.Debug("opening embedded pattern store", "dir", dir, "dimension", dimension)

	catalog, err := db.OpenCatalog(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	vecdb, err := veclite.Open(filepath.Join(dir, vectorFile))
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("open veclite db: %w", err)
	}

	return &embeddedBackend{
		dir:       dir,
		dimension: dimension,
		vecdb:     vecdb,
		catalog:   catalog,
		colls:     make(map[meme.Sociolect]*veclite.Collection),
	}, nil
}

func (b *embeddedBackend) Name() string { return string(KindEmbedded) }

func collectionName(s meme.Sociolect) string {
	return "sociolect_" + string(s)
}

// collection gets or creates the partition's collection. Callers hold b.mu.
func (b *embeddedBackend) collection(s meme.Sociolect) (*veclite.Collection, error) {
	if coll, ok := b.colls[s]; ok {
		return coll, nil
	}

	name := collectionName(s)
	coll, err := b.vecdb.CreateCollection(name,
		veclite.WithDimension(b.dimension),
		veclite.WithDistanceType(veclite.DistanceCosine),
		veclite.WithHNSW(16, 200), // M=16, efConstruction=200
	)
	if err != nil {
		// Collection might already exist, try to get it
		coll, err = b.vecdb.GetCollection(name)
		if err != nil {
			return nil, fmt.Errorf("get collection %s: %w", name, err)
		}
	}

	b.colls[s] = coll
	return coll, nil
}

func (b *embeddedBackend) Has(ctx context.Context, s meme.Sociolect, id string) (bool, error) {
	_, err := b.catalog.GetPatternByHash(ctx, db.GetPatternByHashParams{
		Sociolect: string(s),
		TextHash:  id,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pattern by hash: %w", err)
	}
	return true, nil
}

func (b *embeddedBackend) Insert(ctx context.Context, s meme.Sociolect, p meme.LanguagePattern, vec []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	coll, err := b.collection(s)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"pattern_id": p.ID,
		"text":       p.Text,
		"category":   string(p.Category),
		"context":    p.Context,
		"sociolect":  string(s),
	}

	// The catalog row goes first so a failed insert never leaves a vector
	// that Has cannot see.
	var (
		vectorID uint64
		inserted bool
	)
	err = b.catalog.Transact(ctx, func(q *db.Queries) error {
		rowID, err := q.CreatePattern(ctx, db.CreatePatternParams{
			Sociolect: string(s),
			Text:      p.Text,
			TextHash:  p.ID,
			Category:  string(p.Category),
			Context:   p.Context,
		})
		if err != nil {
			return fmt.Errorf("create catalog row: %w", err)
		}

		vectorID, err = coll.InsertDocument(vec, p.Text, payload)
		if err != nil {
			return fmt.Errorf("insert vector: %w", err)
		}
		inserted = true

		return q.SetPatternVectorID(ctx, db.SetPatternVectorIDParams{
			VectorID: sql.NullInt64{Int64: int64(vectorID), Valid: true},
			ID:       rowID,
		})
	})
	if err != nil {
		if inserted {
			if delErr := coll.Delete(vectorID); delErr != nil {
				slog.Warn("failed to remove orphaned vector", "sociolect", s, "vector_id", vectorID, "error", delErr)
			}
		}
		return err
	}

	if err := b.vecdb.Sync(); err != nil {
		return fmt.Errorf("sync veclite: %w", err)
	}
	return nil
}

// Clear drops the partition's collection and its catalog rows. The
// collection is recreated empty on next use.
func (b *embeddedBackend) Clear(ctx context.Context, s meme.Sociolect) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed int64
	err := b.catalog.Transact(ctx, func(q *db.Queries) error {
		var err error
		removed, err = q.DeletePatternsBySociolect(ctx, string(s))
		if err != nil {
			return fmt.Errorf("delete catalog rows: %w", err)
		}

		err = b.vecdb.DropCollection(collectionName(s))
		var notFound *veclite.NotFoundError
		if err != nil && !errors.As(err, &notFound) {
			return fmt.Errorf("drop collection: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	delete(b.colls, s)

	if err := b.vecdb.Sync(); err != nil {
		return 0, fmt.Errorf("sync veclite: %w", err)
	}
	return int(removed), nil
}

func (b *embeddedBackend) Search(ctx context.Context, s meme.Sociolect, vec []float32, k int, category meme.Category) ([]meme.LanguagePattern, error) {
	b.mu.Lock()
	coll, err := b.collection(s)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if coll.Count() == 0 {
		return nil, nil
	}

	var results []veclite.Result
	if category != "" {
		results, err = coll.Search(vec,
			veclite.TopK(k),
			veclite.WithFilter(veclite.Equal("category", string(category))),
		)
	} else {
		results, err = coll.Search(vec, veclite.TopK(k))
	}
	if err != nil {
		return nil, fmt.Errorf("search vector: %w", err)
	}

	return convertResults(s, results), nil
}

func (b *embeddedBackend) All(ctx context.Context, s meme.Sociolect) ([]meme.LanguagePattern, error) {
	rows, err := b.catalog.ListPatternsBySociolect(ctx, string(s))
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}

	out := make([]meme.LanguagePattern, 0, len(rows))
	for _, row := range rows {
		out = append(out, meme.LanguagePattern{
			ID:        row.TextHash,
			Text:      row.Text,
			Category:  meme.Category(row.Category),
			Context:   row.Context,
			Sociolect: s,
		})
	}
	return out, nil
}

func (b *embeddedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.vecdb != nil {
		errs = append(errs, b.vecdb.Close())
	}
	if b.catalog != nil {
		errs = append(errs, b.catalog.Close())
	}
	return errors.Join(errs...)
}

// convertResults converts VecLite results to language patterns.
func convertResults(s meme.Sociolect, results []veclite.Result) []meme.LanguagePattern {
	out := make([]meme.LanguagePattern, 0, len(results))
	for _, r := range results {
		p := meme.LanguagePattern{
			Sociolect: s,
			Score:     r.Score,
		}

		if r.Record.Payload != nil {
			if id, ok := r.Record.Payload["pattern_id"].(string); ok {
				p.ID = id
			}
			if text, ok := r.Record.Payload["text"].(string); ok {
				p.Text = text
			}
			if category, ok := r.Record.Payload["category"].(string); ok {
				p.Category = meme.Category(category)
			}
			if context, ok := r.Record.Payload["context"].(string); ok {
				p.Context = context
			}
		}

		// Fall back to Content field for text
		if p.Text == "" && r.Record.Content != "" {
			p.Text = r.Record.Content
		}
		if p.ID == "" {
			p.ID = PatternID(p.Text)
		}

		out = append(out, p)
	}
	return out
}
