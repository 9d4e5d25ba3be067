package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/abdulachik/memexplain/internal/embedder"
	"github.com/abdulachik/memexplain/internal/meme"
)

// vectorIndex holds one partition's patterns with their embeddings for
// in-memory search.
type vectorIndex struct {
	patterns   []meme.LanguagePattern
	embeddings [][]float32
	ids        map[string]bool
}

// search finds the top-k most similar patterns to the query embedding.
func (v *vectorIndex) search(queryEmbed []float32, k int, category meme.Category) []meme.LanguagePattern {
	if len(v.patterns) == 0 {
		return nil
	}

	// Normalize query embedding
	normalizedQuery := embedder.Normalize(queryEmbed)

	type scoredPattern struct {
		index      int
		similarity float32
	}

	scores := make([]scoredPattern, 0, len(v.patterns))
	for i, emb := range v.embeddings {
		if category != "" && v.patterns[i].Category != category {
			continue
		}
		scores = append(scores, scoredPattern{
			index:      i,
			similarity: embedder.CosineSimilarity(normalizedQuery, emb),
		})
	}

	// Sort by similarity (descending)
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].similarity > scores[j].similarity
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]meme.LanguagePattern, k)
	for i := 0; i < k; i++ {
		p := v.patterns[scores[i].index]
		p.Score = scores[i].similarity
		results[i] = p
	}

	return results
}

// memoryBackend keeps every partition in process memory. Nothing is persisted.
type memoryBackend struct {
	mu         sync.RWMutex
	partitions map[meme.Sociolect]*vectorIndex
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{partitions: make(map[meme.Sociolect]*vectorIndex)}
}

func (m *memoryBackend) Name() string { return string(KindMemory) }

func (m *memoryBackend) Has(ctx context.Context, s meme.Sociolect, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.partitions[s]
	return ok && idx.ids[id], nil
}

func (m *memoryBackend) Insert(ctx context.Context, s meme.Sociolect, p meme.LanguagePattern, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.partitions[s]
	if !ok {
		idx = &vectorIndex{ids: make(map[string]bool)}
		m.partitions[s] = idx
	}
	if idx.ids[p.ID] {
		return nil
	}

	idx.patterns = append(idx.patterns, p)
	// Normalize for faster cosine similarity computation
	idx.embeddings = append(idx.embeddings, embedder.Normalize(vec))
	idx.ids[p.ID] = true
	return nil
}

func (m *memoryBackend) Search(ctx context.Context, s meme.Sociolect, vec []float32, k int, category meme.Category) ([]meme.LanguagePattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.partitions[s]
	if !ok {
		return nil, nil
	}
	return idx.search(vec, k, category), nil
}

func (m *memoryBackend) All(ctx context.Context, s meme.Sociolect) ([]meme.LanguagePattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.partitions[s]
	if !ok {
		return nil, nil
	}
	out := make([]meme.LanguagePattern, len(idx.patterns))
	copy(out, idx.patterns)
	return out, nil
}

func (m *memoryBackend) Clear(ctx context.Context, s meme.Sociolect) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.partitions[s]
	if !ok {
		return 0, nil
	}
	delete(m.partitions, s)
	return len(idx.patterns), nil
}

func (m *memoryBackend) Close() error { return nil }
