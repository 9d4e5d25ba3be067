package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSeed(t *testing.T) {
	seed, err := DefaultSeed()
	require.NoError(t, err)

	for _, sl := range meme.Sociolects {
		assert.NotEmpty(t, seed[sl], sl)
		for _, p := range seed[sl] {
			assert.NotEmpty(t, p.Text)
			assert.Contains(t, []meme.Category{meme.CategoryPhrase, meme.CategoryKeyword, meme.CategoryTone}, p.Category)
		}
	}
}

func TestParseSeed(t *testing.T) {
	t.Run("accepts sociolect aliases", func(t *testing.T) {
		seed, err := ParseSeed([]byte(`
millenial:
  - text: adulting
    category: keyword
    context: doing grown-up chores
`))
		require.NoError(t, err)
		require.Len(t, seed[meme.Millennial], 1)
		assert.Equal(t, "adulting", seed[meme.Millennial][0].Text)
	})

	t.Run("rejects unknown sociolect", func(t *testing.T) {
		_, err := ParseSeed([]byte("gen-alpha:\n  - text: skibidi\n"))
		assert.ErrorIs(t, err, meme.ErrInvalidInput)
	})

	t.Run("rejects invalid yaml", func(t *testing.T) {
		_, err := ParseSeed([]byte("gen-z: [unclosed"))
		assert.Error(t, err)
	})
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("boomer:\n  - {text: groovy, category: keyword}\n"), 0644))

	seed, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Len(t, seed[meme.Boomer], 1)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPatternStore_Seed(t *testing.T) {
	ctx := context.Background()
	seed, err := DefaultSeed()
	require.NoError(t, err)

	t.Run("seeds every partition once", func(t *testing.T) {
		store, _ := newTestStore(t)

		added, err := store.Seed(ctx, seed, SeedOptions{})
		require.NoError(t, err)
		assert.Equal(t, len(seed[meme.GenZ]), added[meme.GenZ])

		again, err := store.Seed(ctx, seed, SeedOptions{})
		require.NoError(t, err)
		for _, sl := range meme.Sociolects {
			assert.Zero(t, again[sl], sl)
		}
	})

	t.Run("only empty skips populated partitions", func(t *testing.T) {
		store, emb := newTestStore(t)
		_, err := store.AddPatterns(ctx, meme.GenZ, []meme.PatternInput{{Text: "bussin"}})
		require.NoError(t, err)
		before := emb.calls

		added, err := store.Seed(ctx, Seed{meme.GenZ: seed[meme.GenZ]}, SeedOptions{OnlyEmpty: true})
		require.NoError(t, err)
		assert.Empty(t, added)
		assert.Equal(t, before, emb.calls)
	})
}
