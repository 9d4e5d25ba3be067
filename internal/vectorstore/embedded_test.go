package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdulachik/memexplain/internal/db"
	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedBackend(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "patterns")

	store, err := Open(ctx, Config{Kind: KindEmbedded, PersistPath: dir}, &hashEmbedder{})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "embedded", store.Backend())

	t.Run("persists under the store directory", func(t *testing.T) {
		_, err := os.Stat(filepath.Join(dir, db.CatalogFile))
		assert.NoError(t, err)
	})

	t.Run("add is idempotent", func(t *testing.T) {
		n, err := store.AddPatterns(ctx, meme.GenZ, genZPatterns)
		require.NoError(t, err)
		assert.Equal(t, len(genZPatterns), n)

		n, err = store.AddPatterns(ctx, meme.GenZ, genZPatterns)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		all, err := store.AllPatterns(ctx, meme.GenZ)
		require.NoError(t, err)
		assert.Len(t, all, len(genZPatterns))
	})

	t.Run("query is bounded and scoped", func(t *testing.T) {
		results, err := store.Query(ctx, meme.GenZ, "no cap", 3)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), 3)
		assert.NotEmpty(t, results)
		for _, r := range results {
			assert.Equal(t, meme.GenZ, r.Sociolect)
			assert.NotEmpty(t, r.Text)
		}

		empty, err := store.Query(ctx, meme.Boomer, "no cap", 3)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("query returns nearest first", func(t *testing.T) {
		results, err := store.Query(ctx, meme.GenZ, "slay", 3)
		require.NoError(t, err)
		require.NotEmpty(t, results)

		assert.Equal(t, "slay", results[0].Text)
		assert.Equal(t, meme.CategoryKeyword, results[0].Category)
		assert.InDelta(t, 1.0, results[0].Score, 0.001)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("clear empties one partition", func(t *testing.T) {
		_, err := store.AddPatterns(ctx, meme.Boomer, []meme.PatternInput{{Text: "groovy"}})
		require.NoError(t, err)

		removed, err := store.Clear(ctx, meme.GenZ)
		require.NoError(t, err)
		assert.Equal(t, len(genZPatterns), removed)

		all, err := store.AllPatterns(ctx, meme.GenZ)
		require.NoError(t, err)
		assert.Empty(t, all)

		results, err := store.Query(ctx, meme.GenZ, "slay", 3)
		require.NoError(t, err)
		assert.Empty(t, results)

		boomer, err := store.AllPatterns(ctx, meme.Boomer)
		require.NoError(t, err)
		assert.Len(t, boomer, 1)
	})

	t.Run("cleared partition accepts corrected patterns", func(t *testing.T) {
		corrected := []meme.PatternInput{{Text: "slay", Category: meme.CategoryPhrase, Context: "praise"}}
		n, err := store.AddPatterns(ctx, meme.GenZ, corrected)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		results, err := store.Query(ctx, meme.GenZ, "slay", 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, meme.CategoryPhrase, results[0].Category)
		assert.Equal(t, "praise", results[0].Context)
	})
}

func TestEmbeddedBackend_FailedInsertLeavesNoVector(t *testing.T) {
	ctx := context.Background()

	b, err := openEmbedded(ctx, t.TempDir(), 16)
	require.NoError(t, err)
	defer b.Close()

	emb := &hashEmbedder{}
	vec, err := emb.Embed(ctx, "no cap")
	require.NoError(t, err)

	p := meme.LanguagePattern{ID: PatternID("no cap"), Text: "no cap", Category: meme.CategoryPhrase}
	require.NoError(t, b.Insert(ctx, meme.GenZ, p, vec))

	// The catalog rejects the duplicate row, so no second vector may appear.
	err = b.Insert(ctx, meme.GenZ, p, vec)
	assert.Error(t, err)

	coll, err := b.collection(meme.GenZ)
	require.NoError(t, err)
	assert.Equal(t, 1, coll.Count())

	row, err := b.catalog.GetPatternByHash(ctx, db.GetPatternByHashParams{Sociolect: string(meme.GenZ), TextHash: p.ID})
	require.NoError(t, err)
	assert.True(t, row.VectorID.Valid)
}
