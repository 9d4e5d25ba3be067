package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	calls  int
	system string
	user   string
	reply  string
	err    error
}

func (f *fakeLLM) Name() string { return "fake:test" }

func (f *fakeLLM) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.system = system
	f.user = user
	return f.reply, f.err
}

type fakeStore struct {
	calls    int
	k        int
	patterns []meme.LanguagePattern
	err      error
}

func (f *fakeStore) Query(ctx context.Context, s meme.Sociolect, text string, k int) ([]meme.LanguagePattern, error) {
	f.calls++
	f.k = k
	return f.patterns, f.err
}

func stonksRecord() *meme.FactRecord {
	origin := "First posted on a Facebook page in 2017."
	return meme.NewFactRecord("Stonks", "A misspelling of stocks.", &origin, nil,
		"https://knowyourmeme.com/memes/stonks")
}

func TestTemplates(t *testing.T) {
	assert.Len(t, templates, 4)
	for _, s := range meme.Sociolects {
		tmpl, ok := Template(s)
		assert.True(t, ok, s)
		assert.NotEmpty(t, tmpl, s)
	}

	_, ok := Template("gen-alpha")
	assert.False(t, ok)
}

func TestGenerator_Explain(t *testing.T) {
	ctx := context.Background()

	t.Run("grounds the prompt with patterns", func(t *testing.T) {
		client := &fakeLLM{reply: "  stonks only go up fr\n\n## Sources\n- https://knowyourmeme.com/memes/stonks  "}
		store := &fakeStore{patterns: []meme.LanguagePattern{
			{Text: "no cap", Category: meme.CategoryPhrase, Context: "sincerity"},
			{Text: "lowkey", Category: meme.CategoryKeyword},
		}}

		g := New(client, store, Config{})
		text, err := g.Explain(ctx, stonksRecord(), meme.GenZ)
		require.NoError(t, err)

		assert.Equal(t, "stonks only go up fr\n\n## Sources\n- https://knowyourmeme.com/memes/stonks", text)
		assert.Equal(t, 1, client.calls)
		assert.Equal(t, 5, store.k)
		assert.Contains(t, client.system, "Gen Z")
		assert.Contains(t, client.system, "IMPORTANT - Language Style Context:")
		assert.Contains(t, client.system, "no cap (use when: sincerity)")
		assert.Contains(t, client.user, "Meme: Stonks")
		assert.Contains(t, client.user, "Origin: First posted")
		assert.Contains(t, client.user, "Usage: N/A")
	})

	t.Run("unknown sociolect never calls the model", func(t *testing.T) {
		client := &fakeLLM{reply: "x"}
		store := &fakeStore{}

		g := New(client, store, Config{})
		_, err := g.Explain(ctx, stonksRecord(), "gen-alpha")

		assert.ErrorIs(t, err, meme.ErrInvalidInput)
		assert.Equal(t, 0, client.calls)
		assert.Equal(t, 0, store.calls)
	})

	t.Run("store failure degrades to no grounding", func(t *testing.T) {
		client := &fakeLLM{reply: "explained"}
		store := &fakeStore{err: fmt.Errorf("%w: connection refused", meme.ErrStoreUnavailable)}

		degraded := prometheus.NewCounter(prometheus.CounterOpts{Name: "degraded"})

		g := New(client, store, Config{Degraded: degraded})
		text, err := g.Explain(ctx, stonksRecord(), meme.Boomer)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(text, "explained"))
		assert.Contains(t, client.system, "No specific language patterns found.")
		assert.Equal(t, 1.0, testutil.ToFloat64(degraded))
	})

	t.Run("appends sources when missing", func(t *testing.T) {
		client := &fakeLLM{reply: "explained"}

		g := New(client, nil, Config{})
		text, err := g.Explain(ctx, stonksRecord(), meme.Millennial)
		require.NoError(t, err)

		assert.Equal(t, "explained\n\n## Sources\n- https://knowyourmeme.com/memes/stonks", text)
	})

	t.Run("mentioning resources does not count as sources", func(t *testing.T) {
		client := &fakeLLM{reply: "Stonks is a meme. Loads of online resources cover it."}

		g := New(client, nil, Config{})
		text, err := g.Explain(ctx, stonksRecord(), meme.Millennial)
		require.NoError(t, err)

		assert.Contains(t, text, "https://knowyourmeme.com/memes/stonks")
		assert.True(t, strings.HasSuffix(text, "## Sources\n- https://knowyourmeme.com/memes/stonks"))
	})

	t.Run("model failure is a generation error", func(t *testing.T) {
		client := &fakeLLM{err: errors.New("rate limited")}

		g := New(client, nil, Config{})
		_, err := g.Explain(ctx, stonksRecord(), meme.GenX)

		assert.ErrorIs(t, err, meme.ErrGeneration)
		assert.Equal(t, meme.KindGeneration, meme.KindOf(err))
	})

	t.Run("blank reply is a generation error", func(t *testing.T) {
		client := &fakeLLM{reply: "  \n "}

		g := New(client, nil, Config{})
		_, err := g.Explain(ctx, stonksRecord(), meme.GenX)
		assert.ErrorIs(t, err, meme.ErrGeneration)
	})

	t.Run("custom pattern count", func(t *testing.T) {
		store := &fakeStore{}
		g := New(&fakeLLM{reply: "ok"}, store, Config{PatternCount: 3})
		_, err := g.Explain(ctx, stonksRecord(), meme.GenZ)
		require.NoError(t, err)
		assert.Equal(t, 3, store.k)
	})

	t.Run("negative pattern count disables grounding", func(t *testing.T) {
		store := &fakeStore{}
		g := New(&fakeLLM{reply: "ok"}, store, Config{PatternCount: -1})
		_, err := g.Explain(ctx, stonksRecord(), meme.GenZ)
		require.NoError(t, err)
		assert.Equal(t, 0, store.calls)
	})
}

func TestEnsureSources(t *testing.T) {
	const kym = "https://knowyourmeme.com/memes/stonks"

	tests := []struct {
		name string
		text string
		urls []string
		want string
	}{
		{
			name: "no urls",
			text: "explained",
			want: "explained",
		},
		{
			name: "url already cited inline",
			text: "see " + kym,
			urls: []string{kym},
			want: "see " + kym,
		},
		{
			name: "word sources in prose",
			text: "My sources say stonks.",
			urls: []string{kym},
			want: "My sources say stonks.\n\n## Sources\n- " + kym,
		},
		{
			name: "heading without the url",
			text: "explained\n\n**Sources:**\n",
			urls: []string{kym},
			want: "explained\n\n**Sources:**\n- " + kym,
		},
		{
			name: "only missing urls are added",
			text: "explained\n\n## Sources\n- " + kym,
			urls: []string{kym, "https://example.com/a"},
			want: "explained\n\n## Sources\n- " + kym + "\n- https://example.com/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ensureSources(tt.text, tt.urls))
		})
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	tmpl, _ := Template(meme.GenZ)
	patterns := []meme.LanguagePattern{{Text: "slay", Category: meme.CategoryKeyword}}

	s1, u1 := BuildPrompt(tmpl, meme.GenZ, stonksRecord(), patterns)
	s2, u2 := BuildPrompt(tmpl, meme.GenZ, stonksRecord(), patterns)

	assert.Equal(t, s1, s2)
	assert.Equal(t, u1, u2)
	assert.True(t, strings.HasSuffix(s1, `End with a "Sources" section in markdown listing the URLs used.`))
}
