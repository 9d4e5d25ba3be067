package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stonksPage = `<!DOCTYPE html>
<html>
<head>
  <title>Stonks | Know Your Meme</title>
  <link rel="canonical" href="https://knowyourmeme.com/memes/stonks">
  <meta name="description" content="Stonks is a deliberate misspelling of stocks.">
</head>
<body>
  <header><h1>Stonks</h1></header>
  <section class="bodycopy">
    <h2 id="about">About</h2>
    <p>Stonks is a deliberate misspelling of stocks, used ironically to describe poor financial decisions.</p>
    <h2 id="origin">Origin</h2>
    <p>The image first appeared on a Facebook page in 2017.</p>
    <h2 id="spread">Spread</h2>
    <p>In 2019 the meme spread to Reddit and Twitter.</p>
    <div><p>Brands later used it in advertising.</p></div>
  </section>
</body>
</html>`

const searchPage = `<html><body>
  <a href="/memes/popular">Popular</a>
  <table class="entry_list">
    <tr><td><a class="item" href="/memes/stonks">Stonks</a></td></tr>
    <tr><td><a class="item" href="/memes/stonks-2">Stonks 2</a></td></tr>
  </table>
</body></html>`

const emptySearchPage = `<html><body><p>No results found.</p><a href="/memes/popular">Popular</a></body></html>`

// fakeKYM serves a tiny Know Your Meme with one meme.
func fakeKYM(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		switch r.URL.Query().Get("q") {
		case "stonks":
			fmt.Fprint(w, searchPage)
		case "exact stonks":
			http.Redirect(w, r, "/memes/stonks", http.StatusFound)
		case "broken":
			w.WriteHeader(http.StatusBadGateway)
		case "blank":
			w.WriteHeader(http.StatusOK)
		default:
			fmt.Fprint(w, emptySearchPage)
		}
	})
	mux.HandleFunc("/memes/stonks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, stonksPage)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestScraper_Scrape(t *testing.T) {
	server := fakeKYM(t)
	s := NewScraper(ScraperConfig{BaseURL: server.URL, Timeout: 2 * time.Second})
	ctx := context.Background()

	t.Run("follows first search result", func(t *testing.T) {
		raw, err := s.Scrape(ctx, "stonks")
		require.NoError(t, err)

		assert.Equal(t, "stonks", raw.Topic)
		assert.Contains(t, raw.Markup, "<h1>Stonks</h1>")
		assert.Equal(t, "https://knowyourmeme.com/memes/stonks", raw.CanonicalURL)
	})

	t.Run("accepts a redirect to the meme page", func(t *testing.T) {
		raw, err := s.Scrape(ctx, "exact stonks")
		require.NoError(t, err)
		assert.Equal(t, "https://knowyourmeme.com/memes/stonks", raw.CanonicalURL)
	})

	t.Run("blank topic is invalid input", func(t *testing.T) {
		_, err := s.Scrape(ctx, "   ")
		assert.ErrorIs(t, err, meme.ErrInvalidInput)
	})

	t.Run("no results is not found", func(t *testing.T) {
		_, err := s.Scrape(ctx, "this-topic-does-not-exist-xyz")
		assert.ErrorIs(t, err, meme.ErrNotFound)
		assert.NotErrorIs(t, err, meme.ErrTransientFetch)
	})

	t.Run("server error is transient", func(t *testing.T) {
		_, err := s.Scrape(ctx, "broken")
		assert.ErrorIs(t, err, meme.ErrTransientFetch)
	})

	t.Run("empty body is transient", func(t *testing.T) {
		_, err := s.Scrape(ctx, "blank")
		assert.ErrorIs(t, err, meme.ErrTransientFetch)
	})

	t.Run("unreachable host is transient", func(t *testing.T) {
		down := NewScraper(ScraperConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
		_, err := down.Scrape(ctx, "stonks")
		assert.ErrorIs(t, err, meme.ErrTransientFetch)
	})
}

func TestScraper_MissingMemePageIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			fmt.Fprint(w, searchPage)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	s := NewScraper(ScraperConfig{BaseURL: server.URL})
	_, err := s.Scrape(context.Background(), "stonks")
	assert.ErrorIs(t, err, meme.ErrNotFound)
}

func TestIsMemePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/memes/stonks", true},
		{"/memes/stonks/", true},
		{"/memes/popular", false},
		{"/memes/page/2", false},
		{"/memes/", false},
		{"/search", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isMemePath(tt.path))
		})
	}
}

func TestCurate(t *testing.T) {
	canonical := "https://knowyourmeme.com/memes/stonks"

	t.Run("stonks page", func(t *testing.T) {
		record, err := Curate(&meme.RawContent{Topic: "stonks", Markup: stonksPage, CanonicalURL: canonical})
		require.NoError(t, err)

		assert.Equal(t, "Stonks", record.Name)
		assert.Contains(t, record.Summary, "deliberate misspelling")
		require.True(t, record.HasOrigin())
		assert.Contains(t, *record.Origin, "Facebook")
		require.True(t, record.HasUsage())
		assert.Contains(t, *record.Usage, "Reddit")
		assert.Contains(t, *record.Usage, "advertising")
		assert.Equal(t, []string{canonical}, record.SourceURLs)
	})

	t.Run("missing sections stay absent", func(t *testing.T) {
		markup := `<html><body><h1>Doge</h1><h2>About</h2><p>Doge is a Shiba Inu.</p></body></html>`
		record, err := Curate(&meme.RawContent{Markup: markup, CanonicalURL: canonical})
		require.NoError(t, err)

		assert.Equal(t, "Doge", record.Name)
		assert.Contains(t, record.Summary, "Shiba Inu")
		assert.Nil(t, record.Origin)
		assert.Nil(t, record.Usage)
	})

	t.Run("heading without paragraphs is absent", func(t *testing.T) {
		markup := `<html><body><h1>Doge</h1><h2 id="origin">Origin</h2><h2>About</h2><p>Doge.</p></body></html>`
		record, err := Curate(&meme.RawContent{Markup: markup, CanonicalURL: canonical})
		require.NoError(t, err)
		assert.False(t, record.HasOrigin())
	})

	t.Run("summary falls back to meta description", func(t *testing.T) {
		markup := `<html><head><meta name="description" content="A dog."></head><body><h1>Doge</h1></body></html>`
		record, err := Curate(&meme.RawContent{Markup: markup, CanonicalURL: canonical})
		require.NoError(t, err)
		assert.Equal(t, "A dog.", record.Summary)
	})

	t.Run("name falls back to og:title then title", func(t *testing.T) {
		markup := `<html><head><meta property="og:title" content="Doge"></head><body></body></html>`
		record, err := Curate(&meme.RawContent{Markup: markup, CanonicalURL: canonical})
		require.NoError(t, err)
		assert.Equal(t, "Doge", record.Name)

		markup = `<html><head><title>Doge | Know Your Meme</title></head><body></body></html>`
		record, err = Curate(&meme.RawContent{Markup: markup, CanonicalURL: canonical})
		require.NoError(t, err)
		assert.Equal(t, "Doge", record.Name)
	})

	t.Run("sections are capped", func(t *testing.T) {
		long := strings.Repeat("word ", 400)
		markup := `<html><body><h1>Long</h1><h2>About</h2><p>` + long + `</p></body></html>`
		record, err := Curate(&meme.RawContent{Markup: markup, CanonicalURL: canonical})
		require.NoError(t, err)
		assert.LessOrEqual(t, len([]rune(record.Summary)), MaxSectionLength)
		assert.NotEmpty(t, record.Summary)
	})

	t.Run("no title is malformed", func(t *testing.T) {
		markup := `<html><body><p>just text</p></body></html>`
		_, err := Curate(&meme.RawContent{Markup: markup, CanonicalURL: canonical})
		assert.ErrorIs(t, err, meme.ErrMalformedContent)
	})

	t.Run("empty markup is malformed", func(t *testing.T) {
		_, err := Curate(&meme.RawContent{Markup: " ", CanonicalURL: canonical})
		assert.ErrorIs(t, err, meme.ErrMalformedContent)

		_, err = Curate(nil)
		assert.ErrorIs(t, err, meme.ErrMalformedContent)
	})
}

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) Scrape(ctx context.Context, topic string) (*meme.RawContent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &meme.RawContent{Topic: topic, Markup: "<h1>x</h1>", CanonicalURL: "https://example.com/" + topic}, nil
}

func TestCachedScraper(t *testing.T) {
	ctx := context.Background()

	t.Run("caches successes by normalized topic", func(t *testing.T) {
		f := &countingFetcher{}
		c := NewCachedScraper(f, 8, time.Minute)

		_, err := c.Scrape(ctx, "Stonks")
		require.NoError(t, err)
		raw, err := c.Scrape(ctx, " stonks ")
		require.NoError(t, err)

		assert.Equal(t, 1, f.calls)
		assert.Equal(t, "https://example.com/Stonks", raw.CanonicalURL)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("does not cache failures", func(t *testing.T) {
		f := &countingFetcher{err: fmt.Errorf("%w: boom", meme.ErrTransientFetch)}
		c := NewCachedScraper(f, 8, time.Minute)

		_, err := c.Scrape(ctx, "stonks")
		assert.True(t, errors.Is(err, meme.ErrTransientFetch))
		_, err = c.Scrape(ctx, "stonks")
		assert.Error(t, err)

		assert.Equal(t, 2, f.calls)
		assert.Equal(t, 0, c.Len())
	})
}
