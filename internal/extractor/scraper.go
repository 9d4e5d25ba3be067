// Package extractor fetches meme pages from Know Your Meme and turns their
// markup into fact records.
package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abdulachik/memexplain/internal/meme"
)

const (
	defaultBaseURL   = "https://knowyourmeme.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	defaultTimeout   = 10 * time.Second
	maxPageBytes     = 5 << 20
)

// Scraper looks up a topic on Know Your Meme and returns the first matching
// meme page.
type Scraper struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// ScraperConfig holds configuration for the Scraper.
type ScraperConfig struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewScraper creates a new Scraper.
func NewScraper(cfg ScraperConfig) *Scraper {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Scraper{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: client,
	}
}

// Scrape searches for topic and fetches the first result.
//
// Errors wrap meme.ErrInvalidInput for a blank topic, meme.ErrNotFound when
// the search has no meme result, and meme.ErrTransientFetch for network
// failures, timeouts and unexpected status codes.
func (s *Scraper) Scrape(ctx context.Context, topic string) (*meme.RawContent, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is empty", meme.ErrInvalidInput)
	}

	searchURL := s.baseURL + "/search?q=" + url.QueryEscape(topic)
	slog.Debug("searching know your meme", "topic", topic, "url", searchURL)

	page, err := s.fetch(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", topic, err)
	}

	// Exact matches can redirect straight to the meme page.
	if isMemePath(page.finalURL.Path) {
		return s.rawContent(topic, page)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse search results: %w", meme.ErrTransientFetch, err)
	}

	href := firstResult(doc)
	if href == "" {
		return nil, fmt.Errorf("%w: no meme page for %q", meme.ErrNotFound, topic)
	}

	memeURL, err := page.finalURL.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w: bad result link %q: %w", meme.ErrNotFound, href, err)
	}

	page, err = s.fetch(ctx, memeURL.String())
	if err != nil {
		return nil, fmt.Errorf("fetch meme page: %w", err)
	}

	return s.rawContent(topic, page)
}

func (s *Scraper) rawContent(topic string, page *fetchedPage) (*meme.RawContent, error) {
	canonical := page.finalURL.String()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.body))
	if err == nil {
		if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			if u, err := page.finalURL.Parse(strings.TrimSpace(href)); err == nil {
				canonical = u.String()
			}
		}
	}

	slog.Debug("scraped meme page", "topic", topic, "url", canonical, "bytes", len(page.body))

	return &meme.RawContent{
		Topic:        topic,
		Markup:       page.body,
		CanonicalURL: canonical,
	}, nil
}

type fetchedPage struct {
	body     string
	finalURL *url.URL
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*fetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", meme.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %w", meme.ErrTransientFetch, pageURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s returned %s", meme.ErrNotFound, pageURL, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s returned %s", meme.ErrTransientFetch, pageURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", meme.ErrTransientFetch, pageURL, err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, fmt.Errorf("%w: %s returned an empty page", meme.ErrTransientFetch, pageURL)
	}

	return &fetchedPage{
		body:     string(body),
		finalURL: resp.Request.URL,
	}, nil
}

// firstResult returns the href of the first meme entry in a search page.
func firstResult(doc *goquery.Document) string {
	var href string
	for _, selector := range []string{`a.item[href*="/memes/"]`, `a[href^="/memes/"]`} {
		doc.Find(selector).EachWithBreak(func(i int, a *goquery.Selection) bool {
			h, ok := a.Attr("href")
			if !ok {
				return true
			}
			u, err := url.Parse(strings.TrimSpace(h))
			if err != nil || !isMemePath(u.Path) {
				return true
			}
			href = strings.TrimSpace(h)
			return false
		})
		if href != "" {
			return href
		}
	}
	return ""
}

// isMemePath matches /memes/<slug> but not listing pages such as
// /memes/popular or /memes/page/2.
func isMemePath(p string) bool {
	rest, ok := strings.CutPrefix(p, "/memes/")
	if !ok {
		return false
	}
	rest = strings.Trim(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return false
	}
	switch rest {
	case "all", "popular", "trending", "search", "submissions", "researching", "confirmed", "deadpool":
		return false
	}
	return true
}
