package extractor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Fetcher is anything that can scrape a topic.
type Fetcher interface {
	Scrape(ctx context.Context, topic string) (*meme.RawContent, error)
}

// CachedScraper remembers successful scrapes for a while. Failures are never
// cached so a retry always reaches the network.
type CachedScraper struct {
	next  Fetcher
	cache *expirable.LRU[string, *meme.RawContent]
}

// NewCachedScraper wraps next with an LRU of the given size and TTL.
func NewCachedScraper(next Fetcher, size int, ttl time.Duration) *CachedScraper {
	if size <= 0 {
		size = 128
	}
	return &CachedScraper{
		next:  next,
		cache: expirable.NewLRU[string, *meme.RawContent](size, nil, ttl),
	}
}

// Scrape returns the cached page for topic or fetches it.
func (c *CachedScraper) Scrape(ctx context.Context, topic string) (*meme.RawContent, error) {
	key := strings.ToLower(strings.TrimSpace(topic))
	if key != "" {
		if raw, ok := c.cache.Get(key); ok {
			slog.Debug("scrape cache hit", "topic", key)
			copied := *raw
			return &copied, nil
		}
	}

	raw, err := c.next.Scrape(ctx, topic)
	if err != nil {
		return nil, err
	}

	copied := *raw
	c.cache.Add(key, &copied)
	return raw, nil
}

// Len returns the number of cached pages.
func (c *CachedScraper) Len() int {
	return c.cache.Len()
}
