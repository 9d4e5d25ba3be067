// Package meme holds the domain types shared by the scrape, curate and
// explain stages.
package meme

import "strings"

// RawContent is the unparsed page returned by a scrape.
type RawContent struct {
	Topic        string
	Markup       string
	CanonicalURL string
}

// FactRecord is the structured result of curating one page.
// Origin and Usage are nil when the page has no such section.
type FactRecord struct {
	Name       string
	Summary    string
	Origin     *string
	Usage      *string
	SourceURLs []string
}

// NewFactRecord builds a record with de-duplicated source URLs in first-seen order.
func NewFactRecord(name, summary string, origin, usage *string, sources ...string) *FactRecord {
	return &FactRecord{
		Name:       name,
		Summary:    summary,
		Origin:     origin,
		Usage:      usage,
		SourceURLs: uniqueURLs(sources),
	}
}

// HasOrigin reports whether an origin section was found.
func (r *FactRecord) HasOrigin() bool { return r.Origin != nil }

// HasUsage reports whether a usage section was found.
func (r *FactRecord) HasUsage() bool { return r.Usage != nil }

func uniqueURLs(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Category classifies a language pattern.
type Category string

const (
	CategoryPhrase  Category = "phrase"
	CategoryKeyword Category = "keyword"
	CategoryTone    Category = "tone"
	CategoryGeneral Category = "general"
)

// PatternInput is what callers supply when adding patterns.
// The embedding is always computed by the store.
type PatternInput struct {
	Text     string   `yaml:"text" json:"text"`
	Category Category `yaml:"category" json:"category"`
	Context  string   `yaml:"context" json:"context"`
}

// LanguagePattern is a stored example of how a sociolect talks.
type LanguagePattern struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Category  Category  `json:"category"`
	Context   string    `json:"context"`
	Sociolect Sociolect `json:"sociolect"`
	// Score is the similarity to the query; zero outside query results.
	Score float32 `json:"score,omitempty"`
}

// VideoResult is one short-form video returned by the media lookup.
type VideoResult struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Channel   string `json:"channel"`
	Type      string `json:"type"`
	Platform  string `json:"platform"`
	ID        string `json:"id"`
}
