package extractor

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/microcosm-cc/bluemonday"
)

// MaxSectionLength caps each curated section, in characters.
const MaxSectionLength = 800

const titleSuffix = " | Know Your Meme"

type section int

const (
	sectionNone section = iota
	sectionAbout
	sectionOrigin
	sectionUsage
)

// Curator turns scraped markup into a FactRecord.
type Curator struct {
	policy      *bluemonday.Policy
	mdConverter *converter.Converter
}

// NewCurator creates a Curator.
func NewCurator() *Curator {
	return &Curator{
		policy: bluemonday.UGCPolicy(),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

var defaultCurator = NewCurator()

// Curate parses raw with the default Curator.
func Curate(raw *meme.RawContent) (*meme.FactRecord, error) {
	return defaultCurator.Curate(raw)
}

// Curate scans headings and the paragraphs that follow them for the about,
// origin and usage sections. Missing sections stay nil. It fails with
// meme.ErrMalformedContent only when no name can be found.
func (c *Curator) Curate(raw *meme.RawContent) (*meme.FactRecord, error) {
	if raw == nil || strings.TrimSpace(raw.Markup) == "" {
		return nil, fmt.Errorf("%w: empty markup", meme.ErrMalformedContent)
	}
	if strings.TrimSpace(raw.CanonicalURL) == "" {
		return nil, fmt.Errorf("%w: missing canonical url", meme.ErrMalformedContent)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.Markup))
	if err != nil {
		return nil, fmt.Errorf("%w: parse markup: %w", meme.ErrMalformedContent, err)
	}

	name := extractName(doc)
	if name == "" {
		return nil, fmt.Errorf("%w: no title found for %q", meme.ErrMalformedContent, raw.Topic)
	}

	sections := make(map[section]string)
	doc.Find("h2, h3").Each(func(i int, h *goquery.Selection) {
		kind := classifyHeading(h)
		if kind == sectionNone {
			return
		}
		if _, ok := sections[kind]; ok {
			return
		}
		if text := c.sectionText(h, raw.CanonicalURL); text != "" {
			sections[kind] = text
		}
	})

	summary := sections[sectionAbout]
	if summary == "" {
		summary = truncate(metaContent(doc, `meta[name="description"]`), MaxSectionLength)
	}

	var origin, usage *string
	if text, ok := sections[sectionOrigin]; ok {
		origin = &text
	}
	if text, ok := sections[sectionUsage]; ok {
		usage = &text
	}

	record := meme.NewFactRecord(name, summary, origin, usage, raw.CanonicalURL)

	slog.Debug("curated fact record",
		"name", record.Name,
		"has_summary", record.Summary != "",
		"has_origin", record.HasOrigin(),
		"has_usage", record.HasUsage(),
	)

	return record, nil
}

// extractName prefers the page heading, then og:title, then <title>.
func extractName(doc *goquery.Document) string {
	if name := cleanText(doc.Find("h1").First().Text()); name != "" {
		return name
	}
	if name := metaContent(doc, `meta[property="og:title"]`); name != "" {
		return strings.TrimSuffix(name, titleSuffix)
	}
	title := cleanText(doc.Find("title").First().Text())
	return strings.TrimSpace(strings.TrimSuffix(title, titleSuffix))
}

func classifyHeading(h *goquery.Selection) section {
	labels := []string{strings.ToLower(strings.TrimSpace(h.AttrOr("id", "")))}
	labels = append(labels, strings.ToLower(cleanText(h.Text())))

	for _, label := range labels {
		switch label {
		case "about":
			return sectionAbout
		case "origin":
			return sectionOrigin
		case "usage", "spread":
			return sectionUsage
		}
	}
	return sectionNone
}

// sectionText collects the paragraphs between h and the next heading.
func (c *Curator) sectionText(h *goquery.Selection, sourceURL string) string {
	var htmlParts, textParts []string

	collect := func(p *goquery.Selection) {
		html, err := goquery.OuterHtml(p)
		if err != nil {
			return
		}
		htmlParts = append(htmlParts, html)
		if text := cleanText(p.Text()); text != "" {
			textParts = append(textParts, text)
		}
	}

	h.NextUntil("h1, h2, h3").Each(func(i int, s *goquery.Selection) {
		if goquery.NodeName(s) == "p" {
			collect(s)
			return
		}
		s.Find("p").Each(func(i int, p *goquery.Selection) {
			collect(p)
		})
	})

	if len(textParts) == 0 {
		return ""
	}

	fallback := strings.Join(textParts, "\n\n")
	return truncate(c.htmlToMarkdown(strings.Join(htmlParts, "\n"), sourceURL, fallback), MaxSectionLength)
}

// htmlToMarkdown sanitizes html and converts it to markdown. If conversion
// fails or produces empty output, it returns the fallback plain text.
func (c *Curator) htmlToMarkdown(html, sourceURL, fallback string) string {
	clean := c.policy.Sanitize(html)
	if strings.TrimSpace(clean) == "" {
		return fallback
	}
	result, err := c.mdConverter.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(result) == "" {
		return fallback
	}
	return strings.TrimSpace(result)
}

func metaContent(doc *goquery.Document, selector string) string {
	return cleanText(doc.Find(selector).First().AttrOr("content", ""))
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
