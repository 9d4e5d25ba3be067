// Package generator writes sociolect-styled explanations from fact records.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/abdulachik/memexplain/internal/llm"
	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/abdulachik/memexplain/internal/vectorstore"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultPatternCount = 5
	defaultTimeout      = 60 * time.Second
)

// PatternQuerier is the part of the pattern store used for grounding.
type PatternQuerier interface {
	Query(ctx context.Context, sociolect meme.Sociolect, text string, k int) ([]meme.LanguagePattern, error)
}

// Config holds configuration for the Generator.
type Config struct {
	// PatternCount is how many patterns ground each prompt. Negative disables grounding.
	PatternCount int
	// Timeout bounds one model call.
	Timeout time.Duration
	// Degraded counts explanations generated without grounding. Optional.
	Degraded prometheus.Counter
}

// Generator renders the prompt for a record and calls the language model.
type Generator struct {
	client       llm.Client
	store        PatternQuerier
	patternCount int
	timeout      time.Duration
	degraded     prometheus.Counter
}

// New creates a Generator. store may be nil, in which case prompts are never
// grounded.
func New(client llm.Client, store PatternQuerier, cfg Config) *Generator {
	count := cfg.PatternCount
	if count == 0 {
		count = defaultPatternCount
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Generator{
		client:       client,
		store:        store,
		patternCount: count,
		timeout:      timeout,
		degraded:     cfg.Degraded,
	}
}

// Explain writes an explanation of rec for sociolect.
//
// An unknown sociolect fails with meme.ErrInvalidInput before anything else
// runs. A failing pattern store only degrades the prompt. Model failures
// wrap meme.ErrGeneration.
func (g *Generator) Explain(ctx context.Context, rec *meme.FactRecord, sociolect meme.Sociolect) (string, error) {
	template, ok := Template(sociolect)
	if !ok {
		return "", fmt.Errorf("%w: unknown sociolect %q", meme.ErrInvalidInput, sociolect)
	}
	if rec == nil || rec.Name == "" {
		return "", fmt.Errorf("%w: fact record has no name", meme.ErrInvalidInput)
	}

	patterns := g.grounding(ctx, rec, sociolect)
	system, user := BuildPrompt(template, sociolect, rec, patterns)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.client.Complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", meme.ErrGeneration, g.client.Name(), err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s returned an empty explanation", meme.ErrGeneration, g.client.Name())
	}

	slog.Debug("generated explanation",
		"meme", rec.Name,
		"sociolect", sociolect,
		"model", g.client.Name(),
		"patterns", len(patterns),
		"duration", time.Since(start),
	)

	return ensureSources(text, rec.SourceURLs), nil
}

// grounding fetches patterns for the prompt. Failures are logged and
// swallowed.
func (g *Generator) grounding(ctx context.Context, rec *meme.FactRecord, sociolect meme.Sociolect) []meme.LanguagePattern {
	if g.store == nil || g.patternCount < 0 {
		return nil
	}

	patterns, err := g.store.Query(ctx, sociolect, rec.Name, g.patternCount)
	if err != nil {
		slog.Warn("pattern store unavailable, generating without grounding",
			"sociolect", sociolect,
			"meme", rec.Name,
			"error", err,
		)
		if g.degraded != nil {
			g.degraded.Inc()
		}
		return nil
	}
	return patterns
}

// BuildPrompt renders the system and user prompts. It is deterministic.
func BuildPrompt(template string, sociolect meme.Sociolect, rec *meme.FactRecord, patterns []meme.LanguagePattern) (system, user string) {
	var sb strings.Builder
	sb.WriteString(template)
	sb.WriteString("\n\nIMPORTANT - Language Style Context:\n")
	sb.WriteString(vectorstore.FormatContext(sociolect, patterns))
	sb.WriteString(`

Let the language patterns above shape your wording. Work in their keywords, phrases and tone where they fit naturally, and match the grammar and sentence rhythm of this generation.

Using the meme facts provided:
1. Briefly introduce the meme and where it came from.
2. Explain what it means and how people use it.
3. Note why people find it funny or relatable.

End with a "Sources" section in markdown listing the URLs used.`)

	var ub strings.Builder
	fmt.Fprintf(&ub, "Meme: %s\n\n", rec.Name)
	fmt.Fprintf(&ub, "About: %s\n\n", orNA(rec.Summary))
	fmt.Fprintf(&ub, "Origin: %s\n\n", orNA(deref(rec.Origin)))
	fmt.Fprintf(&ub, "Usage: %s\n\n", orNA(deref(rec.Usage)))
	fmt.Fprintf(&ub, "Sources: %s\n", strings.Join(rec.SourceURLs, ", "))

	return sb.String(), ub.String()
}

var sourcesHeading = regexp.MustCompile(`(?im)^(#+\s*)?\**sources:?\**:?\s*$`)

// ensureSources lists every url the model left out, under a Sources heading
// when the text has none.
func ensureSources(text string, urls []string) string {
	var missing []string
	for _, u := range urls {
		if !strings.Contains(text, u) {
			missing = append(missing, u)
		}
	}
	if len(missing) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(text, "\n"))
	if sourcesHeading.MatchString(text) {
		b.WriteString("\n")
	} else {
		b.WriteString("\n\n## Sources\n")
	}
	for _, u := range missing {
		fmt.Fprintf(&b, "- %s\n", u)
	}
	return strings.TrimRight(b.String(), "\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
