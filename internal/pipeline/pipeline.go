// Package pipeline runs the scrape, curate and explain stages for one topic.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abdulachik/memexplain/internal/meme"
)

// Scraper fetches the page for a topic.
type Scraper interface {
	Scrape(ctx context.Context, topic string) (*meme.RawContent, error)
}

// Curator structures a scraped page.
type Curator interface {
	Curate(raw *meme.RawContent) (*meme.FactRecord, error)
}

// Explainer writes the explanation for a record.
type Explainer interface {
	Explain(ctx context.Context, rec *meme.FactRecord, sociolect meme.Sociolect) (string, error)
}

// RetryPolicy bounds retries of one stage. Backoff doubles after each
// failed attempt.
type RetryPolicy struct {
	Retries int
	Backoff time.Duration
}

// Config holds configuration for the Pipeline.
type Config struct {
	Scrape  RetryPolicy
	Explain RetryPolicy
	// ScrapeTimeout bounds each scrape attempt.
	ScrapeTimeout time.Duration
	Metrics       *Metrics
}

// DefaultConfig returns two scrape retries and one explain retry.
func DefaultConfig() Config {
	return Config{
		Scrape:        RetryPolicy{Retries: 2, Backoff: 500 * time.Millisecond},
		Explain:       RetryPolicy{Retries: 1, Backoff: time.Second},
		ScrapeTimeout: 10 * time.Second,
	}
}

// Pipeline sequences the three stages. It holds no per-run state and is
// safe for concurrent use when its collaborators are.
type Pipeline struct {
	scraper   Scraper
	curator   Curator
	explainer Explainer
	cfg       Config
}

// New creates a Pipeline.
func New(scraper Scraper, curator Curator, explainer Explainer, cfg Config) *Pipeline {
	return &Pipeline{
		scraper:   scraper,
		curator:   curator,
		explainer: explainer,
		cfg:       cfg,
	}
}

// StageError is a terminal failure tagged with the stage that produced it.
type StageError struct {
	Stage    Stage
	Kind     meme.Kind
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s failed (%s) after %d attempts: %v", e.Stage, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Run executes one explain request. The returned State always reflects how
// far the run got. On failure the error is a *StageError and the State keeps
// whatever earlier stages wrote.
func (p *Pipeline) Run(ctx context.Context, topic, sociolect string) (*State, error) {
	topic = strings.TrimSpace(topic)
	sl, slErr := meme.ParseSociolect(sociolect)
	state := newState(topic, sl)

	logger := slog.With("run_id", state.RunID, "topic", topic, "sociolect", sociolect)

	if topic == "" {
		return p.failRun(ctx, logger, state, StageInput, 0, fmt.Errorf("%w: topic is empty", meme.ErrInvalidInput))
	}
	if slErr != nil {
		return p.failRun(ctx, logger, state, StageInput, 0, slErr)
	}

	logger.Info("pipeline started")

	// Scrape
	start := time.Now()
	var raw *meme.RawContent
	attempts, err := p.retry(ctx, logger, StageScrape, p.cfg.Scrape, meme.ErrTransientFetch, func(ctx context.Context) error {
		if p.cfg.ScrapeTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.ScrapeTimeout)
			defer cancel()
		}
		r, err := p.scraper.Scrape(ctx, topic)
		if err != nil {
			return err
		}
		if r == nil || strings.TrimSpace(r.Markup) == "" {
			return fmt.Errorf("%w: empty page for %q", meme.ErrTransientFetch, topic)
		}
		raw = r
		return nil
	})
	p.cfg.Metrics.observeStage(StageScrape, start)
	if err != nil {
		return p.failRun(ctx, logger, state, StageScrape, attempts, err)
	}
	if err := state.setRaw(raw); err != nil {
		return p.failRun(ctx, logger, state, StageScrape, attempts, err)
	}

	// Curate
	start = time.Now()
	rec, err := p.curator.Curate(raw)
	p.cfg.Metrics.observeStage(StageCurate, start)
	if err == nil && (rec == nil || rec.Name == "") {
		err = fmt.Errorf("%w: no name in curated record", meme.ErrMalformedContent)
	}
	if err != nil {
		return p.failRun(ctx, logger, state, StageCurate, 1, err)
	}
	if err := state.setFactRecord(rec); err != nil {
		return p.failRun(ctx, logger, state, StageCurate, 1, err)
	}

	// Explain
	start = time.Now()
	var text string
	attempts, err = p.retry(ctx, logger, StageExplain, p.cfg.Explain, meme.ErrGeneration, func(ctx context.Context) error {
		t, err := p.explainer.Explain(ctx, rec, sl)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	p.cfg.Metrics.observeStage(StageExplain, start)
	if err != nil {
		return p.failRun(ctx, logger, state, StageExplain, attempts, err)
	}
	if err := state.setExplanation(text); err != nil {
		return p.failRun(ctx, logger, state, StageExplain, attempts, err)
	}

	p.cfg.Metrics.finished(StatusExplained)
	logger.Info("pipeline finished", "meme", rec.Name, "sources", len(state.sources))

	return state, nil
}

func (p *Pipeline) failRun(ctx context.Context, logger *slog.Logger, state *State, stage Stage, attempts int, err error) (*State, error) {
	kind := meme.KindOf(err)
	if ctx.Err() != nil {
		kind = meme.KindCanceled
	}

	stageErr := &StageError{
		Stage:    stage,
		Kind:     kind,
		Attempts: attempts,
		Err:      err,
	}
	state.fail(stageErr)

	p.cfg.Metrics.failed(stage, kind)
	p.cfg.Metrics.finished(StatusFailed)

	if kind == meme.KindInvalidInput || kind == meme.KindNotFound || kind == meme.KindCanceled {
		logger.Info("pipeline stopped", "stage", stage, "kind", kind, "error", err)
	} else {
		logger.Error("pipeline failed", "stage", stage, "kind", kind, "attempts", attempts, "error", err)
	}

	return state, stageErr
}

// retry runs fn until it succeeds, fails with an error that does not wrap
// retryable, exhausts the policy, or ctx ends. It returns the number of
// attempts made.
func (p *Pipeline) retry(ctx context.Context, logger *slog.Logger, stage Stage, policy RetryPolicy, retryable error, fn func(context.Context) error) (int, error) {
	maxAttempts := policy.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := policy.Backoff

	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}
		last = err

		if !errors.Is(err, retryable) || attempt == maxAttempts {
			return attempt, err
		}
		// Stop immediately if the caller went away.
		if ctx.Err() != nil {
			return attempt, err
		}

		logger.Warn("stage attempt failed, retrying",
			"stage", stage,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff", delay,
			"error", err,
		)
		p.cfg.Metrics.retried(stage)

		if err := sleep(ctx, delay); err != nil {
			return attempt, last
		}
		delay *= 2
	}
	return maxAttempts, last
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
