package pipeline

import (
	"errors"
	"slices"

	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/google/uuid"
)

// Stage names the step that produced a result or an error.
type Stage string

const (
	StageInput   Stage = "input"
	StageScrape  Stage = "scrape"
	StageCurate  Stage = "curate"
	StageExplain Stage = "explain"
)

// Status is the position of a run in the state machine. Runs only move
// forward: created, scraped, curated, explained, or failed from any of them.
type Status string

const (
	StatusCreated   Status = "created"
	StatusScraped   Status = "scraped"
	StatusCurated   Status = "curated"
	StatusExplained Status = "explained"
	StatusFailed    Status = "failed"
)

var errAlreadyWritten = errors.New("state field already written")

// State is the per-run record. It belongs to one Run call and is never
// shared. Raw, fact record and explanation are each written once.
type State struct {
	RunID     string
	Topic     string
	Sociolect meme.Sociolect

	status      Status
	raw         *meme.RawContent
	fact        *meme.FactRecord
	explanation *string
	sources     []string
	failure     *StageError
}

func newState(topic string, sociolect meme.Sociolect) *State {
	return &State{
		RunID:     uuid.NewString(),
		Topic:     topic,
		Sociolect: sociolect,
		status:    StatusCreated,
	}
}

// Status returns where the run stopped.
func (s *State) Status() Status { return s.status }

// Raw returns the scraped page, or nil before the scrape succeeded.
func (s *State) Raw() *meme.RawContent { return s.raw }

// FactRecord returns the curated record, or nil before curation succeeded.
// It stays available after a later stage fails.
func (s *State) FactRecord() *meme.FactRecord { return s.fact }

// Explanation returns the generated text and whether it exists.
func (s *State) Explanation() (string, bool) {
	if s.explanation == nil {
		return "", false
	}
	return *s.explanation, true
}

// Sources returns the collected source URLs in the order they were added.
func (s *State) Sources() []string {
	return slices.Clone(s.sources)
}

// Err returns the terminal failure, if any.
func (s *State) Err() *StageError { return s.failure }

func (s *State) setRaw(raw *meme.RawContent) error {
	if s.raw != nil {
		return errAlreadyWritten
	}
	s.raw = raw
	s.status = StatusScraped
	s.addSources(raw.CanonicalURL)
	return nil
}

func (s *State) setFactRecord(rec *meme.FactRecord) error {
	if s.fact != nil {
		return errAlreadyWritten
	}
	s.fact = rec
	s.status = StatusCurated
	s.addSources(rec.SourceURLs...)
	return nil
}

func (s *State) setExplanation(text string) error {
	if s.explanation != nil {
		return errAlreadyWritten
	}
	s.explanation = &text
	s.status = StatusExplained
	return nil
}

func (s *State) fail(err *StageError) {
	s.failure = err
	s.status = StatusFailed
}

// addSources appends URLs not yet present. Sources are never removed.
func (s *State) addSources(urls ...string) {
	for _, u := range urls {
		if u == "" || slices.Contains(s.sources, u) {
			continue
		}
		s.sources = append(s.sources, u)
	}
}

// Result is the public outcome of a successful run.
type Result struct {
	MemeName    string   `json:"meme_name"`
	Explanation string   `json:"explanation"`
	Sources     []string `json:"sources"`
}

// Result returns the outcome of a run that reached the explained state.
// Failed or unfinished runs never produce a result.
func (s *State) Result() (*Result, bool) {
	if s.status != StatusExplained || s.fact == nil || s.explanation == nil {
		return nil, false
	}
	sources := s.Sources()
	if sources == nil {
		sources = []string{}
	}
	return &Result{
		MemeName:    s.fact.Name,
		Explanation: *s.explanation,
		Sources:     sources,
	}, true
}
