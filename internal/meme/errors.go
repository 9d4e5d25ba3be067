package meme

import (
	"context"
	"errors"
)

// Error taxonomy shared by every stage. Wrap these with fmt.Errorf("...: %w")
// and match them with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrTransientFetch   = errors.New("transient fetch failure")
	ErrMalformedContent = errors.New("malformed content")
	ErrStoreUnavailable = errors.New("pattern store unavailable")
	ErrGeneration       = errors.New("generation failed")
)

// Kind names an error class in responses and logs.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindTransientFetch   Kind = "transient_fetch"
	KindMalformedContent Kind = "malformed_content"
	KindStoreUnavailable Kind = "store_unavailable"
	KindGeneration       Kind = "generation"
	KindCanceled         Kind = "canceled"
	KindInternal         Kind = "internal"
)

// KindOf classifies an error chain. Taxonomy errors win over context errors
// so a fetch that timed out still reports as transient_fetch.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransientFetch):
		return KindTransientFetch
	case errors.Is(err, ErrMalformedContent):
		return KindMalformedContent
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrGeneration):
		return KindGeneration
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
