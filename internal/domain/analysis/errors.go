package analysis

import (
	"errors"
	"fmt"

	"github.com/bxxst/aixbt-agent/internal/domain/ticker"
)

// Kind classifies an analysis failure.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
	KindUpstream    Kind = "upstream_error"
	KindMalformed   Kind = "malformed_response"
)

var (
	ErrTimeout = errors.New("analysis timed out")
	// ErrRateLimited indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrRateLimited       = errors.New("ai quota exceeded")
	ErrUpstream          = errors.New("ai upstream error")
	ErrMalformedResponse = errors.New("ai returned no content")
)

// Error is a ticker-scoped analysis failure. It never fails a whole batch.
type Error struct {
	Kind      Kind
	Ticker    ticker.Symbol
	Attempts  int
	Transient bool // only meaningful for KindUpstream
	Err       error
}

// NewError wraps err with a classification.
func NewError(kind Kind, transient bool, err error) *Error {
	return &Error{Kind: kind, Transient: transient, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Ticker != "" {
		msg = fmt.Sprintf("%s for %s", msg, e.Ticker)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the kind sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrUpstream:
		return e.Kind == KindUpstream
	case ErrMalformedResponse:
		return e.Kind == KindMalformed
	}
	return false
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || (e.Kind == KindUpstream && e.Transient)
}

// KindOf extracts the classification of err, if any.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}
