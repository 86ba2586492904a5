// Package errs holds the failure taxonomy shared by every extraction step.
// Only transport exhaustion and unresolved challenges are caller-visible
// failures; the other categories degrade to partial results.
package errs

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrTransportExhausted  = errors.New("transport exhausted")
	ErrChallengeUnresolved = errors.New("challenge unresolved")
	ErrExtractionEmpty     = errors.New("extraction empty")
	ErrDecodeFailed        = errors.New("decode failed")
	ErrPaginationCeiling   = errors.New("pagination ceiling reached")
	ErrUnknownSource       = errors.New("unknown source")
	ErrInvalidInput        = errors.New("invalid input")
)

const (
	CategoryTransportExhausted  = "TransportExhausted"
	CategoryChallengeUnresolved = "ChallengeUnresolved"
	CategoryExtractionEmpty     = "ExtractionEmpty"
	CategoryDecodeFailed        = "DecodeFailed"
	CategoryPaginationCeiling   = "PaginationCeilingReached"
	CategoryUnknownSource       = "UnknownSource"
	CategoryInvalidInput        = "InvalidInput"
	CategoryTimeout             = "Timeout"
	CategoryInternal            = "Internal"
)

// Error attaches the source and operation to an underlying failure.
type Error struct {
	Source string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Source != "" && e.Op != "":
		return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
	case e.Source != "":
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func Wrap(source, op string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Source: source, Op: op, Err: err}
}

func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransportExhausted):
		return CategoryTransportExhausted
	case errors.Is(err, ErrChallengeUnresolved):
		return CategoryChallengeUnresolved
	case errors.Is(err, ErrExtractionEmpty):
		return CategoryExtractionEmpty
	case errors.Is(err, ErrDecodeFailed):
		return CategoryDecodeFailed
	case errors.Is(err, ErrPaginationCeiling):
		return CategoryPaginationCeiling
	case errors.Is(err, ErrUnknownSource):
		return CategoryUnknownSource
	case errors.Is(err, ErrInvalidInput):
		return CategoryInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	default:
		return CategoryInternal
	}
}

// Fatal reports whether err must reach the caller instead of degrading
// into a placeholder result.
func Fatal(err error) bool {
	return errors.Is(err, ErrTransportExhausted) || errors.Is(err, ErrChallengeUnresolved)
}
