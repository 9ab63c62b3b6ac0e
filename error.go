package framez

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Dispatch errors. Match them with errors.Is.
var (
	// ErrEmptyPipeline is returned by New when no frames are given.
	ErrEmptyPipeline = errors.New("empty frame sequence")
	// ErrInvalidCondition marks a condition that is neither a boolean,
	// a path string, nor a Matcher.
	ErrInvalidCondition = errors.New("invalid matcher, must be a boolean, a path string or a Matcher")
	// ErrUnresolvableUnit marks a frame that does not resolve to a Unit.
	ErrUnresolvableUnit = errors.New("no valid unit provided")
	// ErrInvalidResponse is returned when a function unit produces no response.
	ErrInvalidResponse = errors.New("unit must return a response")
	// ErrExhausted is returned when the sequence runs out with nowhere to fall through.
	ErrExhausted = errors.New("sequence exhausted")
	// ErrPanic wraps a panic recovered by the Recover unit.
	ErrPanic = errors.New("unit panicked")
	// ErrNilRequest is returned when Dispatch or Process is given no request.
	ErrNilRequest = errors.New("nil request")
)

// Error provides context about a failure raised by the dispatcher itself:
// which pipeline and frame were being resolved, the request being
// processed, and when it happened.
//
// Errors returned by units are never wrapped in Error; they propagate to
// the caller of Dispatch unchanged.
type Error struct {
	Timestamp time.Time
	Request   Request
	Err       error
	Path      []Name
	Frame     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("pipeline %q: %v", strings.Join(e.Path, "/"), e.Err)
	}
	return fmt.Sprintf("pipeline %q (frame %d): %v", strings.Join(e.Path, "/"), e.Frame, e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err signals an exhausted sequence.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}
