package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies why a run stopped.
type Kind int

const (
	FetchFailed Kind = iota + 1
	NoImagesFound
	AllImagesFailed
	AssemblyFailed
)

func (k Kind) String() string {
	switch k {
	case FetchFailed:
		return "FetchFailed"
	case NoImagesFound:
		return "NoImagesFound"
	case AllImagesFailed:
		return "AllImagesFailed"
	case AssemblyFailed:
		return "AssemblyFailed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by Runner.Run for every run-level failure.
type Error struct {
	Kind Kind
	URL  string
	// Status is the page status for FetchFailed, zero otherwise.
	Status int
	Err    error
}

var (
	ErrFetchFailed     = &Error{Kind: FetchFailed}
	ErrNoImagesFound   = &Error{Kind: NoImagesFound}
	ErrAllImagesFailed = &Error{Kind: AllImagesFailed}
	ErrAssemblyFailed  = &Error{Kind: AssemblyFailed}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrFetchFailed)
// works regardless of URL or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the kind from err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}

	return 0, false
}
