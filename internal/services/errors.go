package services

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery    = errors.New("query is empty")
	ErrInvalidLetter = errors.New("letter must be a single character A-Z")
	// ErrNotFound is the one failure the aggregation reports to its caller:
	// generation failed or its output could not be normalized.
	ErrNotFound = errors.New("the archives are silent")
)

// NotFoundError carries the best-effort correction found after a failed
// aggregation. Suggestion is empty when none was found.
type NotFoundError struct {
	Query      string
	Suggestion string
	Err        error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("the archives are silent on %q: %v", e.Query, e.Err)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}
