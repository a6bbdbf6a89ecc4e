package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLockHeld     = errors.New("lock already held")
)

// FetchError wraps a failed round-trip to the feed store. It is never fatal:
// the caller keeps its previous state and retries on the next tick.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedRowError marks a single row that cannot be used. Only that row is
// dropped.
type MalformedRowError struct {
	RowID  string
	Field  string
	Reason string
	Err    error
}

func (e *MalformedRowError) Error() string {
	msg := fmt.Sprintf("malformed row %q: %s %s", e.RowID, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRowError) Unwrap() error { return e.Err }

// GroupingError reports an unexpected failure inside the transform pipeline.
// The cycle that produced it publishes nothing.
type GroupingError struct {
	Stage string
	Err   error
}

func (e *GroupingError) Error() string {
	return fmt.Sprintf("grouping %s: %v", e.Stage, e.Err)
}

func (e *GroupingError) Unwrap() error { return e.Err }
