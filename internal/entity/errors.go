package entity

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyResult is returned when a listing page parses to zero listings.
	ErrEmptyResult = errors.New("no listings found on source page")
	// ErrNotFound is returned by store lookups for an unknown source.
	ErrNotFound = errors.New("source record not found")
)

// FetchError is a transport or HTTP failure while fetching a source page.
// Status is 0 when no response was received.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransientError is a failed request to the secondary marketplace. It is never
// a correlation outcome: the listing is skipped but the failure is counted apart.
type TransientError struct {
	Query  string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("marketplace search %q: HTTP %d", e.Query, e.Status)
	}
	return fmt.Sprintf("marketplace search %q: %v", e.Query, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// StoreUnavailableError means the primary store could not answer. Callers
// must fail closed for the affected source.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// IsStoreUnavailable reports whether err carries a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var su *StoreUnavailableError
	return errors.As(err, &su)
}

// FailureKind classifies a per-source failure for accounting.
func FailureKind(err error) string {
	var fe *FetchError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fe):
		return "fetch"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case IsStoreUnavailable(err):
		return "store_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
