package ports

import (
	"context"
	"errors"

	"watchtower-backend/domain/core/valueobjects"
)

// FetchResult carries the parsed outcome of one page fetch.
type FetchResult struct {
	Snapshot valueobjects.Snapshot
}

// PermanentError marks a fetch failure that retrying cannot fix, such as a
// page that no longer exists or markup the parser cannot recognize.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return e.Reason
}

// NewPermanentError builds a PermanentError with the given reason.
func NewPermanentError(reason string) *PermanentError {
	return &PermanentError{Reason: reason}
}

// IsPermanent reports whether err is a permanent fetch failure. Anything
// else is treated as transient and retried.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Fetcher retrieves and parses a product page. Implementations own their
// own timeout discipline; the worker supplies a deadline via ctx.
type Fetcher interface {
	// Fetch downloads the page at url and extracts a snapshot.
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}
