package entities

import (
	"time"

	"watchtower-backend/domain/core/valueobjects"
	pkgerrors "watchtower-backend/pkg/errors"
)

// EntryStatus represents the lifecycle state of a watchlist entry
type EntryStatus string

const (
	StatusPending EntryStatus = "pending"
	StatusOK      EntryStatus = "ok"
	StatusError   EntryStatus = "error"
	StatusRemoved EntryStatus = "removed"
)

// Entry is the aggregate representing one tracked product URL.
// At most one live entry exists per canonical key; the key is its identity.
type Entry struct {
	key           valueobjects.CanonicalURL
	rawURL        string
	snapshot      valueobjects.Snapshot
	status        EntryStatus
	lastError     string
	createdAt     time.Time
	lastUpdatedAt time.Time
	version       int
}

// NewEntry creates a pending entry for a freshly accepted URL.
func NewEntry(key valueobjects.CanonicalURL, rawURL string) (*Entry, error) {
	if key.IsZero() {
		return nil, pkgerrors.NewValidationError("canonical key cannot be empty")
	}
	if rawURL == "" {
		rawURL = key.String()
	}

	now := time.Now().UTC()
	return &Entry{
		key:       key,
		rawURL:    rawURL,
		status:    StatusPending,
		createdAt: now,
		version:   1,
	}, nil
}

// ReconstructEntry rebuilds an entry from persisted state.
func ReconstructEntry(
	key valueobjects.CanonicalURL,
	rawURL string,
	snapshot valueobjects.Snapshot,
	status EntryStatus,
	lastError string,
	createdAt, lastUpdatedAt time.Time,
	version int,
) *Entry {
	return &Entry{
		key:           key,
		rawURL:        rawURL,
		snapshot:      snapshot,
		status:        status,
		lastError:     lastError,
		createdAt:     createdAt,
		lastUpdatedAt: lastUpdatedAt,
		version:       version,
	}
}

// Getters

func (e *Entry) Key() valueobjects.CanonicalURL   { return e.key }
func (e *Entry) RawURL() string                   { return e.rawURL }
func (e *Entry) Snapshot() valueobjects.Snapshot  { return e.snapshot }
func (e *Entry) Status() EntryStatus              { return e.status }
func (e *Entry) LastError() string                { return e.lastError }
func (e *Entry) CreatedAt() time.Time             { return e.createdAt }
func (e *Entry) LastUpdatedAt() time.Time         { return e.lastUpdatedAt }
func (e *Entry) Version() int                     { return e.version }

// IsLive reports whether the entry still participates in dedup and scheduled
// refresh. Errored entries may be re-tracked; removed entries is a tombstone.
func (e *Entry) IsLive() bool {
	return e.status == StatusPending || e.status == StatusOK
}

// ApplyObservation transitions the entry on a successful observation.
// Any fresh snapshot wins regardless of whether an alert rule fired;
// stale observations (at or before the current watermark) are rejected so
// redelivered work cannot roll state backwards.
func (e *Entry) ApplyObservation(snapshot valueobjects.Snapshot, observedAt time.Time) error {
	if e.status == StatusRemoved {
		return pkgerrors.NewConflictError("entry has been removed")
	}
	if !e.lastUpdatedAt.IsZero() && !observedAt.After(e.lastUpdatedAt) {
		return pkgerrors.NewConflictError("observation is older than current state")
	}

	e.snapshot = snapshot
	e.lastUpdatedAt = observedAt.UTC()
	e.lastError = ""
	e.status = StatusOK
	e.version++
	return nil
}

// MarkFailed transitions the entry to error after retries were exhausted or
// a permanent fetch failure occurred. Removed entries are left untouched.
func (e *Entry) MarkFailed(reason string, failedAt time.Time) error {
	if e.status == StatusRemoved {
		return pkgerrors.NewConflictError("entry has been removed")
	}

	e.status = StatusError
	e.lastError = reason
	e.lastUpdatedAt = failedAt.UTC()
	e.version++
	return nil
}

// Remove soft-deletes the entry. Future observations for the key are dropped
// and the key no longer counts against the duplicate guard.
func (e *Entry) Remove() {
	e.status = StatusRemoved
	e.version++
}

// Reset returns an errored or removed entry to pending so it can be tracked
// again. Live entries are rejected; that is the AlreadyTracked case.
func (e *Entry) Reset() error {
	if e.IsLive() {
		return pkgerrors.NewConflictError("entry is already tracked")
	}

	e.status = StatusPending
	e.lastError = ""
	e.version++
	return nil
}
