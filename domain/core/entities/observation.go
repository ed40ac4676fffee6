package entities

import (
	"time"

	"watchtower-backend/domain/core/valueobjects"
)

// Observation is one fetch result for a tracked entry. Observations are
// immutable and transient: they flow from the worker pool into the change
// detector and are discarded once the derived entry and alerts are written.
type Observation struct {
	Key         valueobjects.CanonicalURL
	Snapshot    valueobjects.Snapshot
	ObservedAt  time.Time
	Success     bool
	ErrorReason string
	Attempt     int
}

// NewObservation records a successful fetch.
func NewObservation(key valueobjects.CanonicalURL, snapshot valueobjects.Snapshot, observedAt time.Time) Observation {
	return Observation{
		Key:        key,
		Snapshot:   snapshot,
		ObservedAt: observedAt.UTC(),
		Success:    true,
	}
}

// NewFailedObservation records a fetch that gave up, with the terminal reason.
func NewFailedObservation(key valueobjects.CanonicalURL, reason string, observedAt time.Time, attempt int) Observation {
	return Observation{
		Key:         key,
		ObservedAt:  observedAt.UTC(),
		Success:     false,
		ErrorReason: reason,
		Attempt:     attempt,
	}
}
