package ports

import (
	"context"
	"time"
)

// Job is one unit of fetch work: a single URL to observe.
type Job struct {
	// URL is the raw URL as submitted; canonicalization happens again in the
	// worker so redelivered jobs from older producers stay processable.
	URL string `json:"url"`

	// Attempt counts deliveries of this job, starting at 1.
	Attempt int `json:"attempt"`

	// EnqueuedAt is a unix timestamp in seconds, informational only.
	EnqueuedAt int64 `json:"enqueuedAt"`
}

// Queue decouples job producers from the worker pool. The SQS implementation
// backs production; the memory implementation backs tests and local runs.
type Queue interface {
	// Enqueue submits jobs for processing. Partial failure returns an error
	// naming how many jobs were accepted.
	Enqueue(ctx context.Context, jobs ...Job) error

	// EnqueueAfter submits one job that becomes visible to Dequeue only
	// once the delay has elapsed. The job must be durably accepted before
	// the call returns; delivery may not depend on the caller's context or
	// process staying alive.
	EnqueueAfter(ctx context.Context, job Job, delay time.Duration) error

	// Dequeue blocks until at least one job is available or the context is
	// done. It returns up to max jobs.
	Dequeue(ctx context.Context, max int) ([]Job, error)
}

// DeadLetterSink receives jobs that exhausted their retries. The production
// sink is a second SQS queue; tests use an in-memory collector.
type DeadLetterSink interface {
	// Drop hands a failed job over together with its final error.
	Drop(ctx context.Context, job Job, reason string) error
}
