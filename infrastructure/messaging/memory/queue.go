package memory

import (
	"context"
	"sync"
	"time"

	"watchtower-backend/application/ports"
)

// Queue is a channel-backed job queue for tests and single-process
// deployments.
type Queue struct {
	jobs chan ports.Job

	mu      sync.Mutex
	delayed int
}

// NewQueue creates a queue with the given buffer capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{
		jobs: make(chan ports.Job, capacity),
	}
}

// Enqueue submits jobs. It blocks when the buffer is full so producers
// back-pressure instead of dropping work.
func (q *Queue) Enqueue(ctx context.Context, jobs ...ports.Job) error {
	for _, job := range jobs {
		select {
		case q.jobs <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// EnqueueAfter accepts the job immediately and makes it visible to Dequeue
// once the delay elapses. Acceptance does not depend on the caller's context
// staying alive, matching the durability the port demands.
func (q *Queue) EnqueueAfter(_ context.Context, job ports.Job, delay time.Duration) error {
	q.mu.Lock()
	q.delayed++
	q.mu.Unlock()

	time.AfterFunc(delay, func() {
		q.jobs <- job
		q.mu.Lock()
		q.delayed--
		q.mu.Unlock()
	})
	return nil
}

// Dequeue blocks until at least one job is available, then drains up to max
// without further blocking.
func (q *Queue) Dequeue(ctx context.Context, max int) ([]ports.Job, error) {
	if max <= 0 {
		max = 1
	}

	var out []ports.Job
	select {
	case job := <-q.jobs:
		out = append(out, job)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(out) < max {
		select {
		case job := <-q.jobs:
			out = append(out, job)
		default:
			return out, nil
		}
	}
	return out, nil
}

// Len reports how many jobs are currently buffered or waiting out a delay.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs) + q.delayed
}

// DeadLetter records one dead-lettered job.
type DeadLetter struct {
	Job    ports.Job
	Reason string
}

// DeadLetterSink collects dead-lettered jobs in memory.
type DeadLetterSink struct {
	mu      sync.Mutex
	dropped []DeadLetter
}

// NewDeadLetterSink creates an empty sink.
func NewDeadLetterSink() *DeadLetterSink {
	return &DeadLetterSink{}
}

// Drop records the failed job.
func (s *DeadLetterSink) Drop(_ context.Context, job ports.Job, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropped = append(s.dropped, DeadLetter{Job: job, Reason: reason})
	return nil
}

// Dropped returns a copy of everything dead-lettered so far.
func (s *DeadLetterSink) Dropped() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DeadLetter, len(s.dropped))
	copy(out, s.dropped)
	return out
}
