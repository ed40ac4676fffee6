package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"watchtower-backend/application/notify"
	"watchtower-backend/application/ports"
)

// Scheduler periodically re-enqueues every live entry for a fresh
// observation and prunes idle delivery connections. In the Lambda
// deployment a scheduled event triggers Tick; long-running deployments
// drive it with Run.
type Scheduler struct {
	entries  ports.EntryRepository
	queue    ports.Queue
	notifier *notify.Notifier
	maxIdle  time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a scheduler. maxIdle bounds how long a silent
// connection stays registered.
func NewScheduler(
	entries ports.EntryRepository,
	queue ports.Queue,
	notifier *notify.Notifier,
	maxIdle time.Duration,
	logger *zap.Logger,
) *Scheduler {
	if maxIdle <= 0 {
		maxIdle = time.Minute
	}
	return &Scheduler{
		entries:  entries,
		queue:    queue,
		notifier: notifier,
		maxIdle:  maxIdle,
		logger:   logger,
	}
}

// Tick runs one scheduling pass: every live key gets exactly one fresh job,
// then idle connections are dropped. Duplicate suppression comes from the
// key set itself; a key appears once no matter how it was spelled at
// submission.
func (s *Scheduler) Tick(ctx context.Context) error {
	keys, err := s.entries.ListLiveKeys(ctx)
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		now := time.Now().Unix()
		jobs := make([]ports.Job, 0, len(keys))
		for _, key := range keys {
			jobs = append(jobs, ports.Job{
				URL:        key.String(),
				Attempt:    1,
				EnqueuedAt: now,
			})
		}
		if err := s.queue.Enqueue(ctx, jobs...); err != nil {
			return err
		}
		s.logger.Info("re-enqueued live entries", zap.Int("count", len(jobs)))
	}

	pruned, err := s.notifier.Prune(ctx, s.maxIdle)
	if err != nil {
		s.logger.Warn("connection prune failed", zap.Error(err))
	} else if len(pruned) > 0 {
		s.logger.Info("pruned idle connections", zap.Int("count", len(pruned)))
	}

	return nil
}

// Run drives Tick on a fixed interval until the context is canceled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduling pass failed", zap.Error(err))
			}
		}
	}
}
