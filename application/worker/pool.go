package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"watchtower-backend/application/ports"
)

// Pool runs a fixed number of workers against the job queue. Each worker
// dequeues a batch, processes it sequentially and goes back for more; the
// pool drains and stops when its context is canceled.
type Pool struct {
	queue     ports.Queue
	processor *Processor
	workers   int
	batchSize int
	logger    *zap.Logger

	wg sync.WaitGroup
}

// NewPool creates a worker pool. workers and batchSize fall back to sane
// minimums when non-positive.
func NewPool(queue ports.Queue, processor *Processor, workers, batchSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Pool{
		queue:     queue,
		processor: processor,
		workers:   workers,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start launches the workers. It returns immediately; use Wait for shutdown.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Run starts the pool and blocks until the context is canceled and all
// workers have drained.
func (p *Pool) Run(ctx context.Context) {
	p.Start(ctx)
	p.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker", id))
	logger.Info("worker started")

	for {
		jobs, err := p.queue.Dequeue(ctx, p.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("worker stopping")
				return
			}
			logger.Error("dequeue failed", zap.Error(err))
			// Brief pause so a broken queue does not spin the worker hot.
			select {
			case <-ctx.Done():
				logger.Info("worker stopping")
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, job := range jobs {
			if err := p.processor.Process(ctx, job); err != nil {
				logger.Error("job processing failed",
					zap.String("url", job.URL),
					zap.Error(err),
				)
			}
		}
	}
}
