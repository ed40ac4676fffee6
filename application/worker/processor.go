package worker

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"watchtower-backend/application/notify"
	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
	"watchtower-backend/domain/events"
	domainservices "watchtower-backend/domain/services"
	pkgerrors "watchtower-backend/pkg/errors"
)

// ProcessorConfig tunes the observation pipeline.
type ProcessorConfig struct {
	// MaxRetries is how many times a transiently failed job is redelivered
	// after its first attempt.
	MaxRetries int
	// FetchTimeout bounds one page fetch.
	FetchTimeout time.Duration
	// RetryBaseDelay is the first backoff step; it doubles per attempt.
	RetryBaseDelay time.Duration
}

// DefaultProcessorConfig returns the production defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		MaxRetries:     2,
		FetchTimeout:   30 * time.Second,
		RetryBaseDelay: 2 * time.Second,
	}
}

// Processor runs one observation job end to end: fetch the page, diff the
// snapshot against stored state, persist, then notify. Persistence strictly
// precedes notification so a subscriber can never see an alert that later
// fails to store.
type Processor struct {
	cfg       ProcessorConfig
	entries   ports.EntryRepository
	alerts    ports.AlertRepository
	obsLog    ports.ObservationLog
	fetcher   ports.Fetcher
	queue     ports.Queue
	dlq       ports.DeadLetterSink
	detector  *domainservices.ChangeDetector
	notifier  *notify.Notifier
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewProcessor wires a processor from its ports.
func NewProcessor(
	cfg ProcessorConfig,
	entries ports.EntryRepository,
	alerts ports.AlertRepository,
	obsLog ports.ObservationLog,
	fetcher ports.Fetcher,
	queue ports.Queue,
	dlq ports.DeadLetterSink,
	detector *domainservices.ChangeDetector,
	notifier *notify.Notifier,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *Processor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	return &Processor{
		cfg:       cfg,
		entries:   entries,
		alerts:    alerts,
		obsLog:    obsLog,
		fetcher:   fetcher,
		queue:     queue,
		dlq:       dlq,
		detector:  detector,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
	}
}

// Process handles one job. It never returns an error for job-level failures;
// those end in retry, dead-letter or a dropped observation. Errors are
// reserved for infrastructure faults the caller may want to surface.
func (p *Processor) Process(ctx context.Context, job ports.Job) error {
	key, err := valueobjects.NewCanonicalURL(job.URL)
	if err != nil {
		// A job that cannot be keyed can never succeed.
		return p.deadLetter(ctx, job, "invalid url: "+err.Error())
	}

	entry, err := p.entries.GetByKey(ctx, key)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			p.logger.Debug("dropping job for unknown entry", zap.String("key", key.String()))
			return nil
		}
		return err
	}
	if entry.Status() == entities.StatusRemoved {
		// Untracked while the job was in flight.
		p.logger.Debug("dropping job for removed entry", zap.String("key", key.String()))
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	result, fetchErr := p.fetcher.Fetch(fetchCtx, entry.RawURL())
	cancel()

	observedAt := time.Now()
	if fetchErr != nil {
		return p.handleFailure(ctx, job, key, fetchErr)
	}

	obs := entities.NewObservation(key, result.Snapshot, observedAt)
	return p.apply(ctx, entry, obs)
}

// apply diffs, persists and notifies for a successful observation.
func (p *Processor) apply(ctx context.Context, entry *entities.Entry, obs entities.Observation) error {
	detection, err := p.detector.Detect(entry, obs)
	if err != nil {
		return err
	}

	if err := entry.ApplyObservation(obs.Snapshot, obs.ObservedAt); err != nil {
		if pkgerrors.IsConflict(err) {
			// A newer observation already won; this one is noise.
			p.logger.Debug("dropping stale observation",
				zap.String("key", entry.Key().String()),
				zap.Time("observedAt", obs.ObservedAt),
			)
			return nil
		}
		return err
	}

	if err := p.entries.Save(ctx, entry); err != nil {
		if pkgerrors.IsConflict(err) {
			p.logger.Debug("lost newer-wins race", zap.String("key", entry.Key().String()))
			return nil
		}
		return err
	}

	if obs.Snapshot.HasPrice() {
		if err := p.obsLog.Append(ctx, entry.Key(), *obs.Snapshot.Price, obs.ObservedAt); err != nil {
			p.logger.Warn("failed to append price history",
				zap.String("key", entry.Key().String()),
				zap.Error(err),
			)
		}
	}

	for _, alert := range detection.Alerts {
		if err := p.alerts.Save(ctx, alert); err != nil {
			// Alert delivery without a stored alert would violate ordering,
			// so an unsaved alert is an unsent alert.
			p.logger.Error("failed to persist alert",
				zap.String("key", entry.Key().String()),
				zap.String("kind", string(alert.Kind())),
				zap.Error(err),
			)
			continue
		}
		p.pushAlert(ctx, alert)
	}

	p.pushRow(ctx, entry)
	return nil
}

// handleFailure classifies a fetch error and either redelivers the job or
// marks the entry failed and dead-letters the job.
func (p *Processor) handleFailure(ctx context.Context, job ports.Job, key valueobjects.CanonicalURL, fetchErr error) error {
	permanent := ports.IsPermanent(fetchErr)
	exhausted := job.Attempt > p.cfg.MaxRetries

	if !permanent && !exhausted {
		delay := p.backoff(job.Attempt)
		p.logger.Info("retrying fetch",
			zap.String("key", key.String()),
			zap.Int("attempt", job.Attempt),
			zap.Duration("delay", delay),
			zap.Error(fetchErr),
		)
		return p.requeueLater(ctx, ports.Job{
			URL:        job.URL,
			Attempt:    job.Attempt + 1,
			EnqueuedAt: time.Now().Unix(),
		}, delay)
	}

	entry, err := p.entries.GetByKey(ctx, key)
	if err == nil && entry.Status() != entities.StatusRemoved {
		if markErr := entry.MarkFailed(fetchErr.Error(), time.Now()); markErr == nil {
			if saveErr := p.entries.Save(ctx, entry); saveErr != nil {
				p.logger.Error("failed to persist error state",
					zap.String("key", key.String()),
					zap.Error(saveErr),
				)
			}
		}
	}

	p.pushJobFailed(ctx, job.URL, fetchErr.Error())
	return p.deadLetter(ctx, job, fetchErr.Error())
}

func (p *Processor) deadLetter(ctx context.Context, job ports.Job, reason string) error {
	if p.dlq == nil {
		return nil
	}
	if err := p.dlq.Drop(ctx, job, reason); err != nil {
		p.logger.Error("failed to dead-letter job",
			zap.String("url", job.URL),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// requeueLater hands the job back to the queue with the backoff as a
// delivery delay. The handoff completes before Process returns: the worker
// may be a Lambda invocation that freezes the instant the handler is done,
// so a retry deferred to a local timer would never fire.
func (p *Processor) requeueLater(ctx context.Context, job ports.Job, delay time.Duration) error {
	if err := p.queue.EnqueueAfter(ctx, job, delay); err != nil {
		p.logger.Error("failed to requeue job",
			zap.String("url", job.URL),
			zap.Error(err),
		)
		// Surface the fault so the transport redelivers the original
		// message instead of dropping the retry.
		return err
	}
	return nil
}

// backoff doubles per attempt with up to 50% jitter.
func (p *Processor) backoff(attempt int) time.Duration {
	delay := p.cfg.RetryBaseDelay << uint(attempt-1)
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

func (p *Processor) pushRow(ctx context.Context, entry *entities.Entry) {
	snap := entry.Snapshot()
	row := events.EntryRow{
		URL:         entry.Key().String(),
		Product:     snap.Product,
		Price:       snap.Price,
		StockStatus: string(snap.StockStatus),
		ImageURL:    snap.ImageURL,
		Status:      string(entry.Status()),
		UpdatedAt:   entry.LastUpdatedAt().Unix(),
	}
	if _, err := p.notifier.Broadcast(ctx, events.RowUpserted{Row: row}); err != nil {
		p.logger.Warn("row broadcast failed", zap.String("key", entry.Key().String()), zap.Error(err))
	}
}

func (p *Processor) pushJobFailed(ctx context.Context, url, reason string) {
	if _, err := p.notifier.Broadcast(ctx, events.JobFailed{URL: url, Reason: reason}); err != nil {
		p.logger.Warn("failure broadcast failed", zap.String("url", url), zap.Error(err))
	}
}

func (p *Processor) pushAlert(ctx context.Context, alert *entities.Alert) {
	record := events.AlertRecord{
		ID:        alert.ID(),
		EntryKey:  alert.EntryKey(),
		Kind:      string(alert.Kind()),
		Severity:  string(alert.Severity()),
		Before:    alert.Payload().Before,
		After:     alert.Payload().After,
		CreatedAt: alert.CreatedAt().Unix(),
	}
	if _, err := p.notifier.Broadcast(ctx, events.AlertCreatedPush{Alert: record}); err != nil {
		p.logger.Warn("alert broadcast failed", zap.String("alertId", alert.ID()), zap.Error(err))
	}

	if p.publisher != nil {
		event := events.NewAlertCreated(
			alert.ID(),
			alert.EntryKey(),
			string(alert.Kind()),
			string(alert.Severity()),
			alert.CreatedAt(),
		)
		if err := p.publisher.Publish(ctx, event); err != nil {
			p.logger.Warn("alert event publish failed", zap.String("alertId", alert.ID()), zap.Error(err))
		}
	}
}
