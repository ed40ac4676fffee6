package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchtower-backend/application/notify"
	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
	"watchtower-backend/domain/events"
	"watchtower-backend/domain/services"
	memorymsg "watchtower-backend/infrastructure/messaging/memory"
	"watchtower-backend/infrastructure/persistence/memory"
)

type stubFetcher struct {
	fn func(ctx context.Context, url string) (*ports.FetchResult, error)
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*ports.FetchResult, error) {
	return f.fn(ctx, url)
}

// frameSender records every broadcast frame by wire type.
type frameSender struct {
	mu     sync.Mutex
	frames []events.Notification
}

func (s *frameSender) Send(ctx context.Context, target ports.ConnectionTarget, data []byte) error {
	n, err := events.DecodeNotification(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = append(s.frames, n)
	s.mu.Unlock()
	return nil
}

func (s *frameSender) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.frames))
	for i, n := range s.frames {
		out[i] = n.NotificationType()
	}
	return out
}

type failingAlertRepo struct {
	ports.AlertRepository
}

func (failingAlertRepo) Save(ctx context.Context, alert *entities.Alert) error {
	return errors.New("table unavailable")
}

type pipeline struct {
	processor *Processor
	entries   *memory.EntryRepository
	alerts    ports.AlertRepository
	obsLog    *memory.ObservationLog
	queue     *memorymsg.Queue
	dlq       *memorymsg.DeadLetterSink
	publisher *memorymsg.Publisher
	sender    *frameSender
}

func newPipeline(t *testing.T, fetch func(ctx context.Context, url string) (*ports.FetchResult, error)) *pipeline {
	t.Helper()
	return newPipelineWithAlerts(t, fetch, memory.NewAlertRepository())
}

func newPipelineWithAlerts(t *testing.T, fetch func(ctx context.Context, url string) (*ports.FetchResult, error), alerts ports.AlertRepository) *pipeline {
	t.Helper()

	logger := zap.NewNop()
	p := &pipeline{
		entries:   memory.NewEntryRepository(),
		alerts:    alerts,
		obsLog:    memory.NewObservationLog(),
		queue:     memorymsg.NewQueue(16),
		dlq:       memorymsg.NewDeadLetterSink(),
		publisher: memorymsg.NewPublisher(logger),
		sender:    &frameSender{},
	}

	conns := memory.NewConnectionRepository()
	notifier := notify.NewNotifier(conns, p.sender, time.Second, logger)
	require.NoError(t, notifier.Register(context.Background(), "conn-1", "anon", "local"))

	p.processor = NewProcessor(
		ProcessorConfig{MaxRetries: 2, FetchTimeout: time.Second, RetryBaseDelay: time.Millisecond},
		p.entries, p.alerts, p.obsLog, &stubFetcher{fn: fetch}, p.queue, p.dlq,
		services.NewChangeDetector(15), notifier, p.publisher, logger,
	)
	return p
}

func trackEntry(t *testing.T, repo *memory.EntryRepository, rawURL string) valueobjects.CanonicalURL {
	t.Helper()
	key, err := valueobjects.NewCanonicalURL(rawURL)
	require.NoError(t, err)
	entry, err := entities.NewEntry(key, rawURL)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), entry))
	return key
}

func snapshotResult(price float64, status valueobjects.StockStatus) *ports.FetchResult {
	return &ports.FetchResult{Snapshot: valueobjects.Snapshot{
		Product:     "Gadget",
		Price:       &price,
		StockStatus: status,
	}}
}

func TestProcessFirstObservationIsBaseline(t *testing.T) {
	p := newPipeline(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		return snapshotResult(100, valueobjects.StockStatusInStock), nil
	})
	key := trackEntry(t, p.entries, "https://example.com/p/1")
	ctx := context.Background()

	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 1}))

	entry, err := p.entries.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusOK, entry.Status())
	assert.Equal(t, 100.0, entry.Snapshot().PriceOrZero())

	// The first snapshot establishes the baseline, so no alerts fire.
	page, err := p.alerts.List(ctx, ports.AlertQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Alerts)

	series, err := p.obsLog.Series(ctx, key, ports.SeriesRangeDay)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 100.0, series[0].Price)

	assert.Equal(t, []string{events.TypeRowUpserted}, p.sender.types())
}

func TestProcessPriceDropCreatesAndPushesAlert(t *testing.T) {
	price := 100.0
	p := newPipeline(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		return snapshotResult(price, valueobjects.StockStatusInStock), nil
	})
	key := trackEntry(t, p.entries, "https://example.com/p/1")
	ctx := context.Background()

	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 1}))
	time.Sleep(2 * time.Millisecond) // next observation needs a later watermark
	price = 80
	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 1}))

	page, err := p.alerts.List(ctx, ports.AlertQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Alerts, 1)
	alert := page.Alerts[0]
	assert.Equal(t, entities.AlertKindPriceJump, alert.Kind())
	assert.Equal(t, key.String(), alert.EntryKey())

	// Alert frame goes out only after the alert is stored, then the row.
	assert.Equal(t, []string{
		events.TypeRowUpserted,
		events.TypeAlertCreated,
		events.TypeRowUpserted,
	}, p.sender.types())

	published := p.publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "alert.created", published[0].GetEventType())
}

func TestProcessUnsavedAlertIsNeverPushed(t *testing.T) {
	price := 100.0
	p := newPipelineWithAlerts(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		return snapshotResult(price, valueobjects.StockStatusInStock), nil
	}, failingAlertRepo{memory.NewAlertRepository()})
	key := trackEntry(t, p.entries, "https://example.com/p/1")
	ctx := context.Background()

	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 1}))
	time.Sleep(2 * time.Millisecond)
	price = 50
	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 1}))

	// Row updates still flow, but no alert frame for an alert that failed
	// to persist.
	assert.Equal(t, []string{events.TypeRowUpserted, events.TypeRowUpserted}, p.sender.types())
	assert.Empty(t, p.publisher.Published())
}

func TestProcessStaleObservationIsDropped(t *testing.T) {
	future := time.Now().Add(time.Hour)
	p := newPipeline(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		return snapshotResult(80, valueobjects.StockStatusInStock), nil
	})
	key := trackEntry(t, p.entries, "https://example.com/p/1")
	ctx := context.Background()

	entry, err := p.entries.GetByKey(ctx, key)
	require.NoError(t, err)
	price := 100.0
	require.NoError(t, entry.ApplyObservation(valueobjects.Snapshot{
		Product: "Gadget", Price: &price, StockStatus: valueobjects.StockStatusInStock,
	}, future))
	require.NoError(t, p.entries.Save(ctx, entry))

	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 1}))

	// The newer stored state wins; nothing changes and nothing is pushed.
	stored, err := p.entries.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.Snapshot().PriceOrZero())
	assert.Empty(t, p.sender.types())
}

func TestProcessTransientFailureRequeuesWithBackoff(t *testing.T) {
	p := newPipeline(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		return nil, errors.New("fetch returned status 503")
	})
	key := trackEntry(t, p.entries, "https://example.com/p/1")
	ctx := context.Background()

	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 1}))

	dequeueCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	jobs, err := p.queue.Dequeue(dequeueCtx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].Attempt)
	assert.Empty(t, p.dlq.Dropped())
}

func TestProcessTransientRetryIsDurableBeforeReturn(t *testing.T) {
	p := newPipeline(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		return nil, errors.New("fetch returned status 503")
	})
	// Pin the backoff high enough that the job is still waiting out its
	// delay when the assertions below run.
	p.processor.cfg.RetryBaseDelay = 200 * time.Millisecond
	key := trackEntry(t, p.entries, "https://example.com/p/1")

	// The caller's context ends the moment Process returns, the way a
	// Lambda invocation freezes once its handler is done. The retry must
	// already be on the queue by then.
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 1}))
	cancel()

	assert.Equal(t, 1, p.queue.Len())
	assert.Empty(t, p.dlq.Dropped())

	dequeueCtx, dequeueCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dequeueCancel()
	jobs, err := p.queue.Dequeue(dequeueCtx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].Attempt)
}

func TestProcessExhaustedRetriesDeadLetters(t *testing.T) {
	p := newPipeline(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		return nil, errors.New("fetch returned status 503")
	})
	key := trackEntry(t, p.entries, "https://example.com/p/1")
	ctx := context.Background()

	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 3}))

	entry, err := p.entries.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusError, entry.Status())
	assert.Contains(t, entry.LastError(), "503")

	dropped := p.dlq.Dropped()
	require.Len(t, dropped, 1)
	assert.Equal(t, key.String(), dropped[0].Job.URL)

	assert.Equal(t, []string{events.TypeJobFailed}, p.sender.types())
	assert.Equal(t, 0, p.queue.Len())
}

func TestProcessPermanentFailureSkipsRetries(t *testing.T) {
	p := newPipeline(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		return nil, ports.NewPermanentError("page returned status 404")
	})
	key := trackEntry(t, p.entries, "https://example.com/p/1")
	ctx := context.Background()

	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 1}))

	entry, err := p.entries.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusError, entry.Status())
	require.Len(t, p.dlq.Dropped(), 1)
	assert.Equal(t, 0, p.queue.Len())
}

func TestProcessUnknownEntryIsDropped(t *testing.T) {
	p := newPipeline(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		t.Fatal("fetch should not run for unknown entries")
		return nil, nil
	})
	ctx := context.Background()

	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: "https://example.com/p/unknown", Attempt: 1}))
	assert.Empty(t, p.dlq.Dropped())
	assert.Empty(t, p.sender.types())
}

func TestProcessRemovedEntryIsDropped(t *testing.T) {
	p := newPipeline(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		t.Fatal("fetch should not run for removed entries")
		return nil, nil
	})
	key := trackEntry(t, p.entries, "https://example.com/p/1")
	ctx := context.Background()

	entry, err := p.entries.GetByKey(ctx, key)
	require.NoError(t, err)
	entry.Remove()
	require.NoError(t, p.entries.Save(ctx, entry))

	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: key.String(), Attempt: 1}))
	assert.Empty(t, p.dlq.Dropped())
}

func TestProcessInvalidURLGoesToDeadLetter(t *testing.T) {
	p := newPipeline(t, func(ctx context.Context, url string) (*ports.FetchResult, error) {
		return nil, nil
	})
	ctx := context.Background()

	require.NoError(t, p.processor.Process(ctx, ports.Job{URL: "not a url", Attempt: 1}))
	require.Len(t, p.dlq.Dropped(), 1)
	assert.Contains(t, p.dlq.Dropped()[0].Reason, "invalid url")
}
