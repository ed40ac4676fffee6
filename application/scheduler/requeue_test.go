package scheduler

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchtower-backend/application/notify"
	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
	memorymsg "watchtower-backend/infrastructure/messaging/memory"
	"watchtower-backend/infrastructure/persistence/memory"
)

type nopSender struct{}

func (nopSender) Send(ctx context.Context, target ports.ConnectionTarget, data []byte) error {
	return nil
}

func saveEntry(t *testing.T, repo *memory.EntryRepository, rawURL string) *entities.Entry {
	t.Helper()
	key, err := valueobjects.NewCanonicalURL(rawURL)
	require.NoError(t, err)
	entry, err := entities.NewEntry(key, rawURL)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), entry))
	return entry
}

func TestTickEnqueuesOnlyLiveEntries(t *testing.T) {
	entries := memory.NewEntryRepository()
	queue := memorymsg.NewQueue(16)
	conns := memory.NewConnectionRepository()
	notifier := notify.NewNotifier(conns, nopSender{}, time.Second, zap.NewNop())
	sched := NewScheduler(entries, queue, notifier, time.Minute, zap.NewNop())
	ctx := context.Background()

	saveEntry(t, entries, "https://example.com/p/live-1")
	saveEntry(t, entries, "https://example.com/p/live-2")

	removed := saveEntry(t, entries, "https://example.com/p/gone")
	removed.Remove()
	require.NoError(t, entries.Save(ctx, removed))

	failed := saveEntry(t, entries, "https://example.com/p/broken")
	require.NoError(t, failed.MarkFailed("fetch returned status 500", time.Now()))
	require.NoError(t, entries.Save(ctx, failed))

	require.NoError(t, sched.Tick(ctx))

	dequeueCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	jobs, err := queue.Dequeue(dequeueCtx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	urls := []string{jobs[0].URL, jobs[1].URL}
	sort.Strings(urls)
	assert.Equal(t, []string{
		"https://example.com/p/live-1",
		"https://example.com/p/live-2",
	}, urls)
	for _, job := range jobs {
		assert.Equal(t, 1, job.Attempt)
	}
}

func TestTickPrunesIdleConnections(t *testing.T) {
	entries := memory.NewEntryRepository()
	queue := memorymsg.NewQueue(16)
	conns := memory.NewConnectionRepository()
	notifier := notify.NewNotifier(conns, nopSender{}, time.Second, zap.NewNop())
	sched := NewScheduler(entries, queue, notifier, 10*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, notifier.Register(ctx, "idle", "anon", "local"))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, sched.Tick(ctx))

	remaining, err := conns.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestTickWithEmptyWatchlistIsANoOp(t *testing.T) {
	entries := memory.NewEntryRepository()
	queue := memorymsg.NewQueue(16)
	conns := memory.NewConnectionRepository()
	notifier := notify.NewNotifier(conns, nopSender{}, time.Second, zap.NewNop())
	sched := NewScheduler(entries, queue, notifier, time.Minute, zap.NewNop())

	require.NoError(t, sched.Tick(context.Background()))
	assert.Equal(t, 0, queue.Len())
}
