package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchtower-backend/application/ports"
	"watchtower-backend/domain/events"
	"watchtower-backend/infrastructure/persistence/memory"
)

// recordingSender captures frames and can simulate gone connections.
type recordingSender struct {
	mu    sync.Mutex
	sent  map[string][][]byte
	gone  map[string]bool
	fails map[string]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		sent:  make(map[string][][]byte),
		gone:  make(map[string]bool),
		fails: make(map[string]bool),
	}
}

func (s *recordingSender) Send(ctx context.Context, target ports.ConnectionTarget, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gone[target.ConnectionID] {
		return fmt.Errorf("%w: %s", ports.ErrConnectionGone, target.ConnectionID)
	}
	if s.fails[target.ConnectionID] {
		return errors.New("throttled")
	}
	s.sent[target.ConnectionID] = append(s.sent[target.ConnectionID], data)
	return nil
}

func (s *recordingSender) deliveries(connectionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent[connectionID])
}

func rowNotification(url string) events.Notification {
	return events.RowUpserted{Row: events.EntryRow{URL: url, Status: "ok"}}
}

func TestBroadcastDeliversToAllConnections(t *testing.T) {
	conns := memory.NewConnectionRepository()
	sender := newRecordingSender()
	notifier := NewNotifier(conns, sender, time.Second, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, notifier.Register(ctx, "conn-1", "anon", "https://ws.example.com/prod"))
	require.NoError(t, notifier.Register(ctx, "conn-2", "anon", "https://ws.example.com/prod"))

	delivered, err := notifier.Broadcast(ctx, rowNotification("https://example.com/p/1"))
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, sender.deliveries("conn-1"))
	assert.Equal(t, 1, sender.deliveries("conn-2"))
}

func TestBroadcastUnregistersGoneConnections(t *testing.T) {
	conns := memory.NewConnectionRepository()
	sender := newRecordingSender()
	notifier := NewNotifier(conns, sender, time.Second, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, notifier.Register(ctx, "gone", "anon", "https://ws.example.com/prod"))
	require.NoError(t, notifier.Register(ctx, "alive", "anon", "https://ws.example.com/prod"))
	sender.gone["gone"] = true

	delivered, err := notifier.Broadcast(ctx, rowNotification("https://example.com/p/1"))
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	remaining, err := conns.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "alive", remaining[0].ConnectionID())
}

func TestBroadcastKeepsConnectionOnTransientFailure(t *testing.T) {
	conns := memory.NewConnectionRepository()
	sender := newRecordingSender()
	notifier := NewNotifier(conns, sender, time.Second, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, notifier.Register(ctx, "flaky", "anon", "https://ws.example.com/prod"))
	sender.fails["flaky"] = true

	delivered, err := notifier.Broadcast(ctx, rowNotification("https://example.com/p/1"))
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)

	remaining, err := conns.List(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestPruneDropsIdleConnections(t *testing.T) {
	conns := memory.NewConnectionRepository()
	sender := newRecordingSender()
	notifier := NewNotifier(conns, sender, time.Second, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, notifier.Register(ctx, "stale", "anon", "https://ws.example.com/prod"))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, notifier.Register(ctx, "fresh", "anon", "https://ws.example.com/prod"))

	dropped, err := notifier.Prune(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale"}, dropped)

	remaining, err := conns.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh", remaining[0].ConnectionID())
}

func TestTouchKeepsConnectionAlive(t *testing.T) {
	conns := memory.NewConnectionRepository()
	notifier := NewNotifier(conns, newRecordingSender(), time.Second, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, notifier.Register(ctx, "pinger", "anon", "https://ws.example.com/prod"))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, notifier.Touch(ctx, "pinger"))

	dropped, err := notifier.Prune(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, dropped)
}
