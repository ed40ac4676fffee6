package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
	memorymsg "watchtower-backend/infrastructure/messaging/memory"
	"watchtower-backend/infrastructure/persistence/memory"
	pkgerrors "watchtower-backend/pkg/errors"
)

func newTrackHandler(t *testing.T) (*TrackHandler, *memory.EntryRepository, *memorymsg.Queue, *memorymsg.Publisher) {
	t.Helper()
	entries := memory.NewEntryRepository()
	queue := memorymsg.NewQueue(200)
	publisher := memorymsg.NewPublisher(zap.NewNop())
	return NewTrackHandler(entries, queue, publisher, zap.NewNop()), entries, queue, publisher
}

func TestTrackAcceptsAndEnqueues(t *testing.T) {
	handler, entries, queue, publisher := newTrackHandler(t)
	ctx := context.Background()

	result, err := handler.Handle(ctx, TrackURLsCommand{URLs: []string{
		"https://example.com/p/1",
		"https://example.com/p/2",
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/p/1", "https://example.com/p/2"}, result.Accepted)
	assert.Empty(t, result.Duplicates)
	assert.Empty(t, result.Rejected)

	assert.Equal(t, 2, queue.Len())
	assert.Len(t, publisher.Published(), 2)

	key, err := valueobjects.NewCanonicalURL("https://example.com/p/1")
	require.NoError(t, err)
	entry, err := entries.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusPending, entry.Status())
}

func TestTrackCollapsesEquivalentSpellings(t *testing.T) {
	handler, _, queue, _ := newTrackHandler(t)

	result, err := handler.Handle(context.Background(), TrackURLsCommand{URLs: []string{
		"https://www.example.com/p/1?utm_source=newsletter",
		"https://example.com/p/1",
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/p/1"}, result.Accepted)
	assert.Equal(t, []string{"https://example.com/p/1"}, result.Duplicates)
	assert.Equal(t, 1, queue.Len())
}

func TestTrackRejectsBadURLsWithoutFailingBatch(t *testing.T) {
	handler, _, _, _ := newTrackHandler(t)

	result, err := handler.Handle(context.Background(), TrackURLsCommand{URLs: []string{
		"ftp://example.com/p/1",
		"https://example.com/p/ok",
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/p/ok"}, result.Accepted)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "ftp://example.com/p/1", result.Rejected[0].URL)
}

func TestTrackAlreadyLiveIsDuplicate(t *testing.T) {
	handler, _, _, _ := newTrackHandler(t)
	ctx := context.Background()

	_, err := handler.Handle(ctx, TrackURLsCommand{URLs: []string{"https://example.com/p/1"}})
	require.NoError(t, err)

	result, err := handler.Handle(ctx, TrackURLsCommand{URLs: []string{"https://example.com/p/1"}})
	require.NoError(t, err)
	assert.Empty(t, result.Accepted)
	assert.Equal(t, []string{"https://example.com/p/1"}, result.Duplicates)
}

func TestTrackResurrectsErroredEntry(t *testing.T) {
	handler, entries, _, _ := newTrackHandler(t)
	ctx := context.Background()

	_, err := handler.Handle(ctx, TrackURLsCommand{URLs: []string{"https://example.com/p/1"}})
	require.NoError(t, err)

	key, err := valueobjects.NewCanonicalURL("https://example.com/p/1")
	require.NoError(t, err)
	entry, err := entries.GetByKey(ctx, key)
	require.NoError(t, err)
	require.NoError(t, entry.MarkFailed("fetch returned status 500", time.Now()))
	require.NoError(t, entries.Save(ctx, entry))

	result, err := handler.Handle(ctx, TrackURLsCommand{URLs: []string{"https://example.com/p/1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/p/1"}, result.Accepted)

	refreshed, err := entries.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusPending, refreshed.Status())
	assert.Empty(t, refreshed.LastError())
}

// staleReadEntryRepo reports every key as unknown while writes still hit
// the underlying store, reproducing a read that predates a concurrent
// create of the same key.
type staleReadEntryRepo struct {
	*memory.EntryRepository
}

func (staleReadEntryRepo) GetByKey(context.Context, valueobjects.CanonicalURL) (*entities.Entry, error) {
	return nil, pkgerrors.NewNotFoundError("entry")
}

func TestTrackLostCreateRaceIsDuplicate(t *testing.T) {
	entries := memory.NewEntryRepository()
	queue := memorymsg.NewQueue(8)
	ctx := context.Background()

	// The concurrent winner already owns the row.
	key, err := valueobjects.NewCanonicalURL("https://example.com/p/1")
	require.NoError(t, err)
	winner, err := entities.NewEntry(key, key.String())
	require.NoError(t, err)
	require.NoError(t, entries.Create(ctx, winner))

	handler := NewTrackHandler(staleReadEntryRepo{entries}, queue, memorymsg.NewPublisher(zap.NewNop()), zap.NewNop())
	result, err := handler.Handle(ctx, TrackURLsCommand{URLs: []string{"https://example.com/p/1"}})
	require.NoError(t, err)

	assert.Empty(t, result.Accepted)
	assert.Equal(t, []string{"https://example.com/p/1"}, result.Duplicates)
	assert.Zero(t, queue.Len())
}

func TestTrackCommandValidation(t *testing.T) {
	assert.Error(t, TrackURLsCommand{}.Validate())

	urls := make([]string, MaxBatchSize+1)
	for i := range urls {
		urls[i] = "https://example.com/p"
	}
	assert.Error(t, TrackURLsCommand{URLs: urls}.Validate())

	assert.NoError(t, TrackURLsCommand{URLs: []string{"https://example.com/p"}}.Validate())
}

func TestUntrackRemovesEntry(t *testing.T) {
	entries := memory.NewEntryRepository()
	publisher := memorymsg.NewPublisher(zap.NewNop())
	ctx := context.Background()

	key, err := valueobjects.NewCanonicalURL("https://example.com/p/1")
	require.NoError(t, err)
	entry, err := entities.NewEntry(key, key.String())
	require.NoError(t, err)
	require.NoError(t, entries.Save(ctx, entry))

	handler := NewUntrackHandler(entries, publisher, zap.NewNop())
	require.NoError(t, handler.Handle(ctx, UntrackURLCommand{URL: "https://www.example.com/p/1"}))

	stored, err := entries.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusRemoved, stored.Status())
	require.Len(t, publisher.Published(), 1)
	assert.Equal(t, "entry.removed", publisher.Published()[0].GetEventType())
}

func TestUntrackUnknownEntry(t *testing.T) {
	handler := NewUntrackHandler(memory.NewEntryRepository(), nil, zap.NewNop())

	err := handler.Handle(context.Background(), UntrackURLCommand{URL: "https://example.com/p/none"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMarkAlertRead(t *testing.T) {
	alerts := memory.NewAlertRepository()
	ctx := context.Background()

	alert, err := entities.NewAlert(
		"https://example.com/p/1",
		entities.AlertKindPriceJump,
		entities.SeverityMedium,
		entities.AlertPayload{Before: 100.0, After: 80.0},
	)
	require.NoError(t, err)
	require.NoError(t, alerts.Save(ctx, alert))

	handler := NewMarkAlertReadHandler(alerts)
	require.NoError(t, handler.Handle(ctx, MarkAlertReadCommand{AlertID: alert.ID()}))

	stored, err := alerts.GetByID(ctx, alert.ID())
	require.NoError(t, err)
	assert.True(t, stored.IsRead())

	// Marking twice stays idempotent.
	require.NoError(t, handler.Handle(ctx, MarkAlertReadCommand{AlertID: alert.ID()}))
}

func TestMarkAlertReadUnknownID(t *testing.T) {
	handler := NewMarkAlertReadHandler(memory.NewAlertRepository())

	err := handler.Handle(context.Background(), MarkAlertReadCommand{AlertID: "missing"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}
