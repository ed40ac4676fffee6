package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
	pkgerrors "watchtower-backend/pkg/errors"
)

func mustKey(t *testing.T, raw string) valueobjects.CanonicalURL {
	t.Helper()
	key, err := valueobjects.NewCanonicalURL(raw)
	require.NoError(t, err)
	return key
}

func TestEntryRepositoryNewerWins(t *testing.T) {
	repo := NewEntryRepository()
	ctx := context.Background()
	key := mustKey(t, "https://example.com/p/1")

	entry, err := entities.NewEntry(key, key.String())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, entry))

	price := 100.0
	newer := time.Now()
	require.NoError(t, entry.ApplyObservation(valueobjects.Snapshot{Price: &price, StockStatus: valueobjects.StockStatusInStock}, newer))
	require.NoError(t, repo.Save(ctx, entry))

	// A rebuilt entry carrying an older watermark must not overwrite.
	stale := entities.ReconstructEntry(
		key, key.String(), valueobjects.Snapshot{}, entities.StatusOK,
		"", entry.CreatedAt(), newer.Add(-time.Minute), 1,
	)
	err = repo.Save(ctx, stale)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	stored, err := repo.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.Snapshot().PriceOrZero())
}

func TestEntryRepositoryCreateRejectsExistingKey(t *testing.T) {
	repo := NewEntryRepository()
	ctx := context.Background()
	key := mustKey(t, "https://example.com/p/1")

	first, err := entities.NewEntry(key, key.String())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, first))

	// The second creation of the same key loses, whatever its watermark.
	second, err := entities.NewEntry(key, key.String())
	require.NoError(t, err)
	err = repo.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestEntryRepositoryGetUnknownKey(t *testing.T) {
	repo := NewEntryRepository()

	_, err := repo.GetByKey(context.Background(), mustKey(t, "https://example.com/p/none"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestEntryRepositoryListLiveKeys(t *testing.T) {
	repo := NewEntryRepository()
	ctx := context.Background()

	live, err := entities.NewEntry(mustKey(t, "https://example.com/p/live"), "")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, live))

	gone, err := entities.NewEntry(mustKey(t, "https://example.com/p/gone"), "")
	require.NoError(t, err)
	gone.Remove()
	require.NoError(t, repo.Save(ctx, gone))

	keys, err := repo.ListLiveKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "https://example.com/p/live", keys[0].String())
}

func saveAlerts(t *testing.T, repo *AlertRepository, entryKey string, n int) []*entities.Alert {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	out := make([]*entities.Alert, 0, n)
	for i := 0; i < n; i++ {
		alert := entities.ReconstructAlert(
			fmt.Sprintf("alert-%03d", i),
			entryKey,
			entities.AlertKindPriceJump,
			entities.SeverityMedium,
			entities.AlertPayload{Before: 100.0, After: 80.0},
			base.Add(time.Duration(i)*time.Minute),
			false,
		)
		require.NoError(t, repo.Save(context.Background(), alert))
		out = append(out, alert)
	}
	return out
}

func TestAlertRepositoryCursorPagination(t *testing.T) {
	repo := NewAlertRepository()
	ctx := context.Background()
	saveAlerts(t, repo, "https://example.com/p/1", 5)

	first, err := repo.List(ctx, ports.AlertQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Alerts, 2)
	assert.Equal(t, "alert-004", first.Alerts[0].ID())
	assert.Equal(t, "alert-003", first.Alerts[1].ID())
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.List(ctx, ports.AlertQuery{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Alerts, 2)
	assert.Equal(t, "alert-002", second.Alerts[0].ID())
	assert.Equal(t, "alert-001", second.Alerts[1].ID())

	third, err := repo.List(ctx, ports.AlertQuery{Limit: 2, Cursor: second.NextCursor})
	require.NoError(t, err)
	require.Len(t, third.Alerts, 1)
	assert.Equal(t, "alert-000", third.Alerts[0].ID())
	assert.Empty(t, third.NextCursor)
}

func TestAlertRepositoryUnreadFilter(t *testing.T) {
	repo := NewAlertRepository()
	ctx := context.Background()
	alerts := saveAlerts(t, repo, "https://example.com/p/1", 3)

	read, err := repo.GetByID(ctx, alerts[1].ID())
	require.NoError(t, err)
	read.MarkRead()
	require.NoError(t, repo.Save(ctx, read))

	page, err := repo.List(ctx, ports.AlertQuery{UnreadOnly: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Alerts, 2)
	for _, alert := range page.Alerts {
		assert.False(t, alert.IsRead())
	}
}

func TestAlertRepositoryEntryKeyFilter(t *testing.T) {
	repo := NewAlertRepository()
	ctx := context.Background()
	saveAlerts(t, repo, "https://example.com/p/1", 2)
	saveAlerts2 := entities.ReconstructAlert(
		"other-alert", "https://example.com/p/2",
		entities.AlertKindStockout, entities.SeverityHigh,
		entities.AlertPayload{Before: "in_stock", After: "out_of_stock"},
		time.Now(), false,
	)
	require.NoError(t, repo.Save(ctx, saveAlerts2))

	page, err := repo.List(ctx, ports.AlertQuery{EntryKey: mustKey(t, "https://example.com/p/2"), Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Alerts, 1)
	assert.Equal(t, "other-alert", page.Alerts[0].ID())
}

func TestObservationLogBucketsAveragePrices(t *testing.T) {
	log := NewObservationLog()
	ctx := context.Background()
	key := mustKey(t, "https://example.com/p/1")

	now := time.Now()
	hour := now.Truncate(time.Hour)
	// Two observations inside the same hourly bucket, one in the previous.
	require.NoError(t, log.Append(ctx, key, 110, hour.Add(-30*time.Minute)))
	require.NoError(t, log.Append(ctx, key, 100, hour.Add(5*time.Minute)))
	require.NoError(t, log.Append(ctx, key, 95, hour.Add(10*time.Minute)))

	series, err := log.Series(ctx, key, ports.SeriesRangeDay)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 110.0, series[0].Price)
	assert.Equal(t, 97.5, series[1].Price)
	assert.True(t, series[0].Timestamp.Before(series[1].Timestamp))
}

func TestObservationLogWindowExcludesOldPoints(t *testing.T) {
	log := NewObservationLog()
	ctx := context.Background()
	key := mustKey(t, "https://example.com/p/1")

	require.NoError(t, log.Append(ctx, key, 150, time.Now().Add(-48*time.Hour)))
	require.NoError(t, log.Append(ctx, key, 100, time.Now().Add(-time.Minute)))

	series, err := log.Series(ctx, key, ports.SeriesRangeDay)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 100.0, series[0].Price)
}

func TestObservationLogUnknownKeyIsEmpty(t *testing.T) {
	log := NewObservationLog()

	series, err := log.Series(context.Background(), mustKey(t, "https://example.com/p/none"), ports.SeriesRangeWeek)
	require.NoError(t, err)
	assert.Empty(t, series)
}
