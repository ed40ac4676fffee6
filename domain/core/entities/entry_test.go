package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtower-backend/domain/core/valueobjects"
	pkgerrors "watchtower-backend/pkg/errors"
)

func newTestEntry(t *testing.T) *Entry {
	t.Helper()
	key, err := valueobjects.NewCanonicalURL("https://lazada.sg/products/foo-i123.html")
	require.NoError(t, err)
	entry, err := NewEntry(key, "https://www.lazada.sg/products/foo-i123.html")
	require.NoError(t, err)
	return entry
}

func testSnapshot(price float64) valueobjects.Snapshot {
	return valueobjects.Snapshot{
		Product:     "Foo",
		Price:       &price,
		StockStatus: valueobjects.StockStatusInStock,
	}
}

func TestNewEntry(t *testing.T) {
	entry := newTestEntry(t)

	assert.Equal(t, StatusPending, entry.Status())
	assert.Equal(t, 1, entry.Version())
	assert.True(t, entry.IsLive())
	assert.True(t, entry.LastUpdatedAt().IsZero())

	_, err := NewEntry(valueobjects.CanonicalURL{}, "")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestApplyObservation(t *testing.T) {
	t.Run("moves entry to ok and advances the watermark", func(t *testing.T) {
		entry := newTestEntry(t)
		observedAt := time.Now()

		require.NoError(t, entry.ApplyObservation(testSnapshot(9.90), observedAt))

		assert.Equal(t, StatusOK, entry.Status())
		assert.Equal(t, observedAt.UTC(), entry.LastUpdatedAt())
		assert.Equal(t, 2, entry.Version())
		assert.Equal(t, 9.90, entry.Snapshot().PriceOrZero())
	})

	t.Run("rejects stale observation", func(t *testing.T) {
		entry := newTestEntry(t)
		now := time.Now()
		require.NoError(t, entry.ApplyObservation(testSnapshot(9.90), now))

		err := entry.ApplyObservation(testSnapshot(5.00), now.Add(-time.Second))
		assert.True(t, pkgerrors.IsConflict(err))
		assert.Equal(t, 9.90, entry.Snapshot().PriceOrZero())
	})

	t.Run("rejects equal timestamp redelivery", func(t *testing.T) {
		entry := newTestEntry(t)
		now := time.Now()
		require.NoError(t, entry.ApplyObservation(testSnapshot(9.90), now))

		err := entry.ApplyObservation(testSnapshot(5.00), now)
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("rejects observation on removed entry", func(t *testing.T) {
		entry := newTestEntry(t)
		entry.Remove()

		err := entry.ApplyObservation(testSnapshot(9.90), time.Now())
		assert.True(t, pkgerrors.IsConflict(err))
		assert.Equal(t, StatusRemoved, entry.Status())
	})

	t.Run("clears a previous error", func(t *testing.T) {
		entry := newTestEntry(t)
		require.NoError(t, entry.MarkFailed("fetch timeout", time.Now().Add(-time.Minute)))

		require.NoError(t, entry.ApplyObservation(testSnapshot(9.90), time.Now()))
		assert.Equal(t, StatusOK, entry.Status())
		assert.Empty(t, entry.LastError())
	})
}

func TestMarkFailed(t *testing.T) {
	entry := newTestEntry(t)

	require.NoError(t, entry.MarkFailed("blocked by upstream", time.Now()))
	assert.Equal(t, StatusError, entry.Status())
	assert.Equal(t, "blocked by upstream", entry.LastError())
	assert.False(t, entry.IsLive())

	entry.Remove()
	err := entry.MarkFailed("late failure", time.Now())
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Equal(t, StatusRemoved, entry.Status())
}

func TestReset(t *testing.T) {
	t.Run("re-tracks an errored entry", func(t *testing.T) {
		entry := newTestEntry(t)
		require.NoError(t, entry.MarkFailed("fetch timeout", time.Now()))

		require.NoError(t, entry.Reset())
		assert.Equal(t, StatusPending, entry.Status())
		assert.Empty(t, entry.LastError())
		assert.True(t, entry.IsLive())
	})

	t.Run("re-tracks a removed entry", func(t *testing.T) {
		entry := newTestEntry(t)
		entry.Remove()

		require.NoError(t, entry.Reset())
		assert.Equal(t, StatusPending, entry.Status())
	})

	t.Run("rejects a live entry", func(t *testing.T) {
		entry := newTestEntry(t)
		err := entry.Reset()
		assert.True(t, pkgerrors.IsConflict(err))
	})
}
