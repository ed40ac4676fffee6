package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
)

func mustKey(t *testing.T, raw string) valueobjects.CanonicalURL {
	t.Helper()
	key, err := valueobjects.NewCanonicalURL(raw)
	require.NoError(t, err)
	return key
}

func okEntry(t *testing.T, price float64, stock valueobjects.StockStatus) *entities.Entry {
	t.Helper()
	key := mustKey(t, "https://www.lazada.sg/products/foo-i123.html")
	entry, err := entities.NewEntry(key, "https://www.lazada.sg/products/foo-i123.html")
	require.NoError(t, err)

	snap := valueobjects.Snapshot{
		Product:     "Foo",
		Price:       &price,
		StockStatus: stock,
	}
	require.NoError(t, entry.ApplyObservation(snap, time.Now().Add(-time.Minute)))
	return entry
}

func observation(key valueobjects.CanonicalURL, price float64, stock valueobjects.StockStatus) entities.Observation {
	return entities.NewObservation(key, valueobjects.Snapshot{
		Product:     "Foo",
		Price:       &price,
		StockStatus: stock,
	}, time.Now())
}

func TestDetectPriceJump(t *testing.T) {
	detector := NewChangeDetector(15)

	t.Run("20 percent drop above threshold fires exactly one price_jump", func(t *testing.T) {
		entry := okEntry(t, 10.00, valueobjects.StockStatusInStock)
		obs := observation(entry.Key(), 8.00, valueobjects.StockStatusInStock)

		result, err := detector.Detect(entry, obs)
		require.NoError(t, err)

		assert.True(t, result.Changed)
		require.Len(t, result.Alerts, 1)
		alert := result.Alerts[0]
		assert.Equal(t, entities.AlertKindPriceJump, alert.Kind())
		assert.Equal(t, entities.SeverityMedium, alert.Severity())
		assert.Equal(t, 10.00, alert.Payload().Before)
		assert.Equal(t, 8.00, alert.Payload().After)
	})

	t.Run("change below threshold fires nothing", func(t *testing.T) {
		entry := okEntry(t, 10.00, valueobjects.StockStatusInStock)
		obs := observation(entry.Key(), 9.00, valueobjects.StockStatusInStock)

		result, err := detector.Detect(entry, obs)
		require.NoError(t, err)

		assert.True(t, result.Changed)
		assert.Empty(t, result.Alerts)
	})

	t.Run("doubled threshold escalates to high severity", func(t *testing.T) {
		entry := okEntry(t, 10.00, valueobjects.StockStatusInStock)
		obs := observation(entry.Key(), 6.00, valueobjects.StockStatusInStock)

		result, err := detector.Detect(entry, obs)
		require.NoError(t, err)

		require.Len(t, result.Alerts, 1)
		assert.Equal(t, entities.SeverityHigh, result.Alerts[0].Severity())
	})

	t.Run("price increase also fires", func(t *testing.T) {
		entry := okEntry(t, 10.00, valueobjects.StockStatusInStock)
		obs := observation(entry.Key(), 12.00, valueobjects.StockStatusInStock)

		result, err := detector.Detect(entry, obs)
		require.NoError(t, err)

		require.Len(t, result.Alerts, 1)
		assert.Equal(t, entities.AlertKindPriceJump, result.Alerts[0].Kind())
	})
}

func TestDetectStockout(t *testing.T) {
	detector := NewChangeDetector(15)

	t.Run("in_stock to out_of_stock fires one stockout", func(t *testing.T) {
		entry := okEntry(t, 10.00, valueobjects.StockStatusInStock)
		obs := observation(entry.Key(), 10.00, valueobjects.StockStatusOutOfStock)

		result, err := detector.Detect(entry, obs)
		require.NoError(t, err)

		require.Len(t, result.Alerts, 1)
		alert := result.Alerts[0]
		assert.Equal(t, entities.AlertKindStockout, alert.Kind())
		assert.Equal(t, entities.SeverityHigh, alert.Severity())
		assert.Equal(t, "in_stock", alert.Payload().Before)
		assert.Equal(t, "out_of_stock", alert.Payload().After)
	})

	t.Run("restock fires nothing", func(t *testing.T) {
		entry := okEntry(t, 10.00, valueobjects.StockStatusOutOfStock)
		obs := observation(entry.Key(), 10.00, valueobjects.StockStatusInStock)

		result, err := detector.Detect(entry, obs)
		require.NoError(t, err)

		assert.Empty(t, result.Alerts)
	})

	t.Run("unknown availability never alerts", func(t *testing.T) {
		entry := okEntry(t, 10.00, valueobjects.StockStatusUnknown)
		obs := observation(entry.Key(), 10.00, valueobjects.StockStatusOutOfStock)

		result, err := detector.Detect(entry, obs)
		require.NoError(t, err)

		assert.Empty(t, result.Alerts)
	})
}

func TestDetectIndependentRules(t *testing.T) {
	detector := NewChangeDetector(15)

	// Price jump and stockout at once: one alert per rule, not a combined one.
	entry := okEntry(t, 10.00, valueobjects.StockStatusInStock)
	obs := observation(entry.Key(), 7.00, valueobjects.StockStatusOutOfStock)

	result, err := detector.Detect(entry, obs)
	require.NoError(t, err)

	require.Len(t, result.Alerts, 2)
	kinds := []entities.AlertKind{result.Alerts[0].Kind(), result.Alerts[1].Kind()}
	assert.Contains(t, kinds, entities.AlertKindPriceJump)
	assert.Contains(t, kinds, entities.AlertKindStockout)
}

func TestDetectFirstObservationEstablishesBaseline(t *testing.T) {
	detector := NewChangeDetector(15)

	key := mustKey(t, "https://www.lazada.sg/products/foo-i123.html")
	entry, err := entities.NewEntry(key, "")
	require.NoError(t, err)

	obs := observation(key, 10.00, valueobjects.StockStatusInStock)
	result, err := detector.Detect(entry, obs)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Empty(t, result.Alerts)
}

func TestDetectFailedObservationIsIgnored(t *testing.T) {
	detector := NewChangeDetector(15)

	entry := okEntry(t, 10.00, valueobjects.StockStatusInStock)
	obs := entities.NewFailedObservation(entry.Key(), "fetch timeout", time.Now(), 3)

	result, err := detector.Detect(entry, obs)
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Empty(t, result.Alerts)
}
