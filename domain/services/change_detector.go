package services

import (
	"math"

	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
)

// DetectionResult is the outcome of comparing a fresh observation against
// the last-known state of an entry.
type DetectionResult struct {
	// Changed reports whether any snapshot field differs. The entry's
	// snapshot is refreshed regardless; Changed only controls whether a
	// row_upserted push carries new information.
	Changed bool
	// Alerts holds one alert per triggered rule. Rules evaluate
	// independently; simultaneous changes produce multiple alerts.
	Alerts []*entities.Alert
}

// ChangeDetector compares observations against last-known entry state and
// decides which alert rules fired. It is pure: callers own persistence and
// fanout.
type ChangeDetector struct {
	priceJumpPct float64
}

// NewChangeDetector creates a detector with the given price-jump threshold,
// expressed as a percentage of the previous price (e.g. 15 for 15%).
func NewChangeDetector(priceJumpPct float64) *ChangeDetector {
	if priceJumpPct <= 0 {
		priceJumpPct = 15
	}
	return &ChangeDetector{priceJumpPct: priceJumpPct}
}

// Detect evaluates every rule against prev's last snapshot and the observed
// one. A nil prev snapshot (first observation) never alerts: there is
// nothing to compare against. Trend spikes are computed on an aggregate
// signal elsewhere and are never produced by this per-entry comparator.
func (d *ChangeDetector) Detect(prev *entities.Entry, obs entities.Observation) (DetectionResult, error) {
	result := DetectionResult{}
	if !obs.Success {
		return result, nil
	}

	old := prev.Snapshot()
	fresh := obs.Snapshot

	result.Changed = snapshotDiffers(old, fresh)

	// First successful observation: establish baseline, no alerts.
	if prev.Status() == entities.StatusPending && prev.LastUpdatedAt().IsZero() {
		return result, nil
	}

	key := prev.Key().String()

	if alert, err := d.priceRule(key, old, fresh); err != nil {
		return result, err
	} else if alert != nil {
		result.Alerts = append(result.Alerts, alert)
	}

	if alert, err := d.stockRule(key, old, fresh); err != nil {
		return result, err
	} else if alert != nil {
		result.Alerts = append(result.Alerts, alert)
	}

	return result, nil
}

// priceRule fires when the price moved by at least the configured
// percentage of the previous price, in either direction.
func (d *ChangeDetector) priceRule(key string, old, fresh valueobjects.Snapshot) (*entities.Alert, error) {
	if !old.HasPrice() || !fresh.HasPrice() {
		return nil, nil
	}

	before := *old.Price
	after := *fresh.Price
	deltaPct := math.Abs(after-before) / before * 100
	if deltaPct < d.priceJumpPct {
		return nil, nil
	}

	severity := entities.SeverityMedium
	if deltaPct >= 2*d.priceJumpPct {
		severity = entities.SeverityHigh
	}

	return entities.NewAlert(key, entities.AlertKindPriceJump, severity, entities.AlertPayload{
		Before: before,
		After:  after,
	})
}

// stockRule fires only on the in_stock to out_of_stock transition. The
// reverse transition and unknown states never alert.
func (d *ChangeDetector) stockRule(key string, old, fresh valueobjects.Snapshot) (*entities.Alert, error) {
	if old.StockStatus != valueobjects.StockStatusInStock || fresh.StockStatus != valueobjects.StockStatusOutOfStock {
		return nil, nil
	}

	return entities.NewAlert(key, entities.AlertKindStockout, entities.SeverityHigh, entities.AlertPayload{
		Before: string(old.StockStatus),
		After:  string(fresh.StockStatus),
	})
}

func snapshotDiffers(old, fresh valueobjects.Snapshot) bool {
	if old.Product != fresh.Product || old.StockStatus != fresh.StockStatus || old.ImageURL != fresh.ImageURL {
		return true
	}
	switch {
	case old.Price == nil && fresh.Price == nil:
		return false
	case old.Price == nil || fresh.Price == nil:
		return true
	default:
		return *old.Price != *fresh.Price
	}
}
