package memory

import (
	"context"
	"sort"
	"sync"

	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/entities"
	pkgerrors "watchtower-backend/pkg/errors"
)

// AlertRepository is an in-memory alert store for tests and local runs.
type AlertRepository struct {
	mu     sync.RWMutex
	alerts map[string]*entities.Alert
}

// NewAlertRepository creates an empty in-memory alert repository.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{
		alerts: make(map[string]*entities.Alert),
	}
}

// Save stores a copy of the alert.
func (r *AlertRepository) Save(_ context.Context, alert *entities.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts[alert.ID()] = copyAlert(alert)
	return nil
}

// GetByID returns a copy of the stored alert.
func (r *AlertRepository) GetByID(_ context.Context, id string) (*entities.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.alerts[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("alert")
	}
	return copyAlert(stored), nil
}

// List returns alerts newest first, paginated by an opaque cursor. The
// cursor is the ID of the last alert on the previous page.
func (r *AlertRepository) List(_ context.Context, query ports.AlertQuery) (*ports.AlertPage, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	r.mu.RLock()
	matched := make([]*entities.Alert, 0, len(r.alerts))
	for _, alert := range r.alerts {
		if !query.EntryKey.IsZero() && alert.EntryKey() != query.EntryKey.String() {
			continue
		}
		if query.UnreadOnly && alert.IsRead() {
			continue
		}
		matched = append(matched, copyAlert(alert))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt().Equal(matched[j].CreatedAt()) {
			return matched[i].ID() > matched[j].ID()
		}
		return matched[i].CreatedAt().After(matched[j].CreatedAt())
	})

	start := 0
	if query.Cursor != "" {
		for i, alert := range matched {
			if alert.ID() == query.Cursor {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	page := &ports.AlertPage{Alerts: matched[start:end]}
	if end < len(matched) && end > start {
		page.NextCursor = matched[end-1].ID()
	}
	return page, nil
}

func copyAlert(alert *entities.Alert) *entities.Alert {
	return entities.ReconstructAlert(
		alert.ID(),
		alert.EntryKey(),
		alert.Kind(),
		alert.Severity(),
		alert.Payload(),
		alert.CreatedAt(),
		alert.IsRead(),
	)
}
