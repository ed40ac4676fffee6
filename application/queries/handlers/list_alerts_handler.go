package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"watchtower-backend/application/ports"
	"watchtower-backend/application/queries"
	"watchtower-backend/domain/core/valueobjects"
	pkgerrors "watchtower-backend/pkg/errors"
)

// ListAlertsHandler handles alert listing queries
type ListAlertsHandler struct {
	alerts ports.AlertRepository
	logger *zap.Logger
}

// NewListAlertsHandler creates a new alert listing handler
func NewListAlertsHandler(alerts ports.AlertRepository, logger *zap.Logger) *ListAlertsHandler {
	return &ListAlertsHandler{alerts: alerts, logger: logger}
}

// Handle executes the alert listing query
func (h *ListAlertsHandler) Handle(ctx context.Context, query queries.ListAlertsQuery) (*queries.ListAlertsResult, error) {
	repoQuery := ports.AlertQuery{
		UnreadOnly: query.UnreadOnly,
		Limit:      query.Limit,
		Cursor:     query.Cursor,
	}
	if query.Limit == 0 {
		repoQuery.Limit = queries.DefaultAlertLimit
	}

	if query.URL != "" {
		key, err := valueobjects.NewCanonicalURL(query.URL)
		if err != nil {
			return nil, pkgerrors.NewValidationError(err.Error())
		}
		repoQuery.EntryKey = key
	}

	page, err := h.alerts.List(ctx, repoQuery)
	if err != nil {
		return nil, err
	}

	views := make([]queries.AlertView, 0, len(page.Alerts))
	for _, alert := range page.Alerts {
		views = append(views, queries.AlertView{
			ID:       alert.ID(),
			URL:      alert.EntryKey(),
			Kind:     string(alert.Kind()),
			Severity: string(alert.Severity()),
			Payload: queries.AlertPayload{
				Before: alert.Payload().Before,
				After:  alert.Payload().After,
			},
			IsRead:    alert.IsRead(),
			CreatedAt: alert.CreatedAt().UTC().Format(time.RFC3339),
		})
	}

	return &queries.ListAlertsResult{
		Alerts:     views,
		NextCursor: page.NextCursor,
	}, nil
}
