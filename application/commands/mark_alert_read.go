package commands

import (
	"context"
	"errors"

	"watchtower-backend/application/ports"
	pkgerrors "watchtower-backend/pkg/errors"
)

// MarkAlertReadCommand represents the command to acknowledge an alert
type MarkAlertReadCommand struct {
	AlertID string `json:"alert_id" validate:"required,uuid"`
}

// Validate validates the command
func (cmd MarkAlertReadCommand) Validate() error {
	if cmd.AlertID == "" {
		return errors.New("alert ID is required")
	}
	return nil
}

// MarkAlertReadHandler handles the MarkAlertReadCommand
type MarkAlertReadHandler struct {
	alerts ports.AlertRepository
}

// NewMarkAlertReadHandler creates a new handler instance
func NewMarkAlertReadHandler(alerts ports.AlertRepository) *MarkAlertReadHandler {
	return &MarkAlertReadHandler{alerts: alerts}
}

// Handle executes the command. Marking an already-read alert is idempotent.
func (h *MarkAlertReadHandler) Handle(ctx context.Context, cmd MarkAlertReadCommand) error {
	alert, err := h.alerts.GetByID(ctx, cmd.AlertID)
	if err != nil {
		return err
	}

	if alert.IsRead() {
		return nil
	}

	alert.MarkRead()
	if err := h.alerts.Save(ctx, alert); err != nil {
		return pkgerrors.Wrap(err, "failed to save alert")
	}
	return nil
}
