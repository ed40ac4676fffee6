package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"watchtower-backend/application/commands"
	"watchtower-backend/application/commands/bus"
	"watchtower-backend/application/queries"
	querybus "watchtower-backend/application/queries/bus"
	pkgerrors "watchtower-backend/pkg/errors"
)

// AlertHandler handles alert HTTP requests
type AlertHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	logger     *zap.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		logger:     logger,
	}
}

// List handles GET /alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	limit := 0
	if raw := params.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > queries.MaxAlertLimit {
			h.respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	query := queries.ListAlertsQuery{
		URL:        params.Get("url"),
		UnreadOnly: params.Get("unread") == "true",
		Limit:      limit,
		Cursor:     params.Get("cursor"),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.logger.Error("failed to list alerts", zap.Error(err))
		h.respondAppError(w, err, "Failed to list alerts")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// MarkRead handles POST /alerts/{alertID}/read
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")
	if _, err := uuid.Parse(alertID); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid alert ID format")
		return
	}

	if err := h.commandBus.Send(r.Context(), commands.MarkAlertReadCommand{AlertID: alertID}); err != nil {
		h.logger.Warn("failed to mark alert read", zap.String("alertId", alertID), zap.Error(err))
		h.respondAppError(w, err, "Failed to mark alert read")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":   alertID,
		"read": true,
	})
}

func (h *AlertHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *AlertHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

func (h *AlertHandler) respondAppError(w http.ResponseWriter, err error, fallback string) {
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		h.respondError(w, appErr.HTTPStatus, appErr.Message)
		return
	}
	h.respondError(w, http.StatusInternalServerError, fallback)
}
