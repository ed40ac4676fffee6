package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"watchtower-backend/application/commands"
	"watchtower-backend/application/commands/bus"
	"watchtower-backend/application/queries"
	querybus "watchtower-backend/application/queries/bus"
	pkgerrors "watchtower-backend/pkg/errors"
	"watchtower-backend/pkg/utils"
)

// WatchlistHandler handles watchlist HTTP requests
type WatchlistHandler struct {
	tracker    *commands.TrackHandler
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	logger     *zap.Logger
}

// NewWatchlistHandler creates a new watchlist handler
func NewWatchlistHandler(
	tracker *commands.TrackHandler,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	logger *zap.Logger,
) *WatchlistHandler {
	return &WatchlistHandler{
		tracker:    tracker,
		commandBus: commandBus,
		queryBus:   queryBus,
		logger:     logger,
	}
}

// TrackRequest represents the request body for adding URLs. Both the single
// and batch shapes are accepted.
type TrackRequest struct {
	URL  string   `json:"url,omitempty" validate:"omitempty,url"`
	URLs []string `json:"urls,omitempty" validate:"omitempty,max=100,dive,url"`
}

// Track handles POST /watchlist
func (h *WatchlistHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	urls := req.URLs
	if req.URL != "" {
		urls = append([]string{req.URL}, urls...)
	}
	if len(urls) == 0 {
		h.respondError(w, http.StatusBadRequest, "Provide url or urls")
		return
	}

	result, err := h.tracker.Handle(r.Context(), commands.TrackURLsCommand{URLs: urls})
	if err != nil {
		h.logger.Error("failed to track urls", zap.Int("count", len(urls)), zap.Error(err))
		h.respondAppError(w, err, "Failed to add URLs")
		return
	}

	status := http.StatusAccepted
	if len(result.Accepted) == 0 {
		// Nothing new was taken on; tell the caller what happened instead
		// of pretending work is pending.
		status = http.StatusOK
	}
	h.respondJSON(w, status, result)
}

// List handles GET /watchlist
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	query := queries.ListWatchlistQuery{
		IncludeErrored: r.URL.Query().Get("include_errored") != "false",
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.logger.Error("failed to list watchlist", zap.Error(err))
		h.respondAppError(w, err, "Failed to list watchlist")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// UntrackRequest represents the request body for removing a URL
type UntrackRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// Untrack handles DELETE /watchlist. The URL comes from the query string or
// the body; the query string wins when both are present.
func (h *WatchlistHandler) Untrack(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		var req UntrackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			target = req.URL
		}
	}
	if target == "" {
		h.respondError(w, http.StatusBadRequest, "URL is required")
		return
	}

	if err := h.commandBus.Send(r.Context(), commands.UntrackURLCommand{URL: target}); err != nil {
		h.logger.Warn("failed to untrack url", zap.String("url", target), zap.Error(err))
		h.respondAppError(w, err, "Failed to remove URL")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"removed": target,
	})
}

// Series handles GET /watchlist/series
func (h *WatchlistHandler) Series(w http.ResponseWriter, r *http.Request) {
	query := queries.PriceSeriesQuery{
		URL:   r.URL.Query().Get("url"),
		Range: r.URL.Query().Get("range"),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.logger.Warn("failed to query price series", zap.String("url", query.URL), zap.Error(err))
		h.respondAppError(w, err, "Failed to load price series")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *WatchlistHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *WatchlistHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

// respondAppError maps a typed application error onto its HTTP status,
// falling back to 500 with a generic message.
func (h *WatchlistHandler) respondAppError(w http.ResponseWriter, err error, fallback string) {
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		h.respondError(w, appErr.HTTPStatus, appErr.Message)
		return
	}
	h.respondError(w, http.StatusInternalServerError, fallback)
}
