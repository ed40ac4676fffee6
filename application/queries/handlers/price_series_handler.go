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

// PriceSeriesHandler handles price history queries
type PriceSeriesHandler struct {
	entries ports.EntryRepository
	log     ports.ObservationLog
	logger  *zap.Logger
}

// NewPriceSeriesHandler creates a new price series handler
func NewPriceSeriesHandler(entries ports.EntryRepository, log ports.ObservationLog, logger *zap.Logger) *PriceSeriesHandler {
	return &PriceSeriesHandler{entries: entries, log: log, logger: logger}
}

// Handle executes the price series query. Unknown entries are an error;
// known entries with no recorded prices yield an empty series.
func (h *PriceSeriesHandler) Handle(ctx context.Context, query queries.PriceSeriesQuery) (*queries.PriceSeriesResult, error) {
	key, err := valueobjects.NewCanonicalURL(query.URL)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	if _, err := h.entries.GetByKey(ctx, key); err != nil {
		return nil, err
	}

	rng := ports.SeriesRange(query.Range)
	if query.Range == "" {
		rng = ports.SeriesRangeWeek
	}

	points, err := h.log.Series(ctx, key, rng)
	if err != nil {
		return nil, err
	}

	result := &queries.PriceSeriesResult{
		URL:    key.String(),
		Range:  string(rng),
		Points: make([]queries.SeriesPoint, 0, len(points)),
	}
	for _, p := range points {
		result.Points = append(result.Points, queries.SeriesPoint{
			Timestamp: p.Timestamp.UTC().Format(time.RFC3339),
			Price:     p.Price,
		})
	}
	return result, nil
}
