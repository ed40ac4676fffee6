package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"watchtower-backend/application/ports"
	"watchtower-backend/application/queries"
	"watchtower-backend/domain/core/entities"
)

// ListWatchlistHandler handles watchlist listing queries
type ListWatchlistHandler struct {
	entries ports.EntryRepository
	logger  *zap.Logger
}

// NewListWatchlistHandler creates a new watchlist listing handler
func NewListWatchlistHandler(entries ports.EntryRepository, logger *zap.Logger) *ListWatchlistHandler {
	return &ListWatchlistHandler{entries: entries, logger: logger}
}

// Handle executes the watchlist query
func (h *ListWatchlistHandler) Handle(ctx context.Context, query queries.ListWatchlistQuery) (*queries.ListWatchlistResult, error) {
	all, err := h.entries.List(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]queries.WatchlistRow, 0, len(all))
	for _, entry := range all {
		if entry.Status() == entities.StatusRemoved {
			continue
		}
		if entry.Status() == entities.StatusError && !query.IncludeErrored {
			continue
		}
		rows = append(rows, toWatchlistRow(entry))
	}

	return &queries.ListWatchlistResult{Rows: rows, Total: len(rows)}, nil
}

func toWatchlistRow(entry *entities.Entry) queries.WatchlistRow {
	snap := entry.Snapshot()
	row := queries.WatchlistRow{
		URL:         entry.Key().String(),
		RawURL:      entry.RawURL(),
		Product:     snap.Product,
		Price:       snap.Price,
		StockStatus: string(snap.StockStatus),
		ImageURL:    snap.ImageURL,
		Status:      string(entry.Status()),
		LastError:   entry.LastError(),
		CreatedAt:   entry.CreatedAt().UTC().Format(time.RFC3339),
	}
	if !entry.LastUpdatedAt().IsZero() {
		row.UpdatedAt = entry.LastUpdatedAt().UTC().Format(time.RFC3339)
	}
	return row
}
