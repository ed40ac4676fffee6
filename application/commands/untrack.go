package commands

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/valueobjects"
	"watchtower-backend/domain/events"
	pkgerrors "watchtower-backend/pkg/errors"
)

// UntrackURLCommand represents the command to remove a URL from the watchlist
type UntrackURLCommand struct {
	URL string `json:"url" validate:"required,url"`
}

// Validate validates the command
func (cmd UntrackURLCommand) Validate() error {
	if cmd.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

// UntrackHandler handles the UntrackURLCommand
type UntrackHandler struct {
	entries   ports.EntryRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewUntrackHandler creates a new handler instance
func NewUntrackHandler(
	entries ports.EntryRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *UntrackHandler {
	return &UntrackHandler{
		entries:   entries,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle executes the untrack command. Removal is a soft delete: the entry
// becomes a tombstone and in-flight observations for its key are dropped.
func (h *UntrackHandler) Handle(ctx context.Context, cmd UntrackURLCommand) error {
	key, err := valueobjects.NewCanonicalURL(cmd.URL)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}

	entry, err := h.entries.GetByKey(ctx, key)
	if err != nil {
		return err
	}

	entry.Remove()
	if err := h.entries.Save(ctx, entry); err != nil {
		return pkgerrors.Wrap(err, "failed to save removed entry")
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, events.NewEntryRemoved(key.String(), time.Now())); err != nil {
			h.logger.Warn("failed to publish removed event", zap.Error(err))
		}
	}

	return nil
}
