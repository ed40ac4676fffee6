package commands

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
	"watchtower-backend/domain/events"
	pkgerrors "watchtower-backend/pkg/errors"
)

// MaxBatchSize caps how many URLs one track request may carry.
const MaxBatchSize = 100

// TrackURLsCommand represents the command to add one or more URLs to the
// watchlist. A single-URL submission is a batch of one.
type TrackURLsCommand struct {
	URLs []string `json:"urls" validate:"required,min=1,max=100,dive,url"`
}

// Validate validates the command
func (cmd TrackURLsCommand) Validate() error {
	if len(cmd.URLs) == 0 {
		return errors.New("at least one URL is required")
	}
	if len(cmd.URLs) > MaxBatchSize {
		return errors.New("too many URLs in one request")
	}
	return nil
}

// RejectedURL pairs a refused URL with why it was refused.
type RejectedURL struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// TrackResult reports the per-URL outcome of a track command. Accepted URLs
// are keyed by canonical form; duplicates name URLs already live on the list.
type TrackResult struct {
	Accepted   []string      `json:"accepted"`
	Duplicates []string      `json:"duplicates"`
	Rejected   []RejectedURL `json:"rejected"`
}

// TrackHandler handles the TrackURLsCommand
type TrackHandler struct {
	entries   ports.EntryRepository
	queue     ports.Queue
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewTrackHandler creates a new handler instance
func NewTrackHandler(
	entries ports.EntryRepository,
	queue ports.Queue,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *TrackHandler {
	return &TrackHandler{
		entries:   entries,
		queue:     queue,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle executes the track command. Each URL is handled independently:
// one bad URL never fails the batch.
func (h *TrackHandler) Handle(ctx context.Context, cmd TrackURLsCommand) (*TrackResult, error) {
	result := &TrackResult{
		Accepted:   []string{},
		Duplicates: []string{},
		Rejected:   []RejectedURL{},
	}

	var jobs []ports.Job
	var tracked []events.DomainEvent
	now := time.Now()

	// Dedup within the batch itself: two spellings of one page collapse to
	// one canonical key, and only the first wins.
	seen := make(map[string]struct{})

	for _, raw := range cmd.URLs {
		key, err := valueobjects.NewCanonicalURL(raw)
		if err != nil {
			result.Rejected = append(result.Rejected, RejectedURL{URL: raw, Reason: err.Error()})
			continue
		}
		if _, dup := seen[key.String()]; dup {
			result.Duplicates = append(result.Duplicates, key.String())
			continue
		}
		seen[key.String()] = struct{}{}

		entry, fresh, err := h.prepareEntry(ctx, key, raw)
		if err != nil {
			if pkgerrors.IsConflict(err) {
				result.Duplicates = append(result.Duplicates, key.String())
				continue
			}
			return nil, err
		}

		// Fresh keys go through the conditional create so two concurrent
		// tracks of the same URL resolve to one row and one job; the loser
		// is told the URL is already tracked.
		persist := h.entries.Save
		if fresh {
			persist = h.entries.Create
		}
		if err := persist(ctx, entry); err != nil {
			if pkgerrors.IsConflict(err) {
				result.Duplicates = append(result.Duplicates, key.String())
				continue
			}
			return nil, pkgerrors.Wrap(err, "failed to save entry")
		}

		result.Accepted = append(result.Accepted, key.String())
		jobs = append(jobs, ports.Job{
			URL:        raw,
			Attempt:    1,
			EnqueuedAt: now.Unix(),
		})
		tracked = append(tracked, events.NewEntryTracked(key.String(), "", now))
	}

	if len(jobs) > 0 {
		if err := h.queue.Enqueue(ctx, jobs...); err != nil {
			// Entries are already pending; the scheduler re-enqueues live
			// entries on its next tick, so losing this enqueue only delays
			// the first observation.
			h.logger.Error("failed to enqueue fetch jobs",
				zap.Int("count", len(jobs)),
				zap.Error(err),
			)
		}
	}

	if len(tracked) > 0 && h.publisher != nil {
		if err := h.publisher.PublishBatch(ctx, tracked); err != nil {
			h.logger.Warn("failed to publish tracked events", zap.Error(err))
		}
	}

	return result, nil
}

// prepareEntry resolves the key against existing state: a fresh key gets a
// new pending entry, an errored or removed key is reset, a live key is the
// already-tracked conflict.
func (h *TrackHandler) prepareEntry(ctx context.Context, key valueobjects.CanonicalURL, rawURL string) (*entities.Entry, bool, error) {
	existing, err := h.entries.GetByKey(ctx, key)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			entry, err := entities.NewEntry(key, rawURL)
			return entry, true, err
		}
		return nil, false, pkgerrors.Wrap(err, "failed to look up entry")
	}

	if err := existing.Reset(); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
