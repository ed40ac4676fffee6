package memory

import (
	"context"
	"sort"
	"sync"

	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
	pkgerrors "watchtower-backend/pkg/errors"
)

// EntryRepository is an in-memory entry store for tests and local runs.
// It enforces the same newer-wins write rule as the DynamoDB implementation.
type EntryRepository struct {
	mu      sync.RWMutex
	entries map[string]*entities.Entry
}

// NewEntryRepository creates an empty in-memory entry repository.
func NewEntryRepository() *EntryRepository {
	return &EntryRepository{
		entries: make(map[string]*entities.Entry),
	}
}

// Create stores a copy of a brand new entry, rejecting the write with a
// conflict when the key already exists.
func (r *EntryRepository) Create(_ context.Context, entry *entities.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entry.Key().String()
	if _, ok := r.entries[key]; ok {
		return pkgerrors.NewConflictError("entry already tracked")
	}

	r.entries[key] = copyEntry(entry)
	return nil
}

// Save stores a copy of the entry. A write carrying an older observation
// watermark than the stored row is rejected with a conflict.
func (r *EntryRepository) Save(_ context.Context, entry *entities.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entry.Key().String()
	if stored, ok := r.entries[key]; ok {
		if entry.LastUpdatedAt().Before(stored.LastUpdatedAt()) {
			return pkgerrors.NewConflictError("stored entry is newer")
		}
	}

	r.entries[key] = copyEntry(entry)
	return nil
}

// GetByKey returns a copy of the stored entry.
func (r *EntryRepository) GetByKey(_ context.Context, key valueobjects.CanonicalURL) (*entities.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.entries[key.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("entry")
	}
	return copyEntry(stored), nil
}

// List returns copies of all stored entries ordered by creation time.
func (r *EntryRepository) List(_ context.Context) ([]*entities.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.Entry, 0, len(r.entries))
	for _, stored := range r.entries {
		out = append(out, copyEntry(stored))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].Key().String() < out[j].Key().String()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out, nil
}

// ListLiveKeys returns the keys of all live entries.
func (r *EntryRepository) ListLiveKeys(ctx context.Context) ([]valueobjects.CanonicalURL, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]valueobjects.CanonicalURL, 0, len(all))
	for _, entry := range all {
		if entry.IsLive() {
			keys = append(keys, entry.Key())
		}
	}
	return keys, nil
}

// Delete removes the stored row. Unknown keys are a no-op.
func (r *EntryRepository) Delete(_ context.Context, key valueobjects.CanonicalURL) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key.String())
	return nil
}

func copyEntry(entry *entities.Entry) *entities.Entry {
	return entities.ReconstructEntry(
		entry.Key(),
		entry.RawURL(),
		entry.Snapshot(),
		entry.Status(),
		entry.LastError(),
		entry.CreatedAt(),
		entry.LastUpdatedAt(),
		entry.Version(),
	)
}
