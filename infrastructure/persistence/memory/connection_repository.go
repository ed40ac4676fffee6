package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"watchtower-backend/domain/core/entities"
	pkgerrors "watchtower-backend/pkg/errors"
)

// ConnectionRepository is an in-memory connection registry for tests and
// single-process deployments.
type ConnectionRepository struct {
	mu    sync.RWMutex
	conns map[string]*entities.Connection
}

// NewConnectionRepository creates an empty in-memory connection registry.
func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{
		conns: make(map[string]*entities.Connection),
	}
}

// Save registers or refreshes a connection.
func (r *ConnectionRepository) Save(_ context.Context, conn *entities.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[conn.ConnectionID()] = copyConnection(conn)
	return nil
}

// GetByID returns a copy of the stored connection.
func (r *ConnectionRepository) GetByID(_ context.Context, connectionID string) (*entities.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.conns[connectionID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("connection")
	}
	return copyConnection(stored), nil
}

// List returns every registered connection, oldest first.
func (r *ConnectionRepository) List(_ context.Context) ([]*entities.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, copyConnection(conn))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EstablishedAt().Before(out[j].EstablishedAt())
	})
	return out, nil
}

// Delete unregisters a connection. Unknown IDs are a no-op.
func (r *ConnectionRepository) Delete(_ context.Context, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, connectionID)
	return nil
}

// DeleteIdle unregisters connections whose last ping is at or before the
// cutoff.
func (r *ConnectionRepository) DeleteIdle(_ context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, conn := range r.conns {
		if !conn.LastPingAt().After(cutoff) {
			delete(r.conns, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func copyConnection(conn *entities.Connection) *entities.Connection {
	return entities.ReconstructConnection(
		conn.ConnectionID(),
		conn.UserID(),
		conn.Endpoint(),
		conn.EstablishedAt(),
		conn.LastPingAt(),
	)
}
