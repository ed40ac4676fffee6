package ports

import (
	"context"
	"errors"
)

// ErrConnectionGone reports that the remote end of a delivery channel has
// disconnected. The notifier unregisters the connection when it sees this.
var ErrConnectionGone = errors.New("connection is gone")

// Sender pushes an encoded notification frame to one connection. The
// production implementation wraps the API Gateway management API; tests use
// an in-memory recorder.
type Sender interface {
	// Send writes data to the connection. It returns ErrConnectionGone
	// (possibly wrapped) when the peer has disconnected.
	Send(ctx context.Context, conn ConnectionTarget, data []byte) error
}

// ConnectionTarget identifies where a frame should be delivered.
type ConnectionTarget struct {
	ConnectionID string
	Endpoint     string
}
