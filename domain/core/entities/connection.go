package entities

import (
	"time"

	pkgerrors "watchtower-backend/pkg/errors"
)

// Connection is one live WebSocket subscriber. The connection registry owns
// these exclusively: they are created on the subscribe handshake and
// destroyed on disconnect or idle expiry.
type Connection struct {
	connectionID  string
	userID        string
	endpoint      string
	establishedAt time.Time
	lastPingAt    time.Time
}

// NewConnection registers a freshly established subscriber connection.
func NewConnection(connectionID, userID, endpoint string, now time.Time) (*Connection, error) {
	if connectionID == "" {
		return nil, pkgerrors.NewValidationError("connection id cannot be empty")
	}
	if userID == "" {
		userID = "anon"
	}

	return &Connection{
		connectionID:  connectionID,
		userID:        userID,
		endpoint:      endpoint,
		establishedAt: now.UTC(),
		lastPingAt:    now.UTC(),
	}, nil
}

// ReconstructConnection rebuilds a connection from persisted state.
func ReconstructConnection(connectionID, userID, endpoint string, establishedAt, lastPingAt time.Time) *Connection {
	return &Connection{
		connectionID:  connectionID,
		userID:        userID,
		endpoint:      endpoint,
		establishedAt: establishedAt,
		lastPingAt:    lastPingAt,
	}
}

func (c *Connection) ConnectionID() string     { return c.connectionID }
func (c *Connection) UserID() string           { return c.userID }
func (c *Connection) Endpoint() string         { return c.endpoint }
func (c *Connection) EstablishedAt() time.Time { return c.establishedAt }
func (c *Connection) LastPingAt() time.Time    { return c.lastPingAt }

// Touch refreshes the heartbeat watermark.
func (c *Connection) Touch(now time.Time) {
	c.lastPingAt = now.UTC()
}

// IdleSince reports how long the connection has gone without a heartbeat.
func (c *Connection) IdleSince(now time.Time) time.Duration {
	return now.Sub(c.lastPingAt)
}
