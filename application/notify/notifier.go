package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/events"
)

// Notifier fans watchlist notifications out to every registered delivery
// channel. Delivery is best effort: a slow or dead connection never blocks
// the rest of the broadcast, and a gone connection is unregistered on sight.
type Notifier struct {
	conns       ports.ConnectionRepository
	sender      ports.Sender
	sendTimeout time.Duration
	logger      *zap.Logger
}

// NewNotifier creates a notifier. sendTimeout bounds each individual send.
func NewNotifier(
	conns ports.ConnectionRepository,
	sender ports.Sender,
	sendTimeout time.Duration,
	logger *zap.Logger,
) *Notifier {
	if sendTimeout <= 0 {
		sendTimeout = 2 * time.Second
	}
	return &Notifier{
		conns:       conns,
		sender:      sender,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Register adds a connection to the registry. Re-registering an existing ID
// refreshes it.
func (n *Notifier) Register(ctx context.Context, connectionID, userID, endpoint string) error {
	conn, err := entities.NewConnection(connectionID, userID, endpoint, time.Now())
	if err != nil {
		return err
	}
	return n.conns.Save(ctx, conn)
}

// Unregister drops a connection. Unknown IDs are a no-op.
func (n *Notifier) Unregister(ctx context.Context, connectionID string) error {
	return n.conns.Delete(ctx, connectionID)
}

// Touch refreshes a connection's idle clock, typically on a client ping.
func (n *Notifier) Touch(ctx context.Context, connectionID string) error {
	conn, err := n.conns.GetByID(ctx, connectionID)
	if err != nil {
		return err
	}
	conn.Touch(time.Now())
	return n.conns.Save(ctx, conn)
}

// Broadcast encodes the notification once and sends it to every registered
// connection. It returns how many sends succeeded; per-connection failures
// are logged, not returned.
func (n *Notifier) Broadcast(ctx context.Context, notification events.Notification) (int, error) {
	data, err := events.EncodeNotification(notification)
	if err != nil {
		return 0, err
	}

	conns, err := n.conns.List(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, conn := range conns {
		if err := n.send(ctx, conn, data); err != nil {
			if errors.Is(err, ports.ErrConnectionGone) {
				n.logger.Info("dropping gone connection",
					zap.String("connectionId", conn.ConnectionID()),
				)
				if delErr := n.conns.Delete(ctx, conn.ConnectionID()); delErr != nil {
					n.logger.Warn("failed to drop gone connection",
						zap.String("connectionId", conn.ConnectionID()),
						zap.Error(delErr),
					)
				}
				continue
			}
			n.logger.Warn("failed to deliver notification",
				zap.String("connectionId", conn.ConnectionID()),
				zap.String("type", notification.NotificationType()),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}

	return delivered, nil
}

// Prune unregisters connections idle for longer than maxIdle.
func (n *Notifier) Prune(ctx context.Context, maxIdle time.Duration) ([]string, error) {
	return n.conns.DeleteIdle(ctx, time.Now().Add(-maxIdle))
}

func (n *Notifier) send(ctx context.Context, conn *entities.Connection, data []byte) error {
	sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()

	return n.sender.Send(sendCtx, ports.ConnectionTarget{
		ConnectionID: conn.ConnectionID(),
		Endpoint:     conn.Endpoint(),
	}, data)
}
