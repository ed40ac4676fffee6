package broadcast

import (
	"context"

	"go.uber.org/zap"

	"watchtower-backend/application/ports"
)

// LogSender implements the Sender interface by logging frames. Local runs
// without a push transport use it so the rest of the pipeline behaves
// exactly as in production.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that logs instead of delivering.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the frame and reports success.
func (s *LogSender) Send(_ context.Context, target ports.ConnectionTarget, data []byte) error {
	s.logger.Debug("notification frame",
		zap.String("connectionId", target.ConnectionID),
		zap.ByteString("data", data),
	)
	return nil
}
