package di

import (
	"net/http"

	"go.uber.org/zap"

	"watchtower-backend/application/commands"
	"watchtower-backend/application/commands/bus"
	"watchtower-backend/application/notify"
	"watchtower-backend/application/ports"
	querybus "watchtower-backend/application/queries/bus"
	"watchtower-backend/application/scheduler"
	"watchtower-backend/application/worker"
	"watchtower-backend/infrastructure/config"
	"watchtower-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	EntryRepo      ports.EntryRepository
	AlertRepo      ports.AlertRepository
	ConnectionRepo ports.ConnectionRepository
	ObservationLog ports.ObservationLog
	EventPublisher ports.EventPublisher
	JobQueue       ports.Queue
	DeadLetters    ports.DeadLetterSink
	Fetcher        ports.Fetcher
	Notifier       *notify.Notifier
	Processor      *worker.Processor
	Scheduler      *scheduler.Scheduler
	Tracker        *commands.TrackHandler
	CommandBus     *bus.CommandBus
	QueryBus       *querybus.QueryBus
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
	HTTPHandler    http.Handler
}
