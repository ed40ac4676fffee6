package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"watchtower-backend/application/notify"
	"watchtower-backend/application/scheduler"
	"watchtower-backend/application/worker"
	"watchtower-backend/domain/services"
	"watchtower-backend/infrastructure/broadcast"
	"watchtower-backend/infrastructure/config"
	"watchtower-backend/infrastructure/di"
	"watchtower-backend/infrastructure/fetch"
	memorymsg "watchtower-backend/infrastructure/messaging/memory"
	"watchtower-backend/infrastructure/persistence/memory"
	"watchtower-backend/interfaces/http/rest"
)

// stack is what main needs to run regardless of which backend built it.
type stack struct {
	logger  *zap.Logger
	handler http.Handler
	pool    *worker.Pool
	sched   *scheduler.Scheduler
}

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var st *stack
	if cfg.IsDevelopment() {
		st, err = buildLocalStack(cfg)
	} else {
		st, err = buildAWSStack(ctx, cfg)
	}
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      st.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Crawl workers and the re-crawl scheduler run in-process here.
	// Lambda deployments split them into their own functions.
	st.pool.Start(ctx)
	go st.sched.Run(ctx, cfg.ScheduleInterval)

	// Start server in goroutine
	go func() {
		st.logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			st.logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	st.logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		st.logger.Error("Server shutdown error", zap.Error(err))
	}

	cancel()
	st.pool.Wait()

	// Clean up resources
	if err := st.logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}

// buildAWSStack wires everything through the DI container.
func buildAWSStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pool := worker.NewPool(container.JobQueue, container.Processor, cfg.WorkerCount, cfg.WorkerBatch, container.Logger)

	return &stack{
		logger:  container.Logger,
		handler: container.HTTPHandler,
		pool:    pool,
		sched:   container.Scheduler,
	}, nil
}

// buildLocalStack wires an all-in-memory variant for development. No AWS
// credentials needed; push frames go to the log.
func buildLocalStack(cfg *config.Config) (*stack, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}

	entries := memory.NewEntryRepository()
	alerts := memory.NewAlertRepository()
	conns := memory.NewConnectionRepository()
	obsLog := memory.NewObservationLog()
	queue := memorymsg.NewQueue(0)
	dlq := memorymsg.NewDeadLetterSink()
	publisher := memorymsg.NewPublisher(logger)

	fetcher := fetch.NewScrapingBeeClient(
		cfg.ScrapingBeeAPIKey,
		logger,
		fetch.WithRenderJS(cfg.FetchRenderJS),
	)

	notifier := notify.NewNotifier(conns, broadcast.NewLogSender(logger), cfg.BroadcastSendTimeout, logger)
	detector := services.NewChangeDetector(cfg.PriceJumpPct)

	processor := worker.NewProcessor(
		worker.ProcessorConfig{
			MaxRetries:     cfg.MaxRetries,
			FetchTimeout:   cfg.FetchTimeout,
			RetryBaseDelay: cfg.RetryBaseDelay,
		},
		entries, alerts, obsLog, fetcher, queue, dlq, detector, notifier, publisher, logger,
	)
	pool := worker.NewPool(queue, processor, cfg.WorkerCount, cfg.WorkerBatch, logger)
	sched := scheduler.NewScheduler(entries, queue, notifier, cfg.ConnectionMaxIdle, logger)

	metrics := di.ProvideMetrics(nil, cfg)
	validator, err := di.ProvideJWTValidator(cfg)
	if err != nil {
		return nil, err
	}

	tracker := di.ProvideTrackHandler(entries, queue, publisher, logger)
	commandBus := di.ProvideCommandBus(entries, alerts, publisher, metrics, logger)
	queryBus := di.ProvideQueryBus(entries, alerts, obsLog, metrics, logger)

	router := rest.NewRouter(tracker, commandBus, queryBus, logger,
		rest.WithJWTValidator(validator),
		rest.WithCORS(cfg.EnableCORS),
	)

	return &stack{
		logger:  logger,
		handler: router.Setup(),
		pool:    pool,
		sched:   sched,
	}, nil
}
