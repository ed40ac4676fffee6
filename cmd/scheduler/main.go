package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"watchtower-backend/infrastructure/config"
	"watchtower-backend/infrastructure/di"
)

// container holds the dependency injection container
var container *di.Container

// init runs during cold start
func init() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
}

// Handler fires on the EventBridge schedule. Each tick re-enqueues every
// live watchlist entry for a fresh crawl and prunes silent connections.
func Handler(ctx context.Context, event events.CloudWatchEvent) error {
	container.Logger.Info("schedule tick",
		zap.String("source", event.Source),
		zap.Time("fired_at", event.Time),
	)

	if err := container.Scheduler.Tick(ctx); err != nil {
		container.Logger.Error("schedule tick failed", zap.Error(err))
		return err
	}

	if err := container.Metrics.Flush(ctx); err != nil {
		container.Logger.Warn("metrics flush failed", zap.Error(err))
	}
	return nil
}

func main() {
	lambda.Start(Handler)
}
