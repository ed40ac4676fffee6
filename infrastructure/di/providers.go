package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"watchtower-backend/application/commands"
	"watchtower-backend/application/commands/bus"
	"watchtower-backend/application/notify"
	"watchtower-backend/application/ports"
	"watchtower-backend/application/queries"
	querybus "watchtower-backend/application/queries/bus"
	queryhandlers "watchtower-backend/application/queries/handlers"
	"watchtower-backend/application/scheduler"
	"watchtower-backend/application/worker"
	"watchtower-backend/domain/services"
	"watchtower-backend/infrastructure/broadcast"
	"watchtower-backend/infrastructure/config"
	"watchtower-backend/infrastructure/fetch"
	"watchtower-backend/infrastructure/messaging/eventbridge"
	"watchtower-backend/infrastructure/messaging/sqs"
	"watchtower-backend/infrastructure/persistence/dynamodb"
	"watchtower-backend/interfaces/http/rest"
	"watchtower-backend/interfaces/http/rest/middleware"
	"watchtower-backend/pkg/auth"
	"watchtower-backend/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideSQSClient creates an SQS client
func ProvideSQSClient(awsCfg aws.Config) *awssqs.Client {
	return awssqs.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideEntryRepository creates the watchlist entry repository
func ProvideEntryRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.EntryRepository {
	return dynamodb.NewEntryRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideAlertRepository creates the alert repository
func ProvideAlertRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.AlertRepository {
	return dynamodb.NewAlertRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideConnectionRepository creates the push connection repository
func ProvideConnectionRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.ConnectionRepository {
	return dynamodb.NewConnectionRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideObservationLog creates the price history log
func ProvideObservationLog(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.ObservationLog {
	return dynamodb.NewObservationLog(client, cfg.DynamoDBTable, logger)
}

// ProvideEventPublisher creates the EventBridge publisher
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	return eventbridge.NewPublisher(client, cfg.EventBusName, "watchtower", logger)
}

// ProvideJobQueue creates the SQS-backed crawl job queue
func ProvideJobQueue(client *awssqs.Client, cfg *config.Config, logger *zap.Logger) ports.Queue {
	return sqs.NewQueue(client, cfg.JobQueueURL, logger)
}

// ProvideDeadLetterSink creates the dead letter queue sink
func ProvideDeadLetterSink(client *awssqs.Client, cfg *config.Config, logger *zap.Logger) ports.DeadLetterSink {
	return sqs.NewDeadLetterSink(client, cfg.DeadLetterQueueURL, logger)
}

// ProvideFetcher creates the ScrapingBee-backed page fetcher
func ProvideFetcher(cfg *config.Config, logger *zap.Logger) ports.Fetcher {
	return fetch.NewScrapingBeeClient(
		cfg.ScrapingBeeAPIKey,
		logger,
		fetch.WithRenderJS(cfg.FetchRenderJS),
	)
}

// ProvideSender creates the API Gateway management sender for push frames
func ProvideSender(awsCfg aws.Config, logger *zap.Logger) ports.Sender {
	return broadcast.NewAPIGatewaySenderWithConfig(awsCfg, logger)
}

// ProvideNotifier creates the connection registry and broadcaster
func ProvideNotifier(
	conns ports.ConnectionRepository,
	sender ports.Sender,
	cfg *config.Config,
	logger *zap.Logger,
) *notify.Notifier {
	return notify.NewNotifier(conns, sender, cfg.BroadcastSendTimeout, logger)
}

// ProvideChangeDetector creates the change detection service
func ProvideChangeDetector(cfg *config.Config) *services.ChangeDetector {
	return services.NewChangeDetector(cfg.PriceJumpPct)
}

// ProvideProcessor creates the crawl job processor
func ProvideProcessor(
	cfg *config.Config,
	entries ports.EntryRepository,
	alerts ports.AlertRepository,
	obsLog ports.ObservationLog,
	fetcher ports.Fetcher,
	queue ports.Queue,
	dlq ports.DeadLetterSink,
	detector *services.ChangeDetector,
	notifier *notify.Notifier,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *worker.Processor {
	return worker.NewProcessor(
		worker.ProcessorConfig{
			MaxRetries:     cfg.MaxRetries,
			FetchTimeout:   cfg.FetchTimeout,
			RetryBaseDelay: cfg.RetryBaseDelay,
		},
		entries, alerts, obsLog, fetcher, queue, dlq, detector, notifier, publisher, logger,
	)
}

// ProvideScheduler creates the periodic re-crawl scheduler
func ProvideScheduler(
	entries ports.EntryRepository,
	queue ports.Queue,
	notifier *notify.Notifier,
	cfg *config.Config,
	logger *zap.Logger,
) *scheduler.Scheduler {
	return scheduler.NewScheduler(entries, queue, notifier, cfg.ConnectionMaxIdle, logger)
}

// ProvideMetrics creates metrics instance
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config) *observability.Metrics {
	namespace := fmt.Sprintf("Watchtower/%s", cfg.Environment)
	if !cfg.EnableMetrics {
		// Nil client makes every record call a no-op.
		return observability.NewMetrics(namespace, nil)
	}
	return observability.NewMetrics(namespace, client)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer() *observability.Tracer {
	return observability.NewTracer("watchtower")
}

// ProvideJWTValidator creates the bearer token validator. Without a
// configured secret the API runs anonymous-only.
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
}

// ProvideRateLimiter creates a rate limiter shared across Lambda instances
func ProvideRateLimiter(client *awsdynamodb.Client, cfg *config.Config) middleware.Limiter {
	return auth.NewDistributedIPRateLimiter(client, cfg.DynamoDBTable, 300)
}

// ProvideTrackHandler creates the track command handler. It sits outside
// the command bus because callers need its per-URL result back.
func ProvideTrackHandler(
	entries ports.EntryRepository,
	queue ports.Queue,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *commands.TrackHandler {
	return commands.NewTrackHandler(entries, queue, publisher, logger)
}

// CommandHandlerAdapter adapts specific command handlers to the generic interface
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) error
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) error {
	return a.handler(ctx, cmd)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	entries ports.EntryRepository,
	alerts ports.AlertRepository,
	eventPublisher ports.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *bus.CommandBus {
	commandBus := bus.NewCommandBus()
	middlewares := []bus.Middleware{
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	}

	untrackHandler := commands.NewUntrackHandler(entries, eventPublisher, logger)
	commandBus.Register(commands.UntrackURLCommand{}, bus.Chain(&CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			untrackCmd, ok := cmd.(commands.UntrackURLCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			return untrackHandler.Handle(ctx, untrackCmd)
		},
	}, middlewares...))

	markReadHandler := commands.NewMarkAlertReadHandler(alerts)
	commandBus.Register(commands.MarkAlertReadCommand{}, bus.Chain(&CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			markCmd, ok := cmd.(commands.MarkAlertReadCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			return markReadHandler.Handle(ctx, markCmd)
		},
	}, middlewares...))

	return commandBus
}

// QueryHandlerAdapter adapts specific query handlers to the generic interface
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	entries ports.EntryRepository,
	alerts ports.AlertRepository,
	obsLog ports.ObservationLog,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *querybus.QueryBus {
	queryBus := querybus.NewQueryBus()
	middlewares := []querybus.Middleware{
		querybus.LoggingMiddleware(logger),
		querybus.MetricsMiddleware(metrics),
	}

	listWatchlistHandler := queryhandlers.NewListWatchlistHandler(entries, logger)
	queryBus.Register(queries.ListWatchlistQuery{}, querybus.Chain(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			listQuery, ok := query.(queries.ListWatchlistQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listWatchlistHandler.Handle(ctx, listQuery)
		},
	}, middlewares...))

	listAlertsHandler := queryhandlers.NewListAlertsHandler(alerts, logger)
	queryBus.Register(queries.ListAlertsQuery{}, querybus.Chain(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			listQuery, ok := query.(queries.ListAlertsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listAlertsHandler.Handle(ctx, listQuery)
		},
	}, middlewares...))

	priceSeriesHandler := queryhandlers.NewPriceSeriesHandler(entries, obsLog, logger)
	queryBus.Register(queries.PriceSeriesQuery{}, querybus.Chain(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			seriesQuery, ok := query.(queries.PriceSeriesQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return priceSeriesHandler.Handle(ctx, seriesQuery)
		},
	}, middlewares...))

	return queryBus
}

// ProvideHTTPHandler assembles the REST router
func ProvideHTTPHandler(
	tracker *commands.TrackHandler,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	validator *auth.JWTValidator,
	limiter middleware.Limiter,
	cfg *config.Config,
	logger *zap.Logger,
) http.Handler {
	router := rest.NewRouter(tracker, commandBus, queryBus, logger,
		rest.WithJWTValidator(validator),
		rest.WithRateLimiter(limiter),
		rest.WithCORS(cfg.EnableCORS),
	)
	return router.Setup()
}
