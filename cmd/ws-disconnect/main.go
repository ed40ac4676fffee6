// Package main implements the WebSocket $disconnect Lambda handler.
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"watchtower-backend/application/notify"
	"watchtower-backend/infrastructure/broadcast"
	"watchtower-backend/infrastructure/config"
	"watchtower-backend/infrastructure/persistence/dynamodb"
)

var (
	logger   *zap.Logger
	notifier *notify.Notifier
)

func init() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err = zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	conns := dynamodb.NewConnectionRepository(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, logger)
	notifier = notify.NewNotifier(conns, broadcast.NewLogSender(logger), cfg.BroadcastSendTimeout, logger)
}

func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID

	if err := notifier.Unregister(ctx, connectionID); err != nil {
		// The scheduler's idle sweep will catch anything missed here.
		logger.Warn("failed to unregister connection",
			zap.String("connection_id", connectionID),
			zap.Error(err),
		)
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func main() {
	lambda.Start(handler)
}
