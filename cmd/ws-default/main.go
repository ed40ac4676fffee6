// Package main implements the WebSocket default route Lambda handler.
// Clients send periodic pings over the socket; each ping refreshes the
// connection's idle watermark so the scheduler's sweep keeps it alive.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"watchtower-backend/application/notify"
	"watchtower-backend/application/ports"
	"watchtower-backend/infrastructure/broadcast"
	"watchtower-backend/infrastructure/config"
	"watchtower-backend/infrastructure/persistence/dynamodb"
)

var (
	logger   *zap.Logger
	notifier *notify.Notifier
	sender   ports.Sender
)

// frame is the client-to-server message shape.
type frame struct {
	Action string `json:"action"`
}

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
	sender = broadcast.NewAPIGatewaySenderWithConfig(awsCfg, logger)
	notifier = notify.NewNotifier(conns, sender, cfg.BroadcastSendTimeout, logger)
}

func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID

	var msg frame
	if err := json.Unmarshal([]byte(request.Body), &msg); err != nil || msg.Action != "ping" {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Body:       `{"error": "unsupported message"}`,
		}, nil
	}

	if err := notifier.Touch(ctx, connectionID); err != nil {
		logger.Warn("failed to refresh connection",
			zap.String("connection_id", connectionID),
			zap.Error(err),
		)
	}

	endpoint := fmt.Sprintf("https://%s/%s", request.RequestContext.DomainName, request.RequestContext.Stage)
	pong, _ := json.Marshal(map[string]interface{}{
		"type":      "pong",
		"timestamp": time.Now().Unix(),
	})
	target := ports.ConnectionTarget{ConnectionID: connectionID, Endpoint: endpoint}
	if err := sender.Send(ctx, target, pong); err != nil {
		logger.Warn("failed to send pong",
			zap.String("connection_id", connectionID),
			zap.Error(err),
		)
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func main() {
	lambda.Start(handler)
}
