// Package main implements the WebSocket $connect Lambda handler.
// It registers the connection so alert broadcasts can reach it.
package main

import (
	"context"
	"fmt"
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
	"watchtower-backend/pkg/auth"
)

var (
	logger    *zap.Logger
	notifier  *notify.Notifier
	validator *auth.JWTValidator
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
	// This handler never broadcasts, it only registers. The log sender
	// satisfies the notifier without an API Gateway client.
	notifier = notify.NewNotifier(conns, broadcast.NewLogSender(logger), cfg.BroadcastSendTimeout, logger)

	if cfg.JWTSecret != "" {
		validator, err = auth.NewJWTValidator(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
		if err != nil {
			log.Fatalf("Failed to create token validator: %v", err)
		}
	}
}

// resolveUser maps the optional token query parameter to a user ID.
// Browsers cannot set headers on WebSocket upgrades, so the token
// travels as ?token=.
func resolveUser(request events.APIGatewayWebsocketProxyRequest) (string, error) {
	token := request.QueryStringParameters["token"]
	if token == "" || validator == nil {
		return auth.AnonymousUserID, nil
	}

	user, err := validator.Validate(token)
	if err != nil {
		return "", err
	}
	return user.UserID, nil
}

func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID

	userID, err := resolveUser(request)
	if err != nil {
		logger.Warn("rejecting connection with bad token",
			zap.String("connection_id", connectionID),
			zap.Error(err),
		)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusUnauthorized,
			Body:       `{"error": "unauthorized"}`,
		}, nil
	}

	endpoint := fmt.Sprintf("https://%s/%s", request.RequestContext.DomainName, request.RequestContext.Stage)
	if err := notifier.Register(ctx, connectionID, userID, endpoint); err != nil {
		logger.Error("failed to register connection",
			zap.String("connection_id", connectionID),
			zap.Error(err),
		)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error": "internal server error"}`,
		}, nil
	}

	logger.Info("connection registered",
		zap.String("connection_id", connectionID),
		zap.String("user_id", userID),
	)
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func main() {
	lambda.Start(handler)
}
