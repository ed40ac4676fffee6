package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"

	"watchtower-backend/application/ports"
)

// APIGatewaySender implements the Sender interface on the API Gateway
// management API. Clients per endpoint are cached since connections from
// one deployment share the same callback URL.
type APIGatewaySender struct {
	awsConfig aws.Config
	mu        sync.Mutex
	clients   map[string]*apigatewaymanagementapi.Client
	logger    *zap.Logger
}

// NewAPIGatewaySender creates a sender using the default AWS configuration.
func NewAPIGatewaySender(ctx context.Context, logger *zap.Logger) (*APIGatewaySender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewAPIGatewaySenderWithConfig(cfg, logger), nil
}

// NewAPIGatewaySenderWithConfig creates a sender from an existing AWS
// configuration.
func NewAPIGatewaySenderWithConfig(cfg aws.Config, logger *zap.Logger) *APIGatewaySender {
	return &APIGatewaySender{
		awsConfig: cfg,
		clients:   make(map[string]*apigatewaymanagementapi.Client),
		logger:    logger,
	}
}

// Send posts data to the connection. A gone peer maps to ErrConnectionGone
// so the notifier can unregister it.
func (s *APIGatewaySender) Send(ctx context.Context, target ports.ConnectionTarget, data []byte) error {
	client := s.clientFor(target.Endpoint)

	_, err := client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(target.ConnectionID),
		Data:         data,
	})
	if err != nil {
		var gone *types.GoneException
		if errors.As(err, &gone) {
			return fmt.Errorf("%w: %s", ports.ErrConnectionGone, target.ConnectionID)
		}
		return fmt.Errorf("failed to post to connection: %w", err)
	}
	return nil
}

func (s *APIGatewaySender) clientFor(endpoint string) *apigatewaymanagementapi.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[endpoint]; ok {
		return client
	}

	client := apigatewaymanagementapi.NewFromConfig(s.awsConfig, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	s.clients[endpoint] = client
	return client
}
