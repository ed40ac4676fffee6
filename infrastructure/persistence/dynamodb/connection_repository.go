package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"watchtower-backend/domain/core/entities"
	pkgerrors "watchtower-backend/pkg/errors"
)

// connectionTTL ages abandoned connection rows out of the table even when
// the idle prune never ran, typically after a crashed scheduler.
const connectionTTL = 2 * time.Hour

// ConnectionRepository implements the ConnectionRepository interface using
// DynamoDB so every Lambda instance shares one registry.
type ConnectionRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewConnectionRepository creates a new ConnectionRepository
func NewConnectionRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *ConnectionRepository {
	return &ConnectionRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// connectionItem represents the DynamoDB item structure for a connection
type connectionItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	GSI1PK        string `dynamodbav:"GSI1PK"`
	GSI1SK        string `dynamodbav:"GSI1SK"`
	EntityType    string `dynamodbav:"EntityType"`
	ConnectionID  string `dynamodbav:"ConnectionID"`
	UserID        string `dynamodbav:"UserID"`
	Endpoint      string `dynamodbav:"Endpoint"`
	EstablishedAt int64  `dynamodbav:"EstablishedAt"`
	LastPingAt    int64  `dynamodbav:"LastPingAt"`
	TTL           int64  `dynamodbav:"TTL"`
}

func connectionPK(connectionID string) string {
	return fmt.Sprintf("CONN#%s", connectionID)
}

func pingSK(lastPingAt time.Time, connectionID string) string {
	return fmt.Sprintf("PING#%020d#%s", lastPingAt.UTC().UnixNano(), connectionID)
}

// Save registers or refreshes a connection
func (r *ConnectionRepository) Save(ctx context.Context, conn *entities.Connection) error {
	item := connectionItem{
		PK:            connectionPK(conn.ConnectionID()),
		SK:            "META",
		GSI1PK:        "CONN",
		GSI1SK:        pingSK(conn.LastPingAt(), conn.ConnectionID()),
		EntityType:    "CONNECTION",
		ConnectionID:  conn.ConnectionID(),
		UserID:        conn.UserID(),
		Endpoint:      conn.Endpoint(),
		EstablishedAt: conn.EstablishedAt().UTC().Unix(),
		LastPingAt:    conn.LastPingAt().UTC().Unix(),
		TTL:           time.Now().Add(connectionTTL).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		r.logger.Error("failed to save connection",
			zap.String("connectionId", conn.ConnectionID()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save connection: %w", err)
	}
	return nil
}

// GetByID retrieves a connection by its ID
func (r *ConnectionRepository) GetByID(ctx context.Context, connectionID string) (*entities.Connection, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: connectionPK(connectionID)},
			"SK": &types.AttributeValueMemberS{Value: "META"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("connection")
	}

	var item connectionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
	}
	return toConnectionEntity(item), nil
}

// List retrieves every registered connection
func (r *ConnectionRepository) List(ctx context.Context) ([]*entities.Connection, error) {
	items, err := r.queryAll(ctx, "")
	if err != nil {
		return nil, err
	}

	out := make([]*entities.Connection, 0, len(items))
	for _, item := range items {
		out = append(out, toConnectionEntity(item))
	}
	return out, nil
}

// Delete unregisters a connection. Unknown IDs are a no-op.
func (r *ConnectionRepository) Delete(ctx context.Context, connectionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: connectionPK(connectionID)},
			"SK": &types.AttributeValueMemberS{Value: "META"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}

// DeleteIdle unregisters connections whose last ping is at or before the
// cutoff
func (r *ConnectionRepository) DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	// The ping timestamp is the GSI sort key, so idle rows are one bounded
	// query instead of a scan.
	upperBound := pingSK(cutoff.Add(time.Nanosecond), "")
	items, err := r.queryAll(ctx, upperBound)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, item := range items {
		if err := r.Delete(ctx, item.ConnectionID); err != nil {
			r.logger.Warn("failed to delete idle connection",
				zap.String("connectionId", item.ConnectionID),
				zap.Error(err),
			)
			continue
		}
		removed = append(removed, item.ConnectionID)
	}
	return removed, nil
}

// queryAll pages through the connection partition. A non-empty skBound
// restricts results to sort keys strictly below it.
func (r *ConnectionRepository) queryAll(ctx context.Context, skBound string) ([]connectionItem, error) {
	keyCond := "GSI1PK = :pk"
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: "CONN"},
	}
	if skBound != "" {
		keyCond = "GSI1PK = :pk AND GSI1SK < :bound"
		values[":bound"] = &types.AttributeValueMemberS{Value: skBound}
	}

	var items []connectionItem
	var startKey map[string]types.AttributeValue

	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String("GSI1"),
			KeyConditionExpression:    aws.String(keyCond),
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list connections: %w", err)
		}

		for _, raw := range out.Items {
			var item connectionItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("skipping malformed connection item", zap.Error(err))
				continue
			}
			items = append(items, item)
		}

		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func toConnectionEntity(item connectionItem) *entities.Connection {
	return entities.ReconstructConnection(
		item.ConnectionID,
		item.UserID,
		item.Endpoint,
		time.Unix(item.EstablishedAt, 0).UTC(),
		time.Unix(item.LastPingAt, 0).UTC(),
	)
}
