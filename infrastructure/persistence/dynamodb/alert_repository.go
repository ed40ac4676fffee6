package dynamodb

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/entities"
	pkgerrors "watchtower-backend/pkg/errors"
)

// AlertRepository implements the AlertRepository interface using DynamoDB.
// Alerts share one partition sorted by creation time so the common "newest
// first" listing is a single reverse query; a GSI keys them by ID and a
// second one by entry for filtered listings.
type AlertRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewAlertRepository creates a new AlertRepository
func NewAlertRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// alertItem represents the DynamoDB item structure for an alert
type alertItem struct {
	PK         string      `dynamodbav:"PK"`
	SK         string      `dynamodbav:"SK"`
	GSI1PK     string      `dynamodbav:"GSI1PK"`
	GSI1SK     string      `dynamodbav:"GSI1SK"`
	GSI2PK     string      `dynamodbav:"GSI2PK"`
	GSI2SK     string      `dynamodbav:"GSI2SK"`
	EntityType string      `dynamodbav:"EntityType"`
	AlertID    string      `dynamodbav:"AlertID"`
	EntryKey   string      `dynamodbav:"AlertEntryKey"`
	Kind       string      `dynamodbav:"Kind"`
	Severity   string      `dynamodbav:"Severity"`
	Before     interface{} `dynamodbav:"Before,omitempty"`
	After      interface{} `dynamodbav:"After,omitempty"`
	IsRead     bool        `dynamodbav:"IsRead"`
	CreatedAt  int64       `dynamodbav:"CreatedAt"`
}

func alertSK(createdAt time.Time, id string) string {
	return fmt.Sprintf("TS#%020d#%s", createdAt.UTC().UnixNano(), id)
}

// Save persists an alert
func (r *AlertRepository) Save(ctx context.Context, alert *entities.Alert) error {
	sk := alertSK(alert.CreatedAt(), alert.ID())
	item := alertItem{
		PK:         "ALERT",
		SK:         sk,
		GSI1PK:     fmt.Sprintf("ALERTID#%s", alert.ID()),
		GSI1SK:     "META",
		GSI2PK:     fmt.Sprintf("ALERTENTRY#%s", alert.EntryKey()),
		GSI2SK:     sk,
		EntityType: "ALERT",
		AlertID:    alert.ID(),
		EntryKey:   alert.EntryKey(),
		Kind:       string(alert.Kind()),
		Severity:   string(alert.Severity()),
		Before:     alert.Payload().Before,
		After:      alert.Payload().After,
		IsRead:     alert.IsRead(),
		CreatedAt:  alert.CreatedAt().UTC().UnixNano(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		r.logger.Error("failed to save alert", zap.String("alertId", alert.ID()), zap.Error(err))
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// GetByID retrieves an alert by its ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*entities.Alert, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("ALERTID#%s", id)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("alert")
	}

	var item alertItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
	}
	return toAlertEntity(item), nil
}

// List retrieves alerts newest first, paginated by cursor. The cursor is
// the sort key of the last item on the previous page, base64 wrapped.
func (r *AlertRepository) List(ctx context.Context, query ports.AlertQuery) (*ports.AlertPage, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	pkName, pkValue, skName := "PK", "ALERT", "SK"
	indexName := ""
	if !query.EntryKey.IsZero() {
		pkName, pkValue, skName = "GSI2PK", fmt.Sprintf("ALERTENTRY#%s", query.EntryKey.String()), "GSI2SK"
		indexName = "GSI2"
	}

	keyCond := expression.Key(pkName).Equal(expression.Value(pkValue))
	if query.Cursor != "" {
		lastSK, err := decodeCursor(query.Cursor)
		if err != nil {
			return nil, pkgerrors.NewValidationError("malformed cursor")
		}
		keyCond = keyCond.And(expression.Key(skName).LessThan(expression.Value(lastSK)))
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if query.UnreadOnly {
		builder = builder.WithFilter(expression.Name("IsRead").Equal(expression.Value(false)))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build alert query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(limit)),
	}
	if indexName != "" {
		input.IndexName = aws.String(indexName)
	}

	page := &ports.AlertPage{Alerts: []*entities.Alert{}}
	var lastSK string

	// A filtered query may return short pages; keep following the native
	// pagination until the requested page is full or the data runs out.
	for len(page.Alerts) < limit {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list alerts: %w", err)
		}

		for _, raw := range out.Items {
			if len(page.Alerts) >= limit {
				break
			}
			var item alertItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("skipping malformed alert item", zap.Error(err))
				continue
			}
			page.Alerts = append(page.Alerts, toAlertEntity(item))
			if indexName == "" {
				lastSK = item.SK
			} else {
				lastSK = item.GSI2SK
			}
		}

		if out.LastEvaluatedKey == nil {
			lastSK = ""
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	if lastSK != "" {
		page.NextCursor = encodeCursor(lastSK)
	}
	return page, nil
}

func toAlertEntity(item alertItem) *entities.Alert {
	return entities.ReconstructAlert(
		item.AlertID,
		item.EntryKey,
		entities.AlertKind(item.Kind),
		entities.AlertSeverity(item.Severity),
		entities.AlertPayload{Before: item.Before, After: item.After},
		time.Unix(0, item.CreatedAt).UTC(),
		item.IsRead,
	)
}

func encodeCursor(sk string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(sk))
}

func decodeCursor(cursor string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
