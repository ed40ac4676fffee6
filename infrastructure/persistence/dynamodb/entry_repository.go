package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"watchtower-backend/domain/core/entities"
	"watchtower-backend/domain/core/valueobjects"
	pkgerrors "watchtower-backend/pkg/errors"
)

// EntryRepository implements the EntryRepository interface using DynamoDB
type EntryRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewEntryRepository creates a new EntryRepository
func NewEntryRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *EntryRepository {
	return &EntryRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// entryItem represents the DynamoDB item structure for a watchlist entry
type entryItem struct {
	PK            string   `dynamodbav:"PK"`
	SK            string   `dynamodbav:"SK"`
	GSI1PK        string   `dynamodbav:"GSI1PK"`
	GSI1SK        string   `dynamodbav:"GSI1SK"`
	EntityType    string   `dynamodbav:"EntityType"`
	Key           string   `dynamodbav:"EntryKey"`
	RawURL        string   `dynamodbav:"RawURL"`
	Product       string   `dynamodbav:"Product,omitempty"`
	Price         *float64 `dynamodbav:"Price,omitempty"`
	StockStatus   string   `dynamodbav:"StockStatus,omitempty"`
	ImageURL      string   `dynamodbav:"ImageURL,omitempty"`
	Status        string   `dynamodbav:"Status"`
	LastError     string   `dynamodbav:"LastError,omitempty"`
	CreatedAt     string   `dynamodbav:"CreatedAt"`
	LastUpdatedAt int64    `dynamodbav:"LastUpdatedAt"`
	Version       int      `dynamodbav:"Version"`
}

func entryPK(key valueobjects.CanonicalURL) string {
	return fmt.Sprintf("ENTRY#%s", key.String())
}

func toItem(entry *entities.Entry) entryItem {
	snap := entry.Snapshot()
	item := entryItem{
		PK:            entryPK(entry.Key()),
		SK:            "META",
		GSI1PK:        "ENTRY",
		GSI1SK:        fmt.Sprintf("CREATED#%s#%s", entry.CreatedAt().UTC().Format(time.RFC3339Nano), entry.Key().String()),
		EntityType:    "ENTRY",
		Key:           entry.Key().String(),
		RawURL:        entry.RawURL(),
		Product:       snap.Product,
		Price:         snap.Price,
		StockStatus:   string(snap.StockStatus),
		ImageURL:      snap.ImageURL,
		Status:        string(entry.Status()),
		LastError:     entry.LastError(),
		CreatedAt:     entry.CreatedAt().UTC().Format(time.RFC3339Nano),
		LastUpdatedAt: entry.LastUpdatedAt().UTC().UnixNano(),
		Version:       entry.Version(),
	}
	if entry.LastUpdatedAt().IsZero() {
		item.LastUpdatedAt = 0
	}
	return item
}

// Create persists a brand new entry. The put is conditional on the key not
// existing, so concurrent tracks of one fresh URL resolve to exactly one
// creation.
func (r *EntryRepository) Create(ctx context.Context, entry *entities.Entry) error {
	av, err := attributevalue.MarshalMap(toItem(entry))
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return pkgerrors.NewConflictError("entry already tracked")
		}
		r.logger.Error("failed to create entry",
			zap.String("key", entry.Key().String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

// Save persists an entry update. A conditional write keeps the newer-wins
// rule: a row already carrying a later observation watermark rejects the put.
func (r *EntryRepository) Save(ctx context.Context, entry *entities.Entry) error {
	item := toItem(entry)

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR LastUpdatedAt <= :watermark"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":watermark": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", item.LastUpdatedAt)},
		},
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return pkgerrors.NewConflictError("stored entry is newer")
		}
		r.logger.Error("failed to save entry",
			zap.String("key", entry.Key().String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save entry: %w", err)
	}

	return nil
}

// GetByKey retrieves an entry by its canonical key
func (r *EntryRepository) GetByKey(ctx context.Context, key valueobjects.CanonicalURL) (*entities.Entry, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: entryPK(key)},
			"SK": &types.AttributeValueMemberS{Value: "META"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("entry")
	}

	var item entryItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return r.toEntity(item)
}

// List retrieves all entries ordered by creation time
func (r *EntryRepository) List(ctx context.Context) ([]*entities.Entry, error) {
	var out []*entities.Entry
	var startKey map[string]types.AttributeValue

	for {
		res, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("GSI1"),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: "ENTRY"},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list entries: %w", err)
		}

		for _, raw := range res.Items {
			var item entryItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("skipping malformed entry item", zap.Error(err))
				continue
			}
			entry, err := r.toEntity(item)
			if err != nil {
				r.logger.Warn("skipping unreadable entry item", zap.String("key", item.Key), zap.Error(err))
				continue
			}
			out = append(out, entry)
		}

		if res.LastEvaluatedKey == nil {
			return out, nil
		}
		startKey = res.LastEvaluatedKey
	}
}

// ListLiveKeys returns the canonical keys of all live entries
func (r *EntryRepository) ListLiveKeys(ctx context.Context) ([]valueobjects.CanonicalURL, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]valueobjects.CanonicalURL, 0, len(all))
	for _, entry := range all {
		if entry.IsLive() {
			keys = append(keys, entry.Key())
		}
	}
	return keys, nil
}

// Delete hard-deletes the entry row
func (r *EntryRepository) Delete(ctx context.Context, key valueobjects.CanonicalURL) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: entryPK(key)},
			"SK": &types.AttributeValueMemberS{Value: "META"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func (r *EntryRepository) toEntity(item entryItem) (*entities.Entry, error) {
	key, err := valueobjects.NewCanonicalURL(item.Key)
	if err != nil {
		return nil, fmt.Errorf("stored entry has invalid key %q: %w", item.Key, err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("stored entry has invalid createdAt: %w", err)
	}

	var lastUpdatedAt time.Time
	if item.LastUpdatedAt > 0 {
		lastUpdatedAt = time.Unix(0, item.LastUpdatedAt).UTC()
	}

	snap := valueobjects.Snapshot{
		Product:     item.Product,
		Price:       item.Price,
		StockStatus: valueobjects.ParseStockStatus(item.StockStatus),
		ImageURL:    item.ImageURL,
	}

	return entities.ReconstructEntry(
		key,
		item.RawURL,
		snap,
		entities.EntryStatus(item.Status),
		item.LastError,
		createdAt,
		lastUpdatedAt,
		item.Version,
	), nil
}
