package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/valueobjects"
)

// observationTTL bounds how long raw price points are kept. The widest
// series range is a month, plus slack for clock skew.
const observationTTL = 35 * 24 * time.Hour

// ObservationLog implements the ObservationLog interface using DynamoDB.
// Rows are keyed by entry and sorted by observation time, so a series query
// is one range read.
type ObservationLog struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewObservationLog creates a new ObservationLog
func NewObservationLog(client *dynamodb.Client, tableName string, logger *zap.Logger) *ObservationLog {
	return &ObservationLog{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// observationItem represents the DynamoDB item structure for a price point
type observationItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	EntityType string  `dynamodbav:"EntityType"`
	Price      float64 `dynamodbav:"Price"`
	ObservedAt int64   `dynamodbav:"ObservedAt"`
	TTL        int64   `dynamodbav:"TTL"`
}

func observationPK(key valueobjects.CanonicalURL) string {
	return fmt.Sprintf("OBS#%s", key.String())
}

func observationSK(observedAt time.Time) string {
	return fmt.Sprintf("TS#%020d", observedAt.UTC().UnixNano())
}

// Append records one price observation for the entry
func (l *ObservationLog) Append(ctx context.Context, key valueobjects.CanonicalURL, price float64, observedAt time.Time) error {
	item := observationItem{
		PK:         observationPK(key),
		SK:         observationSK(observedAt),
		EntityType: "OBSERVATION",
		Price:      price,
		ObservedAt: observedAt.UTC().UnixNano(),
		TTL:        observedAt.Add(observationTTL).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}

	if _, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("failed to append observation: %w", err)
	}
	return nil
}

// Series retrieves bucketed price history for an entry over a range. Each
// bucket carries the average of the prices observed inside it.
func (l *ObservationLog) Series(ctx context.Context, key valueobjects.CanonicalURL, rng ports.SeriesRange) ([]ports.PricePoint, error) {
	window, bucket := rng.Window()
	since := time.Now().Add(-window)

	type bucketAgg struct {
		sum   float64
		count int
	}
	buckets := make(map[int64]*bucketAgg)
	var startKey map[string]types.AttributeValue

	for {
		out, err := l.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(l.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND SK >= :since"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":    &types.AttributeValueMemberS{Value: observationPK(key)},
				":since": &types.AttributeValueMemberS{Value: observationSK(since)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query observations: %w", err)
		}

		for _, raw := range out.Items {
			var item observationItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				l.logger.Warn("skipping malformed observation item", zap.Error(err))
				continue
			}
			observedAt := time.Unix(0, item.ObservedAt).UTC()
			start := observedAt.Truncate(bucket).Unix()
			agg, ok := buckets[start]
			if !ok {
				agg = &bucketAgg{}
				buckets[start] = agg
			}
			agg.sum += item.Price
			agg.count++
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	starts := make([]int64, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	points := make([]ports.PricePoint, 0, len(starts))
	for _, start := range starts {
		agg := buckets[start]
		points = append(points, ports.PricePoint{
			Timestamp: time.Unix(start, 0).UTC(),
			Price:     agg.sum / float64(agg.count),
		})
	}
	return points, nil
}
