package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/geobus/backend-go/internal/config"
	"github.com/geobus/backend-go/internal/models"
	"github.com/rs/zerolog/log"
)

// DynamoDBClient defines the interface for DynamoDB operations we need
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// LatestPositionRecord is one item per bus, keyed by busId.
type LatestPositionRecord struct {
	BusID           string  `dynamodbav:"busId"`
	PositionID      int64   `dynamodbav:"positionId"`
	Latitude        float64 `dynamodbav:"latitude"`
	Longitude       float64 `dynamodbav:"longitude"`
	Line            string  `dynamodbav:"line"`
	TimestampMillis int64   `dynamodbav:"timestampMillis"`
	LastUpdated     int64   `dynamodbav:"lastUpdated"`
	TTL             int64   `dynamodbav:"ttl"`
}

func (r LatestPositionRecord) position() models.BusPosition {
	return models.BusPosition{
		ID:        r.PositionID,
		BusID:     r.BusID,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Line:      r.Line,
		Timestamp: time.UnixMilli(r.TimestampMillis).UTC(),
	}
}

// DynamoLatestPositionCache caches the last known position of each bus.
// Writes never replace a newer position with an older one.
type DynamoLatestPositionCache struct {
	client DynamoDBClient
	config *config.CacheConfig
	table  string
	clock  clock
	sleep  func(time.Duration)
}

func NewDynamoLatestPositionCache(client DynamoDBClient, cacheConfig *config.CacheConfig) *DynamoLatestPositionCache {
	if cacheConfig == nil {
		cacheConfig = config.GetCacheConfig()
	}
	return &DynamoLatestPositionCache{
		client: client,
		config: cacheConfig,
		table:  cacheConfig.DynamoTable,
		clock:  &systemClock{},
		sleep:  time.Sleep,
	}
}

// Get returns (nil, nil) on a miss or an expired item.
func (c *DynamoLatestPositionCache) Get(ctx context.Context, busID string) (*models.BusPosition, error) {
	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"busId": &types.AttributeValueMemberS{Value: busID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting latest position from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var record LatestPositionRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling latest position record: %w", err)
	}

	if !c.isValid(record) {
		log.Debug().Str("bus_id", busID).Msg("Latest position cache expired")
		return nil, nil
	}

	p := record.position()
	return &p, nil
}

// Put stores p unless the cached position for the bus is newer.
func (c *DynamoLatestPositionCache) Put(ctx context.Context, p models.BusPosition) error {
	now := c.clock.Now()
	record := LatestPositionRecord{
		BusID:           p.BusID,
		PositionID:      p.ID,
		Latitude:        p.Latitude,
		Longitude:       p.Longitude,
		Line:            p.Line,
		TimestampMillis: p.Timestamp.UnixMilli(),
		LastUpdated:     now.Unix(),
		TTL:             now.Add(c.config.GetLatestPositionTTL()).Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshaling latest position record: %w", err)
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(busId) OR timestampMillis < :ts OR (timestampMillis = :ts AND positionId <= :id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ts": &types.AttributeValueMemberN{Value: strconv.FormatInt(record.TimestampMillis, 10)},
			":id": &types.AttributeValueMemberN{Value: strconv.FormatInt(record.PositionID, 10)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			log.Trace().Str("bus_id", p.BusID).Msg("Cached position is newer, skipping")
			return nil
		}
		return fmt.Errorf("putting latest position in DynamoDB: %w", err)
	}

	log.Trace().Str("bus_id", p.BusID).Int64("position_id", p.ID).Msg("Cached latest position")
	return nil
}

// DeleteOlderThan removes cached positions observed before cutoff and
// returns how many items were deleted.
func (c *DynamoLatestPositionCache) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var keys []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := c.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(c.table),
			ProjectionExpression: aws.String("busId"),
			FilterExpression:     aws.String("timestampMillis < :cutoff"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff.UnixMilli(), 10)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, fmt.Errorf("scanning latest positions: %w", err)
		}
		for _, item := range out.Items {
			keys = append(keys, map[string]types.AttributeValue{"busId": item["busId"]})
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	batchSize := c.config.BatchSize
	if batchSize <= 0 || batchSize > 25 {
		batchSize = 25
	}
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))

		requests := make([]types.WriteRequest, 0, end-i)
		for _, key := range keys[i:end] {
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
		}
		if err := c.batchWrite(ctx, requests); err != nil {
			return i, err
		}
	}

	log.Debug().Int("count", len(keys)).Time("cutoff", cutoff).Msg("Deleted stale latest positions")
	return len(keys), nil
}

// batchWrite retries failed calls and unprocessed items with exponential
// backoff.
func (c *DynamoLatestPositionCache) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	attempts := max(c.config.MaxBatchRetries, 1)
	var lastErr error
	for retry := 0; retry < attempts; retry++ {
		out, err := c.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{c.table: requests},
		})
		switch {
		case err != nil:
			lastErr = err
		case len(out.UnprocessedItems[c.table]) > 0:
			requests = out.UnprocessedItems[c.table]
			lastErr = fmt.Errorf("%d unprocessed items", len(requests))
		default:
			return nil
		}
		c.sleep(time.Duration(1<<retry) * 100 * time.Millisecond)
	}
	return fmt.Errorf("batch deleting latest positions after %d retries: %w", attempts, lastErr)
}

func (c *DynamoLatestPositionCache) isValid(record LatestPositionRecord) bool {
	return c.clock.Now().Unix() < record.TTL
}
