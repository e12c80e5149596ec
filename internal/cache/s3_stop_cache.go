package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/geobus/backend-go/internal/models"
	"github.com/rs/zerolog/log"
)

// S3Client defines the interface for S3 operations we need
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

const stopListKey = "stops.json"

// S3StopListCache stores the stop list as a single JSON object.
type S3StopListCache struct {
	client     S3Client
	bucketName string
	ttl        time.Duration
	clock      clock
}

// StopListRecord is the object body written to S3.
type StopListRecord struct {
	Stops       []models.Stop `json:"stops"`
	LastUpdated int64         `json:"lastUpdated"`
	TTL         int64         `json:"ttl"`
}

func NewS3StopListCache(client S3Client, bucketName string, ttl time.Duration) *S3StopListCache {
	return &S3StopListCache{
		client:     client,
		bucketName: bucketName,
		ttl:        ttl,
		clock:      &systemClock{},
	}
}

// GetStops returns (nil, nil) when the object is missing or expired.
func (c *S3StopListCache) GetStops(ctx context.Context) ([]models.Stop, error) {
	if c.bucketName == "" {
		return nil, fmt.Errorf("empty bucket name")
	}

	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(stopListKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting stop list from S3: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing S3 object body")
		}
	}(result.Body)

	var record StopListRecord
	if err := json.NewDecoder(result.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding stop list record: %w", err)
	}

	if c.clock.Now().Unix() > record.TTL {
		log.Debug().Msg("Stop list cache expired")
		return nil, nil
	}
	if record.Stops == nil {
		record.Stops = []models.Stop{}
	}

	return record.Stops, nil
}

func (c *S3StopListCache) SaveStops(ctx context.Context, stops []models.Stop) error {
	if c.bucketName == "" {
		return fmt.Errorf("empty bucket name")
	}

	now := c.clock.Now().Unix()
	record := StopListRecord{
		Stops:       make([]models.Stop, len(stops)),
		LastUpdated: now,
		TTL:         now + int64(c.ttl.Seconds()),
	}
	for i, s := range stops {
		record.Stops[i] = s.Bare()
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(record); err != nil {
		return fmt.Errorf("encoding stop list record: %w", err)
	}

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(stopListKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("saving stop list to S3: %w", err)
	}

	log.Debug().Int("count", len(stops)).Msg("Saved stop list to S3 cache")
	return nil
}
