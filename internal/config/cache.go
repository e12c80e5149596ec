package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// CacheConfig holds all cache-related configuration
type CacheConfig struct {
	// Stop lookup LRU
	StopLRUSize       int
	StopLRUTTLMinutes int

	// Full stop list (memory and S3 tiers)
	StopListTTLHours int
	S3Bucket         string
	S3Endpoint       string

	// Latest position per bus in DynamoDB
	DynamoTable              string
	DynamoEndpoint           string
	// A cached latest position is served until it expires, so positions
	// recorded by other writers are not seen before then.
	LatestPositionTTLSeconds int

	// Batch processing settings
	BatchSize       int
	MaxBatchRetries int

	EnableLRUCache    bool
	EnableS3Cache     bool
	EnableDynamoCache bool
}

const (
	defaultStopLRUSize          = 1000
	defaultStopLRUTTLMinutes    = 15
	defaultStopListTTLHours     = 24
	defaultDynamoTable          = "geobus-latest-positions"
	defaultLatestPositionTTLSec = 60
	defaultBatchSize            = 25
	defaultMaxBatchRetries      = 3
)

// GetCacheConfig returns the cache configuration from environment variables or defaults
func GetCacheConfig() *CacheConfig {
	config := &CacheConfig{
		StopLRUSize:              getEnvInt("CACHE_STOP_LRU_SIZE", defaultStopLRUSize),
		StopLRUTTLMinutes:        getEnvInt("CACHE_STOP_LRU_TTL_MINUTES", defaultStopLRUTTLMinutes),
		StopListTTLHours:         getEnvInt("CACHE_STOP_LIST_TTL_HOURS", defaultStopListTTLHours),
		S3Bucket:                 os.Getenv("CACHE_S3_BUCKET"),
		S3Endpoint:               os.Getenv("S3_ENDPOINT"),
		DynamoTable:              getEnvOrDefault("CACHE_DYNAMO_TABLE", defaultDynamoTable),
		DynamoEndpoint:           os.Getenv("DYNAMODB_ENDPOINT"),
		LatestPositionTTLSeconds: getEnvInt("CACHE_LATEST_POSITION_TTL_SECONDS", defaultLatestPositionTTLSec),
		BatchSize:                getEnvInt("CACHE_BATCH_SIZE", defaultBatchSize),
		MaxBatchRetries:          getEnvInt("CACHE_MAX_BATCH_RETRIES", defaultMaxBatchRetries),
		EnableLRUCache:           getEnvBool("CACHE_ENABLE_LRU", true),
		EnableS3Cache:            getEnvBool("CACHE_ENABLE_S3", false),
		EnableDynamoCache:        getEnvBool("CACHE_ENABLE_DYNAMO", false),
	}

	log.Debug().
		Int("StopLRUSize", config.StopLRUSize).
		Int("StopLRUTTLMinutes", config.StopLRUTTLMinutes).
		Int("StopListTTLHours", config.StopListTTLHours).
		Str("S3Bucket", config.S3Bucket).
		Str("DynamoTable", config.DynamoTable).
		Int("LatestPositionTTLSeconds", config.LatestPositionTTLSeconds).
		Int("BatchSize", config.BatchSize).
		Int("MaxBatchRetries", config.MaxBatchRetries).
		Bool("EnableLRUCache", config.EnableLRUCache).
		Bool("EnableS3Cache", config.EnableS3Cache).
		Bool("EnableDynamoCache", config.EnableDynamoCache).
		Msg("Cache configuration loaded")

	return config
}

func (c *CacheConfig) GetStopLRUTTL() time.Duration {
	return time.Duration(c.StopLRUTTLMinutes) * time.Minute
}

func (c *CacheConfig) GetStopListTTL() time.Duration {
	return time.Duration(c.StopListTTLHours) * time.Hour
}

func (c *CacheConfig) GetLatestPositionTTL() time.Duration {
	return time.Duration(c.LatestPositionTTLSeconds) * time.Second
}

// Helper functions to get environment variables with defaults
func getEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Msg("Invalid integer value in environment variable, using default")
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
