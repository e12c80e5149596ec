package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/geobus/backend-go/internal/storage"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Nearest-stop strategies.
const (
	StrategyScan   = "scan"
	StrategyIndex  = "index"
	StrategyNative = "native"
)

type Config struct {
	Environment string
	LogLevel    zerolog.Level
	HTTPAddr    string
	MetricsAddr string
	DatabaseURL string
	HTTPTimeout time.Duration

	NearestStrategy      string
	NearbyRadiusMeters   float64
	NearbyFallback       bool
	NearbyFallbackWindow time.Duration
	RecentWindowMinutes  int
	RetentionHours       int
	PruneInterval        time.Duration
	DefaultCity          string

	NATSURL           string
	NATSSubjectPrefix string

	RequireAuth bool
	APIToken    string
}

type Option func(*Config)

// WithEnvironment allows setting the environment
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogLevel allows setting the log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		parsedLevel, err := zerolog.ParseLevel(level)
		if err != nil || parsedLevel == zerolog.NoLevel {
			parsedLevel = zerolog.InfoLevel
		}
		c.LogLevel = parsedLevel
	}
}

func WithHTTPAddr(addr string) Option {
	return func(c *Config) {
		c.HTTPAddr = addr
	}
}

func WithDatabaseURL(dsn string) Option {
	return func(c *Config) {
		c.DatabaseURL = dsn
	}
}

// WithNearestStrategy ignores unknown strategies.
func WithNearestStrategy(strategy string) Option {
	return func(c *Config) {
		switch s := strings.ToLower(strings.TrimSpace(strategy)); s {
		case StrategyScan, StrategyIndex, StrategyNative:
			c.NearestStrategy = s
		default:
			log.Warn().Str("strategy", strategy).Msg("Unknown nearest-stop strategy, keeping default")
		}
	}
}

// WithNearbyFallback toggles returning every candidate position when none is
// within the radius of a stop.
func WithNearbyFallback(enabled bool) Option {
	return func(c *Config) {
		c.NearbyFallback = enabled
	}
}

func WithRetentionHours(hours int) Option {
	return func(c *Config) {
		if hours > 0 {
			c.RetentionHours = hours
		}
	}
}

// New creates a new configuration with default values
func New(opts ...Option) *Config {
	cfg := &Config{
		Environment:          "production",
		LogLevel:             zerolog.InfoLevel,
		HTTPAddr:             ":8080",
		HTTPTimeout:          10 * time.Second,
		NearestStrategy:      StrategyScan,
		NearbyRadiusMeters:   5000,
		NearbyFallback:       true,
		NearbyFallbackWindow: 10 * 365 * 24 * time.Hour,
		RecentWindowMinutes:  30,
		RetentionHours:       24,
		DefaultCity:          "Marrakech",
		NATSSubjectPrefix:    "geobus",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// InitializeLogging sets up logging based on the configuration
func (c *Config) InitializeLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(c.LogLevel)

	if c.Environment == "local" || c.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
		return
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// LoadFromEnv loads configuration from a .env file, when present, and the
// environment.
func LoadFromEnv() *Config {
	_ = godotenv.Load()

	cfg := New(
		WithEnvironment(getEnvOrDefault("ENV", "production")),
		WithLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
		WithHTTPAddr(getEnvOrDefault("HTTP_ADDR", ":8080")),
		WithDatabaseURL(databaseURLFromEnv()),
		WithNearestStrategy(getEnvOrDefault("NEAREST_STRATEGY", StrategyScan)),
		WithNearbyFallback(getEnvBool("NEARBY_FALLBACK", true)),
		WithRetentionHours(getEnvInt("RETENTION_HOURS", 24)),
	)

	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.HTTPTimeout = getDurationEnvOrDefault("HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.NearbyRadiusMeters = getEnvFloat("NEARBY_RADIUS_METERS", cfg.NearbyRadiusMeters)
	cfg.NearbyFallbackWindow = getDurationEnvOrDefault("NEARBY_FALLBACK_WINDOW", cfg.NearbyFallbackWindow)
	cfg.RecentWindowMinutes = getEnvInt("RECENT_WINDOW_MINUTES", cfg.RecentWindowMinutes)
	cfg.PruneInterval = getDurationEnvOrDefault("PRUNE_INTERVAL", 0)
	cfg.DefaultCity = getEnvOrDefault("DEFAULT_CITY", cfg.DefaultCity)
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getEnvOrDefault("NATS_SUBJECT_PREFIX", cfg.NATSSubjectPrefix)
	cfg.RequireAuth = getEnvBool("REQUIRE_AUTH", false)
	cfg.APIToken = os.Getenv("API_TOKEN")

	return cfg
}

// databaseURLFromEnv prefers DATABASE_URL or PG_DSN, else builds a URL from
// the PG* variables. Empty means no database is configured.
func databaseURLFromEnv() string {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn
	}
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return ""
	}
	return storage.BuildDSN(
		getEnvOrDefault("PGHOST", "127.0.0.1"),
		getEnvOrDefault("PGPORT", "5432"),
		getEnvOrDefault("PGUSER", "postgres"),
		os.Getenv("PGPASSWORD"),
		db,
		getEnvOrDefault("PGSSLMODE", "disable"),
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Warn().Str("key", key).Msg("Invalid duration value in environment variable, using default")
	}
	return defaultValue
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f > 0 {
			return f
		}
		log.Warn().Str("key", key).Msg("Invalid float value in environment variable, using default")
	}
	return defaultVal
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
