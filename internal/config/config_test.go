package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigWithDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, StrategyScan, cfg.NearestStrategy)
	assert.Equal(t, 5000.0, cfg.NearbyRadiusMeters)
	assert.True(t, cfg.NearbyFallback)
	assert.Equal(t, 10*365*24*time.Hour, cfg.NearbyFallbackWindow)
	assert.Equal(t, 30, cfg.RecentWindowMinutes)
	assert.Equal(t, 24, cfg.RetentionHours)
	assert.Equal(t, "Marrakech", cfg.DefaultCity)
	assert.Equal(t, "geobus", cfg.NATSSubjectPrefix)
	assert.False(t, cfg.RequireAuth)
}

func TestWithLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{level: "debug", want: zerolog.DebugLevel},
		{level: "warn", want: zerolog.WarnLevel},
		{level: "nonsense", want: zerolog.InfoLevel},
		{level: "", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, New(WithLogLevel(tt.level)).LogLevel)
		})
	}
}

func TestWithNearestStrategy(t *testing.T) {
	tests := []struct {
		strategy string
		want     string
	}{
		{strategy: "index", want: StrategyIndex},
		{strategy: " NATIVE ", want: StrategyNative},
		{strategy: "scan", want: StrategyScan},
		{strategy: "quadtree", want: StrategyScan},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			assert.Equal(t, tt.want, New(WithNearestStrategy(tt.strategy)).NearestStrategy)
		})
	}
}

func TestWithRetentionHoursIgnoresNonPositive(t *testing.T) {
	assert.Equal(t, 48, New(WithRetentionHours(48)).RetentionHours)
	assert.Equal(t, 24, New(WithRetentionHours(0)).RetentionHours)
	assert.Equal(t, 24, New(WithRetentionHours(-3)).RetentionHours)
}

func TestInitializeLogging(t *testing.T) {
	original := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(original)

	cfg := New(WithEnvironment("local"), WithLogLevel("debug"))
	cfg.InitializeLogging()

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("METRICS_ADDR", ":9100")
	t.Setenv("DATABASE_URL", "postgres://geobus@db/geobus")
	t.Setenv("NEAREST_STRATEGY", "index")
	t.Setenv("NEARBY_RADIUS_METERS", "750")
	t.Setenv("NEARBY_FALLBACK", "false")
	t.Setenv("NEARBY_FALLBACK_WINDOW", "2h")
	t.Setenv("RECENT_WINDOW_MINUTES", "15")
	t.Setenv("RETENTION_HOURS", "72")
	t.Setenv("PRUNE_INTERVAL", "30m")
	t.Setenv("DEFAULT_CITY", "Rabat")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("NATS_SUBJECT_PREFIX", "transit")
	t.Setenv("REQUIRE_AUTH", "true")
	t.Setenv("API_TOKEN", "secret")

	cfg := LoadFromEnv()

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "postgres://geobus@db/geobus", cfg.DatabaseURL)
	assert.Equal(t, StrategyIndex, cfg.NearestStrategy)
	assert.Equal(t, 750.0, cfg.NearbyRadiusMeters)
	assert.False(t, cfg.NearbyFallback)
	assert.Equal(t, 2*time.Hour, cfg.NearbyFallbackWindow)
	assert.Equal(t, 15, cfg.RecentWindowMinutes)
	assert.Equal(t, 72, cfg.RetentionHours)
	assert.Equal(t, 30*time.Minute, cfg.PruneInterval)
	assert.Equal(t, "Rabat", cfg.DefaultCity)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "transit", cfg.NATSSubjectPrefix)
	assert.True(t, cfg.RequireAuth)
	assert.Equal(t, "secret", cfg.APIToken)
}

func TestLoadFromEnvInvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")
	t.Setenv("NEARBY_RADIUS_METERS", "-10")
	t.Setenv("RECENT_WINDOW_MINUTES", "half an hour")
	t.Setenv("PRUNE_INTERVAL", "")

	cfg := LoadFromEnv()

	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5000.0, cfg.NearbyRadiusMeters)
	assert.Equal(t, 30, cfg.RecentWindowMinutes)
	assert.Zero(t, cfg.PruneInterval)
}

func TestDatabaseURLFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "explicit url",
			env:  map[string]string{"DATABASE_URL": "postgres://a@h/db", "PG_DSN": "postgres://b@h/db"},
			want: "postgres://a@h/db",
		},
		{
			name: "pg dsn",
			env:  map[string]string{"PG_DSN": "postgres://b@h/db"},
			want: "postgres://b@h/db",
		},
		{
			name: "nothing configured",
			env:  map[string]string{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DATABASE_URL", "PG_DSN", "PGDATABASE"} {
				t.Setenv(key, tt.env[key])
			}
			assert.Equal(t, tt.want, databaseURLFromEnv())
		})
	}
}

func TestDatabaseURLFromPGVariables(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "")
	t.Setenv("PGDATABASE", "geobus")
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGPORT", "6543")
	t.Setenv("PGUSER", "app")
	t.Setenv("PGPASSWORD", "")
	t.Setenv("PGSSLMODE", "")

	dsn := databaseURLFromEnv()
	assert.Contains(t, dsn, "db.internal:6543")
	assert.Contains(t, dsn, "/geobus")
	assert.Contains(t, dsn, "app@")
	assert.Contains(t, dsn, "sslmode=disable")
}
