// Package app assembles the service from configuration: store, caches,
// locator, tracker, handlers, metrics and the prune notifier. The Lambda
// entrypoints and the geobus CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/geobus/backend-go/internal/cache"
	"github.com/geobus/backend-go/internal/config"
	"github.com/geobus/backend-go/internal/handler"
	"github.com/geobus/backend-go/internal/metrics"
	"github.com/geobus/backend-go/internal/models"
	"github.com/geobus/backend-go/internal/position"
	"github.com/geobus/backend-go/internal/publisher"
	"github.com/geobus/backend-go/internal/stop"
	"github.com/geobus/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

// Client constructors, replaced in tests.
var (
	newDynamoClient = func(ctx context.Context, endpoint string) (cache.DynamoDBClient, error) {
		return cache.NewDynamoClient(ctx, endpoint)
	}
	newS3Client = func(ctx context.Context, endpoint string) (cache.S3Client, error) {
		return cache.NewS3Client(ctx, endpoint)
	}
	openPostgres = func(dsn string) (storage.Store, error) {
		return storage.Open(dsn)
	}
	newPublisher = func(url, prefix string, m publisher.PublisherMetrics) (position.Notifier, func(), error) {
		p, err := publisher.NewNATSPublisher(url, prefix, m)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
)

type App struct {
	Config      *config.Config
	CacheConfig *config.CacheConfig

	Store     storage.Store
	StopCache *cache.CachedStopStore
	Locator   *stop.Locator
	Tracker   *position.Tracker
	Metrics   *metrics.Collector
	Notifier  position.Notifier

	Stops     *handler.StopsHandler
	Positions *handler.PositionsHandler
	Router    *handler.Router

	closers []func()
}

// New wires the service. Without a database URL it runs on an in-memory
// store. Optional collaborators (S3, DynamoDB, NATS) that fail to start are
// logged and left out.
func New(ctx context.Context, cfg *config.Config, cacheCfg *config.CacheConfig) (*App, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if cacheCfg == nil {
		cacheCfg = config.GetCacheConfig()
	}

	a := &App{
		Config:      cfg,
		CacheConfig: cacheCfg,
		Metrics:     metrics.NewCollector(),
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	})

	var stops storage.StopStore = store
	if cacheCfg.EnableLRUCache {
		cached, err := cache.NewCachedStopStore(store, cacheCfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating stop cache: %w", err)
		}
		a.StopCache = cached
		a.Metrics.RegisterStopCache(
			func() uint64 { return cached.Stats().Hits },
			func() uint64 { return cached.Stats().Misses },
		)
		stops = cached
	}

	locatorOpts := []stop.Option{
		stop.WithStrategy(cfg.NearestStrategy),
		stop.WithStopListCache(a.stopListCache(ctx)),
		stop.WithIndexTTL(cacheCfg.GetStopListTTL()),
	}
	if native, ok := store.(storage.NativeNearestFinder); ok {
		locatorOpts = append(locatorOpts, stop.WithNativeFinder(native))
	}
	a.Locator = stop.NewLocator(stops, locatorOpts...)

	trackerOpts := []position.Option{position.WithNearbyFallback(cfg.NearbyFallback)}
	if latest := a.latestCache(ctx); latest != nil {
		trackerOpts = append(trackerOpts, position.WithLatestCache(latest))
	}
	a.Tracker = position.NewTracker(store, stops, trackerOpts...)

	if cfg.NATSURL != "" {
		notifier, closeFn, err := newPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, a.Metrics)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATSURL).Msg("Prune events disabled")
		} else {
			a.Notifier = notifier
			a.closers = append(a.closers, closeFn)
		}
	}

	a.Stops = handler.NewStopsHandler(a.Locator, cfg.DefaultCity)
	a.Positions = handler.NewPositionsHandler(a.Tracker, handler.PositionDefaults{
		WindowMinutes:  cfg.RecentWindowMinutes,
		RadiusMeters:   cfg.NearbyRadiusMeters,
		FallbackWindow: cfg.NearbyFallbackWindow,
	})
	a.Router = handler.NewRouter(a.Stops, a.Positions, store)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	if a.Config.DatabaseURL == "" {
		log.Warn().Msg("No database configured, using in-memory store")
		return storage.NewMemory(), nil
	}

	store, err := openPostgres(a.Config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, models.NewStorageError("ping", err)
	}
	return store, nil
}

// stopListCache is the in-memory tier, backed by S3 when enabled.
func (a *App) stopListCache(ctx context.Context) stop.StopListCache {
	tiers := []cache.StopListProvider{cache.NewStopListCache(a.CacheConfig.GetStopListTTL())}

	if a.CacheConfig.EnableS3Cache {
		if a.CacheConfig.S3Bucket == "" {
			log.Warn().Msg("S3 stop cache enabled without CACHE_S3_BUCKET, skipping")
		} else if client, err := newS3Client(ctx, a.CacheConfig.S3Endpoint); err != nil {
			log.Warn().Err(err).Msg("S3 stop cache disabled")
		} else {
			tiers = append(tiers, cache.NewS3StopListCache(client, a.CacheConfig.S3Bucket, a.CacheConfig.GetStopListTTL()))
		}
	}

	return cache.NewTieredStopListCache(tiers...)
}

func (a *App) latestCache(ctx context.Context) position.LatestCache {
	if !a.CacheConfig.EnableDynamoCache {
		return nil
	}
	client, err := newDynamoClient(ctx, a.CacheConfig.DynamoEndpoint)
	if err != nil {
		log.Warn().Err(err).Msg("DynamoDB position cache disabled")
		return nil
	}
	return cache.NewDynamoLatestPositionCache(client, a.CacheConfig)
}

// Handler is the API entrypoint, guarded by RequireAuth when configured.
func (a *App) Handler() handler.LambdaHandler {
	var h handler.LambdaHandler = a.Router.HandleRequest
	if a.Config.RequireAuth {
		h = handler.RequireAuth(h)
	}
	return h
}

// Pruner runs retention pruning with metrics and, when NATS is configured,
// prune events.
func (a *App) Pruner(maxAgeHours int) *position.Pruner {
	opts := []position.PrunerOption{position.WithObserver(a.Metrics)}
	if a.Notifier != nil {
		opts = append(opts, position.WithNotifier(a.Notifier))
	}
	return position.NewPruner(a.Tracker, maxAgeHours, a.Config.PruneInterval, opts...)
}

// Migrate creates the schema. It needs a Postgres store.
func (a *App) Migrate(ctx context.Context) error {
	migrator, ok := a.Store.(interface {
		EnsureSchema(ctx context.Context) error
	})
	if !ok {
		return errors.New("migrate requires a database, set DATABASE_URL")
	}
	return migrator.EnsureSchema(ctx)
}

// Close releases collaborators in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
