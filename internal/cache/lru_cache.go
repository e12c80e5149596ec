package cache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/geobus/backend-go/internal/config"
	"github.com/geobus/backend-go/internal/models"
	"github.com/geobus/backend-go/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// StopLRUEntry wraps cached stop data with its expiry.
type StopLRUEntry struct {
	Stop      *models.Stop
	Stops     []models.Stop
	ExpiresAt time.Time
}

// CachedStopStore puts an LRU in front of single-stop and per-city lookups.
// ListAllStops passes through; the stop list has its own cache.
type CachedStopStore struct {
	inner  storage.StopStore
	lru    *lru.Cache[string, *StopLRUEntry]
	ttl    time.Duration
	clock  clock
	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheStats is a snapshot of hit and miss counters.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

func NewCachedStopStore(inner storage.StopStore, cfg *config.CacheConfig) (*CachedStopStore, error) {
	if cfg == nil {
		cfg = config.GetCacheConfig()
	}

	lruCache, err := lru.New[string, *StopLRUEntry](cfg.StopLRUSize)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}

	return &CachedStopStore{
		inner: inner,
		lru:   lruCache,
		ttl:   cfg.GetStopLRUTTL(),
		clock: &systemClock{},
	}, nil
}

func stopKey(id int64) string {
	return fmt.Sprintf("id:%d", id)
}

func cityKey(city string) string {
	return "city:" + strings.ToLower(city)
}

func (c *CachedStopStore) lookup(key string) (*StopLRUEntry, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if c.clock.Now().After(entry.ExpiresAt) {
		c.lru.Remove(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry, true
}

func (c *CachedStopStore) GetStopByID(ctx context.Context, id int64) (*models.Stop, error) {
	key := stopKey(id)
	if entry, ok := c.lookup(key); ok {
		s := *entry.Stop
		return &s, nil
	}

	stop, err := c.inner.GetStopByID(ctx, id)
	if err != nil || stop == nil {
		return stop, err
	}

	cached := stop.Bare()
	c.lru.Add(key, &StopLRUEntry{Stop: &cached, ExpiresAt: c.clock.Now().Add(c.ttl)})
	log.Trace().Int64("stop_id", id).Msg("Cached stop")
	return stop, nil
}

func (c *CachedStopStore) ListStopsByCity(ctx context.Context, city string) ([]models.Stop, error) {
	key := cityKey(city)
	if entry, ok := c.lookup(key); ok {
		return slices.Clone(entry.Stops), nil
	}

	stops, err := c.inner.ListStopsByCity(ctx, city)
	if err != nil {
		return nil, err
	}

	c.lru.Add(key, &StopLRUEntry{Stops: slices.Clone(stops), ExpiresAt: c.clock.Now().Add(c.ttl)})
	return stops, nil
}

func (c *CachedStopStore) ListAllStops(ctx context.Context) ([]models.Stop, error) {
	return c.inner.ListAllStops(ctx)
}

func (c *CachedStopStore) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Clear removes all entries from the LRU cache
func (c *CachedStopStore) Clear() {
	c.lru.Purge()
}
