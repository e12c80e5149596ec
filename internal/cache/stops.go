package cache

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/geobus/backend-go/internal/models"
	"github.com/rs/zerolog/log"
)

// StopListProvider caches the full stop list. A miss is (nil, nil).
type StopListProvider interface {
	GetStops(ctx context.Context) ([]models.Stop, error)
	SaveStops(ctx context.Context, stops []models.Stop) error
}

// StopListCache keeps the stop list in memory for ttl.
type StopListCache struct {
	stops       []models.Stop
	lastUpdated time.Time
	ttl         time.Duration
	clock       clock
	mu          sync.RWMutex
}

func NewStopListCache(ttl time.Duration) *StopListCache {
	return &StopListCache{
		stops:       make([]models.Stop, 0),
		lastUpdated: time.Time{}, // Zero time to ensure first fetch
		ttl:         ttl,
		clock:       &systemClock{},
	}
}

func (c *StopListCache) GetStops(_ context.Context) ([]models.Stop, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.isExpired() {
		return nil, nil
	}
	return slices.Clone(c.stops), nil
}

func (c *StopListCache) SaveStops(_ context.Context, stops []models.Stop) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stops = slices.Clone(stops)
	c.lastUpdated = c.clock.Now()
	return nil
}

// LastUpdated is the zero time until the first save.
func (c *StopListCache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

func (c *StopListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUpdated = time.Time{}
}

func (c *StopListCache) isExpired() bool {
	return c.lastUpdated.IsZero() || c.clock.Now().Sub(c.lastUpdated) > c.ttl
}

// TieredStopListCache reads tiers in order and backfills the faster tiers on
// a hit further down. Tier failures are logged and treated as misses.
type TieredStopListCache struct {
	tiers []StopListProvider
}

func NewTieredStopListCache(tiers ...StopListProvider) *TieredStopListCache {
	return &TieredStopListCache{tiers: tiers}
}

func (c *TieredStopListCache) GetStops(ctx context.Context) ([]models.Stop, error) {
	for i, tier := range c.tiers {
		stops, err := tier.GetStops(ctx)
		if err != nil {
			log.Warn().Err(err).Int("tier", i).Msg("Stop list cache tier failed")
			continue
		}
		if stops == nil {
			continue
		}

		for j := 0; j < i; j++ {
			if err := c.tiers[j].SaveStops(ctx, stops); err != nil {
				log.Warn().Err(err).Int("tier", j).Msg("Failed to backfill stop list cache tier")
			}
		}
		log.Trace().Int("tier", i).Int("count", len(stops)).Msg("Stop list cache hit")
		return stops, nil
	}
	return nil, nil
}

func (c *TieredStopListCache) SaveStops(ctx context.Context, stops []models.Stop) error {
	var errs []error
	for _, tier := range c.tiers {
		if err := tier.SaveStops(ctx, stops); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
