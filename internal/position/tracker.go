// Package position reports where buses are: recent positions per line, the
// last known position of a bus and the buses around a stop. It also prunes
// observations past their retention.
package position

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/geobus/backend-go/internal/geo"
	"github.com/geobus/backend-go/internal/models"
	"github.com/geobus/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

// DefaultFallbackWindow is the candidate window of PositionsNearStop. It is
// deliberately wide enough to mean "all positions".
const DefaultFallbackWindow = 10 * 365 * 24 * time.Hour

// LatestCache caches the last known position per bus. Get returns (nil, nil)
// on a miss.
type LatestCache interface {
	Get(ctx context.Context, busID string) (*models.BusPosition, error)
	Put(ctx context.Context, p models.BusPosition) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

type Tracker struct {
	positions storage.PositionStore
	stops     storage.StopStore
	latest    LatestCache
	fallback  bool
	now       func() time.Time
}

var _ models.PositionTracker = (*Tracker)(nil)

type Option func(*Tracker)

func WithLatestCache(c LatestCache) Option {
	return func(t *Tracker) {
		t.latest = c
	}
}

// WithNearbyFallback controls whether PositionsNearStop returns every
// candidate when none lies within the radius. Enabled by default.
func WithNearbyFallback(enabled bool) Option {
	return func(t *Tracker) {
		t.fallback = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(positions storage.PositionStore, stops storage.StopStore, opts ...Option) *Tracker {
	t := &Tracker{
		positions: positions,
		stops:     stops,
		fallback:  true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecentPositions returns the positions of line observed within the last
// windowMinutes, most recent first.
func (t *Tracker) RecentPositions(ctx context.Context, line string, windowMinutes int) ([]models.BusPosition, error) {
	if windowMinutes <= 0 {
		return nil, models.NewInvalidInputError("minutes", "window must be positive")
	}

	since := lookback(t.now(), windowMinutes, time.Minute)
	positions, err := t.positions.ListPositionsByLineSince(ctx, line, since)
	if err != nil {
		return nil, models.NewStorageError("positions by line", err)
	}

	log.Debug().Str("line", line).Int("count", len(positions)).Msg("Listed recent positions")
	return nonNil(positions), nil
}

// AllRecentPositions returns every position observed within the last
// windowMinutes, most recent first.
func (t *Tracker) AllRecentPositions(ctx context.Context, windowMinutes int) ([]models.BusPosition, error) {
	if windowMinutes <= 0 {
		return nil, models.NewInvalidInputError("minutes", "window must be positive")
	}

	since := lookback(t.now(), windowMinutes, time.Minute)
	positions, err := t.positions.ListPositionsSince(ctx, since)
	if err != nil {
		return nil, models.NewStorageError("positions since", err)
	}
	return newestFirst(positions), nil
}

// LastKnownPosition returns the freshest position of busID regardless of age.
// With a latest-position cache configured, a cached row is served until its
// TTL expires, so rows inserted by other writers in the meantime are not seen.
func (t *Tracker) LastKnownPosition(ctx context.Context, busID string) (*models.BusPosition, error) {
	if t.latest != nil {
		cached, err := t.latest.Get(ctx, busID)
		if err != nil {
			log.Warn().Err(err).Str("bus_id", busID).Msg("Latest position cache read failed")
		} else if cached != nil {
			log.Trace().Str("bus_id", busID).Msg("Cache HIT for latest position")
			return cached, nil
		}
	}

	p, err := t.positions.LatestPositionForBus(ctx, busID)
	if err != nil {
		return nil, models.NewStorageError("latest position", err)
	}
	if p == nil {
		return nil, models.NewNotFoundError("bus position", busID)
	}

	t.cache(ctx, *p)
	return p, nil
}

// PositionsNearStop returns positions within radiusMeters of the stop.
// Candidates are the positions observed within fallbackWindow, or every
// position when that window is empty. With the nearby fallback enabled and
// nothing inside the radius, all candidates are returned, which can include
// buses far from the stop.
func (t *Tracker) PositionsNearStop(ctx context.Context, stopID int64, radiusMeters float64, fallbackWindow time.Duration) ([]models.BusPosition, error) {
	if radiusMeters <= 0 {
		return nil, models.NewInvalidInputError("radius", "radius must be positive")
	}
	if fallbackWindow <= 0 {
		fallbackWindow = DefaultFallbackWindow
	}

	s, err := t.stops.GetStopByID(ctx, stopID)
	if err != nil {
		return nil, models.NewStorageError("stop by id", err)
	}
	if s == nil {
		return nil, models.NewNotFoundError("stop", stopID)
	}

	candidates, err := t.candidates(ctx, fallbackWindow)
	if err != nil {
		return nil, err
	}

	stopPoint := geo.Point{Lat: s.Latitude, Lon: s.Longitude}
	nearby := make([]models.BusPosition, 0, len(candidates))
	for _, p := range candidates {
		if geo.Distance(stopPoint, geo.Point{Lat: p.Latitude, Lon: p.Longitude}) <= radiusMeters {
			nearby = append(nearby, p)
		}
	}

	if len(nearby) == 0 && t.fallback {
		log.Debug().
			Int64("stop_id", stopID).
			Int("count", len(candidates)).
			Msg("No position within radius, returning all candidates")
		return candidates, nil
	}

	log.Debug().Int64("stop_id", stopID).Int("count", len(nearby)).Msg("Listed positions near stop")
	return nearby, nil
}

func (t *Tracker) candidates(ctx context.Context, window time.Duration) ([]models.BusPosition, error) {
	positions, err := t.positions.ListPositionsSince(ctx, t.now().Add(-window))
	if err != nil {
		return nil, models.NewStorageError("positions since", err)
	}
	if len(positions) > 0 {
		return newestFirst(positions), nil
	}

	positions, err = t.positions.ListAllPositions(ctx)
	if err != nil {
		return nil, models.NewStorageError("all positions", err)
	}
	return newestFirst(positions), nil
}

// Prune deletes positions older than maxAgeHours and returns how many were
// removed. Running it again with nothing eligible deletes nothing.
func (t *Tracker) Prune(ctx context.Context, maxAgeHours int) (int, error) {
	if maxAgeHours <= 0 {
		return 0, models.NewInvalidInputError("hours", "max age must be positive")
	}
	return t.PruneBefore(ctx, lookback(t.now(), maxAgeHours, time.Hour))
}

// PruneBefore deletes positions observed strictly before cutoff.
func (t *Tracker) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	old, err := t.positions.ListPositionsBefore(ctx, cutoff)
	if err != nil {
		return 0, models.NewStorageError("positions before", err)
	}

	if len(old) > 0 {
		ids := make([]int64, len(old))
		for i, p := range old {
			ids[i] = p.ID
		}
		if err := t.positions.DeletePositions(ctx, ids); err != nil {
			return 0, models.NewStorageError("delete positions", err)
		}
	}

	if t.latest != nil {
		if _, err := t.latest.DeleteOlderThan(ctx, cutoff); err != nil {
			log.Warn().Err(err).Msg("Failed to prune latest position cache")
		}
	}

	log.Info().Int("count", len(old)).Time("cutoff", cutoff).Msg("Pruned positions")
	return len(old), nil
}

// Record stores an observation, stamping it with the current time when it
// carries none.
func (t *Tracker) Record(ctx context.Context, p models.BusPosition) (*models.BusPosition, error) {
	if p.Timestamp.IsZero() {
		p.Timestamp = t.now().UTC()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	saved, err := t.positions.InsertPosition(ctx, p)
	if err != nil {
		return nil, models.NewStorageError("insert position", err)
	}

	t.cache(ctx, saved)
	log.Debug().Str("bus_id", saved.BusID).Int64("position_id", saved.ID).Msg("Recorded position")
	return &saved, nil
}

func (t *Tracker) Count(ctx context.Context) (int64, error) {
	n, err := t.positions.CountPositions(ctx)
	if err != nil {
		return 0, models.NewStorageError("count positions", err)
	}
	return n, nil
}

func (t *Tracker) cache(ctx context.Context, p models.BusPosition) {
	if t.latest == nil {
		return
	}
	if err := t.latest.Put(ctx, p); err != nil {
		log.Warn().Err(err).Str("bus_id", p.BusID).Msg("Failed to cache latest position")
	}
}

// lookback returns now minus n units. Values too large for a time.Duration
// saturate at the longest duration instead of wrapping into the future.
func lookback(now time.Time, n int, unit time.Duration) time.Time {
	if int64(n) > math.MaxInt64/int64(unit) {
		return now.Add(-time.Duration(math.MaxInt64))
	}
	return now.Add(-time.Duration(n) * unit)
}

func nonNil(positions []models.BusPosition) []models.BusPosition {
	if positions == nil {
		return []models.BusPosition{}
	}
	return positions
}

// newestFirst sorts positions most recent first in place.
func newestFirst(positions []models.BusPosition) []models.BusPosition {
	slices.SortFunc(positions, func(a, b models.BusPosition) int {
		switch {
		case a.Newer(b):
			return -1
		case b.Newer(a):
			return 1
		default:
			return 0
		}
	})
	return nonNil(positions)
}
