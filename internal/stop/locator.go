// Package stop answers proximity questions about bus stops: the nearest stop
// to a rider, the stops of a city and the walking time to a given stop.
package stop

import (
	"context"
	"sync"
	"time"

	"github.com/geobus/backend-go/internal/config"
	"github.com/geobus/backend-go/internal/geo"
	"github.com/geobus/backend-go/internal/models"
	"github.com/geobus/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

// nativeCandidates is how many pre-ranked stops are requested from a store
// that ranks by distance itself. Re-ranking by haversine distance and stop ID
// only reorders within this window.
const nativeCandidates = 5

// StopListCache caches the full stop list. A miss is (nil, nil).
type StopListCache interface {
	GetStops(ctx context.Context) ([]models.Stop, error)
	SaveStops(ctx context.Context, stops []models.Stop) error
}

type Locator struct {
	stops     storage.StopStore
	native    storage.NativeNearestFinder
	listCache StopListCache
	strategy  string
	indexTTL  time.Duration
	now       func() time.Time

	mu         sync.Mutex
	index      *geo.Index
	indexStops map[int64]models.Stop
	indexBuilt time.Time
}

var _ models.StopLocator = (*Locator)(nil)

type Option func(*Locator)

// WithStrategy selects scan, index or native nearest-stop search.
func WithStrategy(strategy string) Option {
	return func(l *Locator) {
		l.strategy = strategy
	}
}

// WithNativeFinder enables the native strategy.
func WithNativeFinder(f storage.NativeNearestFinder) Option {
	return func(l *Locator) {
		l.native = f
	}
}

func WithStopListCache(c StopListCache) Option {
	return func(l *Locator) {
		l.listCache = c
	}
}

// WithIndexTTL bounds how long a built index is reused. Zero keeps it forever.
func WithIndexTTL(ttl time.Duration) Option {
	return func(l *Locator) {
		l.indexTTL = ttl
	}
}

func NewLocator(stops storage.StopStore, opts ...Option) *Locator {
	l := &Locator{
		stops:    stops,
		strategy: config.StrategyScan,
		indexTTL: 24 * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NearestStop returns the stop closest to (lat, lon) by great-circle distance,
// carrying the distance and walking time. Ties go to the smaller stop ID.
func (l *Locator) NearestStop(ctx context.Context, lat, lon float64) (*models.Stop, error) {
	p := geo.Point{Lat: lat, Lon: lon}

	var (
		best     models.Stop
		distance float64
		found    bool
		err      error
	)
	switch {
	case l.strategy == config.StrategyNative && l.native != nil:
		best, distance, found, err = l.nearestNative(ctx, p)
	case l.strategy == config.StrategyIndex:
		best, distance, found, err = l.nearestIndexed(ctx, p)
	default:
		var stops []models.Stop
		if stops, err = l.allStops(ctx); err == nil {
			best, distance, found = nearestOf(p, stops)
		}
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.NewNotFoundError("stop", "nearest")
	}

	log.Debug().
		Int64("stop_id", best.ID).
		Float64("distance", distance).
		Str("strategy", l.strategy).
		Msg("Found nearest stop")

	result := best.WithEstimate(distance, geo.WalkingTimeMinutes(distance))
	return &result, nil
}

func (l *Locator) nearestNative(ctx context.Context, p geo.Point) (models.Stop, float64, bool, error) {
	candidates, err := l.native.NearestStopsNative(ctx, p.Lat, p.Lon, nativeCandidates)
	if err != nil {
		return models.Stop{}, 0, false, models.NewStorageError("nearest stops", err)
	}
	best, d, ok := nearestOf(p, candidates)
	return best, d, ok, nil
}

func (l *Locator) nearestIndexed(ctx context.Context, p geo.Point) (models.Stop, float64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.index == nil || (l.indexTTL > 0 && l.now().Sub(l.indexBuilt) > l.indexTTL) {
		stops, err := l.allStops(ctx)
		if err != nil {
			return models.Stop{}, 0, false, err
		}

		byID := make(map[int64]models.Stop, len(stops))
		points := make([]geo.IndexedPoint, len(stops))
		for i, s := range stops {
			byID[s.ID] = s.Bare()
			points[i] = geo.IndexedPoint{ID: s.ID, Point: geo.Point{Lat: s.Latitude, Lon: s.Longitude}}
		}
		l.index = geo.NewIndex(points)
		l.indexStops = byID
		l.indexBuilt = l.now()
		log.Debug().Int("count", len(stops)).Msg("Built stop index")
	}

	hit, d, ok := l.index.Nearest(p)
	if !ok {
		return models.Stop{}, 0, false, nil
	}
	return l.indexStops[hit.ID], d, true, nil
}

// nearestOf scans stops for the closest one.
func nearestOf(p geo.Point, stops []models.Stop) (models.Stop, float64, bool) {
	points := make([]geo.IndexedPoint, len(stops))
	for i, s := range stops {
		points[i] = geo.IndexedPoint{ID: s.ID, Point: geo.Point{Lat: s.Latitude, Lon: s.Longitude}}
	}
	hit, d, ok := geo.NearestByScan(p, points)
	if !ok {
		return models.Stop{}, 0, false
	}
	for _, s := range stops {
		if s.ID == hit.ID {
			return s.Bare(), d, true
		}
	}
	return models.Stop{}, 0, false
}

// StopsInCity matches the city case-insensitively. No distance fields are set.
func (l *Locator) StopsInCity(ctx context.Context, city string) ([]models.Stop, error) {
	stops, err := l.stops.ListStopsByCity(ctx, city)
	if err != nil {
		return nil, models.NewStorageError("stops by city", err)
	}
	log.Debug().Str("city", city).Int("count", len(stops)).Msg("Listed stops in city")
	return bare(stops), nil
}

// TimeToStop estimates the walk from (lat, lon) to the stop.
func (l *Locator) TimeToStop(ctx context.Context, lat, lon float64, stopID int64) (*models.TimeEstimate, error) {
	s, err := l.stops.GetStopByID(ctx, stopID)
	if err != nil {
		return nil, models.NewStorageError("stop by id", err)
	}
	if s == nil {
		return nil, models.NewNotFoundError("stop", stopID)
	}

	d := geo.DistanceBetween(lat, lon, s.Latitude, s.Longitude)
	return &models.TimeEstimate{
		StopID:             s.ID,
		StopName:           s.Name,
		Distance:           d,
		WalkingTimeMinutes: geo.WalkingTimeMinutes(d),
	}, nil
}

func (l *Locator) AllStops(ctx context.Context) ([]models.Stop, error) {
	stops, err := l.allStops(ctx)
	if err != nil {
		return nil, err
	}
	return bare(stops), nil
}

// GetStop resolves a stop by ID, reporting a missing stop as not found.
func (l *Locator) GetStop(ctx context.Context, stopID int64) (*models.Stop, error) {
	s, err := l.stops.GetStopByID(ctx, stopID)
	if err != nil {
		return nil, models.NewStorageError("stop by id", err)
	}
	if s == nil {
		return nil, models.NewNotFoundError("stop", stopID)
	}
	bareStop := s.Bare()
	return &bareStop, nil
}

func (l *Locator) allStops(ctx context.Context) ([]models.Stop, error) {
	if l.listCache != nil {
		stops, err := l.listCache.GetStops(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Error getting stops from list cache")
		} else if stops != nil {
			log.Trace().Msg("Cache HIT for stop list")
			return stops, nil
		}
	}

	stops, err := l.stops.ListAllStops(ctx)
	if err != nil {
		return nil, models.NewStorageError("all stops", err)
	}

	if l.listCache != nil {
		if err := l.listCache.SaveStops(ctx, stops); err != nil {
			log.Error().Err(err).Msg("Error saving stops to list cache")
		}
	}
	return stops, nil
}

func bare(stops []models.Stop) []models.Stop {
	out := make([]models.Stop, len(stops))
	for i, s := range stops {
		out[i] = s.Bare()
	}
	return out
}
