// Package storage defines the persistence collaborator used by the stop
// locator and the position tracker, with Postgres and in-memory
// implementations.
//
// Single-entity lookups return (nil, nil) when the row does not exist; the
// callers decide whether that is an error.
package storage

import (
	"context"
	"time"

	"github.com/geobus/backend-go/internal/models"
)

// StopStore reads the externally managed stop reference data.
type StopStore interface {
	GetStopByID(ctx context.Context, id int64) (*models.Stop, error)
	// ListStopsByCity matches the city name case-insensitively.
	ListStopsByCity(ctx context.Context, city string) ([]models.Stop, error)
	ListAllStops(ctx context.Context) ([]models.Stop, error)
}

// NativeNearestFinder is implemented by stores that can rank stops by
// distance themselves. Results are candidates only; callers re-rank them.
type NativeNearestFinder interface {
	NearestStopsNative(ctx context.Context, lat, lon float64, limit int) ([]models.Stop, error)
}

// PositionStore reads and prunes bus position observations.
type PositionStore interface {
	ListPositionsSince(ctx context.Context, since time.Time) ([]models.BusPosition, error)
	ListPositionsBefore(ctx context.Context, before time.Time) ([]models.BusPosition, error)
	// ListPositionsByLineSince is ordered by timestamp descending.
	ListPositionsByLineSince(ctx context.Context, line string, since time.Time) ([]models.BusPosition, error)
	ListAllPositions(ctx context.Context) ([]models.BusPosition, error)
	LatestPositionForBus(ctx context.Context, busID string) (*models.BusPosition, error)
	InsertPosition(ctx context.Context, p models.BusPosition) (models.BusPosition, error)
	DeletePositions(ctx context.Context, ids []int64) error
	CountPositions(ctx context.Context) (int64, error)
}

// Store is the full collaborator.
type Store interface {
	StopStore
	PositionStore
	Ping(ctx context.Context) error
	Close() error
}
