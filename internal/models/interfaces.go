package models

import (
	"context"
	"time"
)

type StopLocator interface {
	NearestStop(ctx context.Context, lat, lon float64) (*Stop, error)
	StopsInCity(ctx context.Context, city string) ([]Stop, error)
	TimeToStop(ctx context.Context, lat, lon float64, stopID int64) (*TimeEstimate, error)
	AllStops(ctx context.Context) ([]Stop, error)
}

type PositionTracker interface {
	RecentPositions(ctx context.Context, line string, windowMinutes int) ([]BusPosition, error)
	LastKnownPosition(ctx context.Context, busID string) (*BusPosition, error)
	PositionsNearStop(ctx context.Context, stopID int64, radiusMeters float64, fallbackWindow time.Duration) ([]BusPosition, error)
	AllRecentPositions(ctx context.Context, windowMinutes int) ([]BusPosition, error)
	Count(ctx context.Context) (int64, error)
}
