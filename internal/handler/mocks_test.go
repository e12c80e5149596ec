package handler

import (
	"context"
	"time"

	"github.com/geobus/backend-go/internal/models"
)

type mockLocator struct {
	nearestFunc func(ctx context.Context, lat, lon float64) (*models.Stop, error)
	cityFunc    func(ctx context.Context, city string) ([]models.Stop, error)
	timeFunc    func(ctx context.Context, lat, lon float64, stopID int64) (*models.TimeEstimate, error)
	allFunc     func(ctx context.Context) ([]models.Stop, error)
}

var _ models.StopLocator = (*mockLocator)(nil)

func (m *mockLocator) NearestStop(ctx context.Context, lat, lon float64) (*models.Stop, error) {
	return m.nearestFunc(ctx, lat, lon)
}

func (m *mockLocator) StopsInCity(ctx context.Context, city string) ([]models.Stop, error) {
	return m.cityFunc(ctx, city)
}

func (m *mockLocator) TimeToStop(ctx context.Context, lat, lon float64, stopID int64) (*models.TimeEstimate, error) {
	return m.timeFunc(ctx, lat, lon, stopID)
}

func (m *mockLocator) AllStops(ctx context.Context) ([]models.Stop, error) {
	return m.allFunc(ctx)
}

type mockTracker struct {
	recentFunc    func(ctx context.Context, line string, windowMinutes int) ([]models.BusPosition, error)
	lastFunc      func(ctx context.Context, busID string) (*models.BusPosition, error)
	nearFunc      func(ctx context.Context, stopID int64, radius float64, window time.Duration) ([]models.BusPosition, error)
	allRecentFunc func(ctx context.Context, windowMinutes int) ([]models.BusPosition, error)
	countFunc     func(ctx context.Context) (int64, error)
}

var _ models.PositionTracker = (*mockTracker)(nil)

func (m *mockTracker) RecentPositions(ctx context.Context, line string, windowMinutes int) ([]models.BusPosition, error) {
	return m.recentFunc(ctx, line, windowMinutes)
}

func (m *mockTracker) LastKnownPosition(ctx context.Context, busID string) (*models.BusPosition, error) {
	return m.lastFunc(ctx, busID)
}

func (m *mockTracker) PositionsNearStop(ctx context.Context, stopID int64, radius float64, window time.Duration) ([]models.BusPosition, error) {
	return m.nearFunc(ctx, stopID, radius, window)
}

func (m *mockTracker) AllRecentPositions(ctx context.Context, windowMinutes int) ([]models.BusPosition, error) {
	return m.allRecentFunc(ctx, windowMinutes)
}

func (m *mockTracker) Count(ctx context.Context) (int64, error) {
	return m.countFunc(ctx)
}
