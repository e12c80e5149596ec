package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geobus/backend-go/internal/models"
)

// Memory is a Store kept in process memory, used for tests and local runs.
type Memory struct {
	mu        sync.RWMutex
	stops     map[int64]models.Stop
	positions map[int64]models.BusPosition
	nextStop  int64
	nextPos   int64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		stops:     make(map[int64]models.Stop),
		positions: make(map[int64]models.BusPosition),
	}
}

// AddStop seeds a stop, assigning an ID when the given one is zero.
func (m *Memory) AddStop(s models.Stop) models.Stop {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == 0 {
		m.nextStop++
		s.ID = m.nextStop
	} else if s.ID > m.nextStop {
		m.nextStop = s.ID
	}
	s = s.Bare()
	m.stops[s.ID] = s
	return s
}

func (m *Memory) GetStopByID(_ context.Context, id int64) (*models.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stops[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) ListStopsByCity(_ context.Context, city string) ([]models.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stops := make([]models.Stop, 0)
	for _, s := range m.sortedStops() {
		if strings.EqualFold(s.City, city) {
			stops = append(stops, s)
		}
	}
	return stops, nil
}

func (m *Memory) ListAllStops(_ context.Context) ([]models.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sortedStops(), nil
}

func (m *Memory) sortedStops() []models.Stop {
	stops := make([]models.Stop, 0, len(m.stops))
	for _, s := range m.stops {
		stops = append(stops, s)
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
	return stops
}

func (m *Memory) ListPositionsSince(_ context.Context, since time.Time) ([]models.BusPosition, error) {
	return m.filterPositions(func(p models.BusPosition) bool {
		return !p.Timestamp.Before(since)
	}), nil
}

func (m *Memory) ListPositionsBefore(_ context.Context, before time.Time) ([]models.BusPosition, error) {
	return m.filterPositions(func(p models.BusPosition) bool {
		return p.Timestamp.Before(before)
	}), nil
}

func (m *Memory) ListPositionsByLineSince(_ context.Context, line string, since time.Time) ([]models.BusPosition, error) {
	positions := m.filterPositions(func(p models.BusPosition) bool {
		return p.Line == line && !p.Timestamp.Before(since)
	})
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].Newer(positions[j])
	})
	return positions, nil
}

func (m *Memory) ListAllPositions(_ context.Context) ([]models.BusPosition, error) {
	return m.filterPositions(func(models.BusPosition) bool { return true }), nil
}

func (m *Memory) filterPositions(keep func(models.BusPosition) bool) []models.BusPosition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	positions := make([]models.BusPosition, 0)
	for _, p := range m.positions {
		if keep(p) {
			positions = append(positions, p)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].ID < positions[j].ID })
	return positions
}

func (m *Memory) LatestPositionForBus(_ context.Context, busID string) (*models.BusPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.BusPosition
	for _, p := range m.positions {
		if p.BusID != busID {
			continue
		}
		if latest == nil || p.Newer(*latest) {
			p := p
			latest = &p
		}
	}
	return latest, nil
}

func (m *Memory) InsertPosition(_ context.Context, p models.BusPosition) (models.BusPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPos++
	p.ID = m.nextPos
	m.positions[p.ID] = p
	return p, nil
}

func (m *Memory) DeletePositions(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.positions, id)
	}
	return nil
}

func (m *Memory) CountPositions(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.positions)), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
