package geo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexNearest(t *testing.T) {
	points := []IndexedPoint{
		{ID: 1, Point: Point{Lat: 31.6258, Lon: -7.9891}}, // Jemaa el-Fna
		{ID: 2, Point: Point{Lat: 31.6340, Lon: -8.0100}}, // Gueliz
		{ID: 3, Point: Point{Lat: 31.6053, Lon: -8.0353}}, // Menara
	}
	idx := NewIndex(points)
	require.Equal(t, int64(3), idx.Size())

	tests := []struct {
		name   string
		query  Point
		wantID int64
	}{
		{name: "at the square", query: Point{Lat: 31.6259, Lon: -7.9890}, wantID: 1},
		{name: "near gueliz", query: Point{Lat: 31.6350, Lon: -8.0110}, wantID: 2},
		{name: "near menara", query: Point{Lat: 31.6000, Lon: -8.0400}, wantID: 3},
		{name: "north east of the square", query: Point{Lat: 31.7000, Lon: -7.9000}, wantID: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, d, ok := idx.Nearest(tt.query)
			require.True(t, ok)
			assert.Equal(t, tt.wantID, got.ID)
			assert.InDelta(t, Distance(tt.query, got.Point), d, 1e-9)
		})
	}
}

func TestIndexNearestEmpty(t *testing.T) {
	_, _, ok := NewIndex(nil).Nearest(Point{Lat: 1, Lon: 1})
	assert.False(t, ok)
}

func TestIndexNearestSinglePoint(t *testing.T) {
	idx := NewIndex([]IndexedPoint{{ID: 42, Point: Point{Lat: 10, Lon: 10}}})

	for _, q := range []Point{{Lat: 0, Lon: 0}, {Lat: -60, Lon: 170}, {Lat: 89, Lon: -179}} {
		got, _, ok := idx.Nearest(q)
		require.True(t, ok)
		assert.Equal(t, int64(42), got.ID)
	}
}

func TestIndexNearestTieBreaksOnID(t *testing.T) {
	idx := NewIndex([]IndexedPoint{
		{ID: 9, Point: Point{Lat: 31.63, Lon: -7.99}},
		{ID: 4, Point: Point{Lat: 31.63, Lon: -7.99}},
	})

	got, _, ok := idx.Nearest(Point{Lat: 31.62, Lon: -7.98})
	require.True(t, ok)
	assert.Equal(t, int64(4), got.ID)
}

func TestIndexNearestAgreesWithScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := make([]IndexedPoint, 0, 2000)
	for i := 0; i < 2000; i++ {
		points = append(points, IndexedPoint{
			ID:    int64(i + 1),
			Point: Point{Lat: rng.Float64()*170 - 85, Lon: rng.Float64()*350 - 175},
		})
	}
	idx := NewIndex(points)

	for i := 0; i < 500; i++ {
		q := Point{Lat: rng.Float64()*178 - 89, Lon: rng.Float64()*358 - 179}
		got, gotDist, ok := idx.Nearest(q)
		require.True(t, ok)
		want, wantDist, _ := NearestByScan(q, points)
		assert.Equal(t, want.ID, got.ID, "query %v", q)
		assert.InDelta(t, wantDist, gotDist, 1e-6)
	}
}
