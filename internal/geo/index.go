package geo

import (
	"math"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
)

const (
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	tolerance   = 1e-9

	// candidates taken from the planar nearest-neighbour search before the
	// haversine radius check
	planarCandidates = 8
)

// IndexedPoint is a point carrying the identifier of the entity it locates.
type IndexedPoint struct {
	ID int64
	Point
}

type indexItem struct {
	IndexedPoint
	rect *rtreego.Rect
}

func (i *indexItem) Bounds() *rtreego.Rect {
	return i.rect
}

// Index answers exact haversine nearest-point queries over a fixed point set.
// It is immutable once built and safe for concurrent readers.
type Index struct {
	tree   *rtreego.Rtree
	points []IndexedPoint
	size   atomic.Int64
}

// NewIndex builds an R-tree over points.
func NewIndex(points []IndexedPoint) *Index {
	objs := make([]rtreego.Spatial, 0, len(points))
	for _, p := range points {
		objs = append(objs, &indexItem{
			IndexedPoint: p,
			rect:         rtreego.Point{p.Lat, p.Lon}.ToRect(tolerance),
		})
	}
	idx := &Index{
		tree:   rtreego.NewTree(dimensions, minChildren, maxChildren, objs...),
		points: append([]IndexedPoint(nil), points...),
	}
	idx.size.Store(int64(len(points)))
	return idx
}

// Size returns the number of indexed points.
func (idx *Index) Size() int64 {
	return idx.size.Load()
}

// Nearest returns the indexed point closest to p by haversine distance and
// that distance in metres. Equal distances resolve to the smaller ID. ok is
// false when the index is empty.
//
// Planar neighbours only bound the answer: every point inside the haversine
// radius of the best planar candidate is re-ranked, so the result is the
// global minimum. Bounds that wrap a pole or the antimeridian fall back to a
// linear scan.
func (idx *Index) Nearest(p Point) (best IndexedPoint, distance float64, ok bool) {
	if idx.Size() == 0 {
		return IndexedPoint{}, 0, false
	}

	k := planarCandidates
	if int64(k) > idx.Size() {
		k = int(idx.Size())
	}
	radius := 0.0
	for _, s := range idx.tree.NearestNeighbors(k, rtreego.Point{p.Lat, p.Lon}) {
		item, isItem := s.(*indexItem)
		if !isItem || item == nil {
			continue
		}
		if d := Distance(p, item.Point); d > radius {
			radius = d
		}
	}

	box, bounded := boundingBox(p, radius)
	if !bounded {
		best, distance = scan(p, idx.points)
		return best, distance, true
	}

	var candidates []IndexedPoint
	for _, s := range idx.tree.SearchIntersect(box) {
		if item, isItem := s.(*indexItem); isItem && item != nil {
			candidates = append(candidates, item.IndexedPoint)
		}
	}
	if len(candidates) == 0 {
		best, distance = scan(p, idx.points)
		return best, distance, true
	}
	best, distance = scan(p, candidates)
	return best, distance, true
}

// boundingBox returns a lat/lon rectangle containing every point within
// radiusMeters of p. bounded is false when no such rectangle exists without
// wrapping.
func boundingBox(p Point, radiusMeters float64) (*rtreego.Rect, bool) {
	angular := radiusMeters / (EarthRadiusKm * 1000)
	// widen slightly so float error never excludes a boundary point
	angular = angular*1.000001 + 1e-12

	dLat := toDegrees(angular)
	minLat, maxLat := p.Lat-dLat, p.Lat+dLat
	if minLat <= -90 || maxLat >= 90 {
		return nil, false
	}

	ratio := math.Sin(angular) / math.Cos(toRadians(p.Lat))
	if ratio >= 1 {
		return nil, false
	}
	dLon := toDegrees(math.Asin(ratio))
	minLon, maxLon := p.Lon-dLon, p.Lon+dLon
	if minLon <= -180 || maxLon >= 180 {
		return nil, false
	}

	rect, err := rtreego.NewRect(rtreego.Point{minLat, minLon}, []float64{2 * dLat, 2 * dLon})
	if err != nil {
		return nil, false
	}
	return rect, true
}

func scan(p Point, points []IndexedPoint) (IndexedPoint, float64) {
	best := points[0]
	bestDist := Distance(p, best.Point)
	for _, c := range points[1:] {
		d := Distance(p, c.Point)
		if d < bestDist || (d == bestDist && c.ID < best.ID) {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// NearestByScan is the linear reference for Index.Nearest.
func NearestByScan(p Point, points []IndexedPoint) (IndexedPoint, float64, bool) {
	if len(points) == 0 {
		return IndexedPoint{}, 0, false
	}
	best, d := scan(p, points)
	return best, d, true
}
