// Package geo holds the great-circle calculations shared by stop and bus
// lookups.
//
// Coordinates are degrees and are not range checked: out-of-range values give
// a finite but meaningless distance. Callers validate at the boundary.
package geo

import "math"

const (
	// EarthRadiusKm is the radius of the spherical Earth model.
	EarthRadiusKm = 6371.0

	// WalkingSpeedMetersPerMinute is 5 km/h.
	WalkingSpeedMetersPerMinute = 5000.0 / 60.0
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the haversine distance between a and b in metres.
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c * 1000
}

// DistanceBetween is Distance for bare coordinates.
func DistanceBetween(lat1, lon1, lat2, lon2 float64) float64 {
	return Distance(Point{Lat: lat1, Lon: lon1}, Point{Lat: lat2, Lon: lon2})
}

// WalkingTimeMinutes converts a distance in metres to minutes on foot.
func WalkingTimeMinutes(distanceMeters float64) float64 {
	return distanceMeters / WalkingSpeedMetersPerMinute
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
