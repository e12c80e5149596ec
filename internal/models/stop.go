package models

// Stop is a fixed bus station. Distance and WalkingTimeMinutes are computed
// per request relative to the rider and are never persisted.
type Stop struct {
	ID                 int64    `json:"stopId"`
	Name               string   `json:"stopName"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	City               string   `json:"city"`
	Distance           *float64 `json:"distance,omitempty"`
	WalkingTimeMinutes *float64 `json:"walkingTimeMinutes,omitempty"`
}

// WithEstimate returns a copy of the stop carrying the given distance and
// walking time.
func (s Stop) WithEstimate(distance, walkingMinutes float64) Stop {
	s.Distance = &distance
	s.WalkingTimeMinutes = &walkingMinutes
	return s
}

// Bare returns a copy of the stop without per-request fields.
func (s Stop) Bare() Stop {
	s.Distance = nil
	s.WalkingTimeMinutes = nil
	return s
}

// TimeEstimate is the walking estimate from a rider's position to a stop.
type TimeEstimate struct {
	StopID             int64   `json:"stopId"`
	StopName           string  `json:"stopName"`
	Distance           float64 `json:"distance"`
	WalkingTimeMinutes float64 `json:"walkingTimeMinutes"`
}
