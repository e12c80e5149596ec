package models

import (
	"fmt"
	"strings"
	"time"
)

// BusPosition is a timestamped observation of where a bus was. Rows are
// append-only; the latest timestamp for a bus is its current position.
type BusPosition struct {
	ID        int64     `json:"id"`
	BusID     string    `json:"busId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Line      string    `json:"line"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the fields required before a position can be stored.
func (p *BusPosition) Validate() error {
	if strings.TrimSpace(p.BusID) == "" {
		return NewInvalidInputError("busId", "bus ID is required")
	}
	if strings.TrimSpace(p.Line) == "" {
		return NewInvalidInputError("line", "line is required")
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return NewInvalidInputError("latitude", fmt.Sprintf("latitude out of range: %f", p.Latitude))
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return NewInvalidInputError("longitude", fmt.Sprintf("longitude out of range: %f", p.Longitude))
	}
	return nil
}

// Newer reports whether p is more recent than other. Equal timestamps are
// ordered by the storage insertion key.
func (p BusPosition) Newer(other BusPosition) bool {
	if p.Timestamp.Equal(other.Timestamp) {
		return p.ID > other.ID
	}
	return p.Timestamp.After(other.Timestamp)
}
