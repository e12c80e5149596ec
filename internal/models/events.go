package models

import "time"

// PruneEvent is published after positions older than Cutoff were deleted.
type PruneEvent struct {
	Deleted     int       `json:"deleted"`
	MaxAgeHours int       `json:"maxAgeHours"`
	Cutoff      time.Time `json:"cutoff"`
	At          time.Time `json:"at"`
}
