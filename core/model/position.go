package model

import (
	"fmt"
	"time"
)

// Position is a geographic fix reported for a subject.
type Position struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	CapturedAt     time.Time `json:"captured_at"`
}

// Validate checks the coordinate ranges and the capture timestamp.
func (p Position) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("position: latitude %.6f out of range [-90,90]", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("position: longitude %.6f out of range [-180,180]", p.Longitude)
	}
	if p.CapturedAt.IsZero() {
		return fmt.Errorf("position: captured_at is required")
	}
	return nil
}
