package config

import (
	"fmt"
	"time"

	"github.com/mindcare/guardian/core/alert"
)

// AlertConfig tunes alert orchestration.
type AlertConfig struct {
	// TimeoutSeconds expires an unacknowledged alert.
	TimeoutSeconds int `json:"timeout_seconds"`
	// QueryRadiusMeters bounds the caregiver search circle.
	QueryRadiusMeters float64 `json:"query_radius_meters"`
	// OnDuplicateTrigger selects "merge" or "reject" for a second trigger
	// while an alert is live.
	OnDuplicateTrigger string `json:"on_duplicate_trigger"`
	// CellDegrees sets the geo index bucket size; zero keeps the default.
	CellDegrees float64 `json:"cell_degrees"`
}

// SetDefaults fills zero values.
func (c *AlertConfig) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 600
	}
	if c.QueryRadiusMeters <= 0 {
		c.QueryRadiusMeters = 5000
	}
	if c.OnDuplicateTrigger == "" {
		c.OnDuplicateTrigger = alert.DuplicateMerge
	}
}

// Validate rejects unknown policy names.
func (c AlertConfig) Validate() error {
	switch c.OnDuplicateTrigger {
	case alert.DuplicateMerge, alert.DuplicateReject:
		return nil
	}
	return fmt.Errorf("on_duplicate_trigger must be merge or reject, got %q", c.OnDuplicateTrigger)
}

// ToCore converts the section into the orchestrator's config.
func (c AlertConfig) ToCore() alert.Config {
	return alert.Config{
		Timeout:            time.Duration(c.TimeoutSeconds) * time.Second,
		QueryRadiusMeters:  c.QueryRadiusMeters,
		OnDuplicateTrigger: c.OnDuplicateTrigger,
	}
}

// BroadcastConfig tunes the room fan-out.
type BroadcastConfig struct {
	// QueueSize bounds pending fan-outs before publishes fail.
	QueueSize int `json:"queue_size"`
}

// SetDefaults fills zero values.
func (c *BroadcastConfig) SetDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
}
