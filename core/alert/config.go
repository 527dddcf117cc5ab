package alert

import "time"

// Duplicate-trigger policies for a patient that already has a live alert.
const (
	DuplicateMerge  = "merge"
	DuplicateReject = "reject"
)

// Nearby-facility lookup bounds for the alert payload.
const (
	facilityRadiusMeters = 3000
	maxNearbyFacilities  = 3
)

// Config defines orchestration behavior.
type Config struct {
	// Timeout expires an unacknowledged alert. Defaults to 10 minutes.
	Timeout time.Duration
	// QueryRadiusMeters bounds the caregiver search circle. Defaults to
	// 5km.
	QueryRadiusMeters float64
	// OnDuplicateTrigger selects merge (refresh candidates) or reject
	// for a second trigger while an alert is live. Defaults to merge.
	OnDuplicateTrigger string
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
	if c.QueryRadiusMeters <= 0 {
		c.QueryRadiusMeters = 5000
	}
	if c.OnDuplicateTrigger == "" {
		c.OnDuplicateTrigger = DuplicateMerge
	}
}

// Validate rejects unknown policy names.
func (c Config) Validate() error {
	switch c.OnDuplicateTrigger {
	case "", DuplicateMerge, DuplicateReject:
		return nil
	}
	return reject("config", "on_duplicate_trigger must be merge or reject", false)
}
