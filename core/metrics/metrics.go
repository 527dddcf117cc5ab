package metrics

import (
	"time"

	"github.com/mindcare/guardian/core/model"
)

// AlertTransitionEvent captures one alert status change.
type AlertTransitionEvent struct {
	AlertID   string
	PatientID string
	Status    model.AlertStatus
	Reason    string
	Time      time.Time
}

// MetricsSink records alert lifecycle transitions for observability purposes.
type MetricsSink interface {
	RecordAlertTransition(ev AlertTransitionEvent) error
}

// NotificationEvent captures one notification state change.
type NotificationEvent struct {
	AlertID        string
	NotificationID string
	RecipientID    string
	Channel        model.Channel
	State          model.NotificationState
	Attempts       int
	Error          string
	Time           time.Time
}

// NotificationRecorder records notification state changes.
type NotificationRecorder interface {
	RecordNotification(ev NotificationEvent) error
}

// CandidateSetEvent captures the outcome of one eligibility ranking pass.
type CandidateSetEvent struct {
	AlertID  string
	Assigned int
	Nearby   int
	Time     time.Time
}

// CandidateRecorder records the size and composition of ranked candidate sets.
type CandidateRecorder interface {
	RecordCandidateSet(ev CandidateSetEvent) error
}

// PositionEvent captures a location update accepted by the geo index.
type PositionEvent struct {
	SubjectID string
	Position  model.Position
	Time      time.Time
}

// PositionRecorder records accepted location updates.
type PositionRecorder interface {
	RecordPosition(ev PositionEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordAlertTransition(AlertTransitionEvent) error { return nil }
func (NopSink) RecordNotification(NotificationEvent) error       { return nil }
func (NopSink) RecordCandidateSet(CandidateSetEvent) error       { return nil }
func (NopSink) RecordPosition(PositionEvent) error               { return nil }
