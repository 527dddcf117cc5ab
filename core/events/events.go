package events

import (
	"time"

	"github.com/mindcare/guardian/core/model"
)

// Event is the common shape carried to connected clients: the alert it
// concerns, what changed, and when.
type Event struct {
	Type      string    `json:"type"`
	AlertID   string    `json:"alert_id"`
	Field     string    `json:"field"`
	Timestamp time.Time `json:"timestamp"`
}

// Event type identifiers broadcast to rooms.
const (
	TypeAlertCreated        = "alert-created"
	TypeCandidateRanked     = "candidate-ranked"
	TypeNotificationChanged = "notification-state-changed"
	TypeAlertResolved       = "alert-resolved"
	TypeAlertExpired        = "alert-expired"
)

// AlertCreated is published when a trigger produces a new alert.
type AlertCreated struct {
	Event
	PatientID string         `json:"patient_id"`
	Origin    model.Position `json:"origin"`
	Address   string         `json:"address,omitempty"`
}

// CandidateRanked is published once the eligible caregiver list is computed.
type CandidateRanked struct {
	Event
	Candidates []model.AlertCandidate `json:"candidates"`
}

// NotificationStateChanged is published on every notification transition.
type NotificationStateChanged struct {
	Event
	NotificationID string                  `json:"notification_id"`
	RecipientID    string                  `json:"recipient_id"`
	Channel        model.Channel           `json:"channel"`
	State          model.NotificationState `json:"state"`
	Attempts       int                     `json:"attempts"`
	Err            string                  `json:"error,omitempty"`
}

// AlertResolved is published when a caregiver acknowledges or the patient
// cancels.
type AlertResolved struct {
	Event
	ResolvedBy string `json:"resolved_by,omitempty"`
	Cancelled  bool   `json:"cancelled"`
}

// AlertExpired is published when the alert times out without an
// acknowledgment. Escalation consumers subscribe to this event.
type AlertExpired struct {
	Event
	Reason string `json:"reason"`
}

// PersistenceStalled is a fatal operational event: an alert's durable
// record could not be written after retries and the alert is frozen.
type PersistenceStalled struct {
	AlertID string `json:"alert_id"`
	Err     string `json:"error"`
}

// PositionUpdated is published when a subject's stored position changes.
type PositionUpdated struct {
	SubjectID string         `json:"subject_id"`
	Position  model.Position `json:"position"`
}
