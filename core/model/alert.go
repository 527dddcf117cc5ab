package model

import "time"

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertCreated     AlertStatus = "created"
	AlertDispatching AlertStatus = "dispatching"
	AlertActive      AlertStatus = "active"
	AlertResolved    AlertStatus = "resolved"
	AlertExpired     AlertStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s AlertStatus) Terminal() bool {
	return s == AlertResolved || s == AlertExpired
}

// Expiry reasons recorded on an expired alert.
const (
	ExpireReasonNoRecipients = "no-eligible-recipients"
	ExpireReasonTimeout      = "timeout"
)

// Relationship classifies why a caregiver was considered for an alert.
type Relationship string

const (
	RelationshipAssigned Relationship = "assigned"
	RelationshipNearby   Relationship = "nearby"
)

// AlertCandidate is a ranked caregiver considered for one alert. Candidates
// are recomputed per alert and never outlive it.
type AlertCandidate struct {
	SubjectID      string       `json:"subject_id"`
	DistanceMeters float64      `json:"distance_meters"`
	Relationship   Relationship `json:"relationship"`
	Busy           bool         `json:"busy"`
	Rank           int          `json:"rank"`
}

// Facility is a point of interest near the alert origin, typically a
// hospital, attached for responders.
type Facility struct {
	Name           string  `json:"name"`
	Address        string  `json:"address"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Alert is one emergency episode for a patient, from trigger to resolution
// or expiry. It exclusively owns its candidates and notifications.
type Alert struct {
	ID               string           `json:"id"`
	PatientID        string           `json:"patient_id"`
	OriginPosition   Position         `json:"origin_position"`
	Address          string           `json:"address,omitempty"`
	NearbyFacilities []Facility       `json:"nearby_facilities,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	Status           AlertStatus      `json:"status"`
	ExpireReason     string           `json:"expire_reason,omitempty"`
	Candidates       []AlertCandidate `json:"candidates"`
	Notifications    []*Notification  `json:"notifications"`
}

// Notification returns the alert's notification for the given recipient and
// channel, or nil if none exists.
func (a *Alert) Notification(recipientID string, ch Channel) *Notification {
	for _, n := range a.Notifications {
		if n.RecipientID == recipientID && n.Channel == ch {
			return n
		}
	}
	return nil
}

// HasCandidate reports whether the recipient is among the alert's candidates.
func (a *Alert) HasCandidate(subjectID string) bool {
	for _, c := range a.Candidates {
		if c.SubjectID == subjectID {
			return true
		}
	}
	return false
}
