package model

// Role distinguishes the two kinds of tracked subjects.
type Role string

const (
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
)

// Availability reflects whether a caregiver can currently respond.
type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilityBusy      Availability = "busy"
	AvailabilityOffline   Availability = "offline"
)

// Subject is a patient or caregiver tracked by the service.
type Subject struct {
	ID                string       `json:"id"`
	Role              Role         `json:"role"`
	LastKnownPosition *Position    `json:"last_known_position,omitempty"`
	Availability      Availability `json:"availability"`
	// AssignedTo holds the ids of subjects this subject has an explicit
	// caregiver/patient relationship with.
	AssignedTo map[string]bool `json:"assigned_to,omitempty"`
}

// AssignedToPatient reports whether the subject has an explicit assignment
// link to the given patient.
func (s Subject) AssignedToPatient(patientID string) bool {
	return s.AssignedTo[patientID]
}
