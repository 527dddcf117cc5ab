package alert

import (
	"errors"
	"fmt"
)

// ErrAlreadyActive rejects a trigger for a patient with a live alert when
// the duplicate-trigger policy is "reject".
var ErrAlreadyActive = errors.New("alert: already active for patient")

// ErrNoLiveAlert is returned for operations addressing an alert that is
// unknown or already terminal.
var ErrNoLiveAlert = errors.New("alert: no live alert")

// Rejection is the structured, user-visible form of an operation failure.
// It names what failed and whether retrying can help, and never exposes a
// raw internal error.
type Rejection struct {
	Op        string `json:"op"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s (retryable=%v)", r.Op, r.Reason, r.Retryable)
}

func reject(op, reason string, retryable bool) *Rejection {
	return &Rejection{Op: op, Reason: reason, Retryable: retryable}
}
