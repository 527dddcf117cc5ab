// Package repository defines the persistence contracts consumed by the
// alert core. Concrete stores live under infra.
package repository

import (
	"context"
	"errors"

	"github.com/mindcare/guardian/core/model"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("repository: not found")

// ErrPersistenceFailure marks a write that kept failing after retries. The
// orchestrator halts the affected alert instead of progressing without a
// durable record.
var ErrPersistenceFailure = errors.New("repository: persistence failure")

// AlertRepository stores alert records, notifications included.
type AlertRepository interface {
	SaveAlert(ctx context.Context, alert *model.Alert) error
	GetAlert(ctx context.Context, id string) (*model.Alert, error)
}

// SubjectRepository stores patient and caregiver records.
type SubjectRepository interface {
	SaveSubject(ctx context.Context, subject model.Subject) error
	GetSubject(ctx context.Context, id string) (model.Subject, error)
	ListCaregivers(ctx context.Context) ([]model.Subject, error)
}
