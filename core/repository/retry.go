package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mindcare/guardian/core/logger"
	"github.com/mindcare/guardian/core/model"
)

// RetryingAlertRepository wraps an AlertRepository and retries failed writes
// with exponential backoff. When every attempt fails the error wraps
// ErrPersistenceFailure so the orchestrator can halt the alert.
type RetryingAlertRepository struct {
	inner      AlertRepository
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// NewRetryingAlertRepository wraps inner. maxRetries <= 0 defaults to 3,
// backoff <= 0 defaults to 100ms.
func NewRetryingAlertRepository(inner AlertRepository, maxRetries int, backoff time.Duration, log logger.Logger) *RetryingAlertRepository {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &RetryingAlertRepository{inner: inner, maxRetries: maxRetries, backoff: backoff, log: log}
}

// SaveAlert persists the alert, retrying transient failures.
func (r *RetryingAlertRepository) SaveAlert(ctx context.Context, alert *model.Alert) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = r.inner.SaveAlert(ctx, alert)
		if lastErr == nil {
			return nil
		}
		r.log.Warnf("save alert %s attempt %d failed: %v", alert.ID, attempt+1, lastErr)
		if attempt < r.maxRetries {
			select {
			case <-time.After(r.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%w: save alert %s: %v", ErrPersistenceFailure, alert.ID, lastErr)
}

// GetAlert delegates to the wrapped repository.
func (r *RetryingAlertRepository) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	return r.inner.GetAlert(ctx, id)
}
