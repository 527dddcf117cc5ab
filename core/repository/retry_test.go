package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mindcare/guardian/core/model"
	"github.com/mindcare/guardian/infra/logger"
)

type flakyRepo struct {
	failures int
	calls    int
}

func (f *flakyRepo) SaveAlert(context.Context, *model.Alert) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("store unavailable")
	}
	return nil
}

func (f *flakyRepo) GetAlert(context.Context, string) (*model.Alert, error) {
	return nil, ErrNotFound
}

func TestRetryingRepositoryRecovers(t *testing.T) {
	inner := &flakyRepo{failures: 2}
	repo := NewRetryingAlertRepository(inner, 3, time.Millisecond, logger.NopLogger{})
	err := repo.SaveAlert(context.Background(), &model.Alert{ID: "a1"})
	if err != nil {
		t.Fatalf("expected recovery after retries, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestRetryingRepositoryExhaustionWrapsPersistenceFailure(t *testing.T) {
	inner := &flakyRepo{failures: 100}
	repo := NewRetryingAlertRepository(inner, 2, time.Millisecond, logger.NopLogger{})
	err := repo.SaveAlert(context.Background(), &model.Alert{ID: "a1"})
	if !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	alert := &model.Alert{
		ID:        "a1",
		PatientID: "pat",
		Status:    model.AlertActive,
		Notifications: []*model.Notification{
			{ID: "n1", AlertID: "a1", RecipientID: "cg", Channel: model.ChannelPush, State: model.NotificationSent},
		},
	}
	if err := store.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("save: %v", err)
	}
	// mutation after save must not leak into the stored copy
	alert.Status = model.AlertResolved
	got, err := store.GetAlert(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.AlertActive {
		t.Fatalf("stored alert mutated through caller reference")
	}
	if len(got.Notifications) != 1 || got.Notifications[0].ID != "n1" {
		t.Fatalf("notifications not persisted: %+v", got.Notifications)
	}
	if _, err := store.GetAlert(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
