package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindcare/guardian/core/model"
	"github.com/mindcare/guardian/core/repository"
)

func setupStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, Config{})
}

func TestAlertRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	alert := &model.Alert{
		ID:        "a1",
		PatientID: "pat",
		Status:    model.AlertActive,
		CreatedAt: time.Now().UTC(),
		Candidates: []model.AlertCandidate{
			{SubjectID: "cg-1", DistanceMeters: 420, Relationship: model.RelationshipAssigned, Rank: 0},
		},
	}
	alert.Notifications = append(alert.Notifications, &model.Notification{
		ID: "n1", AlertID: "a1", RecipientID: "cg-1",
		Channel: model.ChannelPush, State: model.NotificationSent, Attempts: 1,
	})
	require.NoError(t, store.SaveAlert(ctx, alert))

	got, err := store.GetAlert(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AlertActive, got.Status)
	require.Len(t, got.Notifications, 1)
	assert.Equal(t, model.NotificationSent, got.Notifications[0].State)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, model.RelationshipAssigned, got.Candidates[0].Relationship)
}

func TestGetAlertMissingIsNotFound(t *testing.T) {
	store := setupStore(t)
	_, err := store.GetAlert(context.Background(), "ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCaregiverIndexFollowsRole(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSubject(ctx, model.Subject{
		ID: "cg-1", Role: model.RoleCaregiver, Availability: model.AvailabilityAvailable,
	}))
	require.NoError(t, store.SaveSubject(ctx, model.Subject{
		ID: "pat-1", Role: model.RolePatient,
	}))

	list, err := store.ListCaregivers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "cg-1", list[0].ID)

	// demoting the subject removes it from the index
	require.NoError(t, store.SaveSubject(ctx, model.Subject{
		ID: "cg-1", Role: model.RolePatient,
	}))
	list, err = store.ListCaregivers(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubjectRoundTripKeepsAssignments(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSubject(ctx, model.Subject{
		ID:           "cg-1",
		Role:         model.RoleCaregiver,
		Availability: model.AvailabilityBusy,
		AssignedTo:   map[string]bool{"pat-1": true},
	}))
	got, err := store.GetSubject(ctx, "cg-1")
	require.NoError(t, err)
	assert.True(t, got.AssignedToPatient("pat-1"))
	assert.Equal(t, model.AvailabilityBusy, got.Availability)

	_, err = store.GetSubject(ctx, "ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
