package metrics

import (
	"context"
	"time"

	"github.com/mindcare/guardian/core/events"
	coremetrics "github.com/mindcare/guardian/core/metrics"
	"github.com/mindcare/guardian/core/model"
	"github.com/mindcare/guardian/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// alert lifecycle events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[any], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
}

func record(sink coremetrics.MetricsSink, ev any) {
	switch e := ev.(type) {
	case events.AlertCreated:
		_ = sink.RecordAlertTransition(coremetrics.AlertTransitionEvent{
			AlertID:   e.AlertID,
			PatientID: e.PatientID,
			Status:    model.AlertCreated,
			Time:      e.Timestamp,
		})
	case events.AlertResolved:
		_ = sink.RecordAlertTransition(coremetrics.AlertTransitionEvent{
			AlertID: e.AlertID,
			Status:  model.AlertResolved,
			Time:    e.Timestamp,
		})
	case events.AlertExpired:
		_ = sink.RecordAlertTransition(coremetrics.AlertTransitionEvent{
			AlertID: e.AlertID,
			Status:  model.AlertExpired,
			Reason:  e.Reason,
			Time:    e.Timestamp,
		})
	case events.CandidateRanked:
		if r, ok := sink.(coremetrics.CandidateRecorder); ok {
			var assigned, nearby int
			for _, c := range e.Candidates {
				if c.Relationship == model.RelationshipAssigned {
					assigned++
				} else {
					nearby++
				}
			}
			_ = r.RecordCandidateSet(coremetrics.CandidateSetEvent{
				AlertID:  e.AlertID,
				Assigned: assigned,
				Nearby:   nearby,
				Time:     e.Timestamp,
			})
		}
	case events.NotificationStateChanged:
		if r, ok := sink.(coremetrics.NotificationRecorder); ok {
			_ = r.RecordNotification(coremetrics.NotificationEvent{
				AlertID:        e.AlertID,
				NotificationID: e.NotificationID,
				RecipientID:    e.RecipientID,
				Channel:        e.Channel,
				State:          e.State,
				Attempts:       e.Attempts,
				Error:          e.Err,
				Time:           e.Timestamp,
			})
		}
	case events.PositionUpdated:
		if r, ok := sink.(coremetrics.PositionRecorder); ok {
			_ = r.RecordPosition(coremetrics.PositionEvent{
				SubjectID: e.SubjectID,
				Position:  e.Position,
				Time:      time.Now(),
			})
		}
	}
}
