package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindcare/guardian/core/model"
)

type captureSink struct {
	transitions   []AlertTransitionEvent
	notifications []NotificationEvent
	fail          bool
}

func (c *captureSink) RecordAlertTransition(ev AlertTransitionEvent) error {
	if c.fail {
		return fmt.Errorf("sink unavailable")
	}
	c.transitions = append(c.transitions, ev)
	return nil
}

func (c *captureSink) RecordNotification(ev NotificationEvent) error {
	c.notifications = append(c.notifications, ev)
	return nil
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	m := NewMultiSink(a, b)

	ev := AlertTransitionEvent{AlertID: "a1", Status: model.AlertActive, Time: time.Now()}
	require.NoError(t, m.RecordAlertTransition(ev))
	require.Len(t, a.transitions, 1)
	require.Len(t, b.transitions, 1)

	nev := NotificationEvent{AlertID: "a1", Channel: model.ChannelPush, State: model.NotificationSent}
	require.NoError(t, m.RecordNotification(nev))
	require.Len(t, a.notifications, 1)
}

func TestMultiSinkSkipsUnsupportedRecorders(t *testing.T) {
	m := NewMultiSink(NopSink{}, &captureSink{})
	require.NoError(t, m.RecordPosition(PositionEvent{SubjectID: "s1"}))
	require.NoError(t, m.RecordCandidateSet(CandidateSetEvent{AlertID: "a1", Assigned: 2, Nearby: 1}))
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	bad := &captureSink{fail: true}
	after := &captureSink{}
	m := NewMultiSink(bad, after)
	require.Error(t, m.RecordAlertTransition(AlertTransitionEvent{AlertID: "a1"}))
	require.Empty(t, after.transitions)
}

func TestNewMetricsSinkDefaultsToNop(t *testing.T) {
	s, err := NewMetricsSink(nil)
	require.NoError(t, err)
	require.IsType(t, NopSink{}, s)
}
