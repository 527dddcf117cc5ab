package app

import (
	"context"
	"fmt"

	"github.com/mindcare/guardian/core/broadcast"
	"github.com/mindcare/guardian/core/dispatch"
)

// socketNotification is the event shape delivered to a recipient's personal
// room.
type socketNotification struct {
	Type    string           `json:"type"`
	Payload dispatch.Payload `json:"payload"`
}

// socketSender delivers notifications to connected websocket clients via
// their personal rooms. A recipient without a live session is a hard
// failure; the socket channel is never retried.
type socketSender struct {
	b *broadcast.Broadcaster
}

func newSocketSender(b *broadcast.Broadcaster) *socketSender {
	return &socketSender{b: b}
}

func (s *socketSender) Send(_ context.Context, recipientID string, p dispatch.Payload) error {
	room := broadcast.SubjectRoom(recipientID)
	if s.b.Members(room) == 0 {
		return fmt.Errorf("socket: subject %s not connected", recipientID)
	}
	return s.b.Publish(room, socketNotification{Type: "notification", Payload: p})
}
