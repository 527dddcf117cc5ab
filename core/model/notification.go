package model

import "time"

// Channel identifies a delivery mechanism for a notification.
type Channel string

const (
	ChannelPush   Channel = "push"
	ChannelSocket Channel = "socket"
	ChannelSMS    Channel = "sms"
)

// NotificationState tracks the delivery lifecycle of one notification.
type NotificationState string

const (
	NotificationPending   NotificationState = "pending"
	NotificationSent      NotificationState = "sent"
	NotificationDelivered NotificationState = "delivered"
	NotificationFailed    NotificationState = "failed"
)

// Notification is one delivery stream for a (recipient, channel) pair of a
// single alert. Exactly one exists per pair per alert.
type Notification struct {
	ID          string            `json:"id"`
	AlertID     string            `json:"alert_id"`
	RecipientID string            `json:"recipient_id"`
	Channel     Channel           `json:"channel"`
	State       NotificationState `json:"state"`
	Attempts    int               `json:"attempts"`
	LastError   string            `json:"last_error,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Delivered reports whether the recipient confirmed receipt. A delivered
// notification never changes state again.
func (n Notification) Delivered() bool {
	return n.State == NotificationDelivered
}
