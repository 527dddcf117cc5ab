package dispatch

import (
	"context"
	"time"

	"github.com/mindcare/guardian/core/model"
)

// Payload is the typed notification content handed to channel senders.
// Provider wire formats are produced inside each sender, never here.
type Payload struct {
	AlertID   string         `json:"alert_id"`
	PatientID string         `json:"patient_id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Origin    model.Position `json:"origin"`
	Address   string         `json:"address,omitempty"`
}

// ChannelSender delivers a payload to one recipient over one channel. Send
// must honor the context deadline; it is the only operation allowed to
// block on external latency.
type ChannelSender interface {
	Send(ctx context.Context, recipientID string, payload Payload) error
}

// ChannelPolicy decides which channels to attempt for a recipient, in order.
type ChannelPolicy interface {
	ChannelsFor(recipientID string) []model.Channel
}

// StaticPolicy applies the same ordered channel list to every recipient.
type StaticPolicy []model.Channel

func (p StaticPolicy) ChannelsFor(string) []model.Channel { return p }

// Config defines send attempt and retry behavior.
type Config struct {
	// MaxAttempts bounds the total sends per retryable notification,
	// first attempt included.
	MaxAttempts int
	BaseBackoff time.Duration
	BackoffCap  time.Duration
	// SendTimeout bounds each individual sender call.
	SendTimeout time.Duration
}

// SetDefaults fills zero values: 3 attempts, 1s base backoff doubling up to
// 30s, 5s per-attempt send timeout.
func (c *Config) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
}

// Update reports a notification state change produced outside the initial
// dispatch call, typically a background retry outcome.
type Update struct {
	AlertID        string
	NotificationID string
	RecipientID    string
	Channel        model.Channel
	State          model.NotificationState
	Attempts       int
	Err            string
}

// Result summarizes the initial dispatch pass for one alert.
type Result struct {
	Notifications []*model.Notification
	// Retrying lists notification ids still being retried in the
	// background when Dispatch returned.
	Retrying []string
}
