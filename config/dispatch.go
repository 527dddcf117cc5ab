package config

import (
	"fmt"
	"time"

	"github.com/mindcare/guardian/core/dispatch"
	"github.com/mindcare/guardian/core/model"
)

// DispatchConfig tunes notification delivery and retries.
type DispatchConfig struct {
	// Channels lists the delivery channels attempted per recipient, in
	// order.
	Channels []string `json:"channels"`
	// MaxAttempts bounds total sends per retryable notification, the
	// first attempt included.
	MaxAttempts int `json:"max_attempts"`
	// BaseBackoffMS is the delay before the first retry; it doubles per
	// attempt up to BackoffCapMS.
	BaseBackoffMS int `json:"base_backoff_ms"`
	BackoffCapMS  int `json:"backoff_cap_ms"`
	// SendTimeoutMS bounds each individual provider call.
	SendTimeoutMS int `json:"send_timeout_ms"`
}

// SetDefaults fills zero values.
func (c *DispatchConfig) SetDefaults() {
	if len(c.Channels) == 0 {
		c.Channels = []string{string(model.ChannelPush), string(model.ChannelSocket), string(model.ChannelSMS)}
	}
}

// Validate rejects unknown channel names.
func (c DispatchConfig) Validate() error {
	for _, ch := range c.Channels {
		switch model.Channel(ch) {
		case model.ChannelPush, model.ChannelSocket, model.ChannelSMS:
		default:
			return fmt.Errorf("unknown dispatch channel %q", ch)
		}
	}
	return nil
}

// ToCore converts the section into the dispatcher's config.
func (c DispatchConfig) ToCore() dispatch.Config {
	return dispatch.Config{
		MaxAttempts: c.MaxAttempts,
		BaseBackoff: time.Duration(c.BaseBackoffMS) * time.Millisecond,
		BackoffCap:  time.Duration(c.BackoffCapMS) * time.Millisecond,
		SendTimeout: time.Duration(c.SendTimeoutMS) * time.Millisecond,
	}
}

// Policy returns the ordered channel policy.
func (c DispatchConfig) Policy() dispatch.StaticPolicy {
	policy := make(dispatch.StaticPolicy, 0, len(c.Channels))
	for _, ch := range c.Channels {
		policy = append(policy, model.Channel(ch))
	}
	return policy
}
