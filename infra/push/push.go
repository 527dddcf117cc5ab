// Package push delivers alert notifications through an FCM-style HTTP
// provider and manages per-alert topic subscriptions for device tokens.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mindcare/guardian/core/dispatch"
	"github.com/mindcare/guardian/infra/logger"
)

// Config defines the push provider endpoint and credentials.
type Config struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Sender implements dispatch.ChannelSender over the provider's HTTP API.
type Sender struct {
	client   *http.Client
	endpoint string
	apiKey   string
	log      logger.Logger
}

// New creates a push sender.
func New(cfg Config) *Sender {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	return &Sender{
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		log:      logger.New("push-sender"),
	}
}

// message is the provider wire format for one push notification.
type message struct {
	To           string            `json:"to"`
	Notification map[string]string `json:"notification"`
	Data         map[string]string `json:"data"`
	Priority     string            `json:"priority"`
}

// Send posts the notification addressed to the recipient's device token
// namespace.
func (s *Sender) Send(ctx context.Context, recipientID string, p dispatch.Payload) error {
	msg := message{
		To: "/topics/subject-" + recipientID,
		Notification: map[string]string{
			"title": p.Title,
			"body":  p.Body,
		},
		Data: map[string]string{
			"alert_id":   p.AlertID,
			"patient_id": p.PatientID,
			"latitude":   strconv.FormatFloat(p.Origin.Latitude, 'f', -1, 64),
			"longitude":  strconv.FormatFloat(p.Origin.Longitude, 'f', -1, 64),
			"address":    p.Address,
		},
		Priority: "high",
	}
	if err := s.post(ctx, s.endpoint+"/send", msg); err != nil {
		return fmt.Errorf("push send to %s: %w", recipientID, err)
	}
	return nil
}

// topicRequest subscribes or unsubscribes a device token batch.
type topicRequest struct {
	Topic  string   `json:"topic"`
	Tokens []string `json:"tokens"`
}

// SubscribeTopic registers device tokens on the alert topic so later updates
// reach devices without re-addressing each one.
func (s *Sender) SubscribeTopic(ctx context.Context, topic string, tokens []string) error {
	if err := s.post(ctx, s.endpoint+"/topics/subscribe", topicRequest{Topic: topic, Tokens: tokens}); err != nil {
		return fmt.Errorf("push subscribe %s: %w", topic, err)
	}
	return nil
}

// UnsubscribeTopic removes device tokens from the alert topic.
func (s *Sender) UnsubscribeTopic(ctx context.Context, topic string, tokens []string) error {
	if err := s.post(ctx, s.endpoint+"/topics/unsubscribe", topicRequest{Topic: topic, Tokens: tokens}); err != nil {
		return fmt.Errorf("push unsubscribe %s: %w", topic, err)
	}
	return nil
}

func (s *Sender) post(ctx context.Context, url string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "key="+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned %s", resp.Status)
	}
	return nil
}
