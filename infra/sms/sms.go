// Package sms delivers alert notifications through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mindcare/guardian/core/dispatch"
	"github.com/mindcare/guardian/infra/logger"
)

// Config defines the SMS gateway endpoint and credentials.
type Config struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	From           string `json:"from"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Sender implements dispatch.ChannelSender over the gateway's HTTP API. The
// gateway resolves recipient ids to phone numbers; numbers never transit
// through this service.
type Sender struct {
	client   *http.Client
	endpoint string
	apiKey   string
	from     string
	log      logger.Logger
}

// New creates an SMS sender.
func New(cfg Config) *Sender {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	return &Sender{
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		log:      logger.New("sms-sender"),
	}
}

type gatewayMessage struct {
	RecipientID string `json:"recipient_id"`
	From        string `json:"from"`
	Text        string `json:"text"`
	Reference   string `json:"reference"`
}

// Send posts one message to the gateway. The text carries the alert body and
// the resolved address when present.
func (s *Sender) Send(ctx context.Context, recipientID string, p dispatch.Payload) error {
	text := p.Body
	if p.Address != "" {
		text = fmt.Sprintf("%s Location: %s", p.Body, p.Address)
	}
	msg := gatewayMessage{
		RecipientID: recipientID,
		From:        s.from,
		Text:        text,
		Reference:   p.AlertID,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/messages", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms send to %s: %w", recipientID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms send to %s: gateway returned %s", recipientID, resp.Status)
	}
	return nil
}
