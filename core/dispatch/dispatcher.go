package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindcare/guardian/core/logger"
	"github.com/mindcare/guardian/core/model"
)

// ErrSendFailure wraps a channel send error. Send failures are never fatal
// to the caller; they are recorded on the notification and retried per
// policy.
var ErrSendFailure = errors.New("dispatch: channel send failure")

// ErrUnknownChannel is returned when the policy names a channel without a
// configured sender.
var ErrUnknownChannel = errors.New("dispatch: no sender for channel")

// Dispatcher creates notifications for ranked candidates and drives the
// channel senders. It never blocks on delivery confirmation: Dispatch
// returns once first attempts completed and background retries continue
// while the owning alert stays live.
type Dispatcher struct {
	senders map[model.Channel]ChannelSender
	policy  ChannelPolicy
	cfg     Config
	log     logger.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(senders map[model.Channel]ChannelSender, policy ChannelPolicy, cfg Config, log logger.Logger) (*Dispatcher, error) {
	if len(senders) == 0 || policy == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewDispatcher")
	}
	cfg.SetDefaults()
	return &Dispatcher{senders: senders, policy: policy, cfg: cfg, log: log}, nil
}

// Dispatch creates exactly one pending notification per (candidate,
// configured channel) pair, attempts the first send for each concurrently
// and returns once every initial attempt finished. Notifications whose
// first push or sms attempt failed keep retrying in the background; each
// retry outcome is delivered through report. alive is consulted before
// every retry attempt so a resolved or expired alert stops its loops.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *model.Alert, candidates []model.AlertCandidate, alive func() bool, report func(Update)) Result {
	var res Result
	type attempt struct {
		notif  *model.Notification
		sender ChannelSender
	}
	var attempts []attempt
	for _, cand := range candidates {
		for _, ch := range d.policy.ChannelsFor(cand.SubjectID) {
			if alert.Notification(cand.SubjectID, ch) != nil {
				continue // merge re-dispatch: pair already covered
			}
			n := &model.Notification{
				ID:          uuid.NewString(),
				AlertID:     alert.ID,
				RecipientID: cand.SubjectID,
				Channel:     ch,
				State:       model.NotificationPending,
				UpdatedAt:   time.Now(),
			}
			res.Notifications = append(res.Notifications, n)
			sender, ok := d.senders[ch]
			if !ok {
				n.State = model.NotificationFailed
				n.LastError = fmt.Sprintf("%v: %s", ErrUnknownChannel, ch)
				d.log.Errorf("alert %s: %s", alert.ID, n.LastError)
				continue
			}
			attempts = append(attempts, attempt{notif: n, sender: sender})
		}
	}
	d.log.Infof("dispatching alert %s to %d notifications across %d candidates",
		alert.ID, len(res.Notifications), len(candidates))

	payload := payloadFor(alert)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, at := range attempts {
		wg.Add(1)
		go func(at attempt) {
			defer wg.Done()
			err := d.sendOnce(ctx, at.sender, at.notif.RecipientID, payload, at.notif.Channel)
			mu.Lock()
			defer mu.Unlock()
			at.notif.Attempts++
			at.notif.UpdatedAt = time.Now()
			if err == nil {
				at.notif.State = model.NotificationSent
				return
			}
			at.notif.State = model.NotificationFailed
			at.notif.LastError = err.Error()
			if d.retryable(at.notif.Channel) {
				res.Retrying = append(res.Retrying, at.notif.ID)
			}
		}(at)
	}
	wg.Wait()

	for _, at := range attempts {
		if at.notif.State == model.NotificationFailed && d.retryable(at.notif.Channel) {
			retriesActive.Inc()
			go func(n model.Notification, sender ChannelSender) {
				defer retriesActive.Dec()
				d.retryLoop(ctx, n, payload, sender, alive, report)
			}(*at.notif, at.sender)
		}
	}
	return res
}

// retryable reports whether failed sends on the channel are retried. Socket
// sends are not: a failed socket write means the recipient is disconnected
// and reconnection re-subscribes them.
func (d *Dispatcher) retryable(ch model.Channel) bool {
	return ch != model.ChannelSocket
}

func (d *Dispatcher) sendOnce(ctx context.Context, sender ChannelSender, recipientID string, payload Payload, ch model.Channel) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	start := time.Now()
	err := sender.Send(sendCtx, recipientID, payload)
	observeSend(ch, err == nil, time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: %s to %s: %v", ErrSendFailure, ch, recipientID, err)
	}
	return nil
}

// retryLoop re-attempts a failed notification with exponential backoff. It
// operates on a private copy and reports every outcome; the alert owner
// applies updates on its own queue.
func (d *Dispatcher) retryLoop(ctx context.Context, notif model.Notification, payload Payload, sender ChannelSender, alive func() bool, report func(Update)) {
	backoff := d.cfg.BaseBackoff
	for notif.Attempts < d.cfg.MaxAttempts {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > d.cfg.BackoffCap {
			backoff = d.cfg.BackoffCap
		}
		if !alive() {
			d.log.Debugf("alert %s no longer live, dropping retries for %s", notif.AlertID, notif.ID)
			return
		}
		notif.Attempts++
		err := d.sendOnce(ctx, sender, notif.RecipientID, payload, notif.Channel)
		up := Update{
			AlertID:        notif.AlertID,
			NotificationID: notif.ID,
			RecipientID:    notif.RecipientID,
			Channel:        notif.Channel,
			Attempts:       notif.Attempts,
		}
		if err == nil {
			up.State = model.NotificationSent
			report(up)
			return
		}
		d.log.Warnf("retry %d for notification %s failed: %v", notif.Attempts, notif.ID, err)
		up.State = model.NotificationFailed
		up.Err = err.Error()
		report(up)
	}
}

// Ack marks the notification delivered. A second ack for an already
// delivered notification is a no-op. The caller must hold the alert's
// serialization, as with every other alert mutation.
func (d *Dispatcher) Ack(alert *model.Alert, recipientID string, ch model.Channel) (*model.Notification, bool) {
	n := alert.Notification(recipientID, ch)
	if n == nil {
		return nil, false
	}
	if n.Delivered() {
		return n, false
	}
	n.State = model.NotificationDelivered
	n.UpdatedAt = time.Now()
	return n, true
}

func payloadFor(alert *model.Alert) Payload {
	return Payload{
		AlertID:   alert.ID,
		PatientID: alert.PatientID,
		Title:     "Emergency Alert",
		Body:      fmt.Sprintf("Patient %s needs help nearby", alert.PatientID),
		Origin:    alert.OriginPosition,
		Address:   alert.Address,
	}
}
