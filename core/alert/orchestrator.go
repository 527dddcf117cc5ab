// Package alert coordinates the end-to-end lifecycle of an emergency
// alert: geo query, eligibility ranking, notification dispatch and
// real-time propagation.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindcare/guardian/core/broadcast"
	"github.com/mindcare/guardian/core/dispatch"
	"github.com/mindcare/guardian/core/events"
	"github.com/mindcare/guardian/core/geo"
	"github.com/mindcare/guardian/core/geocode"
	"github.com/mindcare/guardian/core/logger"
	"github.com/mindcare/guardian/core/model"
	"github.com/mindcare/guardian/core/rank"
	"github.com/mindcare/guardian/core/repository"
	"github.com/mindcare/guardian/internal/eventbus"
)

// Orchestrator owns every live alert. Each alert runs on its own
// sequential task queue so its state transitions are strictly ordered
// while unrelated patients' alerts proceed in parallel.
type Orchestrator struct {
	cfg         Config
	index       *geo.Index
	ranker      rank.Ranker
	dispatcher  *dispatch.Dispatcher
	broadcaster *broadcast.Broadcaster
	alerts      repository.AlertRepository
	subjects    repository.SubjectRepository
	geocoder    geocode.Provider
	bus         *eventbus.Bus[any]
	log         logger.Logger

	mu        sync.Mutex
	byPatient map[string]*actor
	byAlert   map[string]*actor
}

// actor serializes all work for one alert.
type actor struct {
	alert *model.Alert
	cmds  chan func()
	done  chan struct{}
	timer *time.Timer

	stopOnce sync.Once

	statusMu sync.RWMutex
	halted   bool
}

// stop terminates the actor's queue. Safe to call from both the actor
// goroutine (retire) and Close.
func (a *actor) stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

func (a *actor) status() model.AlertStatus {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.alert.Status
}

func (a *actor) live() bool {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return !a.alert.Status.Terminal() && !a.halted
}

// New creates an Orchestrator. The geocoder may be nil; every other
// dependency is required.
func New(cfg Config, index *geo.Index, dispatcher *dispatch.Dispatcher, broadcaster *broadcast.Broadcaster,
	alerts repository.AlertRepository, subjects repository.SubjectRepository,
	geocoder geocode.Provider, bus *eventbus.Bus[any], log logger.Logger) (*Orchestrator, error) {
	if index == nil || dispatcher == nil || broadcaster == nil || alerts == nil || subjects == nil || bus == nil || log == nil {
		return nil, fmt.Errorf("alert: nil parameter provided to New")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return &Orchestrator{
		cfg:         cfg,
		index:       index,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		alerts:      alerts,
		subjects:    subjects,
		geocoder:    geocoder,
		bus:         bus,
		log:         log,
		byPatient:   make(map[string]*actor),
		byAlert:     make(map[string]*actor),
	}, nil
}

// UpdatePosition records a subject's position. Stale updates are dropped
// and reported with geo.ErrStaleUpdate; they are never fatal.
func (o *Orchestrator) UpdatePosition(subjectID string, pos model.Position) error {
	if err := o.index.UpsertPosition(subjectID, pos); err != nil {
		if errors.Is(err, geo.ErrStaleUpdate) {
			o.log.Debugf("ignoring stale position for %s", subjectID)
		}
		return err
	}
	o.bus.Publish(events.PositionUpdated{SubjectID: subjectID, Position: pos})
	return nil
}

// Trigger opens an alert for the patient at the given origin. With a live
// alert already present the configured duplicate policy applies: merge
// refreshes its candidate list, reject returns ErrAlreadyActive wrapped in
// a structured rejection.
func (o *Orchestrator) Trigger(ctx context.Context, patientID string, origin model.Position) (*model.Alert, error) {
	if err := origin.Validate(); err != nil {
		return nil, reject("trigger", err.Error(), false)
	}

	o.mu.Lock()
	if existing, ok := o.byPatient[patientID]; ok && existing.live() {
		alertID := existing.alert.ID
		o.mu.Unlock()
		if o.cfg.OnDuplicateTrigger == DuplicateReject {
			o.log.Warnf("trigger for %s rejected, alert %s still live", patientID, alertID)
			return nil, fmt.Errorf("%w: patient %s", ErrAlreadyActive, patientID)
		}
		o.enqueue(existing, func() { o.refreshCandidates(existing, origin) })
		if snap, ok := o.snapshot(existing); ok {
			return snap, nil
		}
		stored, err := o.alerts.GetAlert(ctx, alertID)
		if err != nil {
			return nil, reject("trigger", "could not load merged alert", true)
		}
		return stored, nil
	}

	a := &actor{
		alert: &model.Alert{
			ID:             uuid.NewString(),
			PatientID:      patientID,
			OriginPosition: origin,
			CreatedAt:      time.Now(),
			Status:         model.AlertCreated,
		},
		cmds: make(chan func(), 64),
		done: make(chan struct{}),
	}
	o.byPatient[patientID] = a
	o.byAlert[a.alert.ID] = a
	o.mu.Unlock()

	if err := o.alerts.SaveAlert(ctx, a.alert); err != nil {
		o.mu.Lock()
		delete(o.byPatient, patientID)
		delete(o.byAlert, a.alert.ID)
		o.mu.Unlock()
		o.log.Errorf("persist new alert for %s: %v", patientID, err)
		return nil, reject("trigger", "could not persist alert", true)
	}

	go o.runActor(a)
	o.publish(a.alert, events.AlertCreated{
		Event:     o.event(events.TypeAlertCreated, a.alert.ID, "status"),
		PatientID: patientID,
		Origin:    origin,
	})
	// copy before the pipeline starts mutating the record
	snap := cloneAlert(a.alert)
	o.enqueue(a, func() { o.pipeline(a) })
	o.log.Infof("alert %s created for patient %s", a.alert.ID, patientID)
	return snap, nil
}

// Ack records a delivery acknowledgment. The first ack from any recipient
// resolves the alert; repeated acks are no-ops.
func (o *Orchestrator) Ack(alertID, recipientID string, ch model.Channel) error {
	a, ok := o.lookup(alertID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoLiveAlert, alertID)
	}
	o.enqueue(a, func() {
		n, changed := o.dispatcher.Ack(a.alert, recipientID, ch)
		if n == nil {
			o.log.Warnf("ack for unknown notification %s/%s on alert %s", recipientID, ch, alertID)
			return
		}
		if !changed {
			return
		}
		o.persistAndNotify(a, n, "")
		if a.alert.Status == model.AlertActive || a.alert.Status == model.AlertDispatching {
			o.resolve(a, recipientID, false)
		}
	})
	return nil
}

// Cancel resolves the alert on behalf of the patient.
func (o *Orchestrator) Cancel(alertID string) error {
	a, ok := o.lookup(alertID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoLiveAlert, alertID)
	}
	o.enqueue(a, func() {
		if a.alert.Status.Terminal() {
			return
		}
		o.resolve(a, a.alert.PatientID, true)
	})
	return nil
}

// Alert returns a copy of the live alert, if any. The actor keeps mutating
// its own record; callers never see the live pointer.
func (o *Orchestrator) Alert(alertID string) (*model.Alert, bool) {
	a, ok := o.lookup(alertID)
	if !ok {
		return nil, false
	}
	if snap, ok := o.snapshot(a); ok {
		return snap, true
	}
	// retired between lookup and snapshot; the terminal record is durable
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stored, err := o.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return nil, false
	}
	return stored, true
}

// snapshot copies the alert on the actor's own queue so the copy cannot
// race a mutation. Fails once the actor has retired.
func (o *Orchestrator) snapshot(a *actor) (*model.Alert, bool) {
	ch := make(chan *model.Alert, 1)
	if !o.enqueue(a, func() { ch <- cloneAlert(a.alert) }) {
		return nil, false
	}
	select {
	case snap := <-ch:
		return snap, true
	case <-a.done:
		return nil, false
	}
}

// cloneAlert deep-copies through JSON, the same way the repositories
// snapshot stored alerts.
func cloneAlert(al *model.Alert) *model.Alert {
	raw, err := json.Marshal(al)
	if err != nil {
		return nil
	}
	var cp model.Alert
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil
	}
	return &cp
}

// Close stops accepting work and terminates actor queues.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	actors := make([]*actor, 0, len(o.byAlert))
	for _, a := range o.byAlert {
		actors = append(actors, a)
	}
	o.mu.Unlock()
	for _, a := range actors {
		a.statusMu.Lock()
		a.halted = true
		a.statusMu.Unlock()
		a.stop()
	}
}

func (o *Orchestrator) lookup(alertID string) (*actor, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.byAlert[alertID]
	return a, ok
}

func (o *Orchestrator) enqueue(a *actor, fn func()) bool {
	select {
	case <-a.done:
		return false
	case a.cmds <- fn:
		return true
	}
}

func (o *Orchestrator) runActor(a *actor) {
	for {
		// done wins over queued commands so nothing runs after retire
		select {
		case <-a.done:
			return
		default:
		}
		select {
		case <-a.done:
			return
		case fn := <-a.cmds:
			fn()
		}
	}
}

// pipeline drives created -> dispatching -> active (or expired when no
// recipient is eligible). Runs on the actor queue.
func (o *Orchestrator) pipeline(a *actor) {
	al := a.alert
	o.resolveAddress(al)

	caregivers, err := o.caregiverSnapshot()
	if err != nil {
		o.log.Errorf("alert %s: caregiver snapshot: %v", al.ID, err)
	}
	matches := o.index.QueryWithinRadius(al.OriginPosition, o.cfg.QueryRadiusMeters, func(s model.Subject) bool {
		return s.Role == model.RoleCaregiver
	})
	al.Candidates = o.ranker.Rank(al.PatientID, matches, caregivers)

	if len(al.Candidates) == 0 {
		o.log.Warnf("alert %s: no eligible recipients", al.ID)
		o.expire(a, model.ExpireReasonNoRecipients)
		return
	}

	if !o.transition(a, model.AlertDispatching) {
		return
	}
	o.publish(al, events.CandidateRanked{
		Event:      o.event(events.TypeCandidateRanked, al.ID, "candidates"),
		Candidates: al.Candidates,
	})

	res := o.dispatcher.Dispatch(context.Background(), al, al.Candidates, a.live, func(up dispatch.Update) {
		o.applyUpdate(al.ID, up)
	})
	al.Notifications = append(al.Notifications, res.Notifications...)

	if !o.transition(a, model.AlertActive) {
		return
	}
	for _, n := range res.Notifications {
		o.notifyState(al, n, "")
	}
	a.timer = time.AfterFunc(o.cfg.Timeout, func() {
		o.enqueue(a, func() {
			if !a.alert.Status.Terminal() {
				o.expire(a, model.ExpireReasonTimeout)
			}
		})
	})
}

// refreshCandidates re-runs query and ranking for a merged trigger and
// dispatches to candidates not yet notified. Runs on the actor queue.
func (o *Orchestrator) refreshCandidates(a *actor, origin model.Position) {
	al := a.alert
	if al.Status.Terminal() {
		return
	}
	o.log.Infof("alert %s: merging duplicate trigger", al.ID)
	al.OriginPosition = origin
	caregivers, err := o.caregiverSnapshot()
	if err != nil {
		o.log.Errorf("alert %s: caregiver snapshot: %v", al.ID, err)
	}
	matches := o.index.QueryWithinRadius(origin, o.cfg.QueryRadiusMeters, func(s model.Subject) bool {
		return s.Role == model.RoleCaregiver
	})
	al.Candidates = o.ranker.Rank(al.PatientID, matches, caregivers)
	if err := o.persist(a); err != nil {
		return
	}
	o.publish(al, events.CandidateRanked{
		Event:      o.event(events.TypeCandidateRanked, al.ID, "candidates"),
		Candidates: al.Candidates,
	})
	res := o.dispatcher.Dispatch(context.Background(), al, al.Candidates, a.live, func(up dispatch.Update) {
		o.applyUpdate(al.ID, up)
	})
	al.Notifications = append(al.Notifications, res.Notifications...)
	for _, n := range res.Notifications {
		o.persistAndNotify(a, n, "")
	}
}

// applyUpdate feeds a background retry outcome into the alert's queue.
func (o *Orchestrator) applyUpdate(alertID string, up dispatch.Update) {
	a, ok := o.lookup(alertID)
	if !ok {
		return
	}
	o.enqueue(a, func() {
		n := a.alert.Notification(up.RecipientID, up.Channel)
		if n == nil || n.Delivered() {
			return
		}
		n.State = up.State
		n.Attempts = up.Attempts
		n.LastError = up.Err
		n.UpdatedAt = time.Now()
		o.persistAndNotify(a, n, up.Err)
	})
}

// transition persists the status change before making it visible. Returns
// false when the alert cannot progress.
func (o *Orchestrator) transition(a *actor, next model.AlertStatus) bool {
	al := a.alert
	prev := al.Status
	a.statusMu.Lock()
	al.Status = next
	a.statusMu.Unlock()
	if err := o.persistStatus(a, prev); err != nil {
		return false
	}
	o.log.Debugw("alert transition", map[string]any{
		"alert_id": al.ID, "from": string(prev), "to": string(next),
	})
	return true
}

func (o *Orchestrator) resolve(a *actor, by string, cancelled bool) {
	if !o.transition(a, model.AlertResolved) {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	o.publish(a.alert, events.AlertResolved{
		Event:      o.event(events.TypeAlertResolved, a.alert.ID, "status"),
		ResolvedBy: by,
		Cancelled:  cancelled,
	})
	o.retire(a)
	o.log.Infof("alert %s resolved by %s (cancelled=%v)", a.alert.ID, by, cancelled)
}

func (o *Orchestrator) expire(a *actor, reason string) {
	prevReason := a.alert.ExpireReason
	a.alert.ExpireReason = reason
	if !o.transition(a, model.AlertExpired) {
		a.alert.ExpireReason = prevReason
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	o.publish(a.alert, events.AlertExpired{
		Event:  o.event(events.TypeAlertExpired, a.alert.ID, "status"),
		Reason: reason,
	})
	o.retire(a)
	o.log.Warnf("alert %s expired: %s", a.alert.ID, reason)
}

// retire removes a terminal alert from the live registries and stops its
// queue.
func (o *Orchestrator) retire(a *actor) {
	o.mu.Lock()
	if cur, ok := o.byPatient[a.alert.PatientID]; ok && cur == a {
		delete(o.byPatient, a.alert.PatientID)
	}
	delete(o.byAlert, a.alert.ID)
	o.mu.Unlock()
	a.stop()
}

// persistStatus writes the alert after a status change. On persistent
// failure the in-memory transition is rolled back and the alert halts: no
// observer may see a transition without its durable trace.
func (o *Orchestrator) persistStatus(a *actor, prev model.AlertStatus) error {
	if err := o.persist(a); err != nil {
		a.statusMu.Lock()
		a.alert.Status = prev
		a.statusMu.Unlock()
		return err
	}
	return nil
}

func (o *Orchestrator) persist(a *actor) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.alerts.SaveAlert(ctx, a.alert); err != nil {
		if errors.Is(err, repository.ErrPersistenceFailure) {
			o.halt(a, err)
		} else {
			o.log.Errorf("persist alert %s: %v", a.alert.ID, err)
		}
		return err
	}
	return nil
}

// halt freezes the alert after exhausted persistence retries and surfaces
// a fatal operational event instead of silently losing state.
func (o *Orchestrator) halt(a *actor, err error) {
	a.statusMu.Lock()
	a.halted = true
	a.statusMu.Unlock()
	o.bus.Publish(events.PersistenceStalled{AlertID: a.alert.ID, Err: err.Error()})
	o.log.Errorf("alert %s halted, persistence failing: %v", a.alert.ID, err)
}

func (o *Orchestrator) persistAndNotify(a *actor, n *model.Notification, sendErr string) {
	if err := o.persist(a); err != nil {
		return
	}
	o.notifyState(a.alert, n, sendErr)
}

func (o *Orchestrator) notifyState(al *model.Alert, n *model.Notification, sendErr string) {
	o.publish(al, events.NotificationStateChanged{
		Event:          o.event(events.TypeNotificationChanged, al.ID, "notification"),
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		Channel:        n.Channel,
		State:          n.State,
		Attempts:       n.Attempts,
		Err:            sendErr,
	})
}

// publish fans the event out to the alert's room, the patient's room and
// the internal bus.
func (o *Orchestrator) publish(al *model.Alert, ev any) {
	o.bus.Publish(ev)
	if err := o.broadcaster.Publish(broadcast.AlertRoom(al.ID), ev); err != nil {
		o.log.Warnf("broadcast to %s: %v", broadcast.AlertRoom(al.ID), err)
	}
	if err := o.broadcaster.Publish(broadcast.PatientRoom(al.PatientID), ev); err != nil {
		o.log.Warnf("broadcast to %s: %v", broadcast.PatientRoom(al.PatientID), err)
	}
}

func (o *Orchestrator) event(typ, alertID, field string) events.Event {
	return events.Event{Type: typ, AlertID: alertID, Field: field, Timestamp: time.Now()}
}

// resolveAddress attaches a formatted address and the closest hospitals to
// the alert, best effort.
func (o *Orchestrator) resolveAddress(al *model.Alert) {
	if o.geocoder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := o.geocoder.ReverseGeocode(ctx, al.OriginPosition.Latitude, al.OriginPosition.Longitude)
	if err != nil {
		o.log.Debugf("alert %s: reverse geocode failed: %v", al.ID, err)
	} else {
		al.Address = res.FormattedAddress
	}

	places, err := o.geocoder.NearbyPlaces(ctx, al.OriginPosition.Latitude, al.OriginPosition.Longitude, facilityRadiusMeters, "hospital")
	if err != nil {
		o.log.Debugf("alert %s: nearby places lookup failed: %v", al.ID, err)
		return
	}
	if len(places) > maxNearbyFacilities {
		places = places[:maxNearbyFacilities]
	}
	for _, p := range places {
		al.NearbyFacilities = append(al.NearbyFacilities, model.Facility{
			Name:           p.Name,
			Address:        p.Address,
			DistanceMeters: p.Distance,
		})
	}
}

func (o *Orchestrator) caregiverSnapshot() (map[string]model.Subject, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	list, err := o.subjects.ListCaregivers(ctx)
	snapshot := make(map[string]model.Subject, len(list))
	for _, s := range list {
		snapshot[s.ID] = s
	}
	return snapshot, err
}
