// Package broadcast fans out alert events to connected sessions grouped by
// logical rooms.
package broadcast

import (
	"fmt"
	"sync"

	"github.com/mindcare/guardian/core/logger"
)

// AlertRoom, PatientRoom and SubjectRoom name the rooms a client can join.
// SubjectRoom is the personal room every connected client is placed in; its
// membership doubles as presence for socket delivery.
func AlertRoom(alertID string) string     { return "alert:" + alertID }
func PatientRoom(patientID string) string { return "patient:" + patientID }
func SubjectRoom(subjectID string) string { return "subject:" + subjectID }

// Session is one connected client able to receive events. Send must not
// block indefinitely; slow consumers are the transport's problem, not the
// broadcaster's.
type Session interface {
	ID() string
	Send(event any) error
}

// Broadcaster maintains room membership and fans events out in FIFO order
// per room. All deliveries run on a single goroutine, so two events
// published to the same room from one publisher arrive in publish order.
type Broadcaster struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]Session
	byID    map[string]map[string]struct{} // session id -> joined rooms
	queue   chan envelope
	done    chan struct{}
	closeMu sync.Once
	log     logger.Logger
}

type envelope struct {
	room  string
	event any
}

// New creates a Broadcaster and starts its delivery loop. queueSize bounds
// pending fan-outs; zero selects a default of 256.
func New(queueSize int, log logger.Logger) *Broadcaster {
	if queueSize <= 0 {
		queueSize = 256
	}
	b := &Broadcaster{
		rooms: make(map[string]map[string]Session),
		byID:  make(map[string]map[string]struct{}),
		queue: make(chan envelope, queueSize),
		done:  make(chan struct{}),
		log:   log,
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	for {
		select {
		case env := <-b.queue:
			b.deliver(env)
		case <-b.done:
			// drain whatever was queued before close
			for {
				select {
				case env := <-b.queue:
					b.deliver(env)
				default:
					return
				}
			}
		}
	}
}

func (b *Broadcaster) deliver(env envelope) {
	b.mu.RLock()
	members := make([]Session, 0, len(b.rooms[env.room]))
	for _, s := range b.rooms[env.room] {
		members = append(members, s)
	}
	b.mu.RUnlock()
	for _, s := range members {
		if err := s.Send(env.event); err != nil {
			b.log.Warnf("send to session %s in %s failed: %v", s.ID(), env.room, err)
		}
	}
}

// Join adds the session to the room. Joining twice is a no-op.
func (b *Broadcaster) Join(s Session, room string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.rooms[room]
	if set == nil {
		set = make(map[string]Session)
		b.rooms[room] = set
	}
	set[s.ID()] = s
	joined := b.byID[s.ID()]
	if joined == nil {
		joined = make(map[string]struct{})
		b.byID[s.ID()] = joined
	}
	joined[room] = struct{}{}
}

// Leave removes the session from the room. Leaving a room the session never
// joined is a no-op.
func (b *Broadcaster) Leave(s Session, room string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaveLocked(s.ID(), room)
}

// LeaveAll removes the session from every room it joined. Transports call
// it on disconnect.
func (b *Broadcaster) LeaveAll(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for room := range b.byID[sessionID] {
		b.leaveLocked(sessionID, room)
	}
}

func (b *Broadcaster) leaveLocked(sessionID, room string) {
	if set := b.rooms[room]; set != nil {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(b.rooms, room)
		}
	}
	if joined := b.byID[sessionID]; joined != nil {
		delete(joined, room)
		if len(joined) == 0 {
			delete(b.byID, sessionID)
		}
	}
}

// Members returns the number of sessions currently in the room.
func (b *Broadcaster) Members(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

// Publish queues the event for delivery to every session in the room.
// Publishing to an empty room is a no-op. Returns an error only when the
// broadcaster is closed or its queue is full.
func (b *Broadcaster) Publish(room string, event any) error {
	select {
	case <-b.done:
		return fmt.Errorf("broadcast: closed")
	default:
	}
	select {
	case b.queue <- envelope{room: room, event: event}:
		return nil
	default:
		return fmt.Errorf("broadcast: queue full, dropping event for %s", room)
	}
}

// Close stops the delivery loop after draining queued events.
func (b *Broadcaster) Close() {
	b.closeMu.Do(func() { close(b.done) })
}
