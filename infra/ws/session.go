// Package ws exposes alert rooms over gorilla/websocket. Each connection
// becomes a broadcast session with a buffered outbound queue; a slow
// consumer drops events instead of stalling the fan-out.
package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mindcare/guardian/infra/logger"
)

// session wraps one websocket connection and implements broadcast.Session.
type session struct {
	id        string
	subjectID string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
	cfg       Config
	log       logger.Logger
}

func newSession(id, subjectID string, conn *websocket.Conn, cfg Config, log logger.Logger) *session {
	return &session{
		id:        id,
		subjectID: subjectID,
		conn:      conn,
		send:      make(chan []byte, cfg.MessageBufferSize),
		closed:    make(chan struct{}),
		cfg:       cfg,
		log:       log,
	}
}

func (s *session) ID() string { return s.id }

// Send queues the event for the write pump. Events for a full queue are
// dropped with an error so the broadcaster can log the slow consumer.
func (s *session) Send(event any) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ws: encode event: %w", err)
	}
	select {
	case <-s.closed:
		return fmt.Errorf("ws: session %s closed", s.id)
	case s.send <- raw:
		return nil
	default:
		return fmt.Errorf("ws: session %s queue full", s.id)
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings.
func (s *session) writePump() {
	ticker := time.NewTicker(time.Duration(float64(s.cfg.heartbeat()) * 0.9))
	defer func() {
		ticker.Stop()
		s.close()
	}()
	for {
		select {
		case <-s.closed:
			return
		case raw := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.writeWait()))
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				s.log.Debugf("session %s write failed: %v", s.id, err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.writeWait()))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
