package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mindcare/guardian/core/broadcast"
	"github.com/mindcare/guardian/core/model"
	"github.com/mindcare/guardian/infra/logger"
)

// Acker records a caregiver acknowledgment received over the socket.
type Acker interface {
	Ack(alertID, recipientID string, ch model.Channel) error
}

// Transport upgrades HTTP requests into broadcast sessions and routes
// client commands: join, leave, ack.
type Transport struct {
	cfg         Config
	upgrader    websocket.Upgrader
	broadcaster *broadcast.Broadcaster
	acker       Acker
	log         logger.Logger
}

// NewTransport creates a websocket transport bound to the broadcaster.
func NewTransport(cfg Config, broadcaster *broadcast.Broadcaster, acker Acker) *Transport {
	cfg.SetDefaults()
	return &Transport{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		broadcaster: broadcaster,
		acker:       acker,
		log:         logger.New("ws-transport"),
	}
}

// clientCommand is the inbound wire format.
type clientCommand struct {
	Action  string `json:"action"`
	Room    string `json:"room,omitempty"`
	AlertID string `json:"alert_id,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// ServeHTTP upgrades the request. The subject_id query parameter identifies
// the connecting client; acks are attributed to it.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subject_id")
	if subjectID == "" {
		http.Error(w, "subject_id required", http.StatusBadRequest)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.log.Errorf("upgrade failed: %v", err)
		return
	}
	s := newSession(uuid.NewString(), subjectID, conn, t.cfg, t.log)
	// Every client lands in its personal room; socket notifications are
	// delivered there.
	t.broadcaster.Join(s, broadcast.SubjectRoom(subjectID))
	t.log.Infof("session %s connected for subject %s", s.id, subjectID)
	go s.writePump()
	go t.readPump(s)
}

func (t *Transport) readPump(s *session) {
	defer func() {
		t.broadcaster.LeaveAll(s.id)
		s.close()
		t.log.Infof("session %s disconnected", s.id)
	}()
	s.conn.SetReadLimit(int64(t.cfg.MaxMessageBytes))
	_ = s.conn.SetReadDeadline(time.Now().Add(t.cfg.heartbeat()))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(t.cfg.heartbeat()))
	})
	for {
		var cmd clientCommand
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.log.Debugf("session %s read error: %v", s.id, err)
			}
			return
		}
		t.handle(s, cmd)
	}
}

func (t *Transport) handle(s *session, cmd clientCommand) {
	switch cmd.Action {
	case "join":
		if cmd.Room == "" {
			return
		}
		t.broadcaster.Join(s, cmd.Room)
	case "leave":
		if cmd.Room == "" {
			return
		}
		t.broadcaster.Leave(s, cmd.Room)
	case "ack":
		if t.acker == nil || cmd.AlertID == "" {
			return
		}
		// The client names the channel it is acknowledging; a bare ack
		// counts against the socket notification.
		ch := model.ChannelSocket
		if cmd.Channel != "" {
			ch = model.Channel(cmd.Channel)
		}
		if err := t.acker.Ack(cmd.AlertID, s.subjectID, ch); err != nil {
			t.log.Warnf("ack from %s for alert %s: %v", s.subjectID, cmd.AlertID, err)
		}
	default:
		t.log.Debugf("session %s sent unknown action %q", s.id, cmd.Action)
	}
}
