package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindcare/guardian/core/broadcast"
	"github.com/mindcare/guardian/core/dispatch"
	"github.com/mindcare/guardian/infra/logger"
)

type stubSession struct {
	id string
	mu sync.Mutex
	rx []any
}

func (s *stubSession) ID() string { return s.id }
func (s *stubSession) Send(ev any) error {
	s.mu.Lock()
	s.rx = append(s.rx, ev)
	s.mu.Unlock()
	return nil
}

func (s *stubSession) received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx)
}

func TestSocketSenderRequiresLiveSession(t *testing.T) {
	b := broadcast.New(0, logger.NopLogger{})
	defer b.Close()
	sender := newSocketSender(b)

	err := sender.Send(context.Background(), "cg-1", dispatch.Payload{AlertID: "a1"})
	require.Error(t, err, "no connected session must fail the send")

	sess := &stubSession{id: "s1"}
	b.Join(sess, broadcast.SubjectRoom("cg-1"))
	require.NoError(t, sender.Send(context.Background(), "cg-1", dispatch.Payload{AlertID: "a1"}))

	deadline := time.Now().Add(2 * time.Second)
	for sess.received() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("notification never delivered to the session")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
