package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/mindcare/guardian/infra/logger"
)

type fakeSession struct {
	id string
	mu sync.Mutex
	rx []any
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Send(event any) error {
	s.mu.Lock()
	s.rx = append(s.rx, event)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) received() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.rx...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPublishReachesRoomMembersOnly(t *testing.T) {
	b := New(0, logger.NopLogger{})
	defer b.Close()
	in := &fakeSession{id: "in"}
	out := &fakeSession{id: "out"}
	b.Join(in, AlertRoom("a1"))
	b.Join(out, AlertRoom("other"))

	if err := b.Publish(AlertRoom("a1"), "ev"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitFor(t, func() bool { return len(in.received()) == 1 })
	if len(out.received()) != 0 {
		t.Fatal("session in another room must not receive the event")
	}
}

func TestPublishToEmptyRoomIsNoop(t *testing.T) {
	b := New(0, logger.NopLogger{})
	defer b.Close()
	if err := b.Publish(AlertRoom("ghost"), "ev"); err != nil {
		t.Fatalf("publishing to an empty room must not error: %v", err)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	b := New(0, logger.NopLogger{})
	defer b.Close()
	s := &fakeSession{id: "s1"}
	b.Join(s, PatientRoom("pat"))
	b.Join(s, PatientRoom("pat"))
	if got := b.Members(PatientRoom("pat")); got != 1 {
		t.Fatalf("expected 1 member, got %d", got)
	}
	_ = b.Publish(PatientRoom("pat"), "ev")
	waitFor(t, func() bool { return len(s.received()) == 1 })
	if len(s.received()) != 1 {
		t.Fatal("double join must not duplicate delivery")
	}
}

func TestPerRoomOrderingIsFIFO(t *testing.T) {
	b := New(0, logger.NopLogger{})
	defer b.Close()
	s := &fakeSession{id: "s1"}
	b.Join(s, AlertRoom("a1"))
	for i := 0; i < 50; i++ {
		if err := b.Publish(AlertRoom("a1"), i); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	waitFor(t, func() bool { return len(s.received()) == 50 })
	for i, ev := range s.received() {
		if ev.(int) != i {
			t.Fatalf("event %d out of order: got %v", i, ev)
		}
	}
}

func TestLeaveAllOnDisconnect(t *testing.T) {
	b := New(0, logger.NopLogger{})
	defer b.Close()
	s := &fakeSession{id: "s1"}
	b.Join(s, AlertRoom("a1"))
	b.Join(s, PatientRoom("pat"))
	b.LeaveAll("s1")
	if b.Members(AlertRoom("a1")) != 0 || b.Members(PatientRoom("pat")) != 0 {
		t.Fatal("LeaveAll must clear every membership")
	}
	// leave of a never-joined room is fine
	b.Leave(s, AlertRoom("never"))
}

func TestPublishAfterCloseFails(t *testing.T) {
	b := New(0, logger.NopLogger{})
	b.Close()
	b.Close() // idempotent
	if err := b.Publish(AlertRoom("a1"), "ev"); err == nil {
		t.Fatal("publish after close must fail")
	}
}
