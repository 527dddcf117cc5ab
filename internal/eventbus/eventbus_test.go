package eventbus

import "testing"

type ping struct{ seq int }

func TestPublishSubscribe(t *testing.T) {
	b := New[ping]()
	defer b.Close()
	sub := b.Subscribe()
	b.Publish(ping{seq: 1})
	got := <-sub
	if got.seq != 1 {
		t.Fatalf("expected seq 1, got %d", got.seq)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New[ping]()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	// publishing after unsubscribe must not panic
	b.Publish(ping{seq: 2})
	b.Close()
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := New[ping]()
	defer b.Close()
	_ = b.Subscribe()
	for i := 0; i < 100; i++ {
		b.Publish(ping{seq: i})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New[ping]()
	sub := b.Subscribe()
	b.Close()
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel after Close")
	}
}
