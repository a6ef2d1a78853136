package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeFired, Data: 42})

	select {
	case e := <-ch:
		if e.Type != TypeFired || e.Data != 42 {
			t.Fatalf("unexpected event: %+v", e)
		}
		if e.Time.IsZero() {
			t.Fatalf("publish must stamp the event time")
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeScheduled})
	b.Publish(Event{Type: TypeCancelled}) // buffer full; must not block

	e := <-ch
	if e.Type != TypeScheduled {
		t.Fatalf("expected the first event, got %+v", e)
	}
	select {
	case e := <-ch:
		t.Fatalf("second event should have been dropped, got %+v", e)
	default:
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	unsub() // second call must not panic

	// Publishing after unsubscribe must not panic either.
	b.Publish(Event{Type: TypePruned})
}
