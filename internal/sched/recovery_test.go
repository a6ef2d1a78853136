package sched

import (
	"context"
	"testing"
	"time"
)

func TestRecoverRearmsFutureItems(t *testing.T) {
	store := newFakeStore(11)
	store.setRaw(11, true, time.Now().Add(60*time.Millisecond))
	disp := &fakeDispatcher{}
	svc := newService(store, disp)

	if err := svc.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got := svc.Snapshot().Armed; got != 1 {
		t.Fatalf("expected re-armed task, got %d", got)
	}
	if disp.count.Load() != 0 {
		t.Fatalf("future item dispatched during recovery")
	}

	if !waitUntil(t, 2*time.Second, func() bool { return disp.count.Load() == 1 }) {
		t.Fatalf("re-armed task never fired")
	}
	if store.isScheduled(11) {
		t.Fatalf("flag must be cleared after the re-armed fire")
	}
}

func TestRecoverFiresMissedItemsOnce(t *testing.T) {
	store := newFakeStore(21, 22)
	store.setRaw(21, true, time.Now().Add(-time.Minute))
	store.setRaw(22, true, time.Now().Add(-time.Hour))
	disp := &fakeDispatcher{}
	svc := newService(store, disp)

	if err := svc.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}

	if got := disp.count.Load(); got != 2 {
		t.Fatalf("expected 2 missed dispatches, got %d", got)
	}
	if store.isScheduled(21) || store.isScheduled(22) {
		t.Fatalf("missed items must be unflagged")
	}
	if svc.Snapshot().Armed != 0 {
		t.Fatalf("missed items must not stay armed")
	}
}

func TestRecoverIsIdempotentForMissed(t *testing.T) {
	store := newFakeStore(31)
	store.setRaw(31, true, time.Now().Add(-time.Second))
	disp := &fakeDispatcher{}
	svc := newService(store, disp)

	if err := svc.Recover(context.Background()); err != nil {
		t.Fatalf("first recover: %v", err)
	}
	if err := svc.Recover(context.Background()); err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if got := disp.count.Load(); got != 1 {
		t.Fatalf("missed item must be notified exactly once, got %d", got)
	}
}

func TestRecoverTwiceReplacesFutureHandles(t *testing.T) {
	store := newFakeStore(41)
	store.setRaw(41, true, time.Now().Add(80*time.Millisecond))
	disp := &fakeDispatcher{}
	svc := newService(store, disp)

	if err := svc.Recover(context.Background()); err != nil {
		t.Fatalf("first recover: %v", err)
	}
	if err := svc.Recover(context.Background()); err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if got := svc.Snapshot().Armed; got != 1 {
		t.Fatalf("double recovery armed %d handles", got)
	}

	if !waitUntil(t, 2*time.Second, func() bool { return disp.count.Load() > 0 }) {
		t.Fatalf("task never fired")
	}
	time.Sleep(150 * time.Millisecond)
	if got := disp.count.Load(); got != 1 {
		t.Fatalf("expected one fire after double recovery, got %d", got)
	}
}
