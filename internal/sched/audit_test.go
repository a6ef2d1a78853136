package sched

import (
	"context"
	"testing"
	"time"
)

func TestAuditKeepsConsistentTasks(t *testing.T) {
	store := newFakeStore(1)
	svc := newService(store, &fakeDispatcher{})

	if err := svc.Schedule(context.Background(), 1, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if pruned := svc.Audit(context.Background()); pruned != 0 {
		t.Fatalf("audit pruned a consistent task")
	}
	if svc.Snapshot().Armed != 1 {
		t.Fatalf("consistent task must stay armed")
	}
}

func TestAuditPrunesUnflagged(t *testing.T) {
	store := newFakeStore(2)
	svc := newService(store, &fakeDispatcher{})

	if err := svc.Schedule(context.Background(), 2, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	// Flag cleared out of band, e.g. by a direct edit.
	store.setRaw(2, false, time.Time{})

	if pruned := svc.Audit(context.Background()); pruned != 1 {
		t.Fatalf("expected 1 pruned, got %d", pruned)
	}
	if svc.Snapshot().Armed != 0 {
		t.Fatalf("stale task must be disarmed")
	}
}

func TestAuditPrunesDeletedItem(t *testing.T) {
	store := newFakeStore(3)
	svc := newService(store, &fakeDispatcher{})

	if err := svc.Schedule(context.Background(), 3, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	store.remove(3)

	if pruned := svc.Audit(context.Background()); pruned != 1 {
		t.Fatalf("expected 1 pruned, got %d", pruned)
	}
	if svc.Snapshot().Armed != 0 {
		t.Fatalf("task for deleted item must be disarmed")
	}
}

func TestAuditPrunesDriftedTime(t *testing.T) {
	store := newFakeStore(4)
	svc := newService(store, &fakeDispatcher{})

	at := time.Now().Add(time.Hour)
	if err := svc.Schedule(context.Background(), 4, at); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	store.setRaw(4, true, at.Add(30*time.Minute))

	if pruned := svc.Audit(context.Background()); pruned != 1 {
		t.Fatalf("expected 1 pruned, got %d", pruned)
	}
	if svc.Snapshot().Armed != 0 {
		t.Fatalf("drifted task must be disarmed")
	}
}

func TestAuditEmptyRegistryIsCheap(t *testing.T) {
	svc := newService(newFakeStore(), &fakeDispatcher{})
	if pruned := svc.Audit(context.Background()); pruned != 0 {
		t.Fatalf("empty registry pruned %d", pruned)
	}
}
