package sched

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"postpilot/internal/eventbus"
	"postpilot/pkg/logx"
)

// taskHandle is one armed timer. Handles are compared by identity: a handle
// that is no longer the registry entry for its item has lost every race and
// its callback must do nothing.
type taskHandle struct {
	itemID int64
	fireAt time.Time
	timer  *time.Timer
}

// Service owns the task registry and the firing protocol.
//
// Invariant: at most one live taskHandle per item id. Schedule replaces,
// Cancel removes, and a firing claims (removes) its handle before dispatching,
// all under one mutex, so no two timers for the same item can both win.
type Service struct {
	log   logx.Logger
	store ContentStore
	disp  Dispatcher
	bus   eventbus.Bus

	mu    sync.Mutex
	cfg   Config
	tasks map[int64]*taskHandle

	runCtx    context.Context
	runCancel context.CancelFunc

	auditor *auditor
}

func New(cfg Config, store ContentStore, disp Dispatcher, bus eventbus.Bus, log logx.Logger) *Service {
	s := &Service{
		log:   log,
		store: store,
		disp:  disp,
		bus:   bus,
		cfg:   cfg.withDefaults(),
		tasks: map[int64]*taskHandle{},
	}
	s.auditor = newAuditor(s)
	return s
}

// Start arms the background auditor. Recover() should have completed first.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.runCtx != nil {
		s.mu.Unlock()
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(context.WithoutCancel(ctx))
	interval := s.cfg.AuditInterval
	s.mu.Unlock()

	s.auditor.start(interval)
	s.log.Info("scheduler started", logx.Duration("audit_interval", interval))
}

// Stop cancels in-flight firings' contexts and stops every armed timer.
// Persisted is_scheduled flags are left untouched so the next process
// recovers them.
func (s *Service) Stop(ctx context.Context) {
	s.auditor.stop()

	s.mu.Lock()
	cancel := s.runCancel
	s.runCtx, s.runCancel = nil, nil
	n := len(s.tasks)
	for id, h := range s.tasks {
		h.timer.Stop()
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped", logx.Int("disarmed", n))
}

// Apply updates runtime-tunable settings (config hot reload).
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.runCtx != nil
	s.mu.Unlock()

	if running && prev.AuditInterval != cfg.AuditInterval {
		s.auditor.stop()
		s.auditor.start(cfg.AuditInterval)
	}
}

// Schedule flags the item as scheduled in the store and arms a one-shot
// timer. An existing task for the same item is replaced: its timer can no
// longer fire once the registry entry points at the new handle.
func (s *Service) Schedule(ctx context.Context, itemID int64, at time.Time) error {
	if !at.After(time.Now()) {
		return ErrInvalidTime
	}
	at = at.UTC()

	// Persist first: the store is the authority recovery reads from.
	if err := s.store.SetScheduled(ctx, itemID, at); err != nil {
		return fmt.Errorf("persist schedule for item %d: %w", itemID, err)
	}

	s.mu.Lock()
	if old, ok := s.tasks[itemID]; ok {
		old.timer.Stop()
	}
	h := &taskHandle{itemID: itemID, fireAt: at}
	h.timer = time.AfterFunc(time.Until(at), func() { s.fire(h) })
	s.tasks[itemID] = h
	s.mu.Unlock()

	s.log.Debug("publication scheduled", logx.Int64("item_id", itemID), logx.Time("at", at))
	s.publish(eventbus.TypeScheduled, TaskEvent{ItemID: itemID, At: at})
	return nil
}

// Cancel disarms the task if present. Cancelling an unknown item is a no-op,
// not an error. The persisted is_scheduled flag is deliberately left alone:
// clearing it is the content owner's call, made through the store.
func (s *Service) Cancel(itemID int64) bool {
	s.mu.Lock()
	h, ok := s.tasks[itemID]
	if ok {
		h.timer.Stop()
		delete(s.tasks, itemID)
	}
	s.mu.Unlock()

	if ok {
		s.log.Debug("publication cancelled", logx.Int64("item_id", itemID))
		s.publish(eventbus.TypeCancelled, TaskEvent{ItemID: itemID})
	}
	return ok
}

// fire runs on timer expiry. The handle claims its registry slot first; if
// another Schedule or Cancel got there before us, this firing is void.
func (s *Service) fire(h *taskHandle) {
	s.mu.Lock()
	if s.tasks[h.itemID] != h {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, h.itemID)
	timeout := s.cfg.DispatchTimeout
	base := s.runCtx
	s.mu.Unlock()

	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithTimeout(base, timeout)
	defer cancel()

	s.deliverAndClear(ctx, h.itemID)
	s.publish(eventbus.TypeFired, TaskEvent{ItemID: h.itemID, At: h.fireAt})
}

// deliverAndClear is the tail of the firing protocol, shared with the missed
// path in recovery: one best-effort dispatch, then clear the persisted flag
// no matter how the dispatch went. A lost notification beats an item stuck
// "scheduled" forever.
func (s *Service) deliverAndClear(ctx context.Context, itemID int64) {
	if err := s.disp.Dispatch(ctx, itemID); err != nil {
		s.log.Error("dispatch failed", logx.Int64("item_id", itemID), logx.Err(err))
	}
	if err := s.store.ClearScheduled(ctx, itemID); err != nil {
		// The auditor reconciles this drift on its next pass.
		s.log.Error("clearing schedule flag failed", logx.Int64("item_id", itemID), logx.Err(err))
	}
	s.log.Info("publication fired", logx.Int64("item_id", itemID))
}

// Snapshot reports the currently armed tasks, ordered by item id.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	tasks := make([]TaskInfo, 0, len(s.tasks))
	for _, h := range s.tasks {
		tasks = append(tasks, TaskInfo{ItemID: h.itemID, FireAt: h.fireAt})
	}
	s.mu.Unlock()

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ItemID < tasks[j].ItemID })
	return Snapshot{Armed: len(tasks), Tasks: tasks}
}

func (s *Service) publish(typ string, data TaskEvent) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
	}
}
