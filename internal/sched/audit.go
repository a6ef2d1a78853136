package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"postpilot/internal/eventbus"
	"postpilot/pkg/logx"
)

// auditor periodically cross-checks the task registry against the store.
type auditor struct {
	svc *Service
	c   *cron.Cron
}

func newAuditor(svc *Service) *auditor { return &auditor{svc: svc} }

func (a *auditor) start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	a.c = cron.New()
	_, err := a.c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		a.svc.Audit(ctx)
	})
	if err != nil {
		a.svc.log.Error("auditor schedule failed", logx.Err(err))
		a.c = nil
		return
	}
	a.c.Start()
}

func (a *auditor) stop() {
	if a.c != nil {
		<-a.c.Stop().Done()
		a.c = nil
	}
}

// Audit prunes registry entries that disagree with persisted state: the item
// vanished, it is no longer flagged, or its persisted time drifted from the
// armed time (out-of-band edits, bugs elsewhere). It never arms tasks; only
// Recover and Schedule do that. Returns the number of pruned entries.
func (s *Service) Audit(ctx context.Context) int {
	s.mu.Lock()
	armed := make([]TaskInfo, 0, len(s.tasks))
	for _, h := range s.tasks {
		armed = append(armed, TaskInfo{ItemID: h.itemID, FireAt: h.fireAt})
	}
	s.mu.Unlock()
	if len(armed) == 0 {
		return 0
	}

	items, err := s.store.FindScheduled(ctx)
	if err != nil {
		s.log.Warn("audit skipped: store unavailable", logx.Err(err))
		return 0
	}
	flagged := make(map[int64]time.Time, len(items))
	for _, it := range items {
		flagged[it.ID] = it.At
	}

	pruned := 0
	for _, t := range armed {
		reason := ""
		if at, ok := flagged[t.ItemID]; !ok {
			exists, err := s.store.Exists(ctx, t.ItemID)
			switch {
			case err != nil:
				s.log.Warn("audit check failed", logx.Int64("item_id", t.ItemID), logx.Err(err))
				continue
			case !exists:
				reason = "item deleted"
			default:
				reason = "no longer flagged"
			}
		} else if !at.Equal(t.FireAt) {
			reason = "scheduled time drifted"
		}
		if reason == "" {
			continue
		}

		// Prune only if the entry is still the one we examined; a concurrent
		// reschedule supersedes the audit verdict.
		s.mu.Lock()
		h, ok := s.tasks[t.ItemID]
		if ok && h.fireAt.Equal(t.FireAt) {
			h.timer.Stop()
			delete(s.tasks, t.ItemID)
		} else {
			ok = false
		}
		s.mu.Unlock()

		if ok {
			pruned++
			s.log.Warn("audit pruned stale task",
				logx.Int64("item_id", t.ItemID), logx.Time("was_armed_for", t.FireAt), logx.String("reason", reason))
			s.publish(eventbus.TypePruned, TaskEvent{ItemID: t.ItemID, At: t.FireAt, Reason: reason})
		}
	}

	if pruned > 0 {
		s.log.Info("audit complete", logx.Int("checked", len(armed)), logx.Int("pruned", pruned))
	}
	return pruned
}
