package sched

import (
	"context"
	"fmt"
	"time"

	"postpilot/internal/eventbus"
	"postpilot/pkg/logx"
)

// Recover reconciles persisted schedule flags with the (empty) task registry.
// It must run to completion before the service is exposed to callers.
//
// Items whose deadline passed while the process was down get exactly one
// immediate best-effort dispatch and their flag cleared; future items are
// re-armed through the normal Schedule path. Running Recover twice over the
// same snapshot is safe: re-arming replaces, and missed items are unflagged
// by the first pass.
func (s *Service) Recover(ctx context.Context) error {
	items, err := s.store.FindScheduled(ctx)
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	var rearmed, missed int
	for _, it := range items {
		if it.At.After(time.Now()) {
			if err := s.Schedule(ctx, it.ID, it.At); err != nil {
				s.log.Warn("recovery re-arm failed", logx.Int64("item_id", it.ID), logx.Err(err))
				continue
			}
			rearmed++
			continue
		}

		// Deadline elapsed while we were down: surface the event once,
		// now, rather than dropping it silently.
		s.log.Info("missed publication; notifying now", logx.Int64("item_id", it.ID), logx.Time("was_due", it.At))
		dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout())
		s.deliverAndClear(dctx, it.ID)
		cancel()
		s.publish(eventbus.TypeMissed, TaskEvent{ItemID: it.ID, At: it.At})
		missed++
	}

	s.log.Info("recovery complete",
		logx.Int("flagged", len(items)), logx.Int("rearmed", rearmed), logx.Int("missed", missed))
	return nil
}

func (s *Service) dispatchTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.DispatchTimeout
}
