package sched

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidTime is returned when the requested publication time is not
// strictly in the future. The request has no side effects in that case.
var ErrInvalidTime = errors.New("sched: publication time must be in the future")

// Config controls the scheduler service.
type Config struct {
	// DispatchTimeout bounds one firing (notification fan-out plus the
	// persisted flag update). Default 30s.
	DispatchTimeout time.Duration
	// AuditInterval is the period of the consistency audit. 0 disables it.
	AuditInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 30 * time.Second
	}
	return c
}

// ScheduledItem is a persisted content row currently flagged for publication.
type ScheduledItem struct {
	ID int64
	At time.Time
}

// ContentStore is the narrow persistence contract the scheduler consumes.
// Mutations must be atomic per item.
type ContentStore interface {
	FindScheduled(ctx context.Context) ([]ScheduledItem, error)
	SetScheduled(ctx context.Context, itemID int64, at time.Time) error
	ClearScheduled(ctx context.Context, itemID int64) error
	Exists(ctx context.Context, itemID int64) (bool, error)
}

// Dispatcher fans a fired publication out to interested subscribers.
// A dispatch error never re-arms the task; the caller logs it and moves on.
type Dispatcher interface {
	Dispatch(ctx context.Context, itemID int64) error
}

// TaskEvent is the bus payload for scheduler lifecycle events.
type TaskEvent struct {
	ItemID int64     `json:"item_id"`
	At     time.Time `json:"at,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// TaskInfo describes one armed task for status reporting.
type TaskInfo struct {
	ItemID int64
	FireAt time.Time
}

// Snapshot is a point-in-time view of the task registry.
type Snapshot struct {
	Armed int
	Tasks []TaskInfo
}
