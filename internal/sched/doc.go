// Package sched schedules deferred publications.
//
// # Overview
//
// A publication is scheduled with an absolute deadline. When the deadline
// elapses the service fires once: it dispatches a notification fan-out and
// clears the item's persisted schedule flag. Firing is at-most-once per arm;
// a dispatch failure is logged, never retried.
//
// # Registry semantics
//
// The in-memory task registry keeps at most one armed timer per item id.
// Scheduling an already-scheduled item replaces the previous timer
// atomically. Cancel and timer expiry may race; exactly one wins, decided by
// which claims the registry entry first.
//
// # Crash recovery
//
// Persisted schedule flags are the source of truth across restarts. Recover
// re-arms future items and fires missed ones immediately (once), and must
// finish before the service accepts external requests. A periodic audit
// prunes registry entries that drift from persisted state; it never arms.
package sched
