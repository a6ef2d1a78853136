// Package store is the SQLite persistence layer.
//
// It owns two narrow read/write surfaces consumed by the scheduling
// subsystem: the content schedule flags (sched.ContentStore) and the
// notification preference snapshots (notify.PreferenceStore).
package store
