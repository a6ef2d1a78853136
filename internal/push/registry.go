package push

import (
	"context"
	"sync"
	"time"

	"postpilot/pkg/logx"
)

// Conn is one live push connection. The registry treats any write error as
// the connection being dead.
type Conn interface {
	Write(ctx context.Context, p []byte) error
	Close() error
}

// Registry tracks at most one live push connection per user.
//
// Its lifecycle is independent of the scheduler: connections come and go with
// the transport (explicit disconnect, timeout, error) and the registry simply
// reflects who is reachable right now.
type Registry struct {
	log          logx.Logger
	writeTimeout time.Duration

	mu    sync.Mutex
	conns map[int64]Conn
}

func NewRegistry(writeTimeout time.Duration, log logx.Logger) *Registry {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Registry{log: log, writeTimeout: writeTimeout, conns: map[int64]Conn{}}
}

// Connect registers c for the user, replacing (and closing) any previous
// connection. A reconnecting client therefore never ends up with two entries.
func (r *Registry) Connect(userID int64, c Conn) {
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = c
	total := len(r.conns)
	r.mu.Unlock()

	if old != nil {
		_ = old.Close()
		r.log.Debug("push connection replaced", logx.Int64("user_id", userID))
	}
	r.log.Debug("push connection opened", logx.Int64("user_id", userID), logx.Int("total", total))
}

// Disconnect closes and removes the user's connection, if any.
func (r *Registry) Disconnect(userID int64) bool {
	r.mu.Lock()
	c, ok := r.conns[userID]
	delete(r.conns, userID)
	r.mu.Unlock()

	if ok {
		_ = c.Close()
		r.log.Debug("push connection closed", logx.Int64("user_id", userID))
	}
	return ok
}

// Drop removes the entry only if it still maps to c. Transport read loops
// call this on exit so they never evict a replacement connection.
func (r *Registry) Drop(userID int64, c Conn) {
	r.mu.Lock()
	if r.conns[userID] == c {
		delete(r.conns, userID)
	}
	r.mu.Unlock()
}

// Send delivers payload to the user's connection, best-effort. No connection
// means the user is offline for this channel: a silent no-op, not an error.
// A failed write marks the connection dead: it is closed and removed.
func (r *Registry) Send(ctx context.Context, userID int64, payload []byte) {
	r.mu.Lock()
	c, ok := r.conns[userID]
	r.mu.Unlock()
	if !ok {
		return
	}

	wctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	err := c.Write(wctx, payload)
	cancel()
	if err == nil {
		return
	}

	r.Drop(userID, c)
	_ = c.Close()
	r.log.Warn("push send failed; connection removed", logx.Int64("user_id", userID), logx.Err(err))
}

// Broadcast sends payload to every live connection, sweeping out the dead
// ones. Returns the number of successful sends.
func (r *Registry) Broadcast(ctx context.Context, payload []byte) int {
	r.mu.Lock()
	targets := make(map[int64]Conn, len(r.conns))
	for id, c := range r.conns {
		targets[id] = c
	}
	r.mu.Unlock()

	sent := 0
	for id, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
		err := c.Write(wctx, payload)
		cancel()
		if err != nil {
			r.Drop(id, c)
			_ = c.Close()
			r.log.Warn("broadcast send failed; connection removed", logx.Int64("user_id", id), logx.Err(err))
			continue
		}
		sent++
	}
	return sent
}

func (r *Registry) IsConnected(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[userID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll tears down every connection (process shutdown).
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = map[int64]Conn{}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
