package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"postpilot/pkg/logx"
)

type fakePrefs struct {
	mu   sync.Mutex
	subs []Subscriber
	err  error
}

func (p *fakePrefs) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make([]Subscriber, len(p.subs))
	copy(out, p.subs)
	return out, nil
}

func (p *fakePrefs) set(subs []Subscriber) {
	p.mu.Lock()
	p.subs = subs
	p.mu.Unlock()
}

type recordingSender struct {
	mu    sync.Mutex
	sent  []string // "userID/itemID"
	fails map[int64]error
}

func (s *recordingSender) Send(ctx context.Context, sub Subscriber, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fails[sub.UserID]; ok {
		return err
	}
	s.sent = append(s.sent, fmt.Sprintf("%d/%d", sub.UserID, ev.ItemID))
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newTestDispatcher(prefs PreferenceStore, senders map[Kind]Sender) *Dispatcher {
	return NewDispatcher(Config{RatePerSec: 1000}, prefs, senders, logx.Nop())
}

func TestDispatchFansOutPerEnabledKind(t *testing.T) {
	push := &recordingSender{}
	email := &recordingSender{}
	prefs := &fakePrefs{subs: []Subscriber{
		{UserID: 1, Kinds: []Kind{KindPush, KindEmail}},
		{UserID: 2, Kinds: []Kind{KindPush}},
		{UserID: 3, Kinds: nil},
	}}
	d := newTestDispatcher(prefs, map[Kind]Sender{KindPush: push, KindEmail: email})

	if err := d.Dispatch(context.Background(), 42); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if push.count() != 2 {
		t.Fatalf("push: expected 2 sends, got %v", push.sent)
	}
	if email.count() != 1 {
		t.Fatalf("email: expected 1 send, got %v", email.sent)
	}
}

func TestDispatchContinuesPastSendFailure(t *testing.T) {
	push := &recordingSender{fails: map[int64]error{1: errors.New("conn reset")}}
	email := &recordingSender{}
	prefs := &fakePrefs{subs: []Subscriber{
		{UserID: 1, Kinds: []Kind{KindPush, KindEmail}},
		{UserID: 2, Kinds: []Kind{KindPush}},
	}}
	d := newTestDispatcher(prefs, map[Kind]Sender{KindPush: push, KindEmail: email})

	if err := d.Dispatch(context.Background(), 7); err != nil {
		t.Fatalf("dispatch must not fail on a send error: %v", err)
	}
	if push.count() != 1 {
		t.Fatalf("push: expected user 2 only, got %v", push.sent)
	}
	if email.count() != 1 {
		t.Fatalf("email: expected user 1 delivered despite push failure, got %v", email.sent)
	}
}

func TestDispatchSkipsUnknownKind(t *testing.T) {
	push := &recordingSender{}
	prefs := &fakePrefs{subs: []Subscriber{
		{UserID: 1, Kinds: []Kind{Kind("pigeon"), KindPush}},
	}}
	d := newTestDispatcher(prefs, map[Kind]Sender{KindPush: push})

	if err := d.Dispatch(context.Background(), 9); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if push.count() != 1 {
		t.Fatalf("known kind must still be delivered, got %v", push.sent)
	}
}

func TestDispatchReadsPreferencesFresh(t *testing.T) {
	push := &recordingSender{}
	prefs := &fakePrefs{subs: []Subscriber{{UserID: 1, Kinds: []Kind{KindPush}}}}
	d := newTestDispatcher(prefs, map[Kind]Sender{KindPush: push})

	if err := d.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	// User 1 opts out, user 2 opts in between events.
	prefs.set([]Subscriber{{UserID: 2, Kinds: []Kind{KindPush}}})
	if err := d.Dispatch(context.Background(), 2); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}

	push.mu.Lock()
	defer push.mu.Unlock()
	want := []string{"1/1", "2/2"}
	if len(push.sent) != 2 || push.sent[0] != want[0] || push.sent[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, push.sent)
	}
}

func TestDispatchReportsListFailure(t *testing.T) {
	prefs := &fakePrefs{err: errors.New("db locked")}
	d := newTestDispatcher(prefs, map[Kind]Sender{})
	if err := d.Dispatch(context.Background(), 3); err == nil {
		t.Fatalf("expected error when the subscriber list cannot be read")
	}
}
