package notify

import (
	"context"
	"time"
)

// Kind is a category of notification transport.
type Kind string

const (
	KindPush     Kind = "push"
	KindEmail    Kind = "email"
	KindSMS      Kind = "sms"
	KindTelegram Kind = "telegram"
)

// Event is what a fired publication looks like to delivery channels.
// It carries only the item id; consumers re-fetch details as needed.
type Event struct {
	ItemID  int64
	FiredAt time.Time
}

// Subscriber is a point-in-time snapshot of one user's notification
// preferences, built fresh for each dispatch and discarded afterwards.
type Subscriber struct {
	UserID         int64
	Name           string
	Email          string
	Phone          string
	TelegramChatID int64
	Kinds          []Kind
}

// PreferenceStore supplies the full current subscriber list.
// Dispatch reads it on every event so preference changes made between
// scheduling and firing are always honored.
type PreferenceStore interface {
	ListSubscribers(ctx context.Context) ([]Subscriber, error)
}

// Sender delivers one event to one subscriber over one transport,
// best-effort, single attempt.
type Sender interface {
	Send(ctx context.Context, sub Subscriber, ev Event) error
}
