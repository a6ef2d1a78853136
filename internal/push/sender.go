package push

import (
	"context"
	"encoding/json"
	"time"

	"postpilot/internal/notify"
	"postpilot/pkg/logx"
)

// payload is the JSON body pushed to the client.
type payload struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ItemID    int64     `json:"item_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Sender adapts the connection registry to the notify.Sender contract.
//
// It always reports success: an offline user is a no-op and a dead
// connection is self-healed by the registry, neither is the dispatcher's
// problem.
type Sender struct {
	reg *Registry
	log logx.Logger
}

func NewSender(reg *Registry, log logx.Logger) *Sender {
	return &Sender{reg: reg, log: log}
}

func (s *Sender) Send(ctx context.Context, sub notify.Subscriber, ev notify.Event) error {
	b, err := json.Marshal(payload{
		Title:     "Scheduled post published",
		Message:   "Your post is now live.",
		ItemID:    ev.ItemID,
		UserID:    sub.UserID,
		Timestamp: ev.FiredAt,
	})
	if err != nil {
		return err
	}
	s.reg.Send(ctx, sub.UserID, b)
	return nil
}
