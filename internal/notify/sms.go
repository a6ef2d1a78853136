package notify

import (
	"context"
	"strings"

	"postpilot/pkg/logx"
)

// SMSSender records the send in the log. No SMS gateway is wired up yet;
// keeping the kind registered means preferences and fan-out behave exactly
// as they will once one is.
type SMSSender struct {
	log logx.Logger
}

func NewSMSSender(log logx.Logger) *SMSSender {
	return &SMSSender{log: log}
}

func (s *SMSSender) Send(ctx context.Context, sub Subscriber, ev Event) error {
	if strings.TrimSpace(sub.Phone) == "" {
		return nil
	}
	s.log.Info("sms notification",
		logx.String("phone", sub.Phone), logx.Int64("item_id", ev.ItemID))
	return nil
}
