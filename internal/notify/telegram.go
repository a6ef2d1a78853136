package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"postpilot/pkg/logx"
)

// TelegramSender delivers publish events as Telegram messages. The bot is
// send-only: no poller is attached, we never consume updates.
type TelegramSender struct {
	bot *tele.Bot
	log logx.Logger
}

func NewTelegramSender(token string, log logx.Logger) (*TelegramSender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: b, log: log}, nil
}

func (s *TelegramSender) Send(ctx context.Context, sub Subscriber, ev Event) error {
	if sub.TelegramChatID == 0 {
		return nil // user never linked a chat
	}
	text := fmt.Sprintf("📣 Your scheduled post #%d is now live (published %s).",
		ev.ItemID, ev.FiredAt.Format("15:04 MST"))
	chat := &tele.Chat{ID: sub.TelegramChatID}
	if _, err := s.bot.Send(chat, text); err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", sub.TelegramChatID, err)
	}
	s.log.Debug("telegram sent", logx.Int64("chat_id", sub.TelegramChatID), logx.Int64("item_id", ev.ItemID))
	return nil
}
