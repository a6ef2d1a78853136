package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"postpilot/pkg/logx"
)

// EmailConfig configures the SMTP channel. With an empty SMTPAddr the sender
// only records the intent in the log, which is useful in development.
type EmailConfig struct {
	SMTPAddr string // host:port
	From     string
}

// EmailSender delivers publish events over SMTP, one message per event.
type EmailSender struct {
	cfg EmailConfig
	log logx.Logger

	// sendMail is swapped in tests.
	sendMail func(addr, from string, to []string, msg []byte) error
}

func NewEmailSender(cfg EmailConfig, log logx.Logger) *EmailSender {
	return &EmailSender{
		cfg: cfg,
		log: log,
		sendMail: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

func (s *EmailSender) Send(ctx context.Context, sub Subscriber, ev Event) error {
	if strings.TrimSpace(sub.Email) == "" {
		return nil // no address on file; nothing to do
	}
	if s.cfg.SMTPAddr == "" {
		s.log.Info("email notification (smtp not configured)",
			logx.String("to", sub.Email), logx.Int64("item_id", ev.ItemID))
		return nil
	}

	subject := fmt.Sprintf("Your scheduled post #%d is now live", ev.ItemID)
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour scheduled post (id %d) was published at %s.\r\n",
		sub.Name, ev.ItemID, ev.FiredAt.Format("2006-01-02 15:04:05 MST"))
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.cfg.From, sub.Email, subject, body)

	if err := s.sendMail(s.cfg.SMTPAddr, s.cfg.From, []string{sub.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", sub.Email, err)
	}
	s.log.Debug("email sent", logx.String("to", sub.Email), logx.Int64("item_id", ev.ItemID))
	return nil
}
