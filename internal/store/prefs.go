package store

import (
	"context"

	"postpilot/internal/notify"
)

// User is a notification recipient.
type User struct {
	ID             int64
	Name           string
	Email          string
	Phone          string
	TelegramChatID int64
}

func (s *Store) UpsertUser(ctx context.Context, u User) (int64, error) {
	if u.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO users(name, email, phone, telegram_chat_id) VALUES(?,?,?,?)`,
			u.Name, u.Email, u.Phone, u.TelegramChatID)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, name, email, phone, telegram_chat_id) VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, email=excluded.email,
		   phone=excluded.phone, telegram_chat_id=excluded.telegram_chat_id`,
		u.ID, u.Name, u.Email, u.Phone, u.TelegramChatID)
	return u.ID, err
}

// SetPreference enables or disables one channel kind for a user.
func (s *Store) SetPreference(ctx context.Context, userID int64, kind notify.Kind, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_prefs(user_id, kind, enabled) VALUES(?,?,?)
		 ON CONFLICT(user_id, kind) DO UPDATE SET enabled=excluded.enabled`,
		userID, string(kind), enabled)
	return err
}

// ListSubscribers materializes the current preferences as one snapshot per
// user, carrying only enabled channel kinds. Users with no enabled kinds are
// omitted. The dispatcher calls this on every dispatch; nothing is cached.
func (s *Store) ListSubscribers(ctx context.Context) ([]notify.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, u.phone, u.telegram_chat_id, p.kind
		   FROM users u
		   JOIN notification_prefs p ON p.user_id = u.id
		  WHERE p.enabled = 1
		  ORDER BY u.id, p.kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.Subscriber
	for rows.Next() {
		var (
			u    User
			kind string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.TelegramChatID, &kind); err != nil {
			return nil, err
		}
		if n := len(out); n > 0 && out[n-1].UserID == u.ID {
			out[n-1].Kinds = append(out[n-1].Kinds, notify.Kind(kind))
			continue
		}
		out = append(out, notify.Subscriber{
			UserID:         u.ID,
			Name:           u.Name,
			Email:          u.Email,
			Phone:          u.Phone,
			TelegramChatID: u.TelegramChatID,
			Kinds:          []notify.Kind{notify.Kind(kind)},
		})
	}
	return out, rows.Err()
}
