package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"postpilot/internal/sched"
)

// InsertItem creates a content row and returns its id.
// Content authoring is owned by other parts of the application; this exists
// for fixtures and operational tooling.
func (s *Store) InsertItem(ctx context.Context, title string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO content(title) VALUES(?)`, title)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetScheduled flags the item for publication at the given time.
// The flag and the timestamp are written in one statement, so the
// is_scheduled => scheduled_at invariant holds per item.
func (s *Store) SetScheduled(ctx context.Context, itemID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE content SET is_scheduled = 1, scheduled_at = ? WHERE id = ?`,
		at.UTC().UnixMilli(), itemID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ClearScheduled(ctx context.Context, itemID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE content SET is_scheduled = 0, scheduled_at = NULL WHERE id = ?`, itemID)
	return err
}

// FindScheduled returns all items currently flagged for publication.
func (s *Store) FindScheduled(ctx context.Context) ([]sched.ScheduledItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scheduled_at FROM content WHERE is_scheduled = 1 AND scheduled_at IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sched.ScheduledItem
	for rows.Next() {
		var (
			id int64
			ms int64
		)
		if err := rows.Scan(&id, &ms); err != nil {
			return nil, err
		}
		out = append(out, sched.ScheduledItem{ID: id, At: time.UnixMilli(ms).UTC()})
	}
	return out, rows.Err()
}

func (s *Store) Exists(ctx context.Context, itemID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM content WHERE id = ?`, itemID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
