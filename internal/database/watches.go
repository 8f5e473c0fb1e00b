package database

import (
	"context"
	"fmt"
	"time"

	"meetslot/internal/models"
)

// AddWatch subscribes chatID to pollID. Re-adding an existing watch is a no-op.
func (db *DB) AddWatch(ctx context.Context, chatID int64, pollID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO watches (chat_id, poll_id) VALUES (?, ?)`, chatID, pollID)
	if err != nil {
		return fmt.Errorf("add watch %d/%s: %w", chatID, pollID, err)
	}
	return nil
}

// RemoveWatch reports whether a watch was deleted.
func (db *DB) RemoveWatch(ctx context.Context, chatID int64, pollID string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM watches WHERE chat_id = ? AND poll_id = ?`, chatID, pollID)
	if err != nil {
		return false, fmt.Errorf("remove watch %d/%s: %w", chatID, pollID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) ListWatches(ctx context.Context) ([]models.Watch, error) {
	return db.queryWatches(ctx,
		`SELECT chat_id, poll_id, digest, created_at FROM watches ORDER BY poll_id, chat_id`)
}

// ListChatWatches returns the polls a chat follows, oldest first.
func (db *DB) ListChatWatches(ctx context.Context, chatID int64) ([]models.Watch, error) {
	return db.queryWatches(ctx,
		`SELECT chat_id, poll_id, digest, created_at FROM watches WHERE chat_id = ? ORDER BY created_at, poll_id`, chatID)
}

func (db *DB) queryWatches(ctx context.Context, query string, args ...any) ([]models.Watch, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list watches: %w", err)
	}
	defer rows.Close()

	var out []models.Watch
	for rows.Next() {
		var (
			w         models.Watch
			createdAt time.Time
		)
		if err := rows.Scan(&w.ChatID, &w.PollID, &w.Digest, &createdAt); err != nil {
			return nil, fmt.Errorf("scan watch: %w", err)
		}
		w.CreatedAt = createdAt
		out = append(out, w)
	}
	return out, rows.Err()
}

func (db *DB) UpdateWatchDigest(ctx context.Context, chatID int64, pollID, digest string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE watches SET digest = ? WHERE chat_id = ? AND poll_id = ?`, digest, chatID, pollID)
	if err != nil {
		return fmt.Errorf("update watch %d/%s: %w", chatID, pollID, err)
	}
	return nil
}
