package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"meetslot/internal/models"
)

// GetPollRow returns the first row stored for id.
func (db *DB) GetPollRow(ctx context.Context, id string) (models.PollRow, error) {
	var row models.PollRow
	err := db.QueryRowContext(ctx,
		`SELECT id, payload FROM polls WHERE id = ? ORDER BY seq LIMIT 1`, id,
	).Scan(&row.ID, &row.JSON)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PollRow{}, fmt.Errorf("poll %s: %w", id, models.ErrPollNotFound)
	}
	if err != nil {
		return models.PollRow{}, fmt.Errorf("get poll %s: %w", id, err)
	}
	return row, nil
}

func (db *DB) AppendPollRow(ctx context.Context, row models.PollRow) error {
	_, err := db.ExecContext(ctx, `INSERT INTO polls (id, payload) VALUES (?, ?)`, row.ID, row.JSON)
	if err != nil {
		return fmt.Errorf("append poll %s: %w", row.ID, err)
	}
	return nil
}

// ListResponseRows returns the response rows of pollID in append order.
func (db *DB) ListResponseRows(ctx context.Context, pollID string) ([]models.ResponseRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT submitted_at, name, payload, poll_id
		FROM responses
		WHERE poll_id = ?
		ORDER BY seq`, pollID)
	if err != nil {
		return nil, fmt.Errorf("list responses of %s: %w", pollID, err)
	}
	defer rows.Close()

	out := make([]models.ResponseRow, 0)
	for rows.Next() {
		var r models.ResponseRow
		if err := rows.Scan(&r.Timestamp, &r.Name, &r.JSON, &r.PollID); err != nil {
			return nil, fmt.Errorf("scan response row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) AppendResponseRow(ctx context.Context, row models.ResponseRow) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO responses (submitted_at, name, payload, poll_id) VALUES (?, ?, ?, ?)`,
		row.Timestamp, row.Name, row.JSON, row.PollID)
	if err != nil {
		return fmt.Errorf("append response of %s: %w", row.Name, err)
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
