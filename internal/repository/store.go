package repository

import (
	"context"

	"meetslot/internal/models"
)

// Store is the append-only row table holding poll definitions and responses.
type Store interface {
	GetPollRow(ctx context.Context, id string) (models.PollRow, error)
	AppendPollRow(ctx context.Context, row models.PollRow) error
	ListResponseRows(ctx context.Context, pollID string) ([]models.ResponseRow, error)
	AppendResponseRow(ctx context.Context, row models.ResponseRow) error
	Ping(ctx context.Context) error
}
