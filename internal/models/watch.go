package models

import (
	"errors"
	"time"
)

var (
	ErrPollNotFound = errors.New("poll not found")
	ErrValidation   = errors.New("validation failed")
)

// Watch subscribes a chat to result changes of a poll. Digest identifies the
// best window last reported to the chat.
type Watch struct {
	ChatID    int64     `json:"chat_id"`
	PollID    string    `json:"poll_id"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
}
