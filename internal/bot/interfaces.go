package bot

import (
	"context"

	"meetslot/internal/models"
	"meetslot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ResultsSource computes poll results.
type ResultsSource interface {
	Results(ctx context.Context, pollID string) (*service.PollResults, error)
}

// WatchStore keeps the polls each chat follows.
type WatchStore interface {
	AddWatch(ctx context.Context, chatID int64, pollID string) error
	RemoveWatch(ctx context.Context, chatID int64, pollID string) (bool, error)
	ListChatWatches(ctx context.Context, chatID int64) ([]models.Watch, error)
	UpdateWatchDigest(ctx context.Context, chatID int64, pollID, digest string) error
}

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}
