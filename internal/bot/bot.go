// Package bot is the Telegram front end: it shows poll results and lets chats
// follow polls for best-window updates.
package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"meetslot/internal/export"
	"meetslot/internal/refresh"
	"meetslot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const helpText = `Commands:
/results <poll id> - best meeting windows
/export <poll id> - results as a spreadsheet
/watch <poll id> - get a message when the best window changes
/unwatch <poll id> - stop following a poll
/watches - polls this chat follows
/help - this message`

type Bot struct {
	tg      telegramClient
	results ResultsSource
	watches WatchStore
	logger  *zerolog.Logger
}

func New(token string, debug bool, results ResultsSource, watches WatchStore, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	api.Debug = debug
	return newBot(&realTelegramClient{api: api}, results, watches, logger)
}

// NewWithTelegramClient allows injecting a fake Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, results ResultsSource, watches WatchStore, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, results, watches, logger)
}

func newBot(tg telegramClient, results ResultsSource, watches WatchStore, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if results == nil || watches == nil {
		return nil, fmt.Errorf("bot needs a results source and a watch store")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "bot").Logger()
	return &Bot{tg: tg, results: results, watches: watches, logger: &l}, nil
}

// Start polls updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			l := b.logger.With().Str("request_id", uuid.NewString()).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().Str("data", update.CallbackQuery.Data).Msg("handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().Str("text", update.Message.Text).Msg("handling message")
		b.handleMessage(ctx, update.Message)
	}
}

// parseCommand splits "/cmd@botname arg" into "cmd" and "arg".
func parseCommand(text string) (cmd, arg string, ok bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", "", false
	}
	cmd = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return strings.ToLower(cmd), arg, true
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	cmd, arg, ok := parseCommand(msg.Text)
	if !ok {
		b.reply(chatID, "Send /help to see what I can do.")
		return
	}

	switch cmd {
	case "start", "help":
		b.reply(chatID, helpText)
	case "results":
		b.handleResults(ctx, chatID, arg)
	case "export":
		b.handleExport(ctx, chatID, arg)
	case "watch":
		b.handleWatch(ctx, chatID, arg)
	case "unwatch":
		b.handleUnwatch(ctx, chatID, arg)
	case "watches":
		b.renderWatchList(ctx, chatID, 0, 0)
	default:
		b.reply(chatID, "Unknown command. "+helpText)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	_ = b.answerCallback(cq.ID)
	chatID := cq.Message.Chat.ID

	switch {
	case strings.HasPrefix(cq.Data, callbackResults):
		b.handleResults(ctx, chatID, strings.TrimPrefix(cq.Data, callbackResults))
	case strings.HasPrefix(cq.Data, callbackPage):
		page, err := strconv.Atoi(strings.TrimPrefix(cq.Data, callbackPage))
		if err != nil || page < 0 {
			return
		}
		b.renderWatchList(ctx, chatID, cq.Message.MessageID, page)
	}
}

// loadResults replies with an error message and returns nil when the poll cannot be computed.
func (b *Bot) loadResults(ctx context.Context, chatID int64, pollID string) *service.PollResults {
	if pollID == "" {
		b.reply(chatID, "Add a poll id, for example: /results 3f2a...")
		return nil
	}

	pr, err := b.results.Results(ctx, pollID)
	switch {
	case err == nil:
		return pr
	case service.IsNotFound(err):
		b.reply(chatID, "Poll "+pollID+" not found.")
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("poll_id", pollID).Msg("results failed")
		b.reply(chatID, "Could not compute results, try again later.")
	}
	return nil
}

func (b *Bot) handleResults(ctx context.Context, chatID int64, pollID string) {
	if pr := b.loadResults(ctx, chatID, pollID); pr != nil {
		b.reply(chatID, formatResults(pr))
	}
}

func (b *Bot) handleExport(ctx context.Context, chatID int64, pollID string) {
	pr := b.loadResults(ctx, chatID, pollID)
	if pr == nil {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteResults(&buf, pr.Poll, pr.Result); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("poll_id", pollID).Msg("export failed")
		b.reply(chatID, "Could not build the spreadsheet.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "poll-" + pr.Poll.ID + ".xlsx",
		Bytes: buf.Bytes(),
	})
	doc.Caption = pr.Poll.Title
	if _, err := b.tg.Send(doc); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("send document failed")
	}
}

func (b *Bot) handleWatch(ctx context.Context, chatID int64, pollID string) {
	pr := b.loadResults(ctx, chatID, pollID)
	if pr == nil {
		return
	}

	if err := b.watches.AddWatch(ctx, chatID, pr.Poll.ID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("add watch failed")
		b.reply(chatID, "Could not save the subscription.")
		return
	}
	// The chat sees the current state now; only later changes are pushed.
	if err := b.watches.UpdateWatchDigest(ctx, chatID, pr.Poll.ID, refresh.Digest(pr.Result)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("store initial digest failed")
	}

	b.reply(chatID, "Following "+pollTitle(pr)+". I will write when the best window changes.\n\n"+formatResults(pr))
}

func (b *Bot) handleUnwatch(ctx context.Context, chatID int64, pollID string) {
	if pollID == "" {
		b.reply(chatID, "Add a poll id, for example: /unwatch 3f2a...")
		return
	}

	removed, err := b.watches.RemoveWatch(ctx, chatID, pollID)
	switch {
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Msg("remove watch failed")
		b.reply(chatID, "Could not remove the subscription.")
	case removed:
		b.reply(chatID, "Stopped following "+pollID+".")
	default:
		b.reply(chatID, "This chat does not follow "+pollID+".")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

func (b *Bot) answerCallback(id string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, ""))
	return err
}
