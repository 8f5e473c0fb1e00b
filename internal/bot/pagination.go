package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	watchesPerPage  = 8
	callbackResults = "res:"
	callbackPage    = "wpage:"
)

// renderWatchList shows one page of the chat's watched polls. A zero
// messageID sends a new message, otherwise the existing one is edited.
func (b *Bot) renderWatchList(ctx context.Context, chatID int64, messageID, page int) {
	watches, err := b.watches.ListChatWatches(ctx, chatID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("list chat watches failed")
		b.reply(chatID, "Could not load subscriptions.")
		return
	}
	if len(watches) == 0 {
		b.reply(chatID, "This chat follows no polls. Use /watch <poll id>.")
		return
	}

	pages := (len(watches) + watchesPerPage - 1) / watchesPerPage
	if page >= pages {
		page = pages - 1
	}
	startIdx := page * watchesPerPage
	endIdx := startIdx + watchesPerPage
	if endIdx > len(watches) {
		endIdx = len(watches)
	}

	var message strings.Builder
	message.WriteString("Followed polls\n")
	message.WriteString(fmt.Sprintf("Page %d of %d\n\n", page+1, pages))

	var keyboard [][]tgbotapi.InlineKeyboardButton
	for i, w := range watches[startIdx:endIdx] {
		n := startIdx + i + 1
		line := fmt.Sprintf("%d. %s", n, w.PollID)
		if !w.CreatedAt.IsZero() {
			line += " (since " + w.CreatedAt.Format("2006-01-02") + ")"
		}
		message.WriteString(line + "\n")

		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d. %s", n, w.PollID), callbackResults+w.PollID),
		})
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Back", fmt.Sprintf("%s%d", callbackPage, page-1)))
	}
	if endIdx < len(watches) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next", fmt.Sprintf("%s%d", callbackPage, page+1)))
	}
	if len(nav) > 0 {
		keyboard = append(keyboard, nav)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)

	if messageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, message.String(), markup)
		if _, err := b.tg.Send(edit); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("edit watch list failed")
		}
		return
	}

	msg := tgbotapi.NewMessage(chatID, message.String())
	msg.ReplyMarkup = markup
	if _, err := b.tg.Send(msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("send watch list failed")
	}
}
