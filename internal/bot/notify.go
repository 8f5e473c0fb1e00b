package bot

import (
	"context"
	"fmt"
	"strings"

	"meetslot/internal/availability"
	"meetslot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NotifyResults pushes an update about a followed poll to a chat.
func (b *Bot) NotifyResults(_ context.Context, chatID int64, pr *service.PollResults) error {
	if pr == nil || pr.Result == nil {
		return fmt.Errorf("notify chat %d: empty results", chatID)
	}
	msg := tgbotapi.NewMessage(chatID, "Update for "+pollTitle(pr)+"\n\n"+formatResults(pr))
	if _, err := b.tg.Send(msg); err != nil {
		return fmt.Errorf("notify chat %d: %w", chatID, err)
	}
	return nil
}

func pollTitle(pr *service.PollResults) string {
	if pr.Poll == nil {
		return "poll"
	}
	if t := strings.TrimSpace(pr.Poll.Title); t != "" {
		return "\"" + t + "\""
	}
	return "poll " + pr.Poll.ID
}

func formatResults(pr *service.PollResults) string {
	res := pr.Result
	var sb strings.Builder

	sb.WriteString(pollTitle(pr))
	sb.WriteString(fmt.Sprintf("\nResponses: %d\n", res.TotalResponses))

	switch {
	case res.Empty():
		sb.WriteString("No responses yet.")
		return sb.String()
	case len(res.BestWindows) == 0:
		sb.WriteString("No common window yet.")
		return sb.String()
	}

	sb.WriteString("\nBest windows:\n")
	for i, w := range res.BestWindows {
		sb.WriteString(formatWindow(i+1, w, res.TotalResponses))
		sb.WriteString("\n")
	}

	if n := len(res.SlotMismatches); n > 0 {
		sb.WriteString(fmt.Sprintf("\n%d response(s) used a different slot size.", n))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatWindow(rank int, w availability.Window, total int) string {
	return fmt.Sprintf("%d. %s %s-%s: %d of %d (%d%%), %d free, %d tentative, quality %.2f",
		rank, w.Date, w.Start, w.End,
		w.Participants, total, availability.Percentage(w.Participants, total),
		w.Green, w.Yellow, w.QualityScore)
}
