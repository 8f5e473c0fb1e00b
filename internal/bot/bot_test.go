package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"meetslot/internal/availability"
	"meetslot/internal/models"
	"meetslot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "meetslot_bot"}
}

func (f *fakeTelegram) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeTelegram) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

type fakeResults struct {
	results map[string]*service.PollResults
	err     error
}

func (f *fakeResults) Results(_ context.Context, pollID string) (*service.PollResults, error) {
	if f.err != nil {
		return nil, f.err
	}
	pr, ok := f.results[pollID]
	if !ok {
		return nil, fmt.Errorf("get poll %s: %w", pollID, models.ErrPollNotFound)
	}
	return pr, nil
}

type fakeWatches struct {
	mu      sync.Mutex
	watches []models.Watch
}

func (f *fakeWatches) AddWatch(_ context.Context, chatID int64, pollID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.watches {
		if w.ChatID == chatID && w.PollID == pollID {
			return nil
		}
	}
	f.watches = append(f.watches, models.Watch{ChatID: chatID, PollID: pollID})
	return nil
}

func (f *fakeWatches) RemoveWatch(_ context.Context, chatID int64, pollID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.watches {
		if w.ChatID == chatID && w.PollID == pollID {
			f.watches = append(f.watches[:i], f.watches[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWatches) ListChatWatches(_ context.Context, chatID int64) ([]models.Watch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Watch
	for _, w := range f.watches {
		if w.ChatID == chatID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWatches) UpdateWatchDigest(_ context.Context, chatID int64, pollID, digest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.watches {
		if f.watches[i].ChatID == chatID && f.watches[i].PollID == pollID {
			f.watches[i].Digest = digest
		}
	}
	return nil
}

const chatID = int64(42)

func testPollResults(t *testing.T) *service.PollResults {
	t.Helper()
	poll := &models.Poll{
		ID:                     "p1",
		Title:                  "Team sync",
		SlotMinutes:            30,
		MeetingDurationMinutes: 60,
		Days:                   []models.DayWindow{{Date: "2024-01-10", Start: "09:00", End: "11:00"}},
	}
	res, err := availability.Compute(poll.Days, 30, 60, []models.Response{
		{Identity: "Anna", Availability: models.Availability{"2024-01-10": {"09:00": models.MarkFree, "09:30": models.MarkFree}}},
		{Identity: "Bob", Availability: models.Availability{"2024-01-10": {"09:00": models.MarkFree, "09:30": models.MarkFree}}},
	})
	require.NoError(t, err)
	return &service.PollResults{Poll: poll, Result: res}
}

func newTestBot(t *testing.T) (*Bot, *fakeTelegram, *fakeResults, *fakeWatches) {
	t.Helper()
	tg := newFakeTelegram()
	results := &fakeResults{results: map[string]*service.PollResults{"p1": testPollResults(t)}}
	watches := &fakeWatches{}
	b, err := NewWithTelegramClient(tg, results, watches, nil)
	require.NoError(t, err)
	return b, tg, results, watches
}

func message(text string) *tgbotapi.Update {
	return &tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: 7},
	}}
}

func TestParseCommand(t *testing.T) {
	cmd, arg, ok := parseCommand("/results@meetslot_bot  p1 extra")
	assert.True(t, ok)
	assert.Equal(t, "results", cmd)
	assert.Equal(t, "p1", arg)

	cmd, arg, ok = parseCommand("/HELP")
	assert.True(t, ok)
	assert.Equal(t, "help", cmd)
	assert.Empty(t, arg)

	_, _, ok = parseCommand("hello")
	assert.False(t, ok)
}

func TestNewWithTelegramClient_Validates(t *testing.T) {
	_, err := NewWithTelegramClient(nil, &fakeResults{}, &fakeWatches{}, nil)
	assert.Error(t, err)
	_, err = NewWithTelegramClient(newFakeTelegram(), nil, &fakeWatches{}, nil)
	assert.Error(t, err)
}

func TestResultsCommand(t *testing.T) {
	b, tg, results, _ := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, message("/results p1"))
	texts := tg.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], `"Team sync"`)
	assert.Contains(t, texts[0], "Responses: 2")
	assert.Contains(t, texts[0], "1. 2024-01-10 09:00-10:00: 2 of 2 (100%), 2 free, 0 tentative, quality 2.00")

	b.handleUpdate(ctx, message("/results nope"))
	assert.Equal(t, "Poll nope not found.", tg.texts()[1])

	b.handleUpdate(ctx, message("/results"))
	assert.Contains(t, tg.texts()[2], "Add a poll id")

	results.err = errors.New("sheets: quota exceeded")
	b.handleUpdate(ctx, message("/results p1"))
	assert.Contains(t, tg.texts()[3], "try again later")
}

func TestExportCommand(t *testing.T) {
	b, tg, _, _ := newTestBot(t)

	b.handleUpdate(context.Background(), message("/export p1"))
	doc, ok := tg.last().(tgbotapi.DocumentConfig)
	require.True(t, ok, "expected a document, got %T", tg.last())
	assert.Equal(t, "Team sync", doc.Caption)

	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "poll-p1.xlsx", file.Name)
	assert.NotEmpty(t, file.Bytes)
}

func TestWatchAndUnwatch(t *testing.T) {
	b, tg, _, watches := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, message("/watch p1"))
	require.Len(t, watches.watches, 1)
	assert.Equal(t, "2024-01-10@09:00-10:00:2/0", watches.watches[0].Digest, "current state is not re-sent later")
	assert.Contains(t, tg.texts()[0], "Following \"Team sync\"")

	b.handleUpdate(ctx, message("/watch nope"))
	assert.Len(t, watches.watches, 1)

	b.handleUpdate(ctx, message("/unwatch p1"))
	assert.Empty(t, watches.watches)
	assert.Equal(t, "Stopped following p1.", tg.texts()[2])

	b.handleUpdate(ctx, message("/unwatch p1"))
	assert.Equal(t, "This chat does not follow p1.", tg.texts()[3])
}

func TestWatchesPagination(t *testing.T) {
	b, tg, _, watches := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, message("/watches"))
	assert.Contains(t, tg.texts()[0], "follows no polls")

	for i := 0; i < watchesPerPage+2; i++ {
		require.NoError(t, watches.AddWatch(ctx, chatID, fmt.Sprintf("poll-%02d", i)))
	}

	b.handleUpdate(ctx, message("/watches"))
	first, ok := tg.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, first.Text, "Page 1 of 2")
	markup, ok := first.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, watchesPerPage+1)
	nav := markup.InlineKeyboard[watchesPerPage]
	require.Len(t, nav, 1)
	assert.Equal(t, callbackPage+"1", *nav[0].CallbackData)

	b.handleUpdate(ctx, &tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    callbackPage + "1",
		Message: &tgbotapi.Message{MessageID: 99, Chat: &tgbotapi.Chat{ID: chatID}},
	}})
	edit, ok := tg.last().(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 99, edit.MessageID)
	assert.Contains(t, edit.Text, "Page 2 of 2")
	assert.Contains(t, edit.Text, "poll-09")
	assert.Len(t, tg.requests, 1, "callback answered")
}

func TestResultsCallback(t *testing.T) {
	b, tg, _, _ := newTestBot(t)

	b.handleUpdate(context.Background(), &tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    callbackResults + "p1",
		Message: &tgbotapi.Message{MessageID: 5, Chat: &tgbotapi.Chat{ID: chatID}},
	}})
	require.Len(t, tg.texts(), 1)
	assert.Contains(t, tg.texts()[0], "Best windows")
}

func TestNotifyResults(t *testing.T) {
	b, tg, _, _ := newTestBot(t)

	require.NoError(t, b.NotifyResults(context.Background(), 7, testPollResults(t)))
	msg, ok := tg.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(7), msg.ChatID)
	assert.Contains(t, msg.Text, "Update for \"Team sync\"")

	assert.Error(t, b.NotifyResults(context.Background(), 7, &service.PollResults{}))
}

func TestFormatResults_NoData(t *testing.T) {
	pr := testPollResults(t)
	empty, err := availability.Compute(pr.Poll.Days, 30, 60, nil)
	require.NoError(t, err)

	text := formatResults(&service.PollResults{Poll: pr.Poll, Result: empty})
	assert.Contains(t, text, "No responses yet.")

	noWindow, err := availability.Compute(pr.Poll.Days, 30, 60, []models.Response{
		{Identity: "Anna", Availability: models.Availability{"2024-01-10": {"09:00": models.MarkFree}}},
		{Identity: "Bob", DeclaredSlotMinutes: 15, Availability: models.Availability{"2024-01-10": {"10:30": models.MarkFree}}},
	})
	require.NoError(t, err)
	text = formatResults(&service.PollResults{Poll: pr.Poll, Result: noWindow})
	assert.Contains(t, text, "No common window yet.")
}

func TestStart_StopsOnCancel(t *testing.T) {
	b, tg, _, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	tg.updates <- *message("/help")
	assert.Eventually(t, func() bool { return len(tg.texts()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
}
