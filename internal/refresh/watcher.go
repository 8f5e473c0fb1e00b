// Package refresh recomputes watched polls and tells subscribed chats when
// the best meeting window changes.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meetslot/internal/availability"
	"meetslot/internal/events"
	"meetslot/internal/metrics"
	"meetslot/internal/models"
	"meetslot/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// WatchStore persists chat subscriptions and the last digest sent to each.
type WatchStore interface {
	ListWatches(ctx context.Context) ([]models.Watch, error)
	UpdateWatchDigest(ctx context.Context, chatID int64, pollID, digest string) error
}

// ResultsSource computes poll results.
type ResultsSource interface {
	Results(ctx context.Context, pollID string) (*service.PollResults, error)
}

// Notifier delivers updated results to a chat.
type Notifier interface {
	NotifyResults(ctx context.Context, chatID int64, pr *service.PollResults) error
}

type Config struct {
	// Interval between full sweeps over all watches. Default: 5 minutes.
	Interval time.Duration
	// Workers bounds how many polls are recomputed at once. Default: 4.
	Workers int
	// SendRate and SendBurst throttle outgoing notifications.
	SendRate  float64
	SendBurst int
}

type Watcher struct {
	cfg      Config
	watches  WatchStore
	results  ResultsSource
	notifier Notifier
	limiter  *rate.Limiter
	logger   *zerolog.Logger
	nudges   chan string
}

func NewWatcher(cfg Config, watches WatchStore, results ResultsSource, notifier Notifier, logger *zerolog.Logger) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SendRate <= 0 {
		cfg.SendRate = 20
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = 30
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "refresh").Logger()

	return &Watcher{
		cfg:      cfg,
		watches:  watches,
		results:  results,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		logger:   &l,
		nudges:   make(chan string, 64),
	}
}

// Start sweeps all watches immediately, then on every tick and whenever a
// poll is nudged. It blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.cfg.Interval).Int("workers", w.cfg.Workers).Msg("refresh watcher started")
	w.CheckNow(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("refresh watcher stopped")
			return
		case <-ticker.C:
			w.CheckNow(ctx)
		case pollID := <-w.nudges:
			w.checkPolls(ctx, pollID)
		}
	}
}

// Nudge schedules a recompute of one poll. It never blocks; nudges beyond the
// queue capacity are left to the next tick.
func (w *Watcher) Nudge(pollID string) {
	select {
	case w.nudges <- pollID:
	default:
		w.logger.Debug().Str("poll_id", pollID).Msg("nudge queue full")
	}
}

// HandleEvent nudges the poll a response was submitted to.
func (w *Watcher) HandleEvent(e events.Event) error {
	if e.PollID == "" {
		return fmt.Errorf("refresh: event %s without poll id", e.Type)
	}
	w.Nudge(e.PollID)
	return nil
}

// CheckNow recomputes every watched poll.
func (w *Watcher) CheckNow(ctx context.Context) {
	w.checkPolls(ctx)
}

// checkPolls recomputes the given polls, or all watched polls when none are given.
func (w *Watcher) checkPolls(ctx context.Context, only ...string) {
	watches, err := w.watches.ListWatches(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("list watches failed")
		return
	}

	byPoll := groupByPoll(watches, only)
	if len(byPoll) == 0 {
		return
	}

	sem := make(chan struct{}, w.cfg.Workers)
	var wg sync.WaitGroup
	for pollID, subs := range byPoll {
		wg.Add(1)
		sem <- struct{}{}
		go func(pollID string, subs []models.Watch) {
			defer wg.Done()
			defer func() { <-sem }()
			w.checkPoll(ctx, pollID, subs)
		}(pollID, subs)
	}
	wg.Wait()
}

func (w *Watcher) checkPoll(ctx context.Context, pollID string, subs []models.Watch) {
	log := w.logger.With().Str("poll_id", pollID).Logger()

	pr, err := w.results.Results(ctx, pollID)
	if err != nil {
		log.Warn().Err(err).Msg("recompute failed")
		return
	}

	digest := Digest(pr.Result)
	for _, sub := range subs {
		if sub.Digest == digest {
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		if err := w.notifier.NotifyResults(ctx, sub.ChatID, pr); err != nil {
			metrics.IncNotification("failed")
			log.Error().Err(err).Int64("chat_id", sub.ChatID).Msg("notify failed")
			continue
		}
		metrics.IncNotification("sent")

		if err := w.watches.UpdateWatchDigest(ctx, sub.ChatID, pollID, digest); err != nil {
			log.Error().Err(err).Int64("chat_id", sub.ChatID).Msg("store digest failed (notification was sent)")
		}
		log.Info().Int64("chat_id", sub.ChatID).Str("digest", digest).Msg("chat notified")
	}
}

func groupByPoll(watches []models.Watch, only []string) map[string][]models.Watch {
	var filter map[string]bool
	if len(only) > 0 {
		filter = make(map[string]bool, len(only))
		for _, id := range only {
			filter[id] = true
		}
	}

	out := make(map[string][]models.Watch)
	for _, wt := range watches {
		if filter != nil && !filter[wt.PollID] {
			continue
		}
		out[wt.PollID] = append(out[wt.PollID], wt)
	}
	return out
}

// Digest identifies the current top window. It is empty while no window exists.
func Digest(res *availability.Result) string {
	if res == nil || len(res.BestWindows) == 0 {
		return ""
	}
	top := res.BestWindows[0]
	return fmt.Sprintf("%s@%s-%s:%d/%d", top.Date, top.Start, top.End, top.Green, top.Yellow)
}
