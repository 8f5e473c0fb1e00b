package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"meetslot/internal/models"

	"github.com/rs/zerolog"
)

const defaultRecoveryInterval = time.Minute

// FailoverStore serves from primary and switches to fallback when primary
// fails. While primary is marked down it is retried once per recovery interval.
//
// Rows appended to fallback during an outage are replayed into primary, in
// order, before primary serves again. Reads also consult fallback so rows
// whose replay was lost with a restart stay visible.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   *zerolog.Logger

	isDown           atomic.Bool
	mu               sync.Mutex
	lastCheck        time.Time
	recoveryInterval time.Duration
	pending          []pendingWrite

	replayMu sync.Mutex
}

type pendingWrite struct {
	op    string
	apply func(context.Context, Store) error
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "failover_store").Logger()
	return &FailoverStore{
		primary:          primary,
		fallback:         fallback,
		logger:           &l,
		recoveryInterval: defaultRecoveryInterval,
	}
}

// usePrimary reports whether the next call should go to primary.
func (s *FailoverStore) usePrimary() bool {
	if !s.isDown.Load() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastCheck) >= s.recoveryInterval {
		s.lastCheck = time.Now()
		return true
	}
	return false
}

func (s *FailoverStore) markDown(op string, err error) {
	if !s.isDown.Swap(true) {
		s.logger.Warn().Err(err).Str("op", op).Msg("primary store failed, switching to fallback")
	}
	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()
}

func (s *FailoverStore) markUp() {
	if s.isDown.Swap(false) {
		s.logger.Info().Msg("primary store recovered")
	}
}

// replay pushes writes made on fallback into primary. Writes are dropped
// from the queue only once primary accepted them.
func (s *FailoverStore) replay(ctx context.Context) error {
	s.replayMu.Lock()
	defer s.replayMu.Unlock()

	replayed := 0
	defer func() {
		if replayed > 0 {
			s.logger.Info().Int("rows", replayed).Msg("replayed fallback writes into primary")
		}
	}()

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return nil
		}
		w := s.pending[0]
		s.mu.Unlock()

		if err := w.apply(ctx, s.primary); err != nil {
			return fmt.Errorf("replay %s: %w", w.op, err)
		}

		s.mu.Lock()
		s.pending = s.pending[1:]
		s.mu.Unlock()
		replayed++
	}
}

// call runs fn against primary, falling back on failure. A missing poll is
// an answer, not a failure.
func call[T any](ctx context.Context, s *FailoverStore, op string, fn func(Store) (T, error)) (T, error) {
	if s.usePrimary() {
		if err := s.replay(ctx); err != nil {
			s.markDown(op, err)
			return fn(s.fallback)
		}
		v, err := fn(s.primary)
		if err == nil || errors.Is(err, models.ErrPollNotFound) {
			s.markUp()
			return v, err
		}
		s.markDown(op, err)
	}
	return fn(s.fallback)
}

// write is call for appends: a row that lands on fallback is queued for replay.
func (s *FailoverStore) write(ctx context.Context, op string, apply func(context.Context, Store) error) error {
	if s.usePrimary() {
		err := s.replay(ctx)
		if err == nil {
			if err = apply(ctx, s.primary); err == nil {
				s.markUp()
				return nil
			}
		}
		s.markDown(op, err)
	}

	if err := apply(ctx, s.fallback); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending = append(s.pending, pendingWrite{op: op, apply: apply})
	s.mu.Unlock()
	return nil
}

// GetPollRow asks fallback when primary does not know the poll.
func (s *FailoverStore) GetPollRow(ctx context.Context, id string) (models.PollRow, error) {
	fromPrimary := true
	row, err := call(ctx, s, "get_poll", func(st Store) (models.PollRow, error) {
		if st == s.fallback {
			fromPrimary = false
		}
		return st.GetPollRow(ctx, id)
	})
	if !fromPrimary || !errors.Is(err, models.ErrPollNotFound) {
		return row, err
	}
	if fbRow, fbErr := s.fallback.GetPollRow(ctx, id); fbErr == nil {
		return fbRow, nil
	}
	return row, err
}

func (s *FailoverStore) AppendPollRow(ctx context.Context, row models.PollRow) error {
	return s.write(ctx, "append_poll", func(ctx context.Context, st Store) error {
		return st.AppendPollRow(ctx, row)
	})
}

// ListResponseRows returns primary rows followed by fallback rows primary
// does not hold. Rows are matched by name, payload and poll; timestamps are
// ignored since form-backed stores stamp their own.
func (s *FailoverStore) ListResponseRows(ctx context.Context, pollID string) ([]models.ResponseRow, error) {
	fromPrimary := true
	rows, err := call(ctx, s, "list_responses", func(st Store) ([]models.ResponseRow, error) {
		if st == s.fallback {
			fromPrimary = false
		}
		return st.ListResponseRows(ctx, pollID)
	})
	if err != nil || !fromPrimary {
		return rows, err
	}

	extra, fbErr := s.fallback.ListResponseRows(ctx, pollID)
	if fbErr != nil {
		s.logger.Warn().Err(fbErr).Str("poll_id", pollID).Msg("fallback rows unavailable")
		return rows, nil
	}
	return mergeRows(rows, extra), nil
}

func (s *FailoverStore) AppendResponseRow(ctx context.Context, row models.ResponseRow) error {
	return s.write(ctx, "append_response", func(ctx context.Context, st Store) error {
		return st.AppendResponseRow(ctx, row)
	})
}

// Ping succeeds when either store answers.
func (s *FailoverStore) Ping(ctx context.Context) error {
	if err := s.primary.Ping(ctx); err == nil {
		return nil
	}
	return s.fallback.Ping(ctx)
}

func rowKey(r models.ResponseRow) string {
	return r.PollID + "\x00" + r.Name + "\x00" + r.JSON
}

// mergeRows appends the rows of extra that primary lacks, counting duplicates.
func mergeRows(primary, extra []models.ResponseRow) []models.ResponseRow {
	if len(extra) == 0 {
		return primary
	}
	seen := make(map[string]int, len(primary))
	for _, r := range primary {
		seen[rowKey(r)]++
	}
	out := primary
	for _, r := range extra {
		k := rowKey(r)
		if seen[k] > 0 {
			seen[k]--
			continue
		}
		out = append(out, r)
	}
	return out
}
