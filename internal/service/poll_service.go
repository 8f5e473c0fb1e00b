package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meetslot/internal/availability"
	"meetslot/internal/events"
	"meetslot/internal/metrics"
	"meetslot/internal/models"
	"meetslot/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	MinSlotMinutes = 5
	MaxSlotMinutes = 240
)

// EventPublisher is the subset of the event bus used by the service.
type EventPublisher interface {
	PublishJSON(eventType, pollID string, payload any) error
}

// ResultsCache stores computed results between requests.
type ResultsCache interface {
	Get(ctx context.Context, pollID string) (*availability.Result, error)
	Set(ctx context.Context, pollID string, res *availability.Result) error
	Invalidate(ctx context.Context, pollID string) error
}

type CreatePollInput struct {
	Title                  string             `json:"title"`
	SlotMinutes            int                `json:"slot_minutes"`
	MeetingDurationMinutes int                `json:"meeting_duration_minutes"`
	Days                   []models.DayWindow `json:"days"`
}

type SubmitResponseInput struct {
	PollID       string              `json:"-"`
	Identity     string              `json:"name"`
	Availability models.Availability `json:"availability"`
}

// PollResults is a poll together with its aggregated availability.
type PollResults struct {
	Poll    *models.Poll         `json:"poll"`
	Result  *availability.Result `json:"result"`
	Dropped models.DropStats     `json:"dropped"`
	Cached  bool                 `json:"cached"`
}

type PollService struct {
	store  repository.Store
	cache  ResultsCache
	bus    EventPublisher
	logger *zerolog.Logger

	now   func() time.Time
	newID func() string
}

func NewPollService(store repository.Store, cache ResultsCache, bus EventPublisher, logger *zerolog.Logger) *PollService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "poll_service").Logger()
	return &PollService{
		store:  store,
		cache:  cache,
		bus:    bus,
		logger: &l,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrValidation, fmt.Sprintf(format, args...))
}

// ValidatePoll checks a poll definition before it is stored.
func ValidatePoll(in CreatePollInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return validationErr("title is required")
	}
	if in.SlotMinutes < MinSlotMinutes || in.SlotMinutes > MaxSlotMinutes {
		return validationErr("slot minutes must be between %d and %d", MinSlotMinutes, MaxSlotMinutes)
	}
	if in.MeetingDurationMinutes <= 0 {
		return validationErr("meeting duration must be positive")
	}
	if in.MeetingDurationMinutes < in.SlotMinutes {
		return validationErr("meeting duration must cover at least one slot")
	}

	complete := 0
	for i, d := range in.Days {
		if strings.TrimSpace(d.Date) == "" || strings.TrimSpace(d.Start) == "" || strings.TrimSpace(d.End) == "" {
			continue
		}
		start, okStart := availability.ParseHHMM(d.Start)
		end, okEnd := availability.ParseHHMM(d.End)
		if !okStart || !okEnd {
			return validationErr("day %d: times must be HH:MM", i+1)
		}
		if start >= end {
			return validationErr("day %d: start must be before end", i+1)
		}
		complete++
	}
	if complete == 0 {
		return validationErr("at least one day with date, start and end is required")
	}
	return nil
}

// CreatePoll validates and stores a new poll under a random id.
func (s *PollService) CreatePoll(ctx context.Context, in CreatePollInput) (*models.Poll, error) {
	if err := ValidatePoll(in); err != nil {
		return nil, err
	}

	days := make([]models.DayWindow, 0, len(in.Days))
	for _, d := range in.Days {
		day := models.DayWindow{
			Date:  strings.TrimSpace(d.Date),
			Start: strings.TrimSpace(d.Start),
			End:   strings.TrimSpace(d.End),
		}
		if day.Date == "" || day.Start == "" || day.End == "" {
			continue
		}
		days = append(days, day)
	}

	poll := &models.Poll{
		ID:                     s.newID(),
		Title:                  strings.TrimSpace(in.Title),
		SlotMinutes:            in.SlotMinutes,
		MeetingDurationMinutes: in.MeetingDurationMinutes,
		Days:                   days,
	}

	row, err := models.EncodePollRow(poll)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendPollRow(ctx, row); err != nil {
		return nil, fmt.Errorf("store poll: %w", err)
	}

	metrics.IncPollCreated()
	s.logger.Info().Str("poll_id", poll.ID).Int("days", len(days)).Msg("poll created")
	s.publish(events.PollCreated, poll.ID, map[string]any{"title": poll.Title, "days": len(days)})
	return poll, nil
}

// GetPoll loads and decodes a poll.
func (s *PollService) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("poll id is empty: %w", models.ErrPollNotFound)
	}

	row, err := s.store.GetPollRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.DecodePollRow(row)
}

// SubmitResponse records a participant's availability for a poll. Marks
// other than free/tentative and unparsable times are dropped before storing.
func (s *PollService) SubmitResponse(ctx context.Context, in SubmitResponseInput) (*models.Response, error) {
	identity := strings.TrimSpace(in.Identity)
	if identity == "" {
		return nil, validationErr("name is required")
	}

	poll, err := s.GetPoll(ctx, in.PollID)
	if err != nil {
		return nil, err
	}

	marks := cleanAvailability(in.Availability)
	if marks.Count() == 0 {
		return nil, validationErr("at least one slot must be marked")
	}

	resp := &models.Response{
		PollID:              poll.ID,
		Identity:            identity,
		Availability:        marks,
		DeclaredSlotMinutes: poll.SlotMinutes,
		SubmittedAt:         s.now(),
	}
	row, err := models.EncodeResponseRow(resp)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendResponseRow(ctx, row); err != nil {
		return nil, fmt.Errorf("store response: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, poll.ID); err != nil {
			s.logger.Warn().Err(err).Str("poll_id", poll.ID).Msg("results cache invalidation failed")
		}
	}

	metrics.IncResponseSubmitted()
	s.logger.Info().Str("poll_id", poll.ID).Int("marks", marks.Count()).Msg("response submitted")
	s.publish(events.ResponseSubmitted, poll.ID, map[string]any{"name": identity, "marks": marks.Count()})
	return resp, nil
}

// Results aggregates the poll's responses into a heatmap and best windows.
func (s *PollService) Results(ctx context.Context, pollID string) (*PollResults, error) {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With().Str("poll_id", poll.ID).Logger()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, poll.ID)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("results cache read failed")
		case cached != nil:
			metrics.IncResultsCache("hit")
			return &PollResults{Poll: poll, Result: cached, Cached: true}, nil
		}
		metrics.IncResultsCache("miss")
	}

	rows, err := s.store.ListResponseRows(ctx, poll.ID)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}

	responses, dropped := models.DecodeResponseRows(poll.ID, rows)
	metrics.AddRowsDropped("missing_name", dropped.MissingName)
	metrics.AddRowsDropped("bad_json", dropped.BadJSON)
	if dropped.Total() > 0 {
		log.Debug().Int("missing_name", dropped.MissingName).Int("bad_json", dropped.BadJSON).Msg("rows skipped")
	}

	started := time.Now()
	res, err := availability.Compute(poll.Days, poll.SlotMinutes, poll.MeetingDurationMinutes,
		availability.SortBySubmission(responses))
	metrics.ObserveCompute(time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("compute poll %s: %w", poll.ID, err)
	}

	if len(res.SlotMismatches) > 0 {
		log.Info().Int("count", len(res.SlotMismatches)).Msg("responses submitted with a different slot size")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, poll.ID, res); err != nil {
			log.Warn().Err(err).Msg("results cache write failed")
		}
	}

	return &PollResults{Poll: poll, Result: res, Dropped: dropped}, nil
}

func (s *PollService) publish(eventType, pollID string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, pollID, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("poll_id", pollID).Msg("event handler failed")
	}
}

// IsNotFound reports whether err means the poll does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrPollNotFound)
}

// IsValidation reports whether err is a rejected input.
func IsValidation(err error) bool {
	return errors.Is(err, models.ErrValidation)
}

func cleanAvailability(in models.Availability) models.Availability {
	out := make(models.Availability, len(in))
	for date, slots := range in {
		date = strings.TrimSpace(date)
		if date == "" {
			continue
		}
		for key, mark := range slots {
			if !mark.Valid() {
				continue
			}
			t, ok := availability.ParseHHMM(key)
			if !ok {
				continue
			}
			if out[date] == nil {
				out[date] = make(map[string]models.Mark)
			}
			out[date][availability.FormatHHMM(t)] = mark
		}
	}
	return out
}
