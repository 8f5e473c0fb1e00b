package google

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"meetslot/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService stores poll and response rows in two tabs of a spreadsheet:
// polls (id | json) and responses (timestamp | name | json | pollId).
type SheetsService struct {
	service        *sheets.Service
	spreadsheetID  string
	pollsSheet     string
	responsesSheet string
	logger         *zerolog.Logger

	// poll rows never change once appended, so a lookup cache is safe
	pollCache map[string]models.PollRow
	cacheMu   sync.RWMutex
}

type SheetsOptions struct {
	SpreadsheetID  string
	PollsSheet     string
	ResponsesSheet string
}

// NewSheetsService authenticates with a service-account credentials file.
func NewSheetsService(ctx context.Context, credentialsFile string, opts SheetsOptions, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return NewSheetsServiceWithOptions(ctx, opts, logger, option.WithCredentials(creds))
}

// NewSheetsServiceWithOptions builds the service from raw client options.
func NewSheetsServiceWithOptions(ctx context.Context, opts SheetsOptions, logger *zerolog.Logger, clientOpts ...option.ClientOption) (*SheetsService, error) {
	if opts.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if opts.PollsSheet == "" {
		opts.PollsSheet = "polls"
	}
	if opts.ResponsesSheet == "" {
		opts.ResponsesSheet = "responses"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	l := logger.With().Str("component", "sheets").Str("spreadsheet", opts.SpreadsheetID).Logger()
	return &SheetsService{
		service:        srv,
		spreadsheetID:  opts.SpreadsheetID,
		pollsSheet:     opts.PollsSheet,
		responsesSheet: opts.ResponsesSheet,
		logger:         &l,
		pollCache:      make(map[string]models.PollRow),
	}, nil
}

func (s *SheetsService) GetPollRow(ctx context.Context, id string) (models.PollRow, error) {
	id = strings.TrimSpace(id)
	if row, ok := s.getCachedPoll(id); ok {
		return row, nil
	}

	values, err := s.readRange(ctx, s.pollsSheet+"!A:B")
	if err != nil {
		return models.PollRow{}, err
	}

	for i, v := range values {
		if i == 0 && isHeaderRow(v, "id") {
			continue
		}
		row, ok := parsePollRow(v)
		if !ok {
			continue
		}
		s.setCachedPoll(row)
	}

	if row, ok := s.getCachedPoll(id); ok {
		return row, nil
	}
	return models.PollRow{}, fmt.Errorf("poll %s: %w", id, models.ErrPollNotFound)
}

func (s *SheetsService) AppendPollRow(ctx context.Context, row models.PollRow) error {
	if err := s.appendRow(ctx, s.pollsSheet+"!A:B", pollRowValues(row)); err != nil {
		return fmt.Errorf("append poll %s: %w", row.ID, err)
	}
	s.setCachedPoll(row)
	return nil
}

func (s *SheetsService) ListResponseRows(ctx context.Context, pollID string) ([]models.ResponseRow, error) {
	values, err := s.readRange(ctx, s.responsesSheet+"!A:D")
	if err != nil {
		return nil, err
	}

	pollID = strings.TrimSpace(pollID)
	out := make([]models.ResponseRow, 0, len(values))
	for i, v := range values {
		if i == 0 && isHeaderRow(v, "timestamp") {
			continue
		}
		row := parseResponseRow(v)
		if strings.TrimSpace(row.PollID) != pollID {
			continue
		}
		out = append(out, row)
	}

	s.logger.Debug().Str("poll_id", pollID).Int("rows", len(out)).Msg("responses loaded")
	return out, nil
}

func (s *SheetsService) AppendResponseRow(ctx context.Context, row models.ResponseRow) error {
	if err := s.appendRow(ctx, s.responsesSheet+"!A:D", responseRowValues(row)); err != nil {
		return fmt.Errorf("append response of %s: %w", row.Name, err)
	}
	return nil
}

func (s *SheetsService) Ping(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets ping: %w", err)
	}
	return nil
}

func (s *SheetsService) readRange(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (s *SheetsService) appendRow(ctx context.Context, rng string, values []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (s *SheetsService) getCachedPoll(id string) (models.PollRow, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.pollCache[id]
	return row, ok
}

// setCachedPoll keeps the first row seen for an id.
func (s *SheetsService) setCachedPoll(row models.PollRow) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if _, exists := s.pollCache[row.ID]; !exists {
		s.pollCache[row.ID] = row
	}
}

// ClearCache drops cached poll rows.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.pollCache = make(map[string]models.PollRow)
}

func pollRowValues(row models.PollRow) []interface{} {
	return []interface{}{row.ID, row.JSON}
}

func responseRowValues(row models.ResponseRow) []interface{} {
	return []interface{}{row.Timestamp, row.Name, row.JSON, row.PollID}
}

func parsePollRow(values []interface{}) (models.PollRow, bool) {
	id := strings.TrimSpace(cell(values, 0))
	if id == "" {
		return models.PollRow{}, false
	}
	return models.PollRow{ID: id, JSON: cell(values, 1)}, true
}

func parseResponseRow(values []interface{}) models.ResponseRow {
	return models.ResponseRow{
		Timestamp: cell(values, 0),
		Name:      cell(values, 1),
		JSON:      cell(values, 2),
		PollID:    cell(values, 3),
	}
}

func isHeaderRow(values []interface{}, first string) bool {
	return strings.EqualFold(strings.TrimSpace(cell(values, 0)), first)
}

// cell renders the i-th value of a row; short rows yield "".
func cell(values []interface{}, i int) string {
	if i >= len(values) || values[i] == nil {
		return ""
	}
	if s, ok := values[i].(string); ok {
		return s
	}
	return fmt.Sprint(values[i])
}
