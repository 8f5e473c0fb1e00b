// Package opensheet reads poll and response rows from a public spreadsheet
// mirror (opensheet-style JSON: one object per row keyed by header) and
// appends rows by posting to the Google Forms that feed those sheets.
package opensheet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meetslot/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://opensheet.elk.sh"

// Sheet addresses one tab of a spreadsheet.
type Sheet struct {
	SpreadsheetID string
	Name          string
}

// PollsForm maps poll fields to Google Form entry keys.
type PollsForm struct {
	URL       string
	FieldID   string
	FieldJSON string
}

// VotesForm maps response fields to Google Form entry keys.
type VotesForm struct {
	URL         string
	FieldName   string
	FieldJSON   string
	FieldPollID string
}

type Options struct {
	BaseURL   string
	Polls     Sheet
	Responses Sheet
	PollsForm PollsForm
	VotesForm VotesForm
}

type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

func NewClient(opts Options, logger *zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "opensheet").Logger()
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     &l,
	}
}

// UseRedisCache configures optional Redis caching of sheet reads.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// sheetRow is one row of the mirror; values are strings or numbers.
type sheetRow map[string]any

func (r sheetRow) get(keys ...string) string {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case nil:
			continue
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// GetPollRow returns the first row whose id matches.
func (c *Client) GetPollRow(ctx context.Context, id string) (models.PollRow, error) {
	rows, err := c.fetchSheet(ctx, c.opts.Polls)
	if err != nil {
		return models.PollRow{}, err
	}

	id = strings.TrimSpace(id)
	for _, r := range rows {
		if strings.TrimSpace(r.get("id")) == id {
			return models.PollRow{ID: id, JSON: r.get("json")}, nil
		}
	}
	return models.PollRow{}, fmt.Errorf("poll %s: %w", id, models.ErrPollNotFound)
}

func (c *Client) ListResponseRows(ctx context.Context, pollID string) ([]models.ResponseRow, error) {
	rows, err := c.fetchSheet(ctx, c.opts.Responses)
	if err != nil {
		return nil, err
	}

	pollID = strings.TrimSpace(pollID)
	out := make([]models.ResponseRow, 0)
	for _, r := range rows {
		row := models.ResponseRow{
			Timestamp: r.get("timestamp", "Timestamp"),
			Name:      r.get("name"),
			JSON:      r.get("json"),
			PollID:    r.get("pollId"),
		}
		if strings.TrimSpace(row.PollID) != pollID {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// AppendPollRow submits the poll through the polls form. The form writes the
// row; the mirror shows it once the sheet cache refreshes.
func (c *Client) AppendPollRow(ctx context.Context, row models.PollRow) error {
	f := c.opts.PollsForm
	if f.URL == "" {
		return fmt.Errorf("polls form is not configured")
	}
	fields := url.Values{}
	fields.Set(f.FieldID, row.ID)
	fields.Set(f.FieldJSON, row.JSON)
	if err := c.submitForm(ctx, f.URL, fields); err != nil {
		return fmt.Errorf("submit poll %s: %w", row.ID, err)
	}
	c.invalidate(ctx, c.opts.Polls)
	return nil
}

// AppendResponseRow submits a response through the votes form. The form
// stamps its own timestamp, so row.Timestamp is not sent.
func (c *Client) AppendResponseRow(ctx context.Context, row models.ResponseRow) error {
	f := c.opts.VotesForm
	if f.URL == "" {
		return fmt.Errorf("votes form is not configured")
	}
	fields := url.Values{}
	fields.Set(f.FieldName, row.Name)
	fields.Set(f.FieldJSON, row.JSON)
	fields.Set(f.FieldPollID, row.PollID)
	if err := c.submitForm(ctx, f.URL, fields); err != nil {
		return fmt.Errorf("submit response of %s: %w", row.Name, err)
	}
	c.invalidate(ctx, c.opts.Responses)
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sheetURL(c.opts.Polls), http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("opensheet ping: http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) sheetURL(s Sheet) string {
	return fmt.Sprintf("%s/%s/%s", c.opts.BaseURL, url.PathEscape(s.SpreadsheetID), url.PathEscape(s.Name))
}

func cacheKey(s Sheet) string {
	return fmt.Sprintf("opensheet:%s:%s", s.SpreadsheetID, s.Name)
}

func (c *Client) fetchSheet(ctx context.Context, s Sheet) ([]sheetRow, error) {
	key := cacheKey(s)
	var rows []sheetRow
	if c.readCache(ctx, key, &rows) {
		return rows, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sheetURL(s), http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet %s: %w", s.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch sheet %s: http %d", s.Name, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode sheet %s: %w", s.Name, err)
	}

	c.logger.Debug().Str("sheet", s.Name).Int("rows", len(rows)).Msg("sheet fetched")
	c.writeCache(ctx, key, rows)
	return rows, nil
}

func (c *Client) submitForm(ctx context.Context, formURL string, fields url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, formURL, strings.NewReader(fields.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) invalidate(ctx context.Context, s Sheet) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, cacheKey(s)).Err()
}
