package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DayWindow is one candidate day of a poll with its bookable time range.
type DayWindow struct {
	Date  string `json:"date"`  // free-form label, usually YYYY-MM-DD
	Start string `json:"start"` // "09:00"
	End   string `json:"end"`   // "18:00"
}

// Poll is a meeting poll definition.
type Poll struct {
	ID                     string      `json:"id"`
	Title                  string      `json:"title"`
	SlotMinutes            int         `json:"slot_minutes"`
	MeetingDurationMinutes int         `json:"meeting_duration_minutes"`
	Days                   []DayWindow `json:"days"`
}

// PollRow is a raw row of the polls table: id | json.
type PollRow struct {
	ID   string
	JSON string
}

// pollPayload is the JSON document stored in a poll row.
type pollPayload struct {
	Title                  string         `json:"title"`
	SlotMinutes            Minutes        `json:"slotMinutes"`
	MeetingDurationMinutes Minutes        `json:"meetingDurationMinutes"`
	Days                   []rawDayWindow `json:"days"`
}

type rawDayWindow struct {
	Date  any `json:"date"`
	Start any `json:"start"`
	End   any `json:"end"`
}

// Minutes is a minute count decoded leniently from JSON: numbers and numeric
// strings are accepted, anything else decodes to zero.
type Minutes int

// UnmarshalJSON implements json.Unmarshaler.
func (m *Minutes) UnmarshalJSON(data []byte) error {
	*m = 0

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	*m = Minutes(f)
	return nil
}

// DecodePollRow parses a poll row. Days without date, start or end are dropped.
func DecodePollRow(row PollRow) (*Poll, error) {
	id := strings.TrimSpace(row.ID)
	if id == "" {
		return nil, fmt.Errorf("poll row has no id")
	}

	raw := row.JSON
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}

	var payload pollPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode poll %s: %w", id, err)
	}

	days := make([]DayWindow, 0, len(payload.Days))
	for _, d := range payload.Days {
		day := DayWindow{
			Date:  stringField(d.Date),
			Start: stringField(d.Start),
			End:   stringField(d.End),
		}
		if day.Date == "" || day.Start == "" || day.End == "" {
			continue
		}
		days = append(days, day)
	}

	return &Poll{
		ID:                     id,
		Title:                  payload.Title,
		SlotMinutes:            int(payload.SlotMinutes),
		MeetingDurationMinutes: int(payload.MeetingDurationMinutes),
		Days:                   days,
	}, nil
}

// EncodePollRow builds the row stored for a poll.
func EncodePollRow(p *Poll) (PollRow, error) {
	payload := map[string]any{
		"title":                  p.Title,
		"slotMinutes":            p.SlotMinutes,
		"meetingDurationMinutes": p.MeetingDurationMinutes,
		"days":                   p.Days,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return PollRow{}, fmt.Errorf("encode poll %s: %w", p.ID, err)
	}
	return PollRow{ID: p.ID, JSON: string(data)}, nil
}

// stringField renders a loosely typed JSON value as a trimmed string.
func stringField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// FormatTimestamp is the timestamp layout used in response rows.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
