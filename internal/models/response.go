package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Mark is a participant's stated availability for one slot.
type Mark string

const (
	MarkFree      Mark = "g"
	MarkTentative Mark = "y"
	MarkNone      Mark = ""
)

// Valid reports whether the mark carries availability.
func (m Mark) Valid() bool {
	return m == MarkFree || m == MarkTentative
}

// Availability maps date -> "HH:MM" -> mark. It is sparse: unmarked slots are absent.
type Availability map[string]map[string]Mark

// Count returns the number of free or tentative marks.
func (a Availability) Count() int {
	n := 0
	for _, slots := range a {
		for _, m := range slots {
			if m.Valid() {
				n++
			}
		}
	}
	return n
}

// Response is one participant's submission.
type Response struct {
	PollID              string       `json:"poll_id"`
	Identity            string       `json:"identity"`
	Availability        Availability `json:"availability"`
	DeclaredSlotMinutes int          `json:"declared_slot_minutes,omitempty"`
	SubmittedAt         time.Time    `json:"submitted_at,omitempty"`
}

// ResponseRow is a raw row of the responses table: timestamp | name | json | pollId.
type ResponseRow struct {
	Timestamp string
	Name      string
	JSON      string
	PollID    string
}

// responsePayload is the JSON document stored in a response row.
type responsePayload struct {
	SlotMinutes  Minutes                      `json:"slotMinutes"`
	Availability map[string]map[string]string `json:"availability"`
}

// DropStats counts rows skipped while decoding responses.
type DropStats struct {
	MissingName int
	BadJSON     int
}

// Total returns the number of dropped rows.
func (s DropStats) Total() int {
	return s.MissingName + s.BadJSON
}

// DecodeResponseRows keeps the rows of pollID and decodes them in order.
// Rows without a name or with unparsable JSON are skipped and counted.
func DecodeResponseRows(pollID string, rows []ResponseRow) ([]Response, DropStats) {
	pollID = strings.TrimSpace(pollID)
	responses := make([]Response, 0, len(rows))
	var stats DropStats

	for _, row := range rows {
		if strings.TrimSpace(row.PollID) != pollID {
			continue
		}

		name := strings.TrimSpace(row.Name)
		if name == "" {
			stats.MissingName++
			continue
		}

		resp, err := decodeResponsePayload(row.JSON)
		if err != nil {
			stats.BadJSON++
			continue
		}
		resp.PollID = pollID
		resp.Identity = name
		resp.SubmittedAt = parseTimestamp(row.Timestamp)
		responses = append(responses, resp)
	}

	return responses, stats
}

func decodeResponsePayload(raw string) (Response, error) {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}

	var payload *responsePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Response{}, err
	}
	if payload == nil {
		// JSON null: the row exists but carries no payload.
		return Response{}, nil
	}

	avail := make(Availability, len(payload.Availability))
	for date, slots := range payload.Availability {
		marks := make(map[string]Mark, len(slots))
		for key, state := range slots {
			marks[key] = Mark(state)
		}
		avail[date] = marks
	}

	return Response{
		Availability:        avail,
		DeclaredSlotMinutes: int(payload.SlotMinutes),
	}, nil
}

// EncodeResponseRow builds the row stored for a response.
func EncodeResponseRow(r *Response) (ResponseRow, error) {
	payload := map[string]any{
		"slotMinutes":  r.DeclaredSlotMinutes,
		"availability": r.Availability,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ResponseRow{}, fmt.Errorf("encode response of %s: %w", r.Identity, err)
	}

	ts := r.SubmittedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return ResponseRow{
		Timestamp: FormatTimestamp(ts),
		Name:      r.Identity,
		JSON:      string(data),
		PollID:    r.PollID,
	}, nil
}

// timestampLayouts are the layouts accepted in the timestamp column. Slash
// dates are left out: Google Forms writes them month-first or day-first
// depending on the sheet locale, so they cannot order rows. Such rows get a
// zero SubmittedAt and keep their append order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
