// Package availability turns participant availability grids into a heatmap
// and a ranked list of meeting windows. Everything here is pure: no I/O, no
// shared state, and the same inputs always give the same result.
package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"meetslot/internal/models"
)

const (
	// DefaultAxisStart is used when no day window parses (09:00).
	DefaultAxisStart = 9 * 60
	// DefaultAxisEnd is used when no day window parses (18:00).
	DefaultAxisEnd = 18 * 60
)

// ErrInvalidConfiguration is returned when the slot size is not a positive number of minutes.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// TimeAxis is the shared list of slot start offsets (minutes since midnight)
// across all days of a poll.
type TimeAxis struct {
	Start       int   `json:"start"`
	End         int   `json:"end"`
	SlotMinutes int   `json:"slot_minutes"`
	Slots       []int `json:"slots"`
}

// ParseHHMM parses "HH:MM" into minutes since midnight.
func ParseHHMM(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, false
	}

	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, false
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// FormatHHMM formats minutes since midnight as "HH:MM".
func FormatHHMM(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// dayBounds returns the parsed start/end of a day window. Days that do not
// parse are inert.
func dayBounds(day models.DayWindow) (start, end int, ok bool) {
	start, okStart := ParseHHMM(day.Start)
	end, okEnd := ParseHHMM(day.End)
	if !okStart || !okEnd {
		return 0, 0, false
	}
	return start, end, true
}

// BuildTimeAxis derives the shared slot axis for a set of day windows.
func BuildTimeAxis(days []models.DayWindow, slotMinutes int) (TimeAxis, error) {
	if slotMinutes <= 0 {
		return TimeAxis{}, fmt.Errorf("%w: slot minutes must be positive, got %d", ErrInvalidConfiguration, slotMinutes)
	}

	globalStart, globalEnd := -1, -1
	for _, d := range days {
		start, end, ok := dayBounds(d)
		if !ok {
			continue
		}
		if globalStart < 0 || start < globalStart {
			globalStart = start
		}
		if globalEnd < 0 || end > globalEnd {
			globalEnd = end
		}
	}
	if globalStart < 0 {
		globalStart = DefaultAxisStart
	}
	if globalEnd < 0 {
		globalEnd = DefaultAxisEnd
	}

	slots := make([]int, 0)
	for t := globalStart; t+slotMinutes <= globalEnd; t += slotMinutes {
		slots = append(slots, t)
	}

	return TimeAxis{
		Start:       globalStart,
		End:         globalEnd,
		SlotMinutes: slotMinutes,
		Slots:       slots,
	}, nil
}

// IsSlotActive reports whether slot t lies fully inside the day's window.
func IsSlotActive(day models.DayWindow, t, slotMinutes int) bool {
	start, end, ok := dayBounds(day)
	if !ok {
		return false
	}
	return t >= start && t+slotMinutes <= end
}

// Labels returns the axis slots formatted as "HH:MM".
func (a TimeAxis) Labels() []string {
	labels := make([]string, len(a.Slots))
	for i, t := range a.Slots {
		labels[i] = FormatHHMM(t)
	}
	return labels
}
