package availability

import (
	"sort"

	"meetslot/internal/models"
)

const (
	// MaxBestWindows is how many candidates FindBestWindows returns at most.
	MaxBestWindows = 3

	fallbackSlotMinutes     = 30
	fallbackDurationMinutes = 60
)

// Window is a candidate meeting placement on one day.
type Window struct {
	Date         string  `json:"date"`
	StartMinutes int     `json:"start_minutes"`
	EndMinutes   int     `json:"end_minutes"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Participants int     `json:"participants"`
	QualityScore float64 `json:"quality_score"`
	Green        int     `json:"green"`
	Yellow       int     `json:"yellow"`
}

// FindBestWindows slides a meeting-length window across each day in slot
// steps and returns the top candidates ranked by participants, then quality.
//
// Green and yellow of a window are the minimum over its slots, so a window
// reported with N participants has N people marked for its whole length. A
// slot with no heatmap entry zeroes the window. Quality is the mean slot
// score. Invalid slot or duration values fall back to 30 and 60 minutes.
func FindBestWindows(heatmap Heatmap, days []models.DayWindow, slotMinutes, durationMinutes int) []Window {
	if slotMinutes <= 0 {
		slotMinutes = fallbackSlotMinutes
	}
	if durationMinutes <= 0 {
		durationMinutes = fallbackDurationMinutes
	}

	slotsPerWindow := durationMinutes / slotMinutes
	if slotsPerWindow < 1 {
		return []Window{}
	}

	candidates := make([]Window, 0)
	for _, day := range days {
		dayStart, dayEnd, ok := dayBounds(day)
		if !ok {
			continue
		}

		for start := dayStart; start+durationMinutes <= dayEnd; start += slotMinutes {
			w, ok := scoreWindow(heatmap, day.Date, start, slotMinutes, slotsPerWindow)
			if !ok {
				continue
			}
			w.EndMinutes = start + durationMinutes
			w.End = FormatHHMM(w.EndMinutes)
			candidates = append(candidates, w)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Participants != candidates[j].Participants {
			return candidates[i].Participants > candidates[j].Participants
		}
		return candidates[i].QualityScore > candidates[j].QualityScore
	})

	if len(candidates) > MaxBestWindows {
		candidates = candidates[:MaxBestWindows]
	}
	return candidates
}

// scoreWindow evaluates the window of slotsPerWindow slots beginning at start.
// It reports false when the window has no participants.
func scoreWindow(heatmap Heatmap, date string, start, slotMinutes, slotsPerWindow int) (Window, bool) {
	green, yellow := -1, -1
	var scoreSum float64

	for i := 0; i < slotsPerWindow; i++ {
		cell, ok := heatmap.Cell(date, FormatHHMM(start+i*slotMinutes))
		if !ok {
			return Window{}, false
		}
		if green < 0 || cell.Green < green {
			green = cell.Green
		}
		if yellow < 0 || cell.Yellow < yellow {
			yellow = cell.Yellow
		}
		scoreSum += cell.Score
	}

	if green+yellow == 0 {
		return Window{}, false
	}

	return Window{
		Date:         date,
		StartMinutes: start,
		Start:        FormatHHMM(start),
		Participants: green + yellow,
		QualityScore: scoreSum / float64(slotsPerWindow),
		Green:        green,
		Yellow:       yellow,
	}, true
}
