package availability

import (
	"meetslot/internal/models"
)

// SlotMismatch is a response submitted against a different slot size than the poll's.
type SlotMismatch struct {
	Identity            string `json:"identity"`
	DeclaredSlotMinutes int    `json:"declared_slot_minutes"`
}

// Result is the output of one aggregation run.
type Result struct {
	Axis            TimeAxis       `json:"axis"`
	Heatmap         Heatmap        `json:"heatmap"`
	BestWindows     []Window       `json:"best_windows"`
	MaxParticipants int            `json:"max_participants"`
	TotalResponses  int            `json:"total_responses"`
	SlotMismatches  []SlotMismatch `json:"slot_mismatches,omitempty"`
}

// Empty reports whether no usable response contributed to the result.
func (r *Result) Empty() bool {
	return r.TotalResponses == 0
}

// Compute runs the whole pipeline: axis, dedup, aggregation, window search
// and projection. The slot size is validated before anything else runs.
func Compute(days []models.DayWindow, slotMinutes, durationMinutes int, responses []models.Response) (*Result, error) {
	axis, err := BuildTimeAxis(days, slotMinutes)
	if err != nil {
		return nil, err
	}

	normalized := Deduplicate(responses)
	heatmap := Aggregate(normalized)

	return &Result{
		Axis:            axis,
		Heatmap:         heatmap,
		BestWindows:     FindBestWindows(heatmap, days, slotMinutes, durationMinutes),
		MaxParticipants: MaxParticipants(heatmap),
		TotalResponses:  len(normalized),
		SlotMismatches:  slotMismatches(normalized, slotMinutes),
	}, nil
}

func slotMismatches(responses []models.Response, slotMinutes int) []SlotMismatch {
	var out []SlotMismatch
	for _, r := range responses {
		if r.DeclaredSlotMinutes > 0 && r.DeclaredSlotMinutes != slotMinutes {
			out = append(out, SlotMismatch{
				Identity:            r.Identity,
				DeclaredSlotMinutes: r.DeclaredSlotMinutes,
			})
		}
	}
	return out
}
