package availability

import (
	"meetslot/internal/models"
)

const (
	freeWeight      = 1.0
	tentativeWeight = 0.5
)

// Cell is the tally of marks for one (date, time) slot.
type Cell struct {
	Green  int     `json:"green"`
	Yellow int     `json:"yellow"`
	Score  float64 `json:"score"`
}

// Participants returns green + yellow.
func (c Cell) Participants() int {
	return c.Green + c.Yellow
}

// Heatmap maps date -> "HH:MM" -> Cell. Only marked slots are present.
type Heatmap map[string]map[string]Cell

// Cell returns the tally for a slot and whether it exists.
func (h Heatmap) Cell(date, timeKey string) (Cell, bool) {
	day, ok := h[date]
	if !ok {
		return Cell{}, false
	}
	c, ok := day[timeKey]
	return c, ok
}

// Len returns the number of materialized cells.
func (h Heatmap) Len() int {
	n := 0
	for _, day := range h {
		n += len(day)
	}
	return n
}

func (h Heatmap) add(date, timeKey string, mark models.Mark) {
	day, ok := h[date]
	if !ok {
		day = make(map[string]Cell)
		h[date] = day
	}

	c := day[timeKey]
	switch mark {
	case models.MarkFree:
		c.Green++
		c.Score += freeWeight
	case models.MarkTentative:
		c.Yellow++
		c.Score += tentativeWeight
	}
	day[timeKey] = c
}

// Aggregate folds responses into a heatmap. Time keys are canonicalized to
// "HH:MM"; keys that do not parse and marks other than free/tentative are
// ignored.
func Aggregate(responses []models.Response) Heatmap {
	heatmap := make(Heatmap)

	for _, r := range responses {
		for date, slots := range r.Availability {
			for key, mark := range slots {
				if !mark.Valid() {
					continue
				}
				t, ok := ParseHHMM(key)
				if !ok {
					continue
				}
				heatmap.add(date, FormatHHMM(t), mark)
			}
		}
	}

	return heatmap
}
