package availability

import "meetslot/internal/models"

// GridCell is one heatmap cell placed on the day by time table.
type GridCell struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Active bool   `json:"active"`
	Cell
	Percentage int    `json:"percentage"`
	Color      string `json:"color,omitempty"`
	Fill       HSL    `json:"-"`
}

// Grid lays the heatmap out row per day over the shared axis. Slots outside
// a day's own window stay inactive and uncolored.
func Grid(days []models.DayWindow, res *Result) [][]GridCell {
	if res == nil {
		return nil
	}

	rows := make([][]GridCell, 0, len(days))
	for _, day := range days {
		row := make([]GridCell, 0, len(res.Axis.Slots))
		for _, t := range res.Axis.Slots {
			gc := GridCell{
				Date:   day.Date,
				Time:   FormatHHMM(t),
				Active: IsSlotActive(day, t, res.Axis.SlotMinutes),
			}
			if c, ok := res.Heatmap.Cell(day.Date, gc.Time); ok && gc.Active {
				gc.Cell = c
				gc.Percentage = Percentage(c.Participants(), res.TotalResponses)
				if fill, ok := CellColor(c, res.MaxParticipants); ok {
					gc.Fill = fill
					gc.Color = fill.String()
				}
			}
			row = append(row, gc)
		}
		rows = append(rows, row)
	}
	return rows
}
