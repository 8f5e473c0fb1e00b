// Package export renders poll results as an XLSX workbook.
package export

import (
	"fmt"
	"io"

	"meetslot/internal/availability"
	"meetslot/internal/models"
)

const (
	SheetBestWindows = "Best windows"
	SheetHeatmap     = "Heatmap"

	inactiveFill = "EEEEEE"
)

// WriteResults writes a workbook with the ranked windows and a colored heatmap.
func WriteResults(wr io.Writer, poll *models.Poll, res *availability.Result) error {
	if poll == nil || res == nil {
		return fmt.Errorf("export: poll and result are required")
	}

	w, err := newSheetWriter()
	if err != nil {
		return err
	}
	defer w.close()

	if err := writeBestWindows(w, poll, res); err != nil {
		return fmt.Errorf("export best windows: %w", err)
	}
	if err := writeHeatmap(w, poll, res); err != nil {
		return fmt.Errorf("export heatmap: %w", err)
	}
	return w.save(wr)
}

func writeBestWindows(w *sheetWriter, poll *models.Poll, res *availability.Result) error {
	if err := w.addSheet(SheetBestWindows); err != nil {
		return err
	}
	if err := w.writeRow([]any{poll.Title}); err != nil {
		return err
	}
	if err := w.writeRow([]any{"Responses", res.TotalResponses}); err != nil {
		return err
	}
	if err := w.writeHeader([]string{"Rank", "Date", "Start", "End", "Participants", "Free", "Tentative", "Quality"}); err != nil {
		return err
	}

	if len(res.BestWindows) == 0 {
		msg := "No common window yet"
		if res.Empty() {
			msg = "No responses yet"
		}
		return w.writeRow([]any{msg})
	}

	for i, win := range res.BestWindows {
		row := []any{i + 1, win.Date, win.Start, win.End, win.Participants, win.Green, win.Yellow, win.QualityScore}
		if err := w.writeRow(row); err != nil {
			return err
		}
	}
	w.setWidth("B", "B", 14)
	return nil
}

func writeHeatmap(w *sheetWriter, poll *models.Poll, res *availability.Result) error {
	if err := w.addSheet(SheetHeatmap); err != nil {
		return err
	}

	header := append([]string{"Date"}, res.Axis.Labels()...)
	if err := w.writeHeader(header); err != nil {
		return err
	}

	for _, row := range availability.Grid(poll.Days, res) {
		if len(row) == 0 {
			continue
		}
		values := make([]any, 0, len(row)+1)
		values = append(values, row[0].Date)
		for _, gc := range row {
			if gc.Participants() > 0 {
				values = append(values, fmt.Sprintf("%d/%d", gc.Green, gc.Yellow))
			} else {
				values = append(values, "")
			}
		}
		if err := w.writeRow(values); err != nil {
			return err
		}

		for i, gc := range row {
			var fill string
			switch {
			case !gc.Active:
				fill = inactiveFill
			case gc.Color != "":
				fill = gc.Fill.Hex()
			default:
				continue
			}
			if err := w.fillCell(i+2, fill); err != nil {
				return err
			}
		}
	}

	// Legend row under the table.
	if err := w.writeRow(nil); err != nil {
		return err
	}
	legend := []any{"Legend"}
	for _, intensity := range availability.LegendIntensities {
		legend = append(legend, fmt.Sprintf("%.0f%%", intensity*100))
	}
	if err := w.writeRow(legend); err != nil {
		return err
	}
	for i, swatch := range availability.LegendSwatches() {
		if err := w.fillCell(i+2, swatch.Hex()); err != nil {
			return err
		}
	}

	w.setWidth("A", "A", 14)
	return nil
}
