package availability

import (
	"testing"

	"meetslot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var morning = []models.DayWindow{{Date: "2024-01-10", Start: "09:00", End: "11:00"}}

func free(slots ...string) models.Availability {
	day := make(map[string]models.Mark, len(slots))
	for _, s := range slots {
		day[s] = models.MarkFree
	}
	return models.Availability{"2024-01-10": day}
}

func TestFindBestWindows_TwoFree(t *testing.T) {
	heatmap := Aggregate([]models.Response{
		{Identity: "a", Availability: free("09:00", "09:30")},
		{Identity: "b", Availability: free("09:00", "09:30")},
	})

	windows := FindBestWindows(heatmap, morning, 30, 60)
	require.Len(t, windows, 1)

	w := windows[0]
	assert.Equal(t, "2024-01-10", w.Date)
	assert.Equal(t, 540, w.StartMinutes)
	assert.Equal(t, 600, w.EndMinutes)
	assert.Equal(t, "09:00", w.Start)
	assert.Equal(t, "10:00", w.End)
	assert.Equal(t, 2, w.Participants)
	assert.Equal(t, 2, w.Green)
	assert.Equal(t, 0, w.Yellow)
	assert.InDelta(t, 2.0, w.QualityScore, 1e-9)
}

func TestFindBestWindows_ConservativeFloor(t *testing.T) {
	heatmap := Aggregate([]models.Response{
		{Identity: "a", Availability: free("09:00", "09:30")},
		{Identity: "b", Availability: models.Availability{"2024-01-10": {
			"09:00": models.MarkFree,
			"09:30": models.MarkTentative,
		}}},
	})

	windows := FindBestWindows(heatmap, morning, 30, 60)
	require.Len(t, windows, 1)

	w := windows[0]
	assert.Equal(t, 1, w.Green)
	assert.Equal(t, 0, w.Yellow)
	assert.Equal(t, 1, w.Participants)
	// quality averages slot scores: (2.0 + 1.5) / 2
	assert.InDelta(t, 1.75, w.QualityScore, 1e-9)
}

func TestFindBestWindows_GapZeroesWindow(t *testing.T) {
	heatmap := Aggregate([]models.Response{
		{Identity: "a", Availability: free("09:00", "10:00", "10:30")},
	})

	windows := FindBestWindows(heatmap, morning, 30, 60)
	require.Len(t, windows, 1)
	assert.Equal(t, "10:00", windows[0].Start)

	for _, w := range windows {
		assert.NotEqual(t, "09:00", w.Start)
		assert.NotEqual(t, "09:30", w.Start)
	}
}

func TestFindBestWindows_Ranking(t *testing.T) {
	days := []models.DayWindow{
		{Date: "2024-01-10", Start: "09:00", End: "13:00"},
		{Date: "2024-01-11", Start: "09:00", End: "13:00"},
	}

	all := func(mark models.Mark) map[string]models.Mark {
		return map[string]models.Mark{"09:00": mark, "10:00": mark, "11:00": mark, "12:00": mark}
	}
	responses := []models.Response{
		{Identity: "a", Availability: models.Availability{"2024-01-10": all(models.MarkFree), "2024-01-11": all(models.MarkFree)}},
		{Identity: "b", Availability: models.Availability{"2024-01-10": all(models.MarkTentative), "2024-01-11": all(models.MarkFree)}},
		{Identity: "c", Availability: models.Availability{"2024-01-11": {"11:00": models.MarkFree, "12:00": models.MarkFree}}},
	}
	heatmap := Aggregate(responses)

	windows := FindBestWindows(heatmap, days, 60, 60)
	require.Len(t, windows, MaxBestWindows)

	for i := 1; i < len(windows); i++ {
		prev, cur := windows[i-1], windows[i]
		if prev.Participants == cur.Participants {
			assert.GreaterOrEqual(t, prev.QualityScore, cur.QualityScore)
		} else {
			assert.Greater(t, prev.Participants, cur.Participants)
		}
	}

	assert.Equal(t, "2024-01-11", windows[0].Date)
	assert.Equal(t, "11:00", windows[0].Start)
	assert.Equal(t, "2024-01-11", windows[1].Date)
	assert.Equal(t, "12:00", windows[1].Start)
	// remaining ties keep day order then start time
	assert.Equal(t, "2024-01-11", windows[2].Date)
	assert.Equal(t, "09:00", windows[2].Start)
}

func TestFindBestWindows_Invariants(t *testing.T) {
	days := []models.DayWindow{
		{Date: "2024-01-10", Start: "08:00", End: "12:00"},
		{Date: "2024-01-11", Start: "13:00", End: "17:30"},
	}
	responses := []models.Response{
		{Identity: "a", Availability: models.Availability{
			"2024-01-10": {"08:00": "g", "08:15": "g", "08:30": "y", "08:45": "g", "09:00": "g"},
			"2024-01-11": {"13:00": "y", "13:15": "y", "13:30": "y"},
		}},
		{Identity: "b", Availability: models.Availability{
			"2024-01-10": {"08:15": "g", "08:30": "g", "08:45": "y", "09:00": "y", "09:15": "g"},
			"2024-01-11": {"13:00": "g", "13:15": "g", "13:30": "g", "13:45": "g"},
		}},
	}
	heatmap := Aggregate(responses)

	const slot, duration = 15, 45
	windows := FindBestWindows(heatmap, days, slot, duration)
	require.NotEmpty(t, windows)
	assert.LessOrEqual(t, len(windows), MaxBestWindows)

	for _, w := range windows {
		assert.Equal(t, duration, w.EndMinutes-w.StartMinutes)
		assert.Equal(t, w.Green+w.Yellow, w.Participants)
		assert.Positive(t, w.Participants)

		minGreen, minYellow := -1, -1
		for i := 0; i < duration/slot; i++ {
			c, ok := heatmap.Cell(w.Date, FormatHHMM(w.StartMinutes+i*slot))
			require.True(t, ok)
			if minGreen < 0 || c.Green < minGreen {
				minGreen = c.Green
			}
			if minYellow < 0 || c.Yellow < minYellow {
				minYellow = c.Yellow
			}
		}
		assert.Equal(t, minGreen, w.Green)
		assert.Equal(t, minYellow, w.Yellow)
	}
}

func TestFindBestWindows_Coercion(t *testing.T) {
	heatmap := Aggregate([]models.Response{{Identity: "a", Availability: free("09:00", "09:30")}})

	t.Run("invalid slot and duration fall back to 30 and 60", func(t *testing.T) {
		windows := FindBestWindows(heatmap, morning, 0, -1)
		require.Len(t, windows, 1)
		assert.Equal(t, 60, windows[0].EndMinutes-windows[0].StartMinutes)
	})

	t.Run("duration shorter than a slot yields nothing", func(t *testing.T) {
		assert.Empty(t, FindBestWindows(heatmap, morning, 30, 20))
	})

	t.Run("inert days are skipped", func(t *testing.T) {
		days := []models.DayWindow{{Date: "2024-01-10", Start: "??", End: "11:00"}}
		assert.Empty(t, FindBestWindows(heatmap, days, 30, 60))
	})

	t.Run("duration longer than the day", func(t *testing.T) {
		assert.Empty(t, FindBestWindows(heatmap, morning, 30, 180))
	})
}
