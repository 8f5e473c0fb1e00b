package availability

import (
	"errors"
	"testing"

	"meetslot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHHMM(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"09:00", 540, true},
		{"9:5", 545, true},
		{" 23:59 ", 1439, true},
		{"00:00", 0, true},
		{"10:30:00", 630, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"-1:00", 0, false},
		{"noon", 0, false},
		{"", 0, false},
		{"12", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseHHMM(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatHHMM(t *testing.T) {
	assert.Equal(t, "09:00", FormatHHMM(540))
	assert.Equal(t, "00:05", FormatHHMM(5))
	assert.Equal(t, "23:59", FormatHHMM(1439))
}

func TestBuildTimeAxis(t *testing.T) {
	t.Run("spans min start to max end", func(t *testing.T) {
		days := []models.DayWindow{
			{Date: "2024-01-10", Start: "10:00", End: "12:00"},
			{Date: "2024-01-11", Start: "09:00", End: "11:00"},
		}
		axis, err := BuildTimeAxis(days, 60)
		require.NoError(t, err)
		assert.Equal(t, 540, axis.Start)
		assert.Equal(t, 720, axis.End)
		assert.Equal(t, []int{540, 600, 660}, axis.Slots)
		assert.Equal(t, []string{"09:00", "10:00", "11:00"}, axis.Labels())
	})

	t.Run("drops slot that would overflow the end", func(t *testing.T) {
		days := []models.DayWindow{{Date: "d", Start: "09:00", End: "10:45"}}
		axis, err := BuildTimeAxis(days, 30)
		require.NoError(t, err)
		assert.Equal(t, []int{540, 570, 600}, axis.Slots)
	})

	t.Run("defaults when no day parses", func(t *testing.T) {
		days := []models.DayWindow{{Date: "d", Start: "morning", End: "evening"}}
		axis, err := BuildTimeAxis(days, 180)
		require.NoError(t, err)
		assert.Equal(t, DefaultAxisStart, axis.Start)
		assert.Equal(t, DefaultAxisEnd, axis.End)
		assert.Equal(t, []int{540, 720, 900}, axis.Slots)
	})

	t.Run("rejects non-positive slot", func(t *testing.T) {
		for _, slot := range []int{0, -15} {
			_, err := BuildTimeAxis(nil, slot)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))
		}
	})
}

func TestIsSlotActive(t *testing.T) {
	day := models.DayWindow{Date: "d", Start: "10:00", End: "12:00"}

	assert.False(t, IsSlotActive(day, 570, 30))
	assert.True(t, IsSlotActive(day, 600, 30))
	assert.True(t, IsSlotActive(day, 690, 30))
	assert.False(t, IsSlotActive(day, 720, 30))
	assert.False(t, IsSlotActive(models.DayWindow{Start: "x", End: "12:00"}, 600, 30))
}
