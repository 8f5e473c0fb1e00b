package availability

import (
	"errors"
	"testing"

	"meetslot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	responses := []models.Response{
		{Identity: "anna", Availability: free("09:00", "09:30"), DeclaredSlotMinutes: 30},
		{Identity: "bob", Availability: free("10:30"), DeclaredSlotMinutes: 15},
		{Identity: "bob", Availability: free("09:00", "09:30")},
	}

	res, err := Compute(morning, 30, 60, responses)
	require.NoError(t, err)

	assert.False(t, res.Empty())
	assert.Equal(t, 2, res.TotalResponses)
	assert.Equal(t, 2, res.MaxParticipants)
	assert.Equal(t, []int{540, 570, 600, 630}, res.Axis.Slots)

	c, ok := res.Heatmap.Cell("2024-01-10", "09:00")
	require.True(t, ok)
	assert.Equal(t, Cell{Green: 2, Score: 2.0}, c)
	c, ok = res.Heatmap.Cell("2024-01-10", "09:30")
	require.True(t, ok)
	assert.Equal(t, Cell{Green: 2, Score: 2.0}, c)
	_, ok = res.Heatmap.Cell("2024-01-10", "10:30")
	assert.False(t, ok, "replaced response must not contribute")

	require.Len(t, res.BestWindows, 1)
	assert.Equal(t, 2, res.BestWindows[0].Participants)
	assert.InDelta(t, 2.0, res.BestWindows[0].QualityScore, 1e-9)

	assert.Empty(t, res.SlotMismatches, "the superseded 15 minute response is gone")
}

func TestCompute_SlotMismatch(t *testing.T) {
	responses := []models.Response{
		{Identity: "anna", Availability: free("09:00"), DeclaredSlotMinutes: 15},
		{Identity: "bob", Availability: free("09:00"), DeclaredSlotMinutes: 30},
		{Identity: "carl", Availability: free("09:00")},
	}

	res, err := Compute(morning, 30, 60, responses)
	require.NoError(t, err)
	assert.Equal(t, []SlotMismatch{{Identity: "anna", DeclaredSlotMinutes: 15}}, res.SlotMismatches)
}

func TestCompute_NoData(t *testing.T) {
	res, err := Compute(morning, 30, 60, nil)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, 0, res.Heatmap.Len())
	assert.Empty(t, res.BestWindows)
	assert.Equal(t, 0, res.MaxParticipants)
}

func TestCompute_InvalidSlot(t *testing.T) {
	responses := []models.Response{{Identity: "a", Availability: free("09:00")}}
	for _, slot := range []int{0, -30} {
		res, err := Compute(morning, slot, 60, responses)
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	}
}

func TestCompute_NonNumericSlotFromRow(t *testing.T) {
	poll, err := models.DecodePollRow(models.PollRow{
		ID:   "p1",
		JSON: `{"title":"t","slotMinutes":"abc","meetingDurationMinutes":60,"days":[{"date":"2024-01-10","start":"09:00","end":"11:00"}]}`,
	})
	require.NoError(t, err)

	_, err = Compute(poll.Days, poll.SlotMinutes, poll.MeetingDurationMinutes, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}
