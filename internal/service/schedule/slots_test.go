package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
)

func clock(h, m int) *model.ClockTime {
	c := model.NewClock(h, m)
	return &c
}

func window(date string, start, end *model.ClockTime, off bool) *model.AvailabilityWindow {
	d := model.MustDate(date)
	return &model.AvailabilityWindow{
		DoctorID:  7,
		Date:      d,
		Day:       model.WeekdayOf(d),
		StartTime: start,
		EndTime:   end,
		IsOff:     off,
	}
}

func TestBuildSlots_MarksExactBookings(t *testing.T) {
	windows := []*model.AvailabilityWindow{window("2024-06-10", clock(9, 0), clock(11, 0), false)}
	booked := map[string][]model.TimeRange{
		"2024-06-10": {{Start: model.NewClock(9, 0), End: model.NewClock(10, 0)}},
	}

	days := BuildSlots(windows, booked)
	require.Len(t, days, 1)
	assert.Equal(t, "Monday", days[0].Day)
	assert.Equal(t, []model.Slot{
		{StartTime: model.NewClock(9, 0), EndTime: model.NewClock(10, 0), IsAvailable: false},
		{StartTime: model.NewClock(10, 0), EndTime: model.NewClock(11, 0), IsAvailable: true},
	}, days[0].Slots)
}

func TestBuildSlots_WindowEndingAtMidnight(t *testing.T) {
	windows := []*model.AvailabilityWindow{window("2024-06-10", clock(22, 0), clock(0, 0), false)}
	booked := map[string][]model.TimeRange{
		"2024-06-10": {{Start: model.NewClock(23, 0), End: model.NewClock(0, 0)}},
	}

	days := BuildSlots(windows, booked)
	require.Len(t, days, 1)
	assert.Equal(t, []model.Slot{
		{StartTime: model.NewClock(22, 0), EndTime: model.NewClock(23, 0), IsAvailable: true},
		{StartTime: model.NewClock(23, 0), EndTime: model.NewClock(0, 0), IsAvailable: false},
	}, days[0].Slots)
}

func TestBuildSlots_DropsPartialHour(t *testing.T) {
	cases := []struct {
		name  string
		start *model.ClockTime
		end   *model.ClockTime
		want  int
	}{
		{"one and a half hours", clock(9, 0), clock(10, 30), 1},
		{"exact hours", clock(9, 0), clock(17, 0), 8},
		{"under an hour", clock(9, 0), clock(9, 45), 0},
		{"offset start", clock(9, 30), clock(12, 0), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			days := BuildSlots([]*model.AvailabilityWindow{window("2024-06-11", tc.start, tc.end, false)}, nil)
			require.Len(t, days, 1)
			assert.Len(t, days[0].Slots, tc.want)
			assert.NotNil(t, days[0].Slots)
		})
	}
}

func TestBuildSlots_OverlappingBookingIsNotExactMatch(t *testing.T) {
	windows := []*model.AvailabilityWindow{window("2024-06-10", clock(9, 0), clock(11, 0), false)}
	booked := map[string][]model.TimeRange{
		"2024-06-10": {{Start: model.NewClock(9, 30), End: model.NewClock(10, 30)}},
		"2024-06-11": {{Start: model.NewClock(9, 0), End: model.NewClock(10, 0)}},
	}

	days := BuildSlots(windows, booked)
	for _, slot := range days[0].Slots {
		assert.True(t, slot.IsAvailable)
	}
}

func TestBuildSlots_SkipsOffWindows(t *testing.T) {
	windows := []*model.AvailabilityWindow{
		window("2024-06-10", clock(9, 0), clock(11, 0), true),
		window("2024-06-12", clock(14, 0), clock(16, 0), false),
	}

	days := BuildSlots(windows, nil)
	require.Len(t, days, 1)
	assert.Equal(t, model.MustDate("2024-06-12"), days[0].Date)
	assert.Equal(t, "Wednesday", days[0].Day)
	assert.Equal(t, "02:00 PM", days[0].Slots[0].StartTime.String())
}
