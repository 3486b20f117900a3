package schedule

import (
	"time"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
)

// SlotLength is the fixed size of a bookable slot.
const SlotLength = time.Hour

// BuildSlots cuts each working window into whole one-hour slots and marks
// a slot unavailable when a booking has exactly the same start and end on
// that date. A trailing partial hour is dropped. Off windows are skipped;
// a working window shorter than an hour yields an empty slot list. A window
// ending at 12:00 AM runs to midnight.
func BuildSlots(windows []*model.AvailabilityWindow, booked map[string][]model.TimeRange) []model.DaySlots {
	days := make([]model.DaySlots, 0, len(windows))
	for _, w := range windows {
		if w.IsOff || w.StartTime == nil || w.EndTime == nil {
			continue
		}

		taken := make(map[model.TimeRange]struct{}, len(booked[w.Date.String()]))
		for _, r := range booked[w.Date.String()] {
			taken[r] = struct{}{}
		}

		slots := []model.Slot{}
		last := w.EndTime.AsEnd()
		for start := *w.StartTime; start.Add(SlotLength) <= last; start = start.Add(SlotLength) {
			end := start.Add(SlotLength).Wrap()
			_, isTaken := taken[model.TimeRange{Start: start, End: end}]
			slots = append(slots, model.Slot{
				StartTime:   start,
				EndTime:     end,
				IsAvailable: !isTaken,
			})
		}

		day := w.Day
		if day == "" {
			day = model.WeekdayOf(w.Date)
		}
		days = append(days, model.DaySlots{
			Date:  w.Date,
			Day:   day.DisplayName(),
			Slots: slots,
		})
	}
	return days
}
