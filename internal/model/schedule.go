package model

import (
	"errors"
	"time"
)

// Weekday is the three-letter day code stored with each window.
type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

var weekdayCodes = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

var weekdayNames = map[Weekday]string{
	Monday:    "Monday",
	Tuesday:   "Tuesday",
	Wednesday: "Wednesday",
	Thursday:  "Thursday",
	Friday:    "Friday",
	Saturday:  "Saturday",
	Sunday:    "Sunday",
}

func WeekdayOf(d Date) Weekday {
	return weekdayCodes[d.Weekday()]
}

// DisplayName returns the full English day name.
func (w Weekday) DisplayName() string {
	return weekdayNames[w]
}

var (
	ErrTimesRequired = errors.New("start_time and end_time are required")
	ErrTimeOrder     = errors.New("end_time must be after start_time")
)

// AvailabilityWindow is a doctor's working hours on one date. At most one
// window exists per (doctor, date).
type AvailabilityWindow struct {
	Base
	DoctorID  int64      `json:"doctor_id" db:"doctor_id"`
	Date      Date       `json:"date" db:"date"`
	Day       Weekday    `json:"day" db:"day"`
	StartTime *ClockTime `json:"start_time" db:"start_time"`
	EndTime   *ClockTime `json:"end_time" db:"end_time"`
	IsOff     bool       `json:"is_off" db:"is_off"`
	Reason    string     `json:"reason" db:"reason"`
}

// Validate checks the time range of a working (not off) window. An end
// time of 12:00 AM closes the window at midnight.
func (w *AvailabilityWindow) Validate() error {
	if w.IsOff {
		return nil
	}
	if w.StartTime == nil || w.EndTime == nil {
		return ErrTimesRequired
	}
	if w.EndTime.AsEnd() <= *w.StartTime {
		return ErrTimeOrder
	}
	return nil
}

// Apply merges a partial update. Times are only taken when the patch does
// not switch the window off; previously stored times are kept otherwise.
func (w *AvailabilityWindow) Apply(p WindowPatch) {
	if p.IsOff != nil {
		w.IsOff = *p.IsOff
	}
	if p.Reason != nil {
		w.Reason = *p.Reason
	}
	if p.IsOff == nil || !*p.IsOff {
		if p.StartTime != nil {
			start := *p.StartTime
			w.StartTime = &start
		}
		if p.EndTime != nil {
			end := *p.EndTime
			w.EndTime = &end
		}
	}
}

// WindowInput describes one date in a create request.
type WindowInput struct {
	Date      *Date      `json:"date" binding:"required"`
	IsOff     bool       `json:"is_off"`
	Reason    string     `json:"reason" binding:"max=500"`
	StartTime *ClockTime `json:"start_time"`
	EndTime   *ClockTime `json:"end_time"`
}

type ScheduleType string

const (
	ScheduleDay    ScheduleType = "day"
	ScheduleWeekly ScheduleType = "weekly"
)

// CreateScheduleRequest creates a single day ("day") or a batch of dates
// ("weekly").
type CreateScheduleRequest struct {
	Type      ScheduleType  `json:"type" binding:"required,oneof=day weekly"`
	Date      *Date         `json:"date"`
	IsOff     bool          `json:"is_off"`
	Reason    string        `json:"reason" binding:"max=500"`
	StartTime *ClockTime    `json:"start_time"`
	EndTime   *ClockTime    `json:"end_time"`
	Days      []WindowInput `json:"days" binding:"omitempty,dive"`
}

// Inputs flattens the request into per-date inputs.
func (r *CreateScheduleRequest) Inputs() []WindowInput {
	if r.Type == ScheduleWeekly {
		return r.Days
	}
	return []WindowInput{{
		Date:      r.Date,
		IsOff:     r.IsOff,
		Reason:    r.Reason,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	}}
}

// WindowPatch is a partial update; nil fields are left unchanged.
type WindowPatch struct {
	IsOff     *bool      `json:"is_off"`
	Reason    *string    `json:"reason" binding:"omitempty,max=500"`
	StartTime *ClockTime `json:"start_time"`
	EndTime   *ClockTime `json:"end_time"`
}

// Slot is a derived one-hour interval; never persisted.
type Slot struct {
	StartTime   ClockTime `json:"start_time"`
	EndTime     ClockTime `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
}

// DaySlots groups the slots of one window date.
type DaySlots struct {
	Date  Date   `json:"date"`
	Day   string `json:"day"`
	Slots []Slot `json:"slots"`
}
