package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
)

const msgExists = "Schedule already exists for this date"

type Service struct {
	windows      repository.ScheduleRepository
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	logger       *logger.Logger
	now          func() time.Time
}

func NewService(windows repository.ScheduleRepository, appointments repository.AppointmentRepository,
	users repository.UserRepository, logger *logger.Logger) *Service {
	return &Service{
		windows:      windows,
		appointments: appointments,
		users:        users,
		logger:       logger.With("schedule"),
		now:          time.Now,
	}
}

func (s *Service) today() model.Date {
	return model.NewDate(s.now())
}

// Create stores one window per requested date. Either every date is
// created or none is; a date that already has a window is a conflict.
func (s *Service) Create(ctx context.Context, doctorID int64, req model.CreateScheduleRequest) ([]*model.AvailabilityWindow, error) {
	inputs := req.Inputs()
	if req.Type == model.ScheduleWeekly && len(inputs) == 0 {
		return nil, apperrors.Validation("days list is required", map[string]string{"days": "This field is required."})
	}

	fields := map[string]string{}
	seen := map[string]bool{}
	windows := make([]*model.AvailabilityWindow, 0, len(inputs))
	dates := make([]model.Date, 0, len(inputs))

	for _, in := range inputs {
		if in.Date == nil || in.Date.IsZero() {
			fields["date"] = "date is required"
			continue
		}
		key := in.Date.String()
		if seen[key] {
			fields[key] = "Date appears more than once"
			continue
		}
		seen[key] = true

		w := &model.AvailabilityWindow{
			DoctorID: doctorID,
			Date:     *in.Date,
			Day:      model.WeekdayOf(*in.Date),
			IsOff:    in.IsOff,
			Reason:   in.Reason,
		}
		if !in.IsOff {
			w.StartTime = in.StartTime
			w.EndTime = in.EndTime
		}
		if err := w.Validate(); err != nil {
			fields[key] = err.Error()
			continue
		}
		windows = append(windows, w)
		dates = append(dates, w.Date)
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation("Invalid schedule", fields)
	}

	existing, err := s.windows.ExistingDates(ctx, doctorID, dates)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(existing) > 0 {
		conflicts := make(map[string]string, len(existing))
		for _, d := range existing {
			conflicts[d.String()] = msgExists
		}
		return nil, apperrors.Conflict(msgExists, nil).WithFields(conflicts)
	}

	err = s.windows.CreateBatch(ctx, windows)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperrors.Conflict("Duplicate schedule detected", err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.Info("schedule created", "doctor_id", doctorID, "windows", len(windows))
	return windows, nil
}

// List returns the doctor's windows from today on, off days included.
func (s *Service) List(ctx context.Context, doctorID int64) ([]*model.AvailabilityWindow, error) {
	windows, err := s.windows.ListFrom(ctx, doctorID, s.today(), true)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return windows, nil
}

// Update applies a partial patch to one of the doctor's windows. Switching
// a window off keeps its stored times; switching it back on without new
// times reuses them, and fails if none were ever stored.
func (s *Service) Update(ctx context.Context, doctorID, windowID int64, patch model.WindowPatch) (*model.AvailabilityWindow, error) {
	w, err := s.windows.Get(ctx, windowID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && w.DoctorID != doctorID) {
		return nil, apperrors.NotFound("Schedule", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	w.Apply(patch)
	if err := w.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error(), map[string]string{"start_time": err.Error()})
	}

	err = s.windows.Update(ctx, w)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Schedule", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return w, nil
}

// Slots returns the doctor's bookable slots from today on, grouped by date.
func (s *Service) Slots(ctx context.Context, doctorID int64) ([]model.DaySlots, error) {
	doctor, err := s.users.GetByID(ctx, doctorID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && doctor.Role != model.RoleDoctor) {
		return nil, apperrors.NotFound("Doctor", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	today := s.today()
	windows, err := s.windows.ListFrom(ctx, doctorID, today, false)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	booked, err := s.appointments.BookedRanges(ctx, doctorID, today)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return BuildSlots(windows, booked), nil
}
