package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrPaymentUsed is returned when a payment id is already attached to
	// an appointment.
	ErrPaymentUsed = errors.New("payment already used")
	// ErrStaleState is returned when a guarded update finds the row was
	// changed by someone else first.
	ErrStaleState = errors.New("record state changed")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		GetByID(ctx context.Context, id int64) (*model.User, error)
		GetByMobile(ctx context.Context, mobile string) (*model.User, error)
		UpdateDocuments(ctx context.Context, user *model.User) error
		Delete(ctx context.Context, id int64) error
		ListDoctors(ctx context.Context, filter model.DoctorFilter) ([]*model.User, int, error)
		ListByStatus(ctx context.Context, status model.ApprovalStatus, role *model.Role) ([]*model.User, error)
		// UpdateStatus changes the approval status and writes event, when
		// given, in the same transaction.
		UpdateStatus(ctx context.Context, id int64, status model.ApprovalStatus, event *model.OutboxEvent) error
		Ping(ctx context.Context) error
	}

	ScheduleRepository interface {
		// CreateBatch inserts every window or none of them.
		CreateBatch(ctx context.Context, windows []*model.AvailabilityWindow) error
		Get(ctx context.Context, id int64) (*model.AvailabilityWindow, error)
		Update(ctx context.Context, window *model.AvailabilityWindow) error
		ExistingDates(ctx context.Context, doctorID int64, dates []model.Date) ([]model.Date, error)
		ListFrom(ctx context.Context, doctorID int64, from model.Date, includeOff bool) ([]*model.AvailabilityWindow, error)
	}

	AppointmentRepository interface {
		// Create also records an appointment.booked outbox event.
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id int64) (*model.Appointment, error)
		GetByLink(ctx context.Context, link string) (*model.Appointment, error)
		GetByDoctorLink(ctx context.Context, link string) (*model.Appointment, error)
		UpdateStatus(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, query model.AppointmentQuery) ([]*model.Appointment, error)
		// BookedRanges returns the [start, end) pairs of booked appointments
		// keyed by date (YYYY-MM-DD) for the given doctor from the given date on.
		BookedRanges(ctx context.Context, doctorID int64, from model.Date) (map[string][]model.TimeRange, error)
		DoctorPatients(ctx context.Context, doctorID int64) ([]*model.PatientSummary, error)
	}

	PrescriptionRepository interface {
		// Upsert gets or creates the prescription of an appointment and
		// replaces its content in one transaction.
		Upsert(ctx context.Context, appointmentID int64, write model.PrescriptionWrite) (*model.Prescription, bool, error)
		Replace(ctx context.Context, id int64, write model.PrescriptionWrite) (*model.Prescription, error)
		Get(ctx context.Context, id int64) (*model.Prescription, error)
		GetByAppointment(ctx context.Context, appointmentID int64) (*model.Prescription, error)
		ListByAppointmentIDs(ctx context.Context, appointmentIDs []int64) (map[int64]*model.Prescription, error)
		ListForPair(ctx context.Context, doctorID, patientID int64) ([]*model.Prescription, error)
	}

	OutboxRepository interface {
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		// MarkFailed records err; the event stays pending until retryCount
		// reaches maxAttempts.
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxAttempts int) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
