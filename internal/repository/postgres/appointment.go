package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
)

const appointmentSelect = `
	SELECT a.id, a.doctor_id, a.patient_id, a.appointment_date, a.start_time, a.end_time,
		a.status, a.payment_status, a.amount, a.order_id, a.payment_id, a.doctor_link,
		a.patient_link, a.transcription_path, a.created_at, a.updated_at,
		TRIM(d.first_name || ' ' || d.last_name) AS doctor_name,
		TRIM(p.first_name || ' ' || p.last_name) AS patient_name
	FROM appointments a
	JOIN users d ON d.id = a.doctor_id
	JOIN users p ON p.id = a.patient_id
`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

const paymentKey = "appointments_payment_key"

// Create inserts the appointment and its appointment.booked event in one
// transaction. A taken (doctor, date, start_time) yields ErrDuplicate and a
// payment id that already paid for a booking yields ErrPaymentUsed.
func (r *appointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			doctor_id, patient_id, appointment_date, start_time, end_time, status,
			payment_status, amount, order_id, payment_id, doctor_link, patient_link
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, query,
			a.DoctorID,
			a.PatientID,
			a.Date,
			a.StartTime,
			a.EndTime,
			a.Status,
			a.PaymentStatus,
			a.Amount,
			a.OrderID,
			a.PaymentID,
			a.DoctorLink,
			a.PatientLink,
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if isUniqueViolation(err, paymentKey) {
			return repository.ErrPaymentUsed
		}
		if err != nil {
			return mapError("create appointment", err)
		}
		event, err := model.NewAppointmentBookedEvent(a)
		if err != nil {
			return err
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.db.GetContext(ctx, &a, appointmentSelect+` WHERE a.id = $1`, id); err != nil {
		return nil, mapError("get appointment", err)
	}
	return &a, nil
}

// GetByLink resolves a meeting link, preferring a doctor link match.
func (r *appointmentRepository) GetByLink(ctx context.Context, link string) (*model.Appointment, error) {
	query := appointmentSelect + `
		WHERE a.doctor_link = $1 OR a.patient_link = $1
		ORDER BY (a.doctor_link = $1) DESC
		LIMIT 1
	`
	var a model.Appointment
	if err := r.db.GetContext(ctx, &a, query, link); err != nil {
		return nil, mapError("get appointment by link", err)
	}
	return &a, nil
}

func (r *appointmentRepository) GetByDoctorLink(ctx context.Context, link string) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.db.GetContext(ctx, &a, appointmentSelect+` WHERE a.doctor_link = $1`, link); err != nil {
		return nil, mapError("get appointment by doctor link", err)
	}
	return &a, nil
}

// UpdateStatus persists a transition out of booked. It fails with
// ErrStaleState if the row is no longer booked.
func (r *appointmentRepository) UpdateStatus(ctx context.Context, a *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, transcription_path = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		a.Status,
		a.TranscriptionPath,
		a.ID,
		model.AppointmentBooked,
	).Scan(&a.UpdatedAt)
	if err = mapError("update appointment status", err); errors.Is(err, repository.ErrNotFound) {
		return repository.ErrStaleState
	}
	return err
}

func (r *appointmentRepository) List(ctx context.Context, q model.AppointmentQuery) ([]*model.Appointment, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q.DoctorID != 0 {
		add("a.doctor_id = $%d", q.DoctorID)
	}
	if q.PatientID != 0 {
		add("a.patient_id = $%d", q.PatientID)
	}
	switch q.Filter {
	case model.FilterUpcoming:
		add("a.status = $%d", model.AppointmentBooked)
		if !q.Today.IsZero() {
			add("a.appointment_date >= $%d", q.Today)
		}
	case model.FilterCompleted:
		add("a.status = $%d", model.AppointmentCompleted)
	case model.FilterCancelled:
		add("a.status = $%d", model.AppointmentCancelled)
	}

	query := appointmentSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Newest {
		query += " ORDER BY a.appointment_date DESC, a.start_time DESC"
	} else {
		query += " ORDER BY a.appointment_date ASC, a.start_time ASC"
	}

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, mapError("list appointments", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) BookedRanges(ctx context.Context, doctorID int64, from model.Date) (map[string][]model.TimeRange, error) {
	query := `
		SELECT appointment_date, start_time, end_time
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date >= $2 AND status = $3
		ORDER BY appointment_date, start_time
	`
	rows := []struct {
		Date model.Date `db:"appointment_date"`
		model.TimeRange
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, doctorID, from, model.AppointmentBooked); err != nil {
		return nil, mapError("list booked ranges", err)
	}

	booked := make(map[string][]model.TimeRange)
	for _, row := range rows {
		key := row.Date.String()
		booked[key] = append(booked[key], row.TimeRange)
	}
	return booked, nil
}

func (r *appointmentRepository) DoctorPatients(ctx context.Context, doctorID int64) ([]*model.PatientSummary, error) {
	query := `
		SELECT DISTINCT u.id, TRIM(u.first_name || ' ' || u.last_name) AS full_name,
			u.age, u.gender, u.mobile_number, u.city, u.state
		FROM appointments a
		JOIN users u ON u.id = a.patient_id
		WHERE a.doctor_id = $1
		ORDER BY full_name, u.id
	`
	patients := []*model.PatientSummary{}
	if err := r.db.SelectContext(ctx, &patients, query, doctorID); err != nil {
		return nil, mapError("list doctor patients", err)
	}
	return patients, nil
}
