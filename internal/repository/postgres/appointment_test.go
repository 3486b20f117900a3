package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
)

func bookedAppointment() *model.Appointment {
	return &model.Appointment{
		DoctorID:      7,
		PatientID:     42,
		Date:          model.MustDate("2024-07-01"),
		StartTime:     model.NewClock(14, 0),
		EndTime:       model.NewClock(15, 0),
		Status:        model.AppointmentBooked,
		PaymentStatus: model.PaymentPaid,
		Amount:        decimal.NewFromInt(500),
		OrderID:       "order_1",
		PaymentID:     "pay_1",
	}
}

func TestAppointmentRepository_CreateWritesBookedEvent(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewAppointmentRepository(base)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WithArgs(int64(7), int64(42), "2024-07-01", "14:00:00", "15:00:00", "booked", "paid",
			sqlmock.AnyArg(), "order_1", "pay_1", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(31), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO outbox_events")).
		WithArgs(sqlmock.AnyArg(), model.EventAppointmentBooked, sqlmock.AnyArg(), "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	a := bookedAppointment()
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, int64(31), a.ID)
}

func TestAppointmentRepository_CreateDoubleBooking(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "appointments_doctor_slot_key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), bookedAppointment())
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestAppointmentRepository_CreateReusedPayment(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "appointments_payment_key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), bookedAppointment())
	assert.ErrorIs(t, err, repository.ErrPaymentUsed)
	assert.NotErrorIs(t, err, repository.ErrDuplicate)
}

func TestAppointmentRepository_BookedRangesGroupsByDate(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewAppointmentRepository(base)
	day1 := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT appointment_date, start_time, end_time")).
		WithArgs(int64(7), "2024-06-10", "booked").
		WillReturnRows(sqlmock.NewRows([]string{"appointment_date", "start_time", "end_time"}).
			AddRow(day1, []byte("09:00:00"), []byte("10:00:00")).
			AddRow(day1, []byte("10:00:00"), []byte("11:00:00")).
			AddRow(day2, []byte("14:00:00"), []byte("15:00:00")))

	booked, err := repo.BookedRanges(context.Background(), 7, model.MustDate("2024-06-10"))
	require.NoError(t, err)
	require.Len(t, booked["2024-06-10"], 2)
	require.Len(t, booked["2024-06-11"], 1)
	assert.Equal(t, model.TimeRange{Start: model.NewClock(14, 0), End: model.NewClock(15, 0)}, booked["2024-06-11"][0])
}

func TestAppointmentRepository_ListUpcomingForPatient(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.patient_id = $1 AND a.status = $2 AND a.appointment_date >= $3 ORDER BY a.appointment_date ASC")).
		WithArgs(int64(42), "booked", "2024-06-10").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "patient_id", "status"}).
			AddRow(int64(1), int64(7), int64(42), "booked"))

	list, err := repo.List(context.Background(), model.AppointmentQuery{
		PatientID: 42,
		Filter:    model.FilterUpcoming,
		Today:     model.MustDate("2024-06-10"),
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.AppointmentBooked, list[0].Status)
}

func TestAppointmentRepository_ListAllUnscoped(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY a.appointment_date DESC, a.start_time DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	list, err := repo.List(context.Background(), model.AppointmentQuery{Filter: model.FilterAll, Newest: true})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAppointmentRepository_UpdateStatusStale(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE appointments")).
		WithArgs("completed", "", int64(5), "booked").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

	a := &model.Appointment{Base: model.Base{ID: 5}, Status: model.AppointmentCompleted}
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), a), repository.ErrStaleState)
}
