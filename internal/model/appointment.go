package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

var ErrInvalidAppointmentTransition = errors.New("invalid appointment transition")

// TransitionTo allows booked -> completed and booked -> cancelled. Both
// targets are terminal.
func (s AppointmentStatus) TransitionTo(next AppointmentStatus) error {
	if s == AppointmentBooked && (next == AppointmentCompleted || next == AppointmentCancelled) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidAppointmentTransition, s, next)
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Appointment is a confirmed doctor-patient reservation. At most one exists
// per (doctor, date, start_time).
type Appointment struct {
	Base
	DoctorID          int64             `json:"doctor_id" db:"doctor_id"`
	PatientID         int64             `json:"patient_id" db:"patient_id"`
	Date              Date              `json:"appointment_date" db:"appointment_date"`
	StartTime         ClockTime         `json:"start_time" db:"start_time"`
	EndTime           ClockTime         `json:"end_time" db:"end_time"`
	Status            AppointmentStatus `json:"status" db:"status"`
	PaymentStatus     PaymentStatus     `json:"payment_status" db:"payment_status"`
	Amount            decimal.Decimal   `json:"amount" db:"amount"`
	OrderID           string            `json:"razorpay_order_id,omitempty" db:"order_id"`
	PaymentID         string            `json:"razorpay_payment_id,omitempty" db:"payment_id"`
	DoctorLink        string            `json:"doctor_link,omitempty" db:"doctor_link"`
	PatientLink       string            `json:"patient_link,omitempty" db:"patient_link"`
	TranscriptionPath string            `json:"transcription_file,omitempty" db:"transcription_path"`

	DoctorName  string `json:"doctor_name" db:"doctor_name"`
	PatientName string `json:"patient_name" db:"patient_name"`
}

func (a *Appointment) transition(next AppointmentStatus) error {
	if err := a.Status.TransitionTo(next); err != nil {
		return err
	}
	a.Status = next
	return nil
}

func (a *Appointment) Complete() error { return a.transition(AppointmentCompleted) }
func (a *Appointment) Cancel() error { return a.transition(AppointmentCancelled) }

// InvolvesUser reports whether the user is the doctor or patient.
func (a *Appointment) InvolvesUser(userID int64) bool {
	return a.DoctorID == userID || a.PatientID == userID
}

// TimeRange is a [start, end) pair used to match slots to bookings.
type TimeRange struct {
	Start ClockTime `db:"start_time"`
	End   ClockTime `db:"end_time"`
}

// AppointmentFilter selects appointments by lifecycle bucket.
type AppointmentFilter string

const (
	FilterUpcoming  AppointmentFilter = "upcoming"
	FilterCompleted AppointmentFilter = "completed"
	FilterCancelled AppointmentFilter = "cancelled"
	FilterAll       AppointmentFilter = "all"
)

var AppointmentFilters = []AppointmentFilter{FilterUpcoming, FilterCompleted, FilterCancelled, FilterAll}

// ParseAppointmentFilter defaults to "all" for an empty value.
func ParseAppointmentFilter(s string) (AppointmentFilter, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FilterAll, true
	}
	for _, f := range AppointmentFilters {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// AppointmentQuery is the repository-level listing criteria. Zero IDs
// mean unscoped.
type AppointmentQuery struct {
	DoctorID  int64
	PatientID int64
	Filter    AppointmentFilter
	Today     Date
	Newest    bool
}

// PatientSummary is a doctor's view of one of their patients.
type PatientSummary struct {
	ID           int64   `json:"id" db:"id"`
	FullName     string  `json:"full_name" db:"full_name"`
	Age          *int    `json:"age" db:"age"`
	Gender       *Gender `json:"gender" db:"gender"`
	MobileNumber string  `json:"mobile_number" db:"mobile_number"`
	City         string  `json:"city" db:"city"`
	State        string  `json:"state" db:"state"`
}

type CreateOrderRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Order is a payment gateway order in minor units.
type Order struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// BookAppointmentRequest is sent by the client after checkout completes.
type BookAppointmentRequest struct {
	DoctorID  int64           `json:"doctor_id" binding:"required,gt=0"`
	Date      *Date           `json:"date" binding:"required"`
	StartTime *ClockTime      `json:"start_time" binding:"required"`
	EndTime   *ClockTime      `json:"end_time" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	OrderID   string          `json:"razorpay_order_id" binding:"required"`
	PaymentID string          `json:"razorpay_payment_id" binding:"required"`
	Signature string          `json:"razorpay_signature" binding:"required"`
}

// CompletionResult is returned after a call ends.
type CompletionResult struct {
	AppointmentID     int64             `json:"appointment_id"`
	Status            AppointmentStatus `json:"status"`
	TranscriptionFile string            `json:"transcription_file,omitempty"`
	CompletedAt       time.Time         `json:"completed_at"`
}

// AppointmentWithPrescription pairs an appointment with its prescription,
// which is nil until the doctor writes one.
type AppointmentWithPrescription struct {
	Appointment  *Appointment  `json:"appointment"`
	Prescription *Prescription `json:"prescription"`
}
