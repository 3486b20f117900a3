package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

const (
	EventApprovalDecided   = "user.approval_decided"
	EventAppointmentBooked = "appointment.booked"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// NewOutboxEvent marshals payload into a pending event.
func NewOutboxEvent(eventType string, payload interface{}) (*OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   raw,
		Status:    OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AppointmentBookedPayload is published after a successful booking.
type AppointmentBookedPayload struct {
	AppointmentID int64     `json:"appointment_id"`
	DoctorID      int64     `json:"doctor_id"`
	PatientID     int64     `json:"patient_id"`
	Date          Date      `json:"date"`
	StartTime     ClockTime `json:"start_time"`
}

func NewAppointmentBookedEvent(a *Appointment) (*OutboxEvent, error) {
	return NewOutboxEvent(EventAppointmentBooked, AppointmentBookedPayload{
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		Date:          a.Date,
		StartTime:     a.StartTime,
	})
}

// ApprovalDecidedPayload carries what the notifier needs to email the user.
type ApprovalDecidedPayload struct {
	UserID int64          `json:"user_id"`
	Role   Role           `json:"role"`
	From   ApprovalStatus `json:"from"`
	To     ApprovalStatus `json:"to"`
}

func NewApprovalDecidedEvent(d ApprovalDecision) (*OutboxEvent, error) {
	return NewOutboxEvent(EventApprovalDecided, ApprovalDecidedPayload{
		UserID: d.UserID,
		Role:   d.Role,
		From:   d.From,
		To:     d.To,
	})
}
