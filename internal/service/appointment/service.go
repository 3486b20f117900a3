package appointment

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/blobstore"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/payment"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/security"
)

const (
	// RoomTokenLength gives about 190 bits of entropy over [A-Za-z0-9].
	RoomTokenLength = 32

	doctorPeer  = "peer2"
	patientPeer = "peer1"
)

type Config struct {
	MeetingBaseURL string
}

type Service struct {
	repo          repository.AppointmentRepository
	prescriptions repository.PrescriptionRepository
	users         repository.UserRepository
	gateway       payment.Gateway
	blobs         blobstore.Store
	cfg           Config
	logger        *logger.Logger
	metrics       *metrics.Metrics
	roomToken     func() (string, error)
	now           func() time.Time
}

func NewService(
	repo repository.AppointmentRepository,
	prescriptions repository.PrescriptionRepository,
	users repository.UserRepository,
	gateway payment.Gateway,
	blobs blobstore.Store,
	cfg Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	cfg.MeetingBaseURL = strings.TrimRight(cfg.MeetingBaseURL, "/")
	return &Service{
		repo:          repo,
		prescriptions: prescriptions,
		users:         users,
		gateway:       gateway,
		blobs:         blobs,
		cfg:           cfg,
		logger:        logger.With("appointment"),
		metrics:       metrics,
		roomToken:     func() (string, error) { return security.RandomAlphanumeric(RoomTokenLength) },
		now:           time.Now,
	}
}

// CreateOrder opens a gateway order for amount rupees, charged in paise.
func (s *Service) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error) {
	minor, err := payment.ToMinorUnits(req.Amount)
	if err != nil {
		return nil, apperrors.Validation("Invalid amount", map[string]string{"amount": err.Error()})
	}
	order, err := s.gateway.CreateOrder(ctx, minor, payment.CurrencyINR)
	if err != nil {
		return nil, apperrors.Upstream("razorpay", err)
	}
	return &model.Order{OrderID: order.ID, Amount: order.Amount, Currency: payment.CurrencyINR}, nil
}

// VerifyAndBook checks the checkout signature and books the slot for the
// patient. A slot that is already taken is reported as a conflict.
func (s *Service) VerifyAndBook(ctx context.Context, patientID int64, req model.BookAppointmentRequest) (*model.Appointment, error) {
	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		s.metrics.Bookings.WithLabelValues("bad_signature").Inc()
		return nil, apperrors.BadRequest("Payment verification failed", nil)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	doctor, err := s.users.GetByID(ctx, req.DoctorID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && doctor.Role != model.RoleDoctor) {
		return nil, apperrors.NotFound("Doctor", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	room, err := s.roomToken()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	a := &model.Appointment{
		DoctorID:      req.DoctorID,
		PatientID:     patientID,
		Date:          *req.Date,
		StartTime:     *req.StartTime,
		EndTime:       *req.EndTime,
		Status:        model.AppointmentBooked,
		PaymentStatus: model.PaymentPaid,
		Amount:        req.Amount,
		OrderID:       req.OrderID,
		PaymentID:     req.PaymentID,
		DoctorLink:    s.meetingLink(doctorPeer, room),
		PatientLink:   s.meetingLink(patientPeer, room),
	}

	err = s.repo.Create(ctx, a)
	if errors.Is(err, repository.ErrPaymentUsed) {
		s.metrics.Bookings.WithLabelValues("payment_reused").Inc()
		s.logger.Warn("payment replayed", "payment_id", a.PaymentID, "patient_id", patientID)
		return nil, apperrors.Conflict("Payment already used", err)
	}
	if errors.Is(err, repository.ErrDuplicate) {
		s.metrics.Bookings.WithLabelValues("conflict").Inc()
		s.logger.Warn("booking conflict",
			"doctor_id", a.DoctorID,
			"date", a.Date.String(),
			"start_time", a.StartTime.String(),
		)
		return nil, apperrors.Conflict("This slot is already booked", err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.metrics.Bookings.WithLabelValues("created").Inc()
	s.logger.Info("appointment booked", "appointment_id", a.ID, "doctor_id", a.DoctorID, "patient_id", patientID)
	return a, nil
}

func validateRequest(req model.BookAppointmentRequest) error {
	fields := map[string]string{}
	if req.Date == nil || req.Date.IsZero() {
		fields["date"] = "This field is required."
	}
	if req.StartTime == nil {
		fields["start_time"] = "This field is required."
	}
	if req.EndTime == nil {
		fields["end_time"] = "This field is required."
	}
	if req.StartTime != nil && req.EndTime != nil && req.EndTime.AsEnd() <= *req.StartTime {
		fields["end_time"] = "end_time must be after start_time"
	}
	if req.Amount.IsNegative() {
		fields["amount"] = "Must be a non-negative amount."
	}
	if len(fields) > 0 {
		return apperrors.Validation("Invalid appointment", fields)
	}
	return nil
}

func (s *Service) meetingLink(peer, room string) string {
	return fmt.Sprintf("%s/%s/%s", s.cfg.MeetingBaseURL, peer, room)
}

// List returns the caller's appointments in a lifecycle bucket. Patients
// and doctors see their own, admins see all.
func (s *Service) List(ctx context.Context, caller model.Principal, status string) ([]*model.Appointment, error) {
	filter, ok := model.ParseAppointmentFilter(status)
	if !ok {
		return nil, apperrors.Validation("Invalid status filter", map[string]string{
			"status": "Allowed values: upcoming, completed, cancelled, all",
		})
	}

	query := model.AppointmentQuery{Filter: filter, Today: model.NewDate(s.now())}
	switch caller.Role {
	case model.RolePatient:
		query.PatientID = caller.UserID
	case model.RoleDoctor:
		query.DoctorID = caller.UserID
	case model.RoleAdmin:
	default:
		return nil, apperrors.Forbidden("Unauthorized role")
	}

	appointments, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return appointments, nil
}

// NormalizeLink trims whitespace and trailing slashes from a meeting link.
func NormalizeLink(link string) string {
	return strings.TrimRight(strings.TrimSpace(link), "/")
}

// Complete marks the appointment behind a meeting link completed and
// stores the call transcription when one is uploaded.
func (s *Service) Complete(ctx context.Context, link string, transcription *multipart.FileHeader) (*model.CompletionResult, error) {
	link = NormalizeLink(link)
	if link == "" {
		return nil, apperrors.Validation("link is required", map[string]string{"link": "This field is required."})
	}

	a, err := s.repo.GetByLink(ctx, link)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Appointment", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := a.Complete(); err != nil {
		return nil, apperrors.Conflict("Appointment is not in a completable state", err)
	}

	var key string
	if transcription != nil {
		key, err = s.storeTranscription(ctx, a, transcription)
		if err != nil {
			return nil, err
		}
		a.TranscriptionPath = key
	}

	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		if key != "" {
			if derr := s.blobs.Delete(ctx, key); derr != nil {
				s.logger.Warn("failed to remove transcription", "key", key, "error", derr.Error())
			}
		}
		if errors.Is(err, repository.ErrStaleState) {
			return nil, apperrors.Conflict("Appointment is not in a completable state", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.logger.Info("appointment completed", "appointment_id", a.ID, "transcription", key != "")
	return &model.CompletionResult{
		AppointmentID:     a.ID,
		Status:            a.Status,
		TranscriptionFile: s.blobs.URL(a.TranscriptionPath),
		CompletedAt:       a.UpdatedAt,
	}, nil
}

func (s *Service) storeTranscription(ctx context.Context, a *model.Appointment, fh *multipart.FileHeader) (string, error) {
	name := fmt.Sprintf("%d_%s", a.ID, fh.Filename)
	key, err := blobstore.UserPath(a.DoctorID, string(model.DocTranscriptions), name)
	if err != nil {
		return "", apperrors.Validation("Invalid transcription file", map[string]string{"transcription_file": err.Error()})
	}
	if fh.Size > blobstore.MaxFileSize {
		return "", apperrors.Validation("Invalid transcription file",
			map[string]string{"transcription_file": blobstore.ErrFileTooLarge.Error()})
	}

	f, err := fh.Open()
	if err != nil {
		return "", apperrors.BadRequest("Could not read uploaded file", err)
	}
	defer f.Close()

	key, err = s.blobs.Put(ctx, key, f)
	if errors.Is(err, blobstore.ErrFileTooLarge) {
		return "", apperrors.Validation("Invalid transcription file", map[string]string{"transcription_file": err.Error()})
	}
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("failed to store transcription: %w", err))
	}
	return key, nil
}

// Cancel cancels a booked appointment. Only its patient, its doctor or an
// admin may cancel it.
func (s *Service) Cancel(ctx context.Context, caller model.Principal, id int64) (*model.Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Appointment", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if caller.Role != model.RoleAdmin && !a.InvolvesUser(caller.UserID) {
		return nil, apperrors.Forbidden("You are not allowed to cancel this appointment")
	}
	if err := a.Cancel(); err != nil {
		return nil, apperrors.Conflict("Only booked appointments can be cancelled", err)
	}

	err = s.repo.UpdateStatus(ctx, a)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, apperrors.Conflict("Only booked appointments can be cancelled", err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.logger.Info("appointment cancelled", "appointment_id", a.ID, "by", caller.UserID)
	return a, nil
}

// DoctorPatients lists the distinct patients a doctor has seen. A doctor
// may only list their own patients.
func (s *Service) DoctorPatients(ctx context.Context, caller model.Principal, doctorID int64) ([]*model.PatientSummary, error) {
	if !CanViewDoctor(caller, doctorID) {
		return nil, apperrors.Forbidden("You are not allowed to view these patients")
	}
	patients, err := s.repo.DoctorPatients(ctx, doctorID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return patients, nil
}

// CanViewDoctor reports whether caller may read a doctor's patient data.
func CanViewDoctor(caller model.Principal, doctorID int64) bool {
	return caller.Role == model.RoleAdmin || (caller.Role == model.RoleDoctor && caller.UserID == doctorID)
}

// PatientHistory returns the patient's appointments newest first, each
// paired with its prescription when one exists.
func (s *Service) PatientHistory(ctx context.Context, patientID int64) ([]model.AppointmentWithPrescription, error) {
	appointments, err := s.repo.List(ctx, model.AppointmentQuery{
		PatientID: patientID,
		Filter:    model.FilterAll,
		Newest:    true,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	ids := make([]int64, 0, len(appointments))
	for _, a := range appointments {
		ids = append(ids, a.ID)
	}
	prescriptions, err := s.prescriptions.ListByAppointmentIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	history := make([]model.AppointmentWithPrescription, 0, len(appointments))
	for _, a := range appointments {
		history = append(history, model.AppointmentWithPrescription{
			Appointment:  a,
			Prescription: prescriptions[a.ID],
		})
	}
	return history, nil
}
