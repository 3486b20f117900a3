// Package prescription writes and reads prescriptions. Every write
// replaces the diagnosis, notes, signature and the whole medicine list in
// one transaction.
package prescription

import (
	"context"
	"errors"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/service/appointment"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
)

type Service struct {
	repo         repository.PrescriptionRepository
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	logger       *logger.Logger
}

func NewService(repo repository.PrescriptionRepository, appointments repository.AppointmentRepository,
	users repository.UserRepository, logger *logger.Logger) *Service {
	return &Service{
		repo:         repo,
		appointments: appointments,
		users:        users,
		logger:       logger.With("prescription"),
	}
}

// UpsertByDoctorLink creates the prescription of the appointment behind a
// doctor meeting link if needed and overwrites its content.
func (s *Service) UpsertByDoctorLink(ctx context.Context, req model.DoctorLinkPrescriptionRequest) (*model.UpsertResult, error) {
	a, err := s.byDoctorLink(ctx, req.DoctorLink)
	if err != nil {
		return nil, err
	}
	if err := writable(a); err != nil {
		return nil, err
	}
	write, err := s.buildWrite(ctx, a.DoctorID, req.PrescriptionContent)
	if err != nil {
		return nil, err
	}

	p, created, err := s.repo.Upsert(ctx, a.ID, write)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.logger.Info("prescription written", "appointment_id", a.ID, "prescription_id", p.ID, "created", created)
	return &model.UpsertResult{Created: created, AppointmentID: a.ID, Prescription: p}, nil
}

// GetByDoctorLink returns the prescription of the appointment behind a
// doctor meeting link.
func (s *Service) GetByDoctorLink(ctx context.Context, link string) (*model.Prescription, error) {
	a, err := s.byDoctorLink(ctx, link)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetByAppointment(ctx, a.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Prescription", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return p, nil
}

// GetByID returns a prescription to its doctor, its patient or an admin.
func (s *Service) GetByID(ctx context.Context, caller model.Principal, id int64) (*model.Prescription, error) {
	p, a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case caller.Role == model.RoleAdmin:
	case caller.Role == model.RoleDoctor && a.DoctorID == caller.UserID:
	case caller.Role == model.RolePatient && a.PatientID == caller.UserID:
	default:
		return nil, apperrors.Forbidden("You are not allowed to view this prescription")
	}
	return p, nil
}

// Replace overwrites a prescription by id. Only the appointment's doctor
// may do this.
func (s *Service) Replace(ctx context.Context, caller model.Principal, id int64, content model.PrescriptionContent) (*model.Prescription, error) {
	_, a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role != model.RoleDoctor || a.DoctorID != caller.UserID {
		return nil, apperrors.Forbidden("Only the treating doctor can update this prescription")
	}
	if err := writable(a); err != nil {
		return nil, err
	}

	write, err := s.buildWrite(ctx, a.DoctorID, content)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Replace(ctx, id, write)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Prescription", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.logger.Info("prescription replaced", "prescription_id", id, "medicines", len(p.Medicines))
	return p, nil
}

// writable rejects prescription writes on cancelled appointments.
func writable(a *model.Appointment) error {
	if a.Status == model.AppointmentCancelled {
		return apperrors.Conflict("Cannot write a prescription for a cancelled appointment", nil)
	}
	return nil
}

// ListForPair returns every prescription a doctor wrote for a patient.
func (s *Service) ListForPair(ctx context.Context, caller model.Principal, doctorID, patientID int64) ([]*model.Prescription, error) {
	if !appointment.CanViewDoctor(caller, doctorID) {
		return nil, apperrors.Forbidden("You are not allowed to view these prescriptions")
	}
	list, err := s.repo.ListForPair(ctx, doctorID, patientID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

func (s *Service) byDoctorLink(ctx context.Context, link string) (*model.Appointment, error) {
	link = appointment.NormalizeLink(link)
	if link == "" {
		return nil, apperrors.Validation("doctor_link is required", map[string]string{"doctor_link": "This field is required."})
	}
	a, err := s.appointments.GetByDoctorLink(ctx, link)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Appointment", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return a, nil
}

func (s *Service) load(ctx context.Context, id int64) (*model.Prescription, *model.Appointment, error) {
	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperrors.NotFound("Prescription", nil)
	}
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	a, err := s.appointments.Get(ctx, p.AppointmentID)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	return p, a, nil
}

// buildWrite copies the doctor's signature document into the write.
func (s *Service) buildWrite(ctx context.Context, doctorID int64, content model.PrescriptionContent) (model.PrescriptionWrite, error) {
	doctor, err := s.users.GetByID(ctx, doctorID)
	if err != nil {
		return model.PrescriptionWrite{}, apperrors.Internal(err)
	}
	return model.PrescriptionWrite{
		Diagnosis:        content.Diagnosis,
		AdditionalNotes:  content.AdditionalNotes,
		DigitalSignature: doctor.DigitalSignature,
		Medicines:        content.ToMedicines(),
	}, nil
}
