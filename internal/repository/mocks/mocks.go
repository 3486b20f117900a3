// Package mocks holds testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
)

var (
	_ repository.UserRepository         = (*UserRepository)(nil)
	_ repository.ScheduleRepository     = (*ScheduleRepository)(nil)
	_ repository.AppointmentRepository  = (*AppointmentRepository)(nil)
	_ repository.PrescriptionRepository = (*PrescriptionRepository)(nil)
	_ repository.OutboxRepository       = (*OutboxRepository)(nil)
)

type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepository) GetByMobile(ctx context.Context, mobile string) (*model.User, error) {
	args := m.Called(ctx, mobile)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepository) UpdateDocuments(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepository) ListDoctors(ctx context.Context, filter model.DoctorFilter) ([]*model.User, int, error) {
	args := m.Called(ctx, filter)
	users, _ := args.Get(0).([]*model.User)
	return users, args.Int(1), args.Error(2)
}

func (m *UserRepository) ListByStatus(ctx context.Context, status model.ApprovalStatus, role *model.Role) ([]*model.User, error) {
	args := m.Called(ctx, status, role)
	users, _ := args.Get(0).([]*model.User)
	return users, args.Error(1)
}

func (m *UserRepository) UpdateStatus(ctx context.Context, id int64, status model.ApprovalStatus, event *model.OutboxEvent) error {
	args := m.Called(ctx, id, status, event)
	return args.Error(0)
}

func (m *UserRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type ScheduleRepository struct {
	mock.Mock
}

func (m *ScheduleRepository) CreateBatch(ctx context.Context, windows []*model.AvailabilityWindow) error {
	args := m.Called(ctx, windows)
	return args.Error(0)
}

func (m *ScheduleRepository) Get(ctx context.Context, id int64) (*model.AvailabilityWindow, error) {
	args := m.Called(ctx, id)
	w, _ := args.Get(0).(*model.AvailabilityWindow)
	return w, args.Error(1)
}

func (m *ScheduleRepository) Update(ctx context.Context, window *model.AvailabilityWindow) error {
	args := m.Called(ctx, window)
	return args.Error(0)
}

func (m *ScheduleRepository) ExistingDates(ctx context.Context, doctorID int64, dates []model.Date) ([]model.Date, error) {
	args := m.Called(ctx, doctorID, dates)
	d, _ := args.Get(0).([]model.Date)
	return d, args.Error(1)
}

func (m *ScheduleRepository) ListFrom(ctx context.Context, doctorID int64, from model.Date, includeOff bool) ([]*model.AvailabilityWindow, error) {
	args := m.Called(ctx, doctorID, from, includeOff)
	w, _ := args.Get(0).([]*model.AvailabilityWindow)
	return w, args.Error(1)
}

type AppointmentRepository struct {
	mock.Mock
}

func (m *AppointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *AppointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*model.Appointment)
	return a, args.Error(1)
}

func (m *AppointmentRepository) GetByLink(ctx context.Context, link string) (*model.Appointment, error) {
	args := m.Called(ctx, link)
	a, _ := args.Get(0).(*model.Appointment)
	return a, args.Error(1)
}

func (m *AppointmentRepository) GetByDoctorLink(ctx context.Context, link string) (*model.Appointment, error) {
	args := m.Called(ctx, link)
	a, _ := args.Get(0).(*model.Appointment)
	return a, args.Error(1)
}

func (m *AppointmentRepository) UpdateStatus(ctx context.Context, appointment *model.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *AppointmentRepository) List(ctx context.Context, query model.AppointmentQuery) ([]*model.Appointment, error) {
	args := m.Called(ctx, query)
	a, _ := args.Get(0).([]*model.Appointment)
	return a, args.Error(1)
}

func (m *AppointmentRepository) BookedRanges(ctx context.Context, doctorID int64, from model.Date) (map[string][]model.TimeRange, error) {
	args := m.Called(ctx, doctorID, from)
	r, _ := args.Get(0).(map[string][]model.TimeRange)
	return r, args.Error(1)
}

func (m *AppointmentRepository) DoctorPatients(ctx context.Context, doctorID int64) ([]*model.PatientSummary, error) {
	args := m.Called(ctx, doctorID)
	p, _ := args.Get(0).([]*model.PatientSummary)
	return p, args.Error(1)
}

type PrescriptionRepository struct {
	mock.Mock
}

func (m *PrescriptionRepository) Upsert(ctx context.Context, appointmentID int64, write model.PrescriptionWrite) (*model.Prescription, bool, error) {
	args := m.Called(ctx, appointmentID, write)
	p, _ := args.Get(0).(*model.Prescription)
	return p, args.Bool(1), args.Error(2)
}

func (m *PrescriptionRepository) Replace(ctx context.Context, id int64, write model.PrescriptionWrite) (*model.Prescription, error) {
	args := m.Called(ctx, id, write)
	p, _ := args.Get(0).(*model.Prescription)
	return p, args.Error(1)
}

func (m *PrescriptionRepository) Get(ctx context.Context, id int64) (*model.Prescription, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*model.Prescription)
	return p, args.Error(1)
}

func (m *PrescriptionRepository) GetByAppointment(ctx context.Context, appointmentID int64) (*model.Prescription, error) {
	args := m.Called(ctx, appointmentID)
	p, _ := args.Get(0).(*model.Prescription)
	return p, args.Error(1)
}

func (m *PrescriptionRepository) ListByAppointmentIDs(ctx context.Context, appointmentIDs []int64) (map[int64]*model.Prescription, error) {
	args := m.Called(ctx, appointmentIDs)
	p, _ := args.Get(0).(map[int64]*model.Prescription)
	return p, args.Error(1)
}

func (m *PrescriptionRepository) ListForPair(ctx context.Context, doctorID, patientID int64) ([]*model.Prescription, error) {
	args := m.Called(ctx, doctorID, patientID)
	p, _ := args.Get(0).([]*model.Prescription)
	return p, args.Error(1)
}

type OutboxRepository struct {
	mock.Mock
}

func (m *OutboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	e, _ := args.Get(0).([]*model.OutboxEvent)
	return e, args.Error(1)
}

func (m *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxAttempts int) error {
	args := m.Called(ctx, id, errMsg, maxAttempts)
	return args.Error(0)
}

func (m *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}
