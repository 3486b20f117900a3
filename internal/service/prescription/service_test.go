package prescription

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository/mocks"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
)

const doctorLink = "https://meet.example.com/peer2/room"

type fixture struct {
	svc          *Service
	repo         *mocks.PrescriptionRepository
	appointments *mocks.AppointmentRepository
	users        *mocks.UserRepository
}

func newFixture() *fixture {
	f := &fixture{
		repo:         &mocks.PrescriptionRepository{},
		appointments: &mocks.AppointmentRepository{},
		users:        &mocks.UserRepository{},
	}
	f.svc = NewService(f.repo, f.appointments, f.users, logger.Nop())
	f.users.On("GetByID", mock.Anything, int64(7)).
		Return(&model.User{Base: model.Base{ID: 7}, Role: model.RoleDoctor, DigitalSignature: "users/7/digital_signature/sig.png"}, nil)
	return f
}

func appointmentFixture() *model.Appointment {
	return &model.Appointment{Base: model.Base{ID: 31}, DoctorID: 7, PatientID: 42, DoctorLink: doctorLink}
}

func content(names ...string) model.PrescriptionContent {
	c := model.PrescriptionContent{Diagnosis: "Viral fever"}
	for _, n := range names {
		c.Medicines = append(c.Medicines, model.MedicineInput{
			MedicineName: n,
			Dose:         "500mg",
			Frequency:    model.FrequencyTwice,
			Duration:     "5 days",
		})
	}
	return c
}

func TestUpsertByDoctorLink(t *testing.T) {
	f := newFixture()
	f.appointments.On("GetByDoctorLink", mock.Anything, doctorLink).Return(appointmentFixture(), nil)

	var write model.PrescriptionWrite
	f.repo.On("Upsert", mock.Anything, int64(31), mock.AnythingOfType("model.PrescriptionWrite")).
		Run(func(args mock.Arguments) { write = args.Get(2).(model.PrescriptionWrite) }).
		Return(&model.Prescription{ID: 5, AppointmentID: 31}, true, nil)

	res, err := f.svc.UpsertByDoctorLink(context.Background(), model.DoctorLinkPrescriptionRequest{
		DoctorLink:          doctorLink + "/",
		PrescriptionContent: content("Paracetamol", "Cetirizine"),
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, int64(31), res.AppointmentID)

	assert.Equal(t, "users/7/digital_signature/sig.png", write.DigitalSignature)
	require.Len(t, write.Medicines, 2)
	assert.Equal(t, "Paracetamol", write.Medicines[0].MedicineName)
	assert.Equal(t, 1, write.Medicines[1].Position)
}

func TestUpsertByDoctorLink_UnknownLink(t *testing.T) {
	f := newFixture()
	f.appointments.On("GetByDoctorLink", mock.Anything, "nope").Return(nil, repository.ErrNotFound)

	_, err := f.svc.UpsertByDoctorLink(context.Background(), model.DoctorLinkPrescriptionRequest{DoctorLink: "nope"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	f.repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertByDoctorLink_CancelledAppointment(t *testing.T) {
	f := newFixture()
	cancelled := appointmentFixture()
	cancelled.Status = model.AppointmentCancelled
	f.appointments.On("GetByDoctorLink", mock.Anything, doctorLink).Return(cancelled, nil)

	_, err := f.svc.UpsertByDoctorLink(context.Background(), model.DoctorLinkPrescriptionRequest{
		DoctorLink:          doctorLink,
		PrescriptionContent: content("Paracetamol"),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
	f.repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetByDoctorLink(t *testing.T) {
	f := newFixture()
	f.appointments.On("GetByDoctorLink", mock.Anything, doctorLink).Return(appointmentFixture(), nil)
	f.repo.On("GetByAppointment", mock.Anything, int64(31)).Return(nil, repository.ErrNotFound).Once()

	_, err := f.svc.GetByDoctorLink(context.Background(), doctorLink)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	f.repo.On("GetByAppointment", mock.Anything, int64(31)).Return(&model.Prescription{ID: 5}, nil)
	p, err := f.svc.GetByDoctorLink(context.Background(), doctorLink)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.ID)
}

func TestGetByID_Access(t *testing.T) {
	f := newFixture()
	f.repo.On("Get", mock.Anything, int64(5)).Return(&model.Prescription{ID: 5, AppointmentID: 31}, nil)
	f.appointments.On("Get", mock.Anything, int64(31)).Return(appointmentFixture(), nil)

	allowed := []model.Principal{
		{UserID: 1, Role: model.RoleAdmin},
		{UserID: 7, Role: model.RoleDoctor},
		{UserID: 42, Role: model.RolePatient},
	}
	for _, p := range allowed {
		_, err := f.svc.GetByID(context.Background(), p, 5)
		assert.NoError(t, err, "role %s", p.Role)
	}

	denied := []model.Principal{
		{UserID: 8, Role: model.RoleDoctor},
		{UserID: 43, Role: model.RolePatient},
		{UserID: 3, Role: model.RoleHospital},
	}
	for _, p := range denied {
		_, err := f.svc.GetByID(context.Background(), p, 5)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden), "role %s", p.Role)
	}
}

func TestReplace_TwiceLeavesSecondSet(t *testing.T) {
	f := newFixture()
	f.repo.On("Get", mock.Anything, int64(5)).Return(&model.Prescription{ID: 5, AppointmentID: 31}, nil)
	f.appointments.On("Get", mock.Anything, int64(31)).Return(appointmentFixture(), nil)

	var writes []model.PrescriptionWrite
	f.repo.On("Replace", mock.Anything, int64(5), mock.Anything).
		Run(func(args mock.Arguments) { writes = append(writes, args.Get(2).(model.PrescriptionWrite)) }).
		Return(&model.Prescription{ID: 5, AppointmentID: 31}, nil)

	doctor := model.Principal{UserID: 7, Role: model.RoleDoctor}
	_, err := f.svc.Replace(context.Background(), doctor, 5, content("A", "B"))
	require.NoError(t, err)
	_, err = f.svc.Replace(context.Background(), doctor, 5, content("C"))
	require.NoError(t, err)

	require.Len(t, writes, 2)
	require.Len(t, writes[1].Medicines, 1)
	assert.Equal(t, "C", writes[1].Medicines[0].MedicineName)
	assert.Equal(t, 0, writes[1].Medicines[0].Position)
}

func TestReplace_CancelledAppointment(t *testing.T) {
	f := newFixture()
	cancelled := appointmentFixture()
	cancelled.Status = model.AppointmentCancelled
	f.repo.On("Get", mock.Anything, int64(5)).Return(&model.Prescription{ID: 5, AppointmentID: 31}, nil)
	f.appointments.On("Get", mock.Anything, int64(31)).Return(cancelled, nil)

	_, err := f.svc.Replace(context.Background(), model.Principal{UserID: 7, Role: model.RoleDoctor}, 5, content("A"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
	f.repo.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything, mock.Anything)
}

func TestReplace_NotOwner(t *testing.T) {
	f := newFixture()
	f.repo.On("Get", mock.Anything, int64(5)).Return(&model.Prescription{ID: 5, AppointmentID: 31}, nil)
	f.appointments.On("Get", mock.Anything, int64(31)).Return(appointmentFixture(), nil)

	_, err := f.svc.Replace(context.Background(), model.Principal{UserID: 1, Role: model.RoleAdmin}, 5, content())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
}

func TestListForPair(t *testing.T) {
	f := newFixture()
	list := []*model.Prescription{{ID: 5}}
	f.repo.On("ListForPair", mock.Anything, int64(7), int64(42)).Return(list, nil)

	got, err := f.svc.ListForPair(context.Background(), model.Principal{UserID: 7, Role: model.RoleDoctor}, 7, 42)
	require.NoError(t, err)
	assert.Equal(t, list, got)

	_, err = f.svc.ListForPair(context.Background(), model.Principal{UserID: 42, Role: model.RolePatient}, 7, 42)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
}
