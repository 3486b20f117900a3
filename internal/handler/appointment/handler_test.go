package appointment

import (
	"context"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler/handlertest"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) VerifyAndBook(ctx context.Context, patientID int64, req model.BookAppointmentRequest) (*model.Appointment, error) {
	args := m.Called(ctx, patientID, req)
	if v := args.Get(0); v != nil {
		return v.(*model.Appointment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) List(ctx context.Context, caller model.Principal, status string) ([]*model.Appointment, error) {
	args := m.Called(ctx, caller, status)
	if v := args.Get(0); v != nil {
		return v.([]*model.Appointment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) Complete(ctx context.Context, link string, transcription *multipart.FileHeader) (*model.CompletionResult, error) {
	args := m.Called(ctx, link, transcription)
	if v := args.Get(0); v != nil {
		return v.(*model.CompletionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) Cancel(ctx context.Context, caller model.Principal, id int64) (*model.Appointment, error) {
	args := m.Called(ctx, caller, id)
	if v := args.Get(0); v != nil {
		return v.(*model.Appointment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) DoctorPatients(ctx context.Context, caller model.Principal, doctorID int64) ([]*model.PatientSummary, error) {
	args := m.Called(ctx, caller, doctorID)
	if v := args.Get(0); v != nil {
		return v.([]*model.PatientSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) PatientHistory(ctx context.Context, patientID int64) ([]model.AppointmentWithPrescription, error) {
	args := m.Called(ctx, patientID)
	if v := args.Get(0); v != nil {
		return v.([]model.AppointmentWithPrescription), args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	patient = model.Principal{UserID: 30, Role: model.RolePatient}
	doctor  = model.Principal{UserID: 7, Role: model.RoleDoctor}
)

func setup(svc *mockService, caller model.Principal) *gin.Engine {
	r := handlertest.Engine()
	NewHandler(svc).RegisterRoutes(r, handlertest.As(caller))
	return r
}

func TestCreateOrder(t *testing.T) {
	svc := new(mockService)
	svc.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req model.CreateOrderRequest) bool {
		return req.Amount.Equal(decimal.RequireFromString("499.50"))
	})).Return(&model.Order{OrderID: "order_1", Amount: 49950, Currency: "INR"}, nil)

	w := handlertest.Do(t, setup(svc, patient), http.MethodPost, "/payments/orders", `{"amount":"499.50"}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order model.Order
	handlertest.Decode(t, w, &order)
	assert.Equal(t, int64(49950), order.Amount)
}

func TestVerifyAndBook(t *testing.T) {
	svc := new(mockService)
	svc.On("VerifyAndBook", mock.Anything, int64(30), mock.MatchedBy(func(req model.BookAppointmentRequest) bool {
		return req.DoctorID == 7 && req.OrderID == "order_1" && req.StartTime != nil
	})).Return(&model.Appointment{Base: model.Base{ID: 99}, Status: model.AppointmentBooked, DoctorLink: "https://meet/peer2/abc"}, nil)

	body := `{"doctor_id":7,"date":"2026-10-20","start_time":"10:00 AM","end_time":"11:00 AM","amount":"500",` +
		`"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`
	w := handlertest.Do(t, setup(svc, patient), http.MethodPost, "/payments/verify", body)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var a model.Appointment
	env := handlertest.Decode(t, w, &a)
	assert.Equal(t, "Appointment booked successfully", env.Message)
	assert.Equal(t, int64(99), a.ID)
	svc.AssertExpectations(t)
}

func TestVerifyAndBook_DoctorForbidden(t *testing.T) {
	svc := new(mockService)

	w := handlertest.Do(t, setup(svc, doctor), http.MethodPost, "/payments/verify", `{}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "VerifyAndBook", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyAndBook_SlotTaken(t *testing.T) {
	svc := new(mockService)
	svc.On("VerifyAndBook", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperrors.Conflict("This slot is already booked", nil))

	body := `{"doctor_id":7,"date":"2026-10-20","start_time":"10:00 AM","end_time":"11:00 AM",` +
		`"razorpay_order_id":"o","razorpay_payment_id":"p","razorpay_signature":"s"}`
	w := handlertest.Do(t, setup(svc, patient), http.MethodPost, "/payments/verify", body)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "This slot is already booked", handlertest.Decode(t, w, nil).Message)
}

func TestList(t *testing.T) {
	svc := new(mockService)
	svc.On("List", mock.Anything, doctor, "upcoming").
		Return([]*model.Appointment{{Base: model.Base{ID: 1}}, {Base: model.Base{ID: 2}}}, nil)

	w := handlertest.Do(t, setup(svc, doctor), http.MethodGet, "/appointments?status=upcoming", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Appointment
	env := handlertest.Decode(t, w, &list)
	assert.Equal(t, "Appointments fetched successfully", env.Message)
	assert.Len(t, list, 2)
}

func TestComplete(t *testing.T) {
	t.Run("with transcription", func(t *testing.T) {
		svc := new(mockService)
		svc.On("Complete", mock.Anything, "https://meet/peer2/abc", mock.MatchedBy(func(fh *multipart.FileHeader) bool {
			return fh != nil && fh.Filename == "call.txt"
		})).Return(&model.CompletionResult{AppointmentID: 99, Status: model.AppointmentCompleted, CompletedAt: time.Now()}, nil)

		w := handlertest.Multipart(t, setup(svc, patient), "/appointments/complete",
			map[string]string{"link": "https://meet/peer2/abc"},
			handlertest.File{Field: transcriptionField, Name: "call.txt", Contents: "hello"})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "Transcription uploaded & appointment completed", handlertest.Decode(t, w, nil).Message)
		svc.AssertExpectations(t)
	})

	t.Run("without file", func(t *testing.T) {
		svc := new(mockService)
		svc.On("Complete", mock.Anything, "https://meet/peer1/abc", (*multipart.FileHeader)(nil)).
			Return(&model.CompletionResult{AppointmentID: 99, Status: model.AppointmentCompleted}, nil)

		w := handlertest.Multipart(t, setup(svc, patient), "/appointments/complete",
			map[string]string{"link": "https://meet/peer1/abc"})

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("unknown link", func(t *testing.T) {
		svc := new(mockService)
		svc.On("Complete", mock.Anything, "nope", mock.Anything).Return(nil, apperrors.NotFound("Appointment", nil))

		w := handlertest.Multipart(t, setup(svc, patient), "/appointments/complete", map[string]string{"link": "nope"})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCancel(t *testing.T) {
	svc := new(mockService)
	svc.On("Cancel", mock.Anything, patient, int64(99)).
		Return(&model.Appointment{Base: model.Base{ID: 99}, Status: model.AppointmentCancelled}, nil)

	w := handlertest.Do(t, setup(svc, patient), http.MethodPost, "/appointments/99/cancel", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var a model.Appointment
	handlertest.Decode(t, w, &a)
	assert.Equal(t, model.AppointmentCancelled, a.Status)
}

func TestCancel_BadID(t *testing.T) {
	svc := new(mockService)

	w := handlertest.Do(t, setup(svc, patient), http.MethodPost, "/appointments/abc/cancel", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything)
}

func TestDoctorPatients(t *testing.T) {
	svc := new(mockService)
	svc.On("DoctorPatients", mock.Anything, doctor, int64(7)).
		Return([]*model.PatientSummary{{ID: 30, FullName: "Asha Rao"}}, nil)

	w := handlertest.Do(t, setup(svc, doctor), http.MethodGet, "/doctors/7/patients", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Total    int                    `json:"total_patients"`
		Patients []model.PatientSummary `json:"patients"`
	}
	handlertest.Decode(t, w, &out)
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, "Asha Rao", out.Patients[0].FullName)
}

func TestDoctorPatients_OtherDoctor(t *testing.T) {
	svc := new(mockService)
	svc.On("DoctorPatients", mock.Anything, doctor, int64(8)).
		Return(nil, apperrors.Forbidden("You are not allowed to view these patients"))

	w := handlertest.Do(t, setup(svc, doctor), http.MethodGet, "/doctors/8/patients", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPatientHistory(t *testing.T) {
	svc := new(mockService)
	svc.On("PatientHistory", mock.Anything, int64(30)).Return([]model.AppointmentWithPrescription{
		{Appointment: &model.Appointment{Base: model.Base{ID: 2}}, Prescription: &model.Prescription{ID: 5}},
		{Appointment: &model.Appointment{Base: model.Base{ID: 1}}},
	}, nil)

	w := handlertest.Do(t, setup(svc, patient), http.MethodGet, "/appointments/history", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var history []model.AppointmentWithPrescription
	handlertest.Decode(t, w, &history)
	require.Len(t, history, 2)
	assert.Equal(t, int64(5), history[0].Prescription.ID)
	assert.Nil(t, history[1].Prescription)
}
