package appointment

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/middleware"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/httputil"
)

const transcriptionField = "transcription_file"

type Service interface {
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error)
	VerifyAndBook(ctx context.Context, patientID int64, req model.BookAppointmentRequest) (*model.Appointment, error)
	List(ctx context.Context, caller model.Principal, status string) ([]*model.Appointment, error)
	Complete(ctx context.Context, link string, transcription *multipart.FileHeader) (*model.CompletionResult, error)
	Cancel(ctx context.Context, caller model.Principal, id int64) (*model.Appointment, error)
	DoctorPatients(ctx context.Context, caller model.Principal, doctorID int64) ([]*model.PatientSummary, error)
	PatientHistory(ctx context.Context, patientID int64) ([]model.AppointmentWithPrescription, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts payments and appointments. Completion is
// authorized by possession of the meeting link, not by a token.
func (h *Handler) RegisterRoutes(r gin.IRouter, authn gin.HandlerFunc) {
	patientOnly := middleware.RequireRoles(model.RolePatient)

	payments := r.Group("/payments", authn)
	{
		payments.POST("/orders", h.CreateOrder)
		payments.POST("/verify", patientOnly, h.VerifyAndBook)
	}

	r.POST("/appointments/complete", h.Complete)
	appointments := r.Group("/appointments", authn)
	{
		appointments.GET("", h.List)
		appointments.GET("/history", patientOnly, h.PatientHistory)
		appointments.POST("/:id/cancel", h.Cancel)
	}

	r.GET("/doctors/:id/patients", authn, middleware.RequireRoles(model.RoleDoctor, model.RoleAdmin), h.DoctorPatients)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req model.CreateOrderRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, "Order created successfully", order)
}

func (h *Handler) VerifyAndBook(c *gin.Context) {
	patient, ok := handler.Principal(c)
	if !ok {
		return
	}

	var req model.BookAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	appointment, err := h.svc.VerifyAndBook(c.Request.Context(), patient.UserID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, "Appointment booked successfully", appointment)
}

// List accepts ?status=upcoming|completed|cancelled|all.
func (h *Handler) List(c *gin.Context) {
	caller, ok := handler.Principal(c)
	if !ok {
		return
	}

	appointments, err := h.svc.List(c.Request.Context(), caller, c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointments fetched successfully", appointments)
}

// Complete takes a multipart form with "link" and an optional
// "transcription_file".
func (h *Handler) Complete(c *gin.Context) {
	link := c.PostForm("link")

	file, err := c.FormFile(transcriptionField)
	switch {
	case err == nil:
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		file = nil
	default:
		httputil.RespondWithError(c, apperrors.BadRequest("Could not read uploaded file", err))
		return
	}

	result, err := h.svc.Complete(c.Request.Context(), link, file)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Transcription uploaded & appointment completed", result)
}

func (h *Handler) Cancel(c *gin.Context) {
	caller, ok := handler.Principal(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	appointment, err := h.svc.Cancel(c.Request.Context(), caller, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointment cancelled", appointment)
}

func (h *Handler) DoctorPatients(c *gin.Context) {
	caller, ok := handler.Principal(c)
	if !ok {
		return
	}
	doctorID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	patients, err := h.svc.DoctorPatients(c.Request.Context(), caller, doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Patients fetched successfully", gin.H{
		"total_patients": len(patients),
		"patients":       patients,
	})
}

func (h *Handler) PatientHistory(c *gin.Context) {
	patient, ok := handler.Principal(c)
	if !ok {
		return
	}

	history, err := h.svc.PatientHistory(c.Request.Context(), patient.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointments fetched successfully", history)
}
