package prescription

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/middleware"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/httputil"
)

type Service interface {
	UpsertByDoctorLink(ctx context.Context, req model.DoctorLinkPrescriptionRequest) (*model.UpsertResult, error)
	GetByDoctorLink(ctx context.Context, link string) (*model.Prescription, error)
	GetByID(ctx context.Context, caller model.Principal, id int64) (*model.Prescription, error)
	Replace(ctx context.Context, caller model.Principal, id int64, content model.PrescriptionContent) (*model.Prescription, error)
	ListForPair(ctx context.Context, caller model.Principal, doctorID, patientID int64) ([]*model.Prescription, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the prescription endpoints. The doctor-link pair
// is reachable from inside a call without a token.
func (h *Handler) RegisterRoutes(r gin.IRouter, authn gin.HandlerFunc) {
	byLink := r.Group("/prescriptions/by-doctor-link")
	{
		byLink.POST("", h.UpsertByDoctorLink)
		byLink.GET("", h.GetByDoctorLink)
	}

	prescriptions := r.Group("/prescriptions", authn)
	{
		prescriptions.GET("/:id", h.GetByID)
		prescriptions.PUT("/:id", middleware.RequireRoles(model.RoleDoctor), h.Replace)
	}

	r.GET("/doctors/:id/patients/:patient_id/prescriptions", authn,
		middleware.RequireRoles(model.RoleDoctor, model.RoleAdmin), h.ListForPair)
}

func (h *Handler) UpsertByDoctorLink(c *gin.Context) {
	var req model.DoctorLinkPrescriptionRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.svc.UpsertByDoctorLink(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if result.Created {
		httputil.RespondWithCreated(c, "Prescription created successfully", result)
		return
	}
	httputil.RespondWithSuccess(c, "Prescription updated successfully", result)
}

// GetByDoctorLink reads ?link=, falling back to ?doctor_link=.
func (h *Handler) GetByDoctorLink(c *gin.Context) {
	link := c.Query("link")
	if link == "" {
		link = c.Query("doctor_link")
	}

	p, err := h.svc.GetByDoctorLink(c.Request.Context(), link)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Prescription fetched successfully", p)
}

func (h *Handler) GetByID(c *gin.Context) {
	caller, ok := handler.Principal(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetByID(c.Request.Context(), caller, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Prescription fetched successfully", p)
}

func (h *Handler) Replace(c *gin.Context) {
	caller, ok := handler.Principal(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var content model.PrescriptionContent
	if !handler.BindJSON(c, &content) {
		return
	}

	p, err := h.svc.Replace(c.Request.Context(), caller, id, content)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Prescription updated successfully", p)
}

func (h *Handler) ListForPair(c *gin.Context) {
	caller, ok := handler.Principal(c)
	if !ok {
		return
	}
	doctorID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	patientID, ok := handler.ParamID(c, "patient_id")
	if !ok {
		return
	}

	list, err := h.svc.ListForPair(c.Request.Context(), caller, doctorID, patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Prescriptions fetched successfully", gin.H{
		"count":         len(list),
		"prescriptions": list,
	})
}
