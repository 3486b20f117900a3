package schedule

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/middleware"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, doctorID int64, req model.CreateScheduleRequest) ([]*model.AvailabilityWindow, error)
	List(ctx context.Context, doctorID int64) ([]*model.AvailabilityWindow, error)
	Update(ctx context.Context, doctorID, windowID int64, patch model.WindowPatch) (*model.AvailabilityWindow, error)
	Slots(ctx context.Context, doctorID int64) ([]model.DaySlots, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, authn gin.HandlerFunc) {
	own := r.Group("/doctor/schedules", authn, middleware.RequireRoles(model.RoleDoctor))
	{
		own.POST("", h.Create)
		own.GET("", h.List)
		own.PUT("/:id", h.Update)
	}

	r.GET("/doctors/:id/slots", authn, h.Slots)
}

// Create accepts {"type":"day",...} for one date or {"type":"weekly","days":[...]}.
func (h *Handler) Create(c *gin.Context) {
	doctor, ok := handler.Principal(c)
	if !ok {
		return
	}

	var req model.CreateScheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	windows, err := h.svc.Create(c.Request.Context(), doctor.UserID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, "Schedule created successfully", windows)
}

func (h *Handler) List(c *gin.Context) {
	doctor, ok := handler.Principal(c)
	if !ok {
		return
	}

	windows, err := h.svc.List(c.Request.Context(), doctor.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Schedule fetched successfully", windows)
}

func (h *Handler) Update(c *gin.Context) {
	doctor, ok := handler.Principal(c)
	if !ok {
		return
	}
	windowID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var patch model.WindowPatch
	if !handler.BindJSON(c, &patch) {
		return
	}

	window, err := h.svc.Update(c.Request.Context(), doctor.UserID, windowID, patch)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Schedule updated successfully", window)
}

func (h *Handler) Slots(c *gin.Context) {
	doctorID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	days, err := h.svc.Slots(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Doctor available slots fetched successfully", days)
}
