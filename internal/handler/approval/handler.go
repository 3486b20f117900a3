package approval

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/middleware"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/httputil"
)

type Service interface {
	Decide(ctx context.Context, adminID, userID int64, status model.ApprovalStatus) (*model.ApprovalDecision, error)
	ListPending(ctx context.Context, role *model.Role) ([]*model.User, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the admin console endpoints.
func (h *Handler) RegisterRoutes(r gin.IRouter, authn gin.HandlerFunc) {
	admin := r.Group("/admin", authn, middleware.RequireRoles(model.RoleAdmin))
	{
		admin.GET("/approvals", h.ListPending)
		admin.PUT("/users/:id/approval", h.Decide)
	}
}

// ListPending accepts an optional ?role= filter.
func (h *Handler) ListPending(c *gin.Context) {
	var role *model.Role
	if raw := c.Query("role"); raw != "" {
		r := model.Role(raw)
		role = &r
	}

	users, err := h.svc.ListPending(c.Request.Context(), role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Pending approvals fetched successfully", users)
}

func (h *Handler) Decide(c *gin.Context) {
	admin, ok := handler.Principal(c)
	if !ok {
		return
	}
	userID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.ApprovalRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	decision, err := h.svc.Decide(c.Request.Context(), admin.UserID, userID, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Approval status updated", decision)
}
