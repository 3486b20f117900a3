package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/httputil"
)

type Service interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginChallenge, error)
	VerifyOTP(ctx context.Context, req model.VerifyOTPRequest) (*model.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error)
	Logout(ctx context.Context, principal model.Principal, refreshToken string) error
	Profile(ctx context.Context, userID int64) (*model.Profile, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /auth. limit guards the OTP endpoints and authn
// protects the session endpoints.
func (h *Handler) RegisterRoutes(r gin.IRouter, authn, limit gin.HandlerFunc) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", limit, h.Login)
		auth.POST("/verify-otp", limit, h.VerifyOTP)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", authn, h.Logout)
		auth.GET("/profile", authn, h.Profile)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	challenge, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "OTP sent to registered number", challenge)
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req model.VerifyOTPRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.VerifyOTP(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Login successful", resp)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req model.RefreshTokenRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Token refreshed", tokens)
}

// Logout accepts an optional {"refresh_token": ...} body so the refresh
// token can be revoked together with the access token.
func (h *Handler) Logout(c *gin.Context) {
	principal, ok := handler.Principal(c)
	if !ok {
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.Logout(c.Request.Context(), principal, req.RefreshToken); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Logout successful", nil)
}

func (h *Handler) Profile(c *gin.Context) {
	principal, ok := handler.Principal(c)
	if !ok {
		return
	}

	profile, err := h.svc.Profile(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Profile fetched successfully", profile)
}
