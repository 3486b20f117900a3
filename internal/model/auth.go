package model

import (
	"time"
)

type LoginRequest struct {
	MobileNumber string `json:"mobile_number" binding:"required"`
	Password     string `json:"password"`
}

// LoginChallenge is returned once an OTP has been sent.
type LoginChallenge struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

type VerifyOTPRequest struct {
	UserID int64  `json:"user_id" binding:"required,gt=0"`
	OTP    string `json:"otp" binding:"required,len=6,numeric"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

type LoginResponse struct {
	User   UserSummary   `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID    int64
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}
