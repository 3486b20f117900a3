package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/service/otp"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/auth"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/kvstore"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/security"
)

// OTPGate is the part of the OTP service login depends on.
type OTPGate interface {
	Issue(ctx context.Context, userID int64, mobile string) (string, error)
	Verify(ctx context.Context, userID int64, code string) error
	Revoke(ctx context.Context, userID int64) error
}

type Service struct {
	userRepo repository.UserRepository
	otp      OTPGate
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	denylist kvstore.Store
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(userRepo repository.UserRepository, gate OTPGate, jwtSvc auth.JWTService,
	hasher security.PasswordHasher, denylist kvstore.Store, logger *logger.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		otp:      gate,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		denylist: denylist,
		logger:   logger.With("auth"),
		now:      time.Now,
	}
}

// Login checks the account and, for password logins, the password, then
// sends an OTP. The approval state is checked before the password.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.LoginChallenge, error) {
	mobile := strings.TrimSpace(req.MobileNumber)
	if mobile == "" {
		return nil, apperrors.Validation("Mobile number is required",
			map[string]string{"mobile_number": "This field is required."})
	}

	user, err := s.userRepo.GetByMobile(ctx, mobile)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if req.Password != "" && !user.Role.AllowsPasswordLogin() {
		return nil, apperrors.BadRequest("Password login not allowed for this user role", nil)
	}
	if err := checkApproval(user); err != nil {
		return nil, err
	}
	if req.Password != "" {
		if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
			return nil, apperrors.Unauthorized("Invalid password", nil)
		}
	}

	if _, err := s.otp.Issue(ctx, user.ID, user.MobileNumber); err != nil {
		if errors.Is(err, otp.ErrDelivery) {
			return nil, apperrors.Upstream("sms", err)
		}
		return nil, apperrors.Internal(err)
	}

	return &model.LoginChallenge{UserID: user.ID, Role: user.Role}, nil
}

func checkApproval(user *model.User) error {
	if !user.Role.RequiresApproval() {
		return nil
	}
	switch user.Status {
	case model.ApprovalPending:
		return apperrors.Forbidden("Your account is still pending approval")
	case model.ApprovalRejected:
		return apperrors.Forbidden("Your account registration was rejected")
	}
	return nil
}

// VerifyOTP completes a login and issues a token pair.
func (s *Service) VerifyOTP(ctx context.Context, req model.VerifyOTPRequest) (*model.LoginResponse, error) {
	if err := s.otp.Verify(ctx, req.UserID, req.OTP); err != nil {
		switch {
		case errors.Is(err, otp.ErrNotFound):
			return nil, apperrors.Unauthorized("OTP expired or not found", err)
		case errors.Is(err, otp.ErrMismatch):
			return nil, apperrors.Unauthorized("Invalid OTP", err)
		}
		return nil, apperrors.Internal(err)
	}

	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	tokens, err := s.generateTokens(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)

	return &model.LoginResponse{User: user.Summary(), Tokens: *tokens}, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new pair. The
// old refresh token is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token", err)
	}
	revoked, err := s.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if revoked {
		return nil, apperrors.Unauthorized("refresh token has been revoked", nil)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("invalid refresh token", err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := checkApproval(user); err != nil {
		return nil, err
	}

	tokens, err := s.generateTokens(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, apperrors.Internal(err)
	}
	return tokens, nil
}

// Logout revokes the caller's access token, the refresh token when given,
// and any OTP still pending for the user.
func (s *Service) Logout(ctx context.Context, principal model.Principal, refreshToken string) error {
	if err := s.revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
		return apperrors.Internal(err)
	}
	if refreshToken != "" {
		claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
		if err == nil && claims.UserID == principal.UserID {
			if err := s.revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
				return apperrors.Internal(err)
			}
		}
	}
	if err := s.otp.Revoke(ctx, principal.UserID); err != nil {
		s.logger.Error(err, "failed to revoke otp on logout", "user_id", principal.UserID)
	}
	return nil
}

func denylistKey(tokenID string) string {
	return "revoked:" + tokenID
}

func (s *Service) revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	if err := s.denylist.Set(ctx, denylistKey(tokenID), "1", ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id was revoked by a logout or refresh.
func (s *Service) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := s.denylist.Get(ctx, denylistKey(tokenID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token denylist: %w", err)
	}
	return true, nil
}

func (s *Service) generateTokens(user *model.User) (*model.TokenResponse, error) {
	sub := auth.Subject{UserID: user.ID, Role: string(user.Role)}

	access, _, err := s.jwtSvc.GenerateAccessToken(sub)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.jwtSvc.GenerateRefreshToken(sub)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{AccessToken: access, RefreshToken: refresh}, nil
}

// Profile returns the caller's profile.
func (s *Service) Profile(ctx context.Context, userID int64) (*model.Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	p := user.Profile()
	return &p, nil
}
