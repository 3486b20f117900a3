package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository/mocks"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/service/otp"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/auth"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/kvstore"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/security"
)

type mockGate struct {
	mock.Mock
}

func (m *mockGate) Issue(ctx context.Context, userID int64, mobile string) (string, error) {
	args := m.Called(ctx, userID, mobile)
	return args.String(0), args.Error(1)
}

func (m *mockGate) Verify(ctx context.Context, userID int64, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *mockGate) Revoke(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

type fixture struct {
	svc    *Service
	users  *mocks.UserRepository
	gate   *mockGate
	hasher security.PasswordHasher
	jwt    auth.JWTService
}

func newFixture() *fixture {
	f := &fixture{
		users:  &mocks.UserRepository{},
		gate:   &mockGate{},
		hasher: security.NewBcryptHasher(4),
		jwt: auth.NewJWTService(auth.Config{
			Secret:     "access-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
			Issuer:     "test",
		}),
	}
	f.svc = NewService(f.users, f.gate, f.jwt, f.hasher, kvstore.NewMemoryStore(time.Minute), logger.Nop())
	return f
}

func (f *fixture) doctor(status model.ApprovalStatus, password string) *model.User {
	hash, _ := f.hasher.Hash(password)
	return &model.User{
		Base:         model.Base{ID: 11},
		Role:         model.RoleDoctor,
		Status:       status,
		FirstName:    "Ravi",
		LastName:     "Kumar",
		MobileNumber: "9876543210",
		PasswordHash: hash,
	}
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode, msg string) {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	if msg != "" {
		assert.Equal(t, msg, appErr.Message)
	}
}

func TestLogin_MissingMobile(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Login(context.Background(), model.LoginRequest{MobileNumber: "  "})
	assertCode(t, err, apperrors.ErrValidation, "Mobile number is required")
}

func TestLogin_UnknownUser(t *testing.T) {
	f := newFixture()
	f.users.On("GetByMobile", mock.Anything, "9000000000").Return(nil, repository.ErrNotFound)

	_, err := f.svc.Login(context.Background(), model.LoginRequest{MobileNumber: "9000000000"})
	assertCode(t, err, apperrors.ErrNotFound, "user not found")
}

func TestLogin_PatientPasswordRejected(t *testing.T) {
	f := newFixture()
	f.users.On("GetByMobile", mock.Anything, "9000000000").
		Return(&model.User{Base: model.Base{ID: 2}, Role: model.RolePatient, Status: model.ApprovalApproved}, nil)

	_, err := f.svc.Login(context.Background(), model.LoginRequest{MobileNumber: "9000000000", Password: "x"})
	assertCode(t, err, apperrors.ErrValidation, "Password login not allowed for this user role")
}

func TestLogin_ApprovalCheckedBeforePassword(t *testing.T) {
	for _, tc := range []struct {
		status model.ApprovalStatus
		msg    string
	}{
		{model.ApprovalPending, "Your account is still pending approval"},
		{model.ApprovalRejected, "Your account registration was rejected"},
	} {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newFixture()
			f.users.On("GetByMobile", mock.Anything, "9876543210").Return(f.doctor(tc.status, "secret"), nil)

			_, err := f.svc.Login(context.Background(), model.LoginRequest{MobileNumber: "9876543210", Password: "wrong"})
			assertCode(t, err, apperrors.ErrForbidden, tc.msg)
			f.gate.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture()
	f.users.On("GetByMobile", mock.Anything, "9876543210").Return(f.doctor(model.ApprovalApproved, "secret"), nil)

	_, err := f.svc.Login(context.Background(), model.LoginRequest{MobileNumber: "9876543210", Password: "wrong"})
	assertCode(t, err, apperrors.ErrUnauthorized, "Invalid password")
	f.gate.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_IssuesOTP(t *testing.T) {
	f := newFixture()
	f.users.On("GetByMobile", mock.Anything, "9876543210").Return(f.doctor(model.ApprovalApproved, "ravikumar@123"), nil)
	f.gate.On("Issue", mock.Anything, int64(11), "9876543210").Return("123456", nil)

	challenge, err := f.svc.Login(context.Background(), model.LoginRequest{MobileNumber: "9876543210", Password: "ravikumar@123"})
	require.NoError(t, err)
	assert.Equal(t, &model.LoginChallenge{UserID: 11, Role: model.RoleDoctor}, challenge)
}

func TestLogin_SMSFailureIsUpstream(t *testing.T) {
	f := newFixture()
	f.users.On("GetByMobile", mock.Anything, "9876543210").
		Return(&model.User{Base: model.Base{ID: 4}, Role: model.RolePatient, MobileNumber: "9876543210"}, nil)
	f.gate.On("Issue", mock.Anything, int64(4), "9876543210").
		Return("", fmt.Errorf("%w: twilio 500", otp.ErrDelivery))

	_, err := f.svc.Login(context.Background(), model.LoginRequest{MobileNumber: "9876543210"})
	assertCode(t, err, apperrors.ErrUpstream, "")
}

func TestVerifyOTP_Failures(t *testing.T) {
	f := newFixture()
	f.gate.On("Verify", mock.Anything, int64(1), "000000").Return(otp.ErrNotFound)
	f.gate.On("Verify", mock.Anything, int64(2), "000000").Return(otp.ErrMismatch)

	_, err := f.svc.VerifyOTP(context.Background(), model.VerifyOTPRequest{UserID: 1, OTP: "000000"})
	assertCode(t, err, apperrors.ErrUnauthorized, "OTP expired or not found")

	_, err = f.svc.VerifyOTP(context.Background(), model.VerifyOTPRequest{UserID: 2, OTP: "000000"})
	assertCode(t, err, apperrors.ErrUnauthorized, "Invalid OTP")
}

func TestVerifyOTP_IssuesTokens(t *testing.T) {
	f := newFixture()
	user := f.doctor(model.ApprovalApproved, "x")
	f.gate.On("Verify", mock.Anything, int64(11), "482913").Return(nil)
	f.users.On("GetByID", mock.Anything, int64(11)).Return(user, nil)

	resp, err := f.svc.VerifyOTP(context.Background(), model.VerifyOTPRequest{UserID: 11, OTP: "482913"})
	require.NoError(t, err)
	assert.Equal(t, user.Summary(), resp.User)

	claims, err := f.jwt.ValidateToken(resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(11), claims.UserID)
	assert.Equal(t, "doctor", claims.Role)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.doctor(model.ApprovalApproved, "x")
	f.users.On("GetByID", mock.Anything, int64(11)).Return(user, nil)
	f.gate.On("Revoke", mock.Anything, int64(11)).Return(nil)

	refresh, _, err := f.jwt.GenerateRefreshToken(auth.Subject{UserID: 11, Role: "doctor"})
	require.NoError(t, err)

	pair, err := f.svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = f.svc.Refresh(ctx, refresh)
	assertCode(t, err, apperrors.ErrUnauthorized, "refresh token has been revoked")

	claims, err := f.jwt.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	principal := model.Principal{UserID: 11, Role: model.RoleDoctor, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}

	require.NoError(t, f.svc.Logout(ctx, principal, pair.RefreshToken))
	revoked, err := f.svc.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assertCode(t, err, apperrors.ErrUnauthorized, "refresh token has been revoked")
	f.gate.AssertCalled(t, "Revoke", mock.Anything, int64(11))
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newFixture()
	access, _, err := f.jwt.GenerateAccessToken(auth.Subject{UserID: 11, Role: "doctor"})
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), access)
	assertCode(t, err, apperrors.ErrUnauthorized, "invalid refresh token")
}

func TestProfile(t *testing.T) {
	f := newFixture()
	age := 34
	f.users.On("GetByID", mock.Anything, int64(3)).
		Return(&model.User{Base: model.Base{ID: 3}, FirstName: "Asha", Role: model.RolePatient, Age: &age, MobileNumber: "9"}, nil)
	f.users.On("GetByID", mock.Anything, int64(4)).Return(nil, repository.ErrNotFound)

	p, err := f.svc.Profile(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Asha", p.FirstName)
	assert.Equal(t, &age, p.Age)

	_, err = f.svc.Profile(context.Background(), 4)
	assertCode(t, err, apperrors.ErrNotFound, "")
}
