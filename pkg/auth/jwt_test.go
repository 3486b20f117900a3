package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(now time.Time) *jwtService {
	svc := NewJWTService(Config{
		Secret:        "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "swasthlink",
	}).(*jwtService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(time.Now())

	token, issued, err := svc.GenerateAccessToken(Subject{UserID: 42, Role: "doctor"})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	svc := newTestService(time.Now())

	refresh, _, err := svc.GenerateRefreshToken(Subject{UserID: 7, Role: "patient"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(refresh)
	assert.Error(t, err)

	claims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
}

func TestExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	svc := newTestService(issuedAt)

	token, _, err := svc.GenerateAccessToken(Subject{UserID: 1, Role: "admin"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTamperedToken(t *testing.T) {
	svc := newTestService(time.Now())

	token, _, err := svc.GenerateAccessToken(Subject{UserID: 1, Role: "admin"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
