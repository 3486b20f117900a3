package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/auth"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type denylist struct {
	revoked map[string]bool
	err     error
}

func (d denylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	return d.revoked[tokenID], d.err
}

func newJWT() auth.JWTService {
	return auth.NewJWTService(auth.Config{
		Secret:     "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 2 * time.Hour,
	})
}

func protectedEngine(m *AuthMiddleware, roles ...model.Role) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{m.Authenticate()}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "role": p.Role})
	})
	r.GET("/me", handlers...)
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	jwtSvc := newJWT()
	access, claims, err := jwtSvc.GenerateAccessToken(auth.Subject{UserID: 7, Role: "doctor"})
	require.NoError(t, err)
	refresh, _, err := jwtSvc.GenerateRefreshToken(auth.Subject{UserID: 7, Role: "doctor"})
	require.NoError(t, err)

	t.Run("missing header", func(t *testing.T) {
		w := get(protectedEngine(NewAuthMiddleware(jwtSvc, denylist{})), "/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Authentication credentials were not provided")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		r := protectedEngine(NewAuthMiddleware(jwtSvc, denylist{}))
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Token "+access)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		w := get(protectedEngine(NewAuthMiddleware(jwtSvc, denylist{})), "/me", refresh)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked", func(t *testing.T) {
		m := NewAuthMiddleware(jwtSvc, denylist{revoked: map[string]bool{claims.ID: true}})
		w := get(protectedEngine(m), "/me", access)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "revoked")
	})

	t.Run("denylist unavailable", func(t *testing.T) {
		m := NewAuthMiddleware(jwtSvc, denylist{err: errors.New("redis down")})
		w := get(protectedEngine(m), "/me", access)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("valid", func(t *testing.T) {
		w := get(protectedEngine(NewAuthMiddleware(jwtSvc, denylist{})), "/me", access)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":7,"role":"doctor"}`, w.Body.String())
	})
}

func TestRequireRoles(t *testing.T) {
	jwtSvc := newJWT()
	patient, _, err := jwtSvc.GenerateAccessToken(auth.Subject{UserID: 3, Role: "patient"})
	require.NoError(t, err)
	admin, _, err := jwtSvc.GenerateAccessToken(auth.Subject{UserID: 1, Role: "admin"})
	require.NoError(t, err)

	r := protectedEngine(NewAuthMiddleware(jwtSvc, denylist{}), model.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, get(r, "/me", patient).Code)
	assert.Equal(t, http.StatusOK, get(r, "/me", admin).Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	r := gin.New()
	r.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := get(r, "/", "")
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
	assert.Equal(t, w.Header().Get(HeaderXRequestID), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := get(r, "/", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestCORS(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://app.swasthlink.com"}
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.swasthlink.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.swasthlink.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(SizeLimitConfig{MaxBodySize: 8, MaxUploadSize: 64}))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"0123456789"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"0123456789"}`))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics(t *testing.T) {
	m := metrics.NewNop()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/doctors/:id/slots", func(c *gin.Context) { c.Status(http.StatusOK) })

	get(r, "/doctors/7/slots", "")
	get(r, "/doctors/9/slots", "")

	// both requests land on the route template series
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/doctors/:id/slots", "200")))
}
