package router

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler/appointment"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler/approval"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler/auth"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler/health"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler/prescription"
	promhandler "github.com/its-ayanshaikh/telemedicine-backend/internal/handler/prometheus"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler/schedule"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler/user"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/middleware"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
)

const APIVersion = "1.0"

type Config struct {
	CORS          middleware.CORSConfig
	Security      middleware.SecurityConfig
	SizeLimit     middleware.SizeLimitConfig
	RateLimit     middleware.RateLimiterConfig
	AuthRateLimit middleware.RateLimiterConfig

	// MediaRoot is served under MediaURL when MediaURL is a local path.
	MediaRoot string
	MediaURL  string

	// DirectoryRoles may list doctors.
	DirectoryRoles []model.Role
}

type Handlers struct {
	Auth         *auth.Handler
	User         *user.Handler
	Approval     *approval.Handler
	Schedule     *schedule.Handler
	Appointment  *appointment.Handler
	Prescription *prescription.Handler
	Health       *health.Handler
	Metrics      *promhandler.Handler
}

type Router struct {
	engine   *gin.Engine
	config   Config
	auth     *middleware.AuthMiddleware
	handlers Handlers
}

func NewRouter(config Config, auth *middleware.AuthMiddleware, m *metrics.Metrics, handlers Handlers) *Router {
	engine := gin.New()
	if config.SizeLimit.MaxUploadSize > 0 {
		engine.MaxMultipartMemory = config.SizeLimit.MaxUploadSize
	}
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORS),
		middleware.SizeLimit(config.SizeLimit),
		middleware.NewRateLimiter(config.RateLimit).RateLimit(),
	)

	return &Router{
		engine:   engine,
		config:   config,
		auth:     auth,
		handlers: handlers,
	}
}

// Setup mounts every route. It must be called once before serving.
func (r *Router) Setup() *gin.Engine {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}
	if r.handlers.Metrics != nil {
		r.handlers.Metrics.RegisterRoutes(r.engine)
	}
	if strings.HasPrefix(r.config.MediaURL, "/") && r.config.MediaRoot != "" {
		r.engine.Static(r.config.MediaURL, r.config.MediaRoot)
	}

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", APIVersion)
		c.Next()
	})

	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(api)
	}

	authn := r.auth.Authenticate()
	authLimit := middleware.NewRateLimiter(r.config.AuthRateLimit).RateLimit()

	h := r.handlers
	h.Auth.RegisterRoutes(api, authn, authLimit)
	h.User.RegisterRoutes(api, authn, r.config.DirectoryRoles...)
	h.Approval.RegisterRoutes(api, authn)
	h.Schedule.RegisterRoutes(api, authn)
	h.Appointment.RegisterRoutes(api, authn)
	h.Prescription.RegisterRoutes(api, authn)

	return r.engine
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
