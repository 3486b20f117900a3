package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/app"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/config"
	appointmentHandler "github.com/its-ayanshaikh/telemedicine-backend/internal/handler/appointment"
	approvalHandler "github.com/its-ayanshaikh/telemedicine-backend/internal/handler/approval"
	authHandler "github.com/its-ayanshaikh/telemedicine-backend/internal/handler/auth"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler/health"
	prescriptionHandler "github.com/its-ayanshaikh/telemedicine-backend/internal/handler/prescription"
	promhandler "github.com/its-ayanshaikh/telemedicine-backend/internal/handler/prometheus"
	scheduleHandler "github.com/its-ayanshaikh/telemedicine-backend/internal/handler/schedule"
	userHandler "github.com/its-ayanshaikh/telemedicine-backend/internal/handler/user"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/middleware"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository/postgres"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/router"
	appointmentService "github.com/its-ayanshaikh/telemedicine-backend/internal/service/appointment"
	approvalService "github.com/its-ayanshaikh/telemedicine-backend/internal/service/approval"
	authService "github.com/its-ayanshaikh/telemedicine-backend/internal/service/auth"
	otpService "github.com/its-ayanshaikh/telemedicine-backend/internal/service/otp"
	prescriptionService "github.com/its-ayanshaikh/telemedicine-backend/internal/service/prescription"
	scheduleService "github.com/its-ayanshaikh/telemedicine-backend/internal/service/schedule"
	userService "github.com/its-ayanshaikh/telemedicine-backend/internal/service/user"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/auth"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/blobstore"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/security"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/validator"
)

const metricsNamespace = "telemed"

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "telemed-api",
		Short:         "SwasthLink telemedicine API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logg := app.NewLogger(cfg.Log, "api")
	gin.SetMode(gin.ReleaseMode)
	validator.Register()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		n, err := postgres.NewMigrator(db).Up(ctx)
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		logg.Info("migrations applied", "count", n)
	}

	kv, redisClient, err := app.NewKVStore(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	blobs, err := blobstore.NewLocalStore(cfg.Storage.Root, cfg.Storage.PublicURL)
	if err != nil {
		return fmt.Errorf("failed to open media storage: %w", err)
	}

	m := metrics.NewMetrics(metricsNamespace, prometheus.DefaultRegisterer)

	// Repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	scheduleRepo := postgres.NewScheduleRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	prescriptionRepo := postgres.NewPrescriptionRepository(base)

	// Services
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	otpSvc := otpService.NewService(kv, app.NewSMSSender(cfg.Providers.Twilio, logg), otpService.Config{
		TTL:         cfg.OTP.TTL,
		CountryCode: cfg.OTP.CountryCode,
	}, logg, m)
	authSvc := authService.NewService(userRepo, otpSvc, jwtSvc, hasher, kv, logg)
	userSvc := userService.NewService(userRepo, blobs, hasher, logg)
	approvalSvc := approvalService.NewService(userRepo, logg, m)
	scheduleSvc := scheduleService.NewService(scheduleRepo, appointmentRepo, userRepo, logg)
	appointmentSvc := appointmentService.NewService(appointmentRepo, prescriptionRepo, userRepo,
		app.NewPaymentGateway(cfg.Providers.Razorpay, logg), blobs,
		appointmentService.Config{MeetingBaseURL: cfg.Meeting.BaseURL}, logg, m)
	prescriptionSvc := prescriptionService.NewService(prescriptionRepo, appointmentRepo, userRepo, logg)

	checks := map[string]health.Pinger{"database": health.PingFunc(db.PingContext), "kvstore": kv}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Server.CORSOrigins
	sizeLimit := middleware.DefaultSizeLimitConfig()
	sizeLimit.MaxUploadSize = cfg.Server.MaxUploadBytes()

	r := router.NewRouter(router.Config{
		CORS:           cors,
		Security:       middleware.DefaultSecurityConfig(),
		SizeLimit:      sizeLimit,
		RateLimit:      middleware.RateLimiterConfig{Rate: rate.Limit(cfg.RateLimit.RPS), Burst: cfg.RateLimit.Burst},
		AuthRateLimit:  middleware.RateLimiterConfig{Rate: rate.Limit(cfg.RateLimit.AuthRPS), Burst: cfg.RateLimit.AuthBurst},
		MediaRoot:      cfg.Storage.Root,
		MediaURL:       cfg.Storage.PublicURL,
		DirectoryRoles: userService.DirectoryRoles,
	}, middleware.NewAuthMiddleware(jwtSvc, authSvc), m, router.Handlers{
		Auth:         authHandler.NewHandler(authSvc),
		User:         userHandler.NewHandler(userSvc),
		Approval:     approvalHandler.NewHandler(approvalSvc),
		Schedule:     scheduleHandler.NewHandler(scheduleSvc),
		Appointment:  appointmentHandler.NewHandler(appointmentSvc),
		Prescription: prescriptionHandler.NewHandler(prescriptionSvc),
		Health:       health.NewHandler(checks),
		Metrics:      promhandler.New(prometheus.DefaultGatherer),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logg.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logg.Info("server exited properly")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
				for _, s := range statuses {
					applied := "pending"
					if s.AppliedAt != nil {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%03d\t%s\t%s\n", s.Version, s.Name, applied)
				}
				return w.Flush()
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *postgres.Migrator) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.NewLogger(cfg.Log, "migrate")

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, postgres.NewMigrator(db))
}
