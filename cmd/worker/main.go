package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/app"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/config"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler/health"
	promhandler "github.com/its-ayanshaikh/telemedicine-backend/internal/handler/prometheus"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/middleware"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository/postgres"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/service/notification"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/messaging"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/messaging/redis"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/worker"
)

func main() {
	var configPath string
	root := &cobra.Command{
		Use:          "telemed-worker",
		Short:        "Delivers outbox events and sends approval emails",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logg := app.NewLogger(cfg.Log, "worker")

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	checks := map[string]health.Pinger{"database": health.PingFunc(db.PingContext)}

	var broker messaging.Broker
	kv, redisClient, err := app.NewKVStore(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		broker = redis.NewRedisBroker(redisClient, logg.Zerolog())
		checks["redis"] = kv
	} else {
		logg.Warn("no broker configured, events are handled locally only")
	}

	m := metrics.NewMetrics("telemed", prometheus.DefaultRegisterer)
	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)

	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		Channel:      cfg.Outbox.Channel,
	}, logg, m)
	if err != nil {
		return fmt.Errorf("failed to create outbox processor: %w", err)
	}

	notifier := notification.NewService(postgres.NewUserRepository(base),
		app.NewMailer(cfg.Providers.SMTP, logg), cfg.Providers.SMTP.SupportEmail, logg)
	notifier.Register(processor)

	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.RetentionDays, cfg.Outbox.CleanupInterval, logg)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine)
	promhandler.New(prometheus.DefaultGatherer).RegisterRoutes(engine)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.HealthPort), Handler: engine}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	go func() {
		logg.Info("health server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(err, "health server failed")
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error(err, "health server shutdown failed")
	}
	wg.Wait()
	logg.Info("worker stopped")
	return nil
}
