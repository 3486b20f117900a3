// Package app builds the dependencies shared by the API and worker
// processes from a loaded config.
package app

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/config"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/email"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/kvstore"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/payment"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/sms"
)

// NewLogger builds the process logger and installs it globally so
// middleware using zerolog/log shares its level and output.
func NewLogger(cfg config.LogConfig, service string) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Level),
		Pretty: cfg.Pretty,
		Output: os.Stdout,
	}).WithFields(map[string]interface{}{"service": service})
	l.SetGlobal()
	return l
}

// NewKVStore connects to Redis when a URL is configured and otherwise
// returns the in-process store. The client is nil in the second case.
func NewKVStore(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (kvstore.Store, *redis.Client, error) {
	if cfg.URL == "" {
		log.Warn("redis not configured, using in-memory store")
		return kvstore.NewMemoryStore(time.Minute), nil, nil
	}

	client, err := kvstore.NewRedisClient(ctx, kvstore.RedisConfig{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return kvstore.NewRedisStore(client), client, nil
}

// NewSMSSender returns the Twilio client, or a sender that only logs when
// no credentials are set.
func NewSMSSender(cfg config.TwilioConfig, log *logger.Logger) sms.Sender {
	if !cfg.Enabled() {
		log.Warn("twilio not configured, OTP messages will only be logged")
		return sms.LogSender{Logger: log.Zerolog()}
	}
	return sms.NewTwilioClient(sms.TwilioConfig{
		AccountSID: cfg.AccountSID,
		AuthToken:  cfg.AuthToken,
		From:       cfg.From,
	})
}

// NewMailer mirrors NewSMSSender for SMTP.
func NewMailer(cfg config.SMTPConfig, log *logger.Logger) email.Service {
	if !cfg.Enabled() {
		log.Warn("smtp not configured, emails will only be logged")
		return email.LogService{Logger: log.Zerolog()}
	}
	return email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

func NewPaymentGateway(cfg config.RazorpayConfig, log *logger.Logger) payment.Gateway {
	if !cfg.Enabled() {
		log.Warn("razorpay not configured, order creation will fail")
	}
	return payment.NewRazorpayClient(payment.RazorpayConfig{
		KeyID:     cfg.KeyID,
		KeySecret: cfg.KeySecret,
	})
}
