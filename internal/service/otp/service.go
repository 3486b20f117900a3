// Package otp issues and verifies single-use login codes. Codes live in
// the key-value store under otp:{user_id}; their expiry is the store's TTL.
package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/its-ayanshaikh/telemedicine-backend/pkg/kvstore"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/security"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/sms"
)

var (
	// ErrNotFound means no code is stored: never issued, expired or used.
	ErrNotFound = errors.New("otp expired or not found")
	// ErrMismatch means a code is pending but differs from the one given.
	ErrMismatch = errors.New("invalid otp")
	// ErrDelivery wraps SMS provider failures.
	ErrDelivery = errors.New("otp delivery failed")
)

const (
	codeMin = 100000
	codeMax = 999999
)

type Config struct {
	TTL         time.Duration
	CountryCode string
}

type Service struct {
	store    kvstore.Store
	sender   sms.Sender
	cfg      Config
	generate func() (string, error)
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(store kvstore.Store, sender sms.Sender, cfg Config, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		sender:   sender,
		cfg:      cfg,
		generate: generateCode,
		logger:   logger.With("otp"),
		metrics:  metrics,
	}
}

func generateCode() (string, error) {
	n, err := security.RandomIntRange(codeMin, codeMax)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

func key(userID int64) string {
	return fmt.Sprintf("otp:%d", userID)
}

// Issue stores a new code for userID, replacing any pending one, and texts
// it to mobile. If the text cannot be sent the code is revoked again.
func (s *Service) Issue(ctx context.Context, userID int64, mobile string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	if err := s.store.Set(ctx, key(userID), code, s.cfg.TTL); err != nil {
		return "", fmt.Errorf("failed to store otp: %w", err)
	}

	to := sms.NormalizeNumber(mobile, s.cfg.CountryCode)
	sid, err := s.sender.Send(ctx, to, fmt.Sprintf("Your login OTP is %s", code))
	if err != nil {
		if revokeErr := s.Revoke(ctx, userID); revokeErr != nil {
			s.logger.Error(revokeErr, "failed to revoke undelivered otp", "user_id", userID)
		}
		return "", fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	s.metrics.OTPIssued.Inc()
	s.logger.Info("otp issued", "user_id", userID, "sid", sid)
	return code, nil
}

// Verify consumes the pending code for userID if it equals code. The
// compare and the delete are one store operation, so concurrent callers
// cannot both succeed with the same code. A wrong code leaves it pending.
func (s *Service) Verify(ctx context.Context, userID int64, code string) error {
	consumed, err := s.store.DeleteIfEqual(ctx, key(userID), code)
	if errors.Is(err, kvstore.ErrNotFound) {
		s.metrics.OTPVerifications.WithLabelValues("not_found").Inc()
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to consume otp: %w", err)
	}
	if !consumed {
		s.metrics.OTPVerifications.WithLabelValues("mismatch").Inc()
		return ErrMismatch
	}

	s.metrics.OTPVerifications.WithLabelValues("success").Inc()
	return nil
}

// Revoke drops any pending code for userID.
func (s *Service) Revoke(ctx context.Context, userID int64) error {
	if err := s.store.Delete(ctx, key(userID)); err != nil {
		return fmt.Errorf("failed to revoke otp: %w", err)
	}
	return nil
}
