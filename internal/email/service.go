package email

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/its-ayanshaikh/telemedicine-backend/pkg/circuitbreaker"
)

// Service sends HTML email.
type Service interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// dialer is the part of gomail.Dialer used here.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	from   string
	dialer dialer
	cb     *circuitbreaker.CircuitBreaker
}

func NewSMTPService(cfg SMTPConfig) Service {
	return newSMTPService(cfg.From, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password))
}

func newSMTPService(from string, d dialer) *smtpService {
	return &smtpService{
		from:   from,
		dialer: d,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:     "smtp",
			Failures: 5,
			Timeout:  time.Minute,
		}),
	}
}

func (s *smtpService) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.cb.Execute(func() error { return s.dialer.DialAndSend(m) }); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// LogService logs messages instead of sending them; used when SMTP is not
// configured.
type LogService struct {
	Logger zerolog.Logger
}

func (s LogService) Send(_ context.Context, to, subject, _ string) error {
	s.Logger.Warn().Str("to", to).Str("subject", subject).Msg("smtp not configured, email logged only")
	return nil
}
