package sms

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Sender delivers a text message and returns the provider's delivery id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// NormalizeNumber prefixes numbers that carry no country code.
func NormalizeNumber(number, countryCode string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "+") || countryCode == "" {
		return number
	}
	return countryCode + number
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMS provider is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, to, body string) (string, error) {
	s.Logger.Warn().Str("to", to).Str("body", body).Msg("sms provider not configured, message logged only")
	return "log", nil
}
