// Package notification emails users about admin decisions. It runs in the
// worker as the handler of user.approval_decided outbox events.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/email"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/worker"
)

const defaultSupportEmail = "support@swasthlink.com"

type Service struct {
	users        repository.UserRepository
	mailer       email.Service
	supportEmail string
	logger       *logger.Logger
}

func NewService(users repository.UserRepository, mailer email.Service, supportEmail string, logger *logger.Logger) *Service {
	if supportEmail == "" {
		supportEmail = defaultSupportEmail
	}
	return &Service{
		users:        users,
		mailer:       mailer,
		supportEmail: supportEmail,
		logger:       logger.With("notification"),
	}
}

// Register installs the event handlers on the outbox processor.
func (s *Service) Register(p *worker.OutboxProcessor) {
	p.Register(model.EventApprovalDecided, s.HandleApprovalDecided)
}

// HandleApprovalDecided emails the user about an approval decision. Users
// without an email, and decisions that were overturned before delivery,
// are skipped. A send failure is returned so the event is retried.
func (s *Service) HandleApprovalDecided(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.ApprovalDecidedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", event.EventType, err)
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("decision for deleted user skipped", "user_id", payload.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", payload.UserID, err)
	}

	if user.Email == "" {
		s.logger.Info("no email on file, decision not sent", "user_id", user.ID)
		return nil
	}
	if user.Status != payload.To {
		s.logger.Info("decision superseded, not sent",
			"user_id", user.ID, "decided", payload.To, "current", user.Status)
		return nil
	}

	subject, body, ok, err := renderDecision(user, payload.To, s.supportEmail)
	if err != nil {
		return fmt.Errorf("failed to render decision email: %w", err)
	}
	if !ok {
		return nil
	}

	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return err
	}
	s.logger.Info("decision email sent", "user_id", user.ID, "status", payload.To)
	return nil
}
