// Package approval implements the admin decision on doctor and hospital
// accounts. A decision that should reach the user is recorded as an outbox
// event together with the status change; delivery happens in the worker.
package approval

import (
	"context"
	"errors"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
)

type Service struct {
	repo    repository.UserRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.UserRepository, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		logger:  logger.With("approval"),
		metrics: metrics,
	}
}

// Decide moves userID to status. Deciding the current status again is a
// no-op and produces no notification.
func (s *Service) Decide(ctx context.Context, adminID, userID int64, status model.ApprovalStatus) (*model.ApprovalDecision, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !user.Role.RequiresApproval() {
		return nil, apperrors.BadRequest("Only doctor and hospital accounts require approval", nil)
	}
	if err := user.Status.TransitionTo(status); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	decision := &model.ApprovalDecision{
		UserID: user.ID,
		Role:   user.Role,
		From:   user.Status,
		To:     status,
	}
	if decision.From == decision.To {
		return decision, nil
	}
	decision.Notify = decision.To.Notifiable()

	var event *model.OutboxEvent
	if decision.Notify {
		event, err = model.NewApprovalDecidedEvent(*decision)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
	}

	err = s.repo.UpdateStatus(ctx, user.ID, status, event)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.metrics.ApprovalDecision.WithLabelValues(string(status)).Inc()
	s.logger.Info("approval decided",
		"admin_id", adminID,
		"user_id", user.ID,
		"from", decision.From,
		"to", decision.To,
		"notify", decision.Notify,
	)
	return decision, nil
}

// ListPending returns accounts awaiting a decision, optionally for one role.
func (s *Service) ListPending(ctx context.Context, role *model.Role) ([]*model.User, error) {
	if role != nil && !role.RequiresApproval() {
		return nil, apperrors.BadRequest("Role is not subject to approval", nil)
	}
	users, err := s.repo.ListByStatus(ctx, model.ApprovalPending, role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return users, nil
}
