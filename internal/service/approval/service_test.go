package approval

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository/mocks"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
)

func setup(user *model.User) (*Service, *mocks.UserRepository, *metrics.Metrics) {
	repo := &mocks.UserRepository{}
	if user != nil {
		repo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	}
	m := metrics.NewNop()
	return NewService(repo, logger.Nop(), m), repo, m
}

func TestDecide_ApproveWritesEvent(t *testing.T) {
	svc, repo, m := setup(&model.User{Base: model.Base{ID: 8}, Role: model.RoleDoctor, Status: model.ApprovalPending})

	var captured *model.OutboxEvent
	repo.On("UpdateStatus", mock.Anything, int64(8), model.ApprovalApproved, mock.AnythingOfType("*model.OutboxEvent")).
		Run(func(args mock.Arguments) { captured = args.Get(3).(*model.OutboxEvent) }).
		Return(nil)

	decision, err := svc.Decide(context.Background(), 1, 8, model.ApprovalApproved)
	require.NoError(t, err)
	assert.Equal(t, &model.ApprovalDecision{
		UserID: 8,
		Role:   model.RoleDoctor,
		From:   model.ApprovalPending,
		To:     model.ApprovalApproved,
		Notify: true,
	}, decision)

	require.NotNil(t, captured)
	assert.Equal(t, model.EventApprovalDecided, captured.EventType)
	var payload model.ApprovalDecidedPayload
	require.NoError(t, json.Unmarshal(captured.Payload, &payload))
	assert.Equal(t, int64(8), payload.UserID)
	assert.Equal(t, model.ApprovalApproved, payload.To)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ApprovalDecision.WithLabelValues("approved")))
}

func TestDecide_BackToPendingHasNoEvent(t *testing.T) {
	svc, repo, _ := setup(&model.User{Base: model.Base{ID: 8}, Role: model.RoleHospital, Status: model.ApprovalRejected})
	repo.On("UpdateStatus", mock.Anything, int64(8), model.ApprovalPending, (*model.OutboxEvent)(nil)).Return(nil)

	decision, err := svc.Decide(context.Background(), 1, 8, model.ApprovalPending)
	require.NoError(t, err)
	assert.False(t, decision.Notify)
	repo.AssertExpectations(t)
}

func TestDecide_SameStatusIsNoop(t *testing.T) {
	svc, repo, _ := setup(&model.User{Base: model.Base{ID: 8}, Role: model.RoleDoctor, Status: model.ApprovalApproved})

	decision, err := svc.Decide(context.Background(), 1, 8, model.ApprovalApproved)
	require.NoError(t, err)
	assert.False(t, decision.Notify)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDecide_Errors(t *testing.T) {
	t.Run("patient", func(t *testing.T) {
		svc, _, _ := setup(&model.User{Base: model.Base{ID: 2}, Role: model.RolePatient, Status: model.ApprovalApproved})
		_, err := svc.Decide(context.Background(), 1, 2, model.ApprovalRejected)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
	})
	t.Run("unknown status", func(t *testing.T) {
		svc, _, _ := setup(&model.User{Base: model.Base{ID: 2}, Role: model.RoleDoctor, Status: model.ApprovalPending})
		_, err := svc.Decide(context.Background(), 1, 2, model.ApprovalStatus("archived"))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
	})
	t.Run("missing user", func(t *testing.T) {
		svc, repo, _ := setup(nil)
		repo.On("GetByID", mock.Anything, int64(99)).Return(nil, repository.ErrNotFound)
		_, err := svc.Decide(context.Background(), 1, 99, model.ApprovalApproved)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	})
}

func TestListPending(t *testing.T) {
	svc, repo, _ := setup(nil)
	role := model.RoleDoctor
	pending := []*model.User{{Base: model.Base{ID: 4}, Role: model.RoleDoctor}}
	repo.On("ListByStatus", mock.Anything, model.ApprovalPending, &role).Return(pending, nil)

	got, err := svc.ListPending(context.Background(), &role)
	require.NoError(t, err)
	assert.Equal(t, pending, got)

	patient := model.RolePatient
	_, err = svc.ListPending(context.Background(), &patient)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
}
