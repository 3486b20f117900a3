package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
)

func TestOutboxRepository_ClaimPending(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewOutboxRepository(base)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs("PENDING", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "payload", "status", "error_message", "retry_count", "created_at", "updated_at", "processed_at"}).
			AddRow(id.String(), model.EventApprovalDecided, []byte(`{"user_id":5}`), "PENDING", nil, 1, now, now, nil))

	events, err := repo.GetPendingEventsWithLock(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.JSONEq(t, `{"user_id":5}`, string(events[0].Payload))
	assert.Equal(t, 1, events[0].RetryCount)
}

func TestOutboxRepository_MarkFailed(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewOutboxRepository(base)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("SET retry_count = retry_count + 1")).
		WithArgs("smtp down", 3, "FAILED", id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), id, "smtp down", 3))
}

func TestOutboxRepository_MarkProcessedMissing(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewOutboxRepository(base)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.MarkProcessed(context.Background(), uuid.New()), repository.ErrNotFound)
}
