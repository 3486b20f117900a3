package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
)

const windowColumns = `id, doctor_id, date, day, start_time, end_time, is_off, reason, created_at, updated_at`

type scheduleRepository struct {
	BaseRepository
}

func NewScheduleRepository(base BaseRepository) repository.ScheduleRepository {
	return &scheduleRepository{base}
}

func (r *scheduleRepository) CreateBatch(ctx context.Context, windows []*model.AvailabilityWindow) error {
	query := `
		INSERT INTO availability_windows (doctor_id, date, day, start_time, end_time, is_off, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, w := range windows {
			err := tx.QueryRowxContext(ctx, query,
				w.DoctorID,
				w.Date,
				w.Day,
				w.StartTime,
				w.EndTime,
				w.IsOff,
				w.Reason,
			).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
			if err != nil {
				return mapError(fmt.Sprintf("create window for %s", w.Date), err)
			}
		}
		return nil
	})
}

func (r *scheduleRepository) Get(ctx context.Context, id int64) (*model.AvailabilityWindow, error) {
	var w model.AvailabilityWindow
	query := `SELECT ` + windowColumns + ` FROM availability_windows WHERE id = $1`
	if err := r.db.GetContext(ctx, &w, query, id); err != nil {
		return nil, mapError("get window", err)
	}
	return &w, nil
}

func (r *scheduleRepository) Update(ctx context.Context, w *model.AvailabilityWindow) error {
	query := `
		UPDATE availability_windows
		SET start_time = $1, end_time = $2, is_off = $3, reason = $4, updated_at = NOW()
		WHERE id = $5 AND doctor_id = $6
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		w.StartTime,
		w.EndTime,
		w.IsOff,
		w.Reason,
		w.ID,
		w.DoctorID,
	).Scan(&w.UpdatedAt)
	return mapError("update window", err)
}

// ExistingDates returns which of dates already have a window for the doctor.
func (r *scheduleRepository) ExistingDates(ctx context.Context, doctorID int64, dates []model.Date) ([]model.Date, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT date FROM availability_windows WHERE doctor_id = ? AND date IN (?) ORDER BY date`,
		doctorID, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to build existing dates query: %w", err)
	}

	existing := []model.Date{}
	if err := r.db.SelectContext(ctx, &existing, r.db.Rebind(query), args...); err != nil {
		return nil, mapError("query existing dates", err)
	}
	return existing, nil
}

// ListFrom returns the doctor's windows dated on or after from, ordered by
// date then start time.
func (r *scheduleRepository) ListFrom(ctx context.Context, doctorID int64, from model.Date, includeOff bool) ([]*model.AvailabilityWindow, error) {
	query := `SELECT ` + windowColumns + ` FROM availability_windows WHERE doctor_id = $1 AND date >= $2`
	if !includeOff {
		query += ` AND is_off = FALSE`
	}
	query += ` ORDER BY date ASC, start_time ASC`

	windows := []*model.AvailabilityWindow{}
	if err := r.db.SelectContext(ctx, &windows, query, doctorID, from); err != nil {
		return nil, mapError("list windows", err)
	}
	return windows, nil
}
