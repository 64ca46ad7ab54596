package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/filmvault/curator/internal/errs"
)

// SchedulerRepo persists the per-library, per-cadence scheduling state the
// cron-driven ticker reads each minute (spec.md §4.J).
type SchedulerRepo struct {
	db *DB
}

func NewSchedulerRepo(db *DB) *SchedulerRepo { return &SchedulerRepo{db: db} }

func (r *SchedulerRepo) Upsert(ctx context.Context, s *SchedulerState) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO scheduler_state (library_id, cadence, enabled, interval_hours, last_run_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (library_id, cadence) DO UPDATE SET
			enabled=EXCLUDED.enabled, interval_hours=EXCLUDED.interval_hours
	`, s.LibraryID, s.Cadence, s.Enabled, s.IntervalHours, s.LastRunAt)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "upsert scheduler state").ForceRetryable(true)
	}
	return nil
}

// DueNow returns every (library, cadence) row enabled and whose interval has
// elapsed since last_run_at (or never run).
func (r *SchedulerRepo) DueNow(ctx context.Context) ([]SchedulerState, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT * FROM scheduler_state
		WHERE enabled = TRUE
		AND (last_run_at IS NULL OR last_run_at <= now() - (interval_hours || ' hours')::interval)
	`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "select due scheduler state").ForceRetryable(true)
	}
	due, err := pgx.CollectRows(rows, pgx.RowToStructByName[SchedulerState])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan due scheduler state").ForceRetryable(true)
	}
	return due, nil
}

func (r *SchedulerRepo) MarkRun(ctx context.Context, libraryID int64, cadence SchedulerCadence, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE scheduler_state SET last_run_at=$3 WHERE library_id=$1 AND cadence=$2
	`, libraryID, cadence, at)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "mark scheduler run").ForceRetryable(true)
	}
	return nil
}
