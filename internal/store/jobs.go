package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/filmvault/curator/internal/errs"
)

// JobRepo persists Job rows and implements the lease/entity-lock protocol
// that internal/queue's dispatcher drives (spec.md §4.H).
type JobRepo struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepo { return &JobRepo{db: db} }

// Add inserts a new pending job and returns its id.
func (r *JobRepo) Add(ctx context.Context, jobType string, priority int, payload any, maxRetries int, entityType string, entityID int64, correlationID string) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, errs.Wrap(errs.KindInputInvalid, err, "marshal job payload")
	}
	var id int64
	var corr any
	if correlationID != "" {
		corr = correlationID
	}
	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO jobs (type, priority, payload, max_retries, entity_type, entity_id, correlation_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id
	`, jobType, priority, body, maxRetries, entityType, entityID, corr).Scan(&id)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorageQueryFailed, err, "insert job").ForceRetryable(true)
	}
	return id, nil
}

// ClaimNext atomically selects the next eligible job (priority ASC, id ASC,
// scheduled_at <= now), skipping rows locked by other workers, and — for
// entity-scoped types — skipping rows whose entity lock can't be acquired,
// bumping their scheduled_at by a short backoff instead so they retry
// later without starving other entities. Returns nil, nil when nothing is
// eligible right now.
func (r *JobRepo) ClaimNext(ctx context.Context, leaseDuration time.Duration) (*Job, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageConnectionFailed, err, "begin claim tx").ForceRetryable(true)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, type, priority, payload, state, retry_count, max_retries,
		       scheduled_at, leased_until, last_error, correlation_id,
		       entity_type, entity_id, created_at, updated_at
		FROM jobs
		WHERE state = 'pending' AND scheduled_at <= now()
		ORDER BY priority ASC, id ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 20
	`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "select candidate jobs").ForceRetryable(true)
	}
	candidates, err := pgx.CollectRows(rows, pgx.RowToStructByName[Job])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan candidate jobs").ForceRetryable(true)
	}

	for _, job := range candidates {
		job := job
		if job.IsEntityScoped() {
			acquired, err := r.tryAcquireEntityLockTx(ctx, tx, job.EntityType, job.EntityID, job.ID, leaseDuration)
			if err != nil {
				return nil, err
			}
			if !acquired {
				if _, err := tx.Exec(ctx, `UPDATE jobs SET scheduled_at = now() + interval '2 seconds' WHERE id = $1`, job.ID); err != nil {
					return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "backoff entity-locked job").ForceRetryable(true)
				}
				continue
			}
		}

		leasedUntil := time.Now().Add(leaseDuration)
		if _, err := tx.Exec(ctx, `UPDATE jobs SET state = 'processing', leased_until = $2, updated_at = now() WHERE id = $1`, job.ID, leasedUntil); err != nil {
			return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "lease job").ForceRetryable(true)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, errs.Wrap(errs.KindStorageTxFailed, err, "commit claim").ForceRetryable(true)
		}
		job.State = JobProcessing
		job.LeasedUntil = &leasedUntil
		return &job, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errs.Wrap(errs.KindStorageTxFailed, err, "commit claim (no-op)").ForceRetryable(true)
	}
	return nil, nil
}

func (r *JobRepo) tryAcquireEntityLockTx(ctx context.Context, tx pgx.Tx, entityType string, entityID, jobID int64, leaseDuration time.Duration) (bool, error) {
	var heldUntil *time.Time
	err := tx.QueryRow(ctx, `SELECT held_until FROM entity_locks WHERE entity_type=$1 AND entity_id=$2 FOR UPDATE`, entityType, entityID).Scan(&heldUntil)
	if err != nil && err != pgx.ErrNoRows {
		return false, errs.Wrap(errs.KindStorageQueryFailed, err, "read entity lock").ForceRetryable(true)
	}
	now := time.Now()
	if heldUntil != nil && heldUntil.After(now) {
		return false, nil // still held by another in-flight job
	}

	until := now.Add(leaseDuration)
	_, err = tx.Exec(ctx, `
		INSERT INTO entity_locks (entity_type, entity_id, held_by_job_id, held_until)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET held_by_job_id=$3, held_until=$4
	`, entityType, entityID, jobID, until)
	if err != nil {
		return false, errs.Wrap(errs.KindStorageQueryFailed, err, "acquire entity lock").ForceRetryable(true)
	}
	return true, nil
}

// ReleaseEntityLock clears the lock held for a job's entity; called once the
// handler returns, win or lose.
func (r *JobRepo) ReleaseEntityLock(ctx context.Context, entityType string, entityID int64) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM entity_locks WHERE entity_type=$1 AND entity_id=$2`, entityType, entityID)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "release entity lock").ForceRetryable(true)
	}
	return nil
}

// RenewLease extends a long-running handler's lease.
func (r *JobRepo) RenewLease(ctx context.Context, jobID int64, leaseDuration time.Duration) error {
	until := time.Now().Add(leaseDuration)
	_, err := r.db.Pool.Exec(ctx, `UPDATE jobs SET leased_until=$2, updated_at=now() WHERE id=$1 AND state='processing'`, jobID, until)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "renew lease").ForceRetryable(true)
	}
	return nil
}

// Complete marks a job as successfully finished.
func (r *JobRepo) Complete(ctx context.Context, jobID int64) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE jobs SET state='completed', updated_at=now() WHERE id=$1`, jobID)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "complete job").ForceRetryable(true)
	}
	return nil
}

// Reschedule requeues a job for a retry at the computed delay.
func (r *JobRepo) Reschedule(ctx context.Context, jobID int64, delay time.Duration, lastErr string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE jobs SET state='pending', scheduled_at = now() + $2::interval, retry_count = retry_count + 1, last_error=$3, updated_at=now()
		WHERE id=$1
	`, jobID, delay.String(), lastErr)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "reschedule job").ForceRetryable(true)
	}
	return nil
}

// Fail marks a job terminally failed, or dead when the caller passes dead
// (internal/queue does so once retry_count has reached MaxAttempts).
func (r *JobRepo) Fail(ctx context.Context, jobID int64, lastErr string, dead bool) error {
	state := JobFailed
	if dead {
		state = JobDead
	}
	_, err := r.db.Pool.Exec(ctx, `UPDATE jobs SET state=$2, last_error=$3, updated_at=now() WHERE id=$1`, jobID, state, lastErr)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "fail job").ForceRetryable(true)
	}
	return nil
}

// ReclaimExpiredLeases returns processing jobs whose lease has lapsed back
// to pending (the worker that held them is presumed dead).
func (r *JobRepo) ReclaimExpiredLeases(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE jobs SET state='pending', updated_at=now()
		WHERE state='processing' AND leased_until < now()
	`)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorageQueryFailed, err, "reclaim expired leases").ForceRetryable(true)
	}
	return tag.RowsAffected(), nil
}

// Stats summarizes queue depth for the system/health surface.
type Stats struct {
	CountsByState map[JobState]int64
	CountsByType  map[string]int64
	OldestPending *time.Time
}

func (r *JobRepo) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{CountsByState: map[JobState]int64{}, CountsByType: map[string]int64{}}

	rows, err := r.db.Pool.Query(ctx, `SELECT state, count(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "stats by state").ForceRetryable(true)
	}
	for rows.Next() {
		var state JobState
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			rows.Close()
			return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan stats by state").ForceRetryable(true)
		}
		stats.CountsByState[state] = count
	}
	rows.Close()

	rows, err = r.db.Pool.Query(ctx, `SELECT type, count(*) FROM jobs GROUP BY type`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "stats by type").ForceRetryable(true)
	}
	for rows.Next() {
		var jobType string
		var count int64
		if err := rows.Scan(&jobType, &count); err != nil {
			rows.Close()
			return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan stats by type").ForceRetryable(true)
		}
		stats.CountsByType[jobType] = count
	}
	rows.Close()

	var oldest *time.Time
	err = r.db.Pool.QueryRow(ctx, `SELECT min(scheduled_at) FROM jobs WHERE state='pending'`).Scan(&oldest)
	if err != nil && err != pgx.ErrNoRows {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "oldest pending").ForceRetryable(true)
	}
	stats.OldestPending = oldest
	return stats, nil
}

// PendingOrProcessingExists reports whether a job of jobType already exists
// for entityID in a non-terminal state (used by the scheduler to avoid
// duplicate triggers, spec.md §4.J).
func (r *JobRepo) PendingOrProcessingExists(ctx context.Context, jobType, entityType string, entityID int64) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM jobs
			WHERE type=$1 AND entity_type=$2 AND entity_id=$3 AND state IN ('pending','processing')
		)
	`, jobType, entityType, entityID).Scan(&exists)
	if err != nil {
		return false, errs.Wrap(errs.KindStorageQueryFailed, err, "pending/processing exists").ForceRetryable(true)
	}
	return exists, nil
}
