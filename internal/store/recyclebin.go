package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/filmvault/curator/internal/errs"
)

// RecycleBinRepo backs the soft-delete grace window (spec.md §4.F, §9 Open
// Question: 7 days is authoritative). MovieRepo.SoftDelete writes here;
// this repo only reads and purges.
type RecycleBinRepo struct {
	db *DB
}

func NewRecycleBinRepo(db *DB) *RecycleBinRepo { return &RecycleBinRepo{db: db} }

func (r *RecycleBinRepo) List(ctx context.Context) ([]RecycleBinEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT * FROM recycle_bin ORDER BY purge_after ASC`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list recycle bin").ForceRetryable(true)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[RecycleBinEntry])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan recycle bin").ForceRetryable(true)
	}
	return entries, nil
}

// Restore removes an entry before its purge_after elapses, cancelling the
// pending deletion (a user can undo a delete during the grace window).
func (r *RecycleBinRepo) Restore(ctx context.Context, entityType string, entityID int64) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM recycle_bin WHERE entity_type=$1 AND entity_id=$2`, entityType, entityID)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "restore recycle bin entry").ForceRetryable(true)
	}
	_, err = r.db.Pool.Exec(ctx, `UPDATE movies SET purge_after = NULL WHERE id=$1`, entityID)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "clear movie purge_after").ForceRetryable(true)
	}
	return nil
}

// Purge permanently removes an entry once its grace window has elapsed; the
// caller is responsible for deleting the underlying file and cache
// references before calling this.
func (r *RecycleBinRepo) Purge(ctx context.Context, entityType string, entityID int64) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM recycle_bin WHERE entity_type=$1 AND entity_id=$2`, entityType, entityID)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "purge recycle bin entry").ForceRetryable(true)
	}
	_, err = r.db.Pool.Exec(ctx, `DELETE FROM movies WHERE id=$1`, entityID)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "purge movie row").ForceRetryable(true)
	}
	return nil
}
