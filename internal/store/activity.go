package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/filmvault/curator/internal/errs"
)

// ActivityRepo appends to the durable activity_log table. internal/activity
// layers an ephemeral bbolt-backed recent-feed and websocket fan-out on top
// of this for the live UI; this table is the record of truth a client can
// page back through after a reconnect.
type ActivityRepo struct {
	db *DB
}

func NewActivityRepo(db *DB) *ActivityRepo { return &ActivityRepo{db: db} }

func (r *ActivityRepo) Append(ctx context.Context, kind, entityType string, entityID int64, message string) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO activity_log (kind, entity_type, entity_id, message) VALUES ($1,$2,$3,$4) RETURNING id
	`, kind, entityType, entityID, message).Scan(&id)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorageQueryFailed, err, "append activity entry").ForceRetryable(true)
	}
	return id, nil
}

// ListSince returns activity entries newer than afterID, oldest first, for
// feed catch-up after a dropped websocket connection.
func (r *ActivityRepo) ListSince(ctx context.Context, afterID int64, limit int) ([]ActivityEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT * FROM activity_log WHERE id > $1 ORDER BY id ASC LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list activity since").ForceRetryable(true)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[ActivityEntry])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan activity entries").ForceRetryable(true)
	}
	return entries, nil
}
