package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/filmvault/curator/internal/errs"
)

type LibraryRepo struct {
	db *DB
}

func NewLibraryRepo(db *DB) *LibraryRepo { return &LibraryRepo{db: db} }

func (r *LibraryRepo) Create(ctx context.Context, l *Library) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO libraries (name, root_path, auto_scan, auto_enrich, auto_publish, scan_interval_hours, provider_update_interval_hours)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id
	`, l.Name, l.RootPath, l.AutoScan, l.AutoEnrich, l.AutoPublish, l.ScanIntervalHours, l.ProviderUpdateIntervalHours).Scan(&id)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorageQueryFailed, err, "insert library").ForceRetryable(true)
	}
	return id, nil
}

func (r *LibraryRepo) Get(ctx context.Context, id int64) (*Library, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT * FROM libraries WHERE id=$1`, id)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "select library").ForceRetryable(true)
	}
	l, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Library])
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "library not found").WithContext("library_id", id)
		}
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan library").ForceRetryable(true)
	}
	return l, nil
}

func (r *LibraryRepo) List(ctx context.Context) ([]Library, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT * FROM libraries ORDER BY id`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list libraries").ForceRetryable(true)
	}
	libs, err := pgx.CollectRows(rows, pgx.RowToStructByName[Library])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan libraries").ForceRetryable(true)
	}
	return libs, nil
}

func (r *LibraryRepo) Update(ctx context.Context, l *Library) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE libraries SET name=$2, root_path=$3, auto_scan=$4, auto_enrich=$5, auto_publish=$6,
			scan_interval_hours=$7, provider_update_interval_hours=$8
		WHERE id=$1
	`, l.ID, l.Name, l.RootPath, l.AutoScan, l.AutoEnrich, l.AutoPublish, l.ScanIntervalHours, l.ProviderUpdateIntervalHours)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "update library").ForceRetryable(true)
	}
	return nil
}
