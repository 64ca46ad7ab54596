package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/filmvault/curator/internal/cache"
	"github.com/filmvault/curator/internal/errs"
)

// CacheEntryStore implements cache.EntryStore against the cache_entries
// table, so internal/cache's Postgres persistence has no direct driver
// dependency of its own.
type CacheEntryStore struct {
	db *DB
}

func NewCacheEntryStore(db *DB) *CacheEntryStore { return &CacheEntryStore{db: db} }

func (s *CacheEntryStore) Upsert(ctx context.Context, hash, path string, size int64, kind cache.Kind) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO cache_entries (content_hash, path, size_bytes, kind, reference_count)
		VALUES ($1,$2,$3,$4,0)
		ON CONFLICT (content_hash) DO NOTHING
	`, hash, path, size, string(kind))
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "upsert cache entry").ForceRetryable(true)
	}
	return nil
}

type cacheEntryRow struct {
	ContentHash    string    `db:"content_hash"`
	Path           string    `db:"path"`
	SizeBytes      int64     `db:"size_bytes"`
	Kind           string    `db:"kind"`
	ReferenceCount int       `db:"reference_count"`
	CreatedAt      time.Time `db:"created_at"`
}

func (s *CacheEntryStore) Get(ctx context.Context, hash string) (*cache.Entry, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT * FROM cache_entries WHERE content_hash=$1`, hash)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "select cache entry").ForceRetryable(true)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[cacheEntryRow])
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan cache entry").ForceRetryable(true)
	}
	return &cache.Entry{
		ContentHash:    row.ContentHash,
		Path:           row.Path,
		SizeBytes:      row.SizeBytes,
		Kind:           cache.Kind(row.Kind),
		ReferenceCount: row.ReferenceCount,
		CreatedAt:      row.CreatedAt,
	}, nil
}

func (s *CacheEntryStore) IncRef(ctx context.Context, hash string) error {
	_, err := s.db.Pool.Exec(ctx, `UPDATE cache_entries SET reference_count = reference_count + 1 WHERE content_hash=$1`, hash)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "incref cache entry").ForceRetryable(true)
	}
	return nil
}

func (s *CacheEntryStore) DecRef(ctx context.Context, hash string) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE cache_entries SET reference_count = GREATEST(reference_count - 1, 0) WHERE content_hash=$1
	`, hash)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "decref cache entry").ForceRetryable(true)
	}
	return nil
}

func (s *CacheEntryStore) ZeroRefOlderThan(ctx context.Context, cutoff time.Time) ([]cache.Entry, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT content_hash, path, size_bytes, kind, reference_count, created_at
		FROM cache_entries WHERE reference_count = 0 AND created_at <= $1
	`, cutoff)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list zero-ref entries").ForceRetryable(true)
	}
	defer rows.Close()

	var out []cache.Entry
	for rows.Next() {
		var hash, path, kind string
		var size int64
		var refs int
		var createdAt time.Time
		if err := rows.Scan(&hash, &path, &size, &kind, &refs, &createdAt); err != nil {
			return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan zero-ref entry").ForceRetryable(true)
		}
		out = append(out, cache.Entry{
			ContentHash: hash, Path: path, SizeBytes: size,
			Kind: cache.Kind(kind), ReferenceCount: refs, CreatedAt: createdAt,
		})
	}
	return out, nil
}

// DeleteIfStillZero deletes the row iff reference_count is still 0,
// re-checked under this statement to close the race between GC's listing
// pass and the delete (spec.md §4.B).
func (s *CacheEntryStore) DeleteIfStillZero(ctx context.Context, hash string) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM cache_entries WHERE content_hash=$1 AND reference_count = 0`, hash)
	if err != nil {
		return false, errs.Wrap(errs.KindStorageQueryFailed, err, "delete zero-ref entry").ForceRetryable(true)
	}
	return tag.RowsAffected() == 1, nil
}
