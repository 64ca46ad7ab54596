package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/filmvault/curator/internal/errs"
)

// AssetRepo persists asset candidates, rejected paths, and the trailer
// candidate table (spec.md §4.E Phases 2-4).
type AssetRepo struct {
	db *DB
}

func NewAssetRepo(db *DB) *AssetRepo { return &AssetRepo{db: db} }

// AddCandidate records a scored candidate; a re-discovered identical
// provider URL updates its metrics in place rather than duplicating.
func (r *AssetRepo) AddCandidate(ctx context.Context, c *AssetCandidate) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO asset_candidates
			(entity_type, entity_id, asset_type, provider_name, provider_url,
			 width, height, duration_seconds, language, content_hash, perceptual_hash,
			 vote_count, likes_count, is_official, score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (entity_type, entity_id, asset_type, provider_url) DO UPDATE SET
			width = EXCLUDED.width, height = EXCLUDED.height,
			vote_count = EXCLUDED.vote_count, likes_count = EXCLUDED.likes_count,
			score = EXCLUDED.score
		RETURNING id
	`, c.EntityType, c.EntityID, c.AssetType, c.ProviderName, c.ProviderURL,
		c.Width, c.Height, c.DurationSeconds, c.Language, c.ContentHash, c.PerceptualHash,
		c.VoteCount, c.LikesCount, c.IsOfficial, c.Score).Scan(&id)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorageQueryFailed, err, "insert asset candidate").ForceRetryable(true)
	}
	return id, nil
}

func (r *AssetRepo) ListCandidates(ctx context.Context, entityType string, entityID int64, assetType AssetType) ([]AssetCandidate, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT * FROM asset_candidates
		WHERE entity_type=$1 AND entity_id=$2 AND asset_type=$3
		ORDER BY score DESC
	`, entityType, entityID, assetType)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list asset candidates").ForceRetryable(true)
	}
	candidates, err := pgx.CollectRows(rows, pgx.RowToStructByName[AssetCandidate])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan asset candidates").ForceRetryable(true)
	}
	return candidates, nil
}

// SelectTopRanked marks the first limit candidates (by descending score,
// excluding any whose content_hash or perceptual_hash collides with an
// already-selected one — near-duplicate suppression per spec.md §4.E Phase
// 3) as selected, with rank starting at 1.
func (r *AssetRepo) SelectTopRanked(ctx context.Context, entityType string, entityID int64, assetType AssetType, limit int, isDuplicate func(a, b AssetCandidate) bool) ([]AssetCandidate, error) {
	candidates, err := r.ListCandidates(ctx, entityType, entityID, assetType)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageConnectionFailed, err, "begin select tx").ForceRetryable(true)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE asset_candidates SET is_selected=FALSE, rank=0 WHERE entity_type=$1 AND entity_id=$2 AND asset_type=$3`, entityType, entityID, assetType); err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "clear prior selection").ForceRetryable(true)
	}

	selected := make([]AssetCandidate, 0, limit)
	for _, c := range candidates {
		if len(selected) >= limit {
			break
		}
		dup := false
		for _, s := range selected {
			if isDuplicate(c, s) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		rank := len(selected) + 1
		if _, err := tx.Exec(ctx, `UPDATE asset_candidates SET is_selected=TRUE, rank=$2 WHERE id=$1`, c.ID, rank); err != nil {
			return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "mark selected").ForceRetryable(true)
		}
		c.IsSelected = true
		c.Rank = rank
		selected = append(selected, c)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errs.Wrap(errs.KindStorageTxFailed, err, "commit selection").ForceRetryable(true)
	}
	return selected, nil
}

func (r *AssetRepo) IsRejected(ctx context.Context, entityType string, entityID int64, filePath string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM rejected_assets WHERE entity_type=$1 AND entity_id=$2 AND file_path=$3)
	`, entityType, entityID, filePath).Scan(&exists)
	if err != nil {
		return false, errs.Wrap(errs.KindStorageQueryFailed, err, "check rejected asset").ForceRetryable(true)
	}
	return exists, nil
}

func (r *AssetRepo) Reject(ctx context.Context, entityType string, entityID int64, filePath string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO rejected_assets (entity_type, entity_id, file_path) VALUES ($1,$2,$3)
		ON CONFLICT DO NOTHING
	`, entityType, entityID, filePath)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "reject asset").ForceRetryable(true)
	}
	return nil
}

// AddTrailerCandidate records a discovered trailer URL before analysis.
func (r *AssetRepo) AddTrailerCandidate(ctx context.Context, t *TrailerCandidate) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO trailer_candidates (entity_type, entity_id, url, site)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (entity_type, entity_id, url) DO UPDATE SET site = EXCLUDED.site
		RETURNING id
	`, t.EntityType, t.EntityID, t.URL, t.Site).Scan(&id)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorageQueryFailed, err, "insert trailer candidate").ForceRetryable(true)
	}
	return id, nil
}

// RecordAnalysis stores the probed properties of a trailer candidate, or a
// failure classification if the probe failed (spec.md §4.E Phase 2). Only
// the "none" (success) and "unavailable" failure reasons are terminal;
// "rate_limited" and "download_error" are transient, so the candidate is
// left with analyzed=FALSE and its retry_after set so phaseTrailerAnalysis
// probes it again on a later enrichment run instead of skipping it forever.
func (r *AssetRepo) RecordAnalysis(ctx context.Context, id int64, t *TrailerCandidate) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE trailer_candidates SET
			analyzed = CASE WHEN $7 IN ('', 'unavailable') THEN TRUE ELSE FALSE END,
			resolution_height=$2, duration_seconds=$3, official=$4,
			language=$5, score=$6, failure_reason=$7, retry_after=$8,
			failure_count = CASE WHEN $7 = '' THEN failure_count ELSE failure_count + 1 END,
			content_hash=$9
		WHERE id=$1
	`, id, t.ResolutionHeight, t.DurationSeconds, t.Official, t.Language, t.Score,
		t.FailureReason, t.RetryAfter, t.ContentHash)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "record trailer analysis").ForceRetryable(true)
	}
	return nil
}

func (r *AssetRepo) ListTrailerCandidates(ctx context.Context, entityType string, entityID int64) ([]TrailerCandidate, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT * FROM trailer_candidates WHERE entity_type=$1 AND entity_id=$2 ORDER BY score DESC
	`, entityType, entityID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list trailer candidates").ForceRetryable(true)
	}
	candidates, err := pgx.CollectRows(rows, pgx.RowToStructByName[TrailerCandidate])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan trailer candidates").ForceRetryable(true)
	}
	return candidates, nil
}

// SelectTrailer marks exactly one trailer candidate as selected, clearing
// any prior selection for the entity.
func (r *AssetRepo) SelectTrailer(ctx context.Context, entityType string, entityID, candidateID int64) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.KindStorageConnectionFailed, err, "begin select trailer tx").ForceRetryable(true)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE trailer_candidates SET is_selected=FALSE WHERE entity_type=$1 AND entity_id=$2`, entityType, entityID); err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "clear prior trailer selection").ForceRetryable(true)
	}
	if _, err := tx.Exec(ctx, `UPDATE trailer_candidates SET is_selected=TRUE WHERE id=$1`, candidateID); err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "select trailer").ForceRetryable(true)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.KindStorageTxFailed, err, "commit trailer selection").ForceRetryable(true)
	}
	return nil
}

func (r *AssetRepo) GetProviderCache(ctx context.Context, entityType, externalID string) (*ProviderCacheRow, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT * FROM provider_cache WHERE entity_type=$1 AND external_id=$2`, entityType, externalID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "select provider cache").ForceRetryable(true)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[ProviderCacheRow])
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan provider cache").ForceRetryable(true)
	}
	return row, nil
}

func (r *AssetRepo) PutProviderCache(ctx context.Context, entityType, externalID string, payload []byte) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO provider_cache (entity_type, external_id, payload, fetched_at) VALUES ($1,$2,$3, now())
		ON CONFLICT (entity_type, external_id) DO UPDATE SET payload=EXCLUDED.payload, fetched_at=now()
	`, entityType, externalID, payload)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "put provider cache").ForceRetryable(true)
	}
	return nil
}
