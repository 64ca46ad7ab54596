// Package store is the persistence layer: Postgres access via pgx/sqlx for
// every entity in spec.md §3, plus the job-queue table that backs
// internal/queue. Schema migrations are out of scope per spec.md §1; Bootstrap
// below creates the tables needed to exercise this module against a fresh
// database in development/tests.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for sqlx
)

// DB wraps a pgx pool, through which every repository in this package runs
// its queries and struct scans (pgx.RowToStructByName over the db tags), and
// an sqlx handle over the same driver that is opened and closed with the
// pool but not otherwise used.
type DB struct {
	Pool *pgxpool.Pool
	SQLX *sqlx.DB
}

func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	sqlxDB, err := sqlx.Open("pgx", dsn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open sqlx handle: %w", err)
	}
	return &DB{Pool: pool, SQLX: sqlxDB}, nil
}

func (d *DB) Close() {
	d.Pool.Close()
	_ = d.SQLX.Close()
}

// Bootstrap creates the tables this module needs. It is intentionally
// idempotent (IF NOT EXISTS) so tests and local development can call it
// freely; real deployments are expected to own migrations separately.
func (d *DB) Bootstrap(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS libraries (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	root_path TEXT NOT NULL,
	auto_scan BOOLEAN NOT NULL DEFAULT TRUE,
	auto_enrich BOOLEAN NOT NULL DEFAULT TRUE,
	auto_publish BOOLEAN NOT NULL DEFAULT FALSE,
	scan_interval_hours INT NOT NULL DEFAULT 4,
	provider_update_interval_hours INT NOT NULL DEFAULT 168
);

CREATE TABLE IF NOT EXISTS movies (
	id BIGSERIAL PRIMARY KEY,
	library_id BIGINT NOT NULL REFERENCES libraries(id),
	primary_db_id BIGINT,
	imdb_id TEXT,
	secondary_db_id BIGINT,
	title TEXT NOT NULL DEFAULT '',
	title_locked BOOLEAN NOT NULL DEFAULT FALSE,
	original_title TEXT NOT NULL DEFAULT '',
	sort_title TEXT NOT NULL DEFAULT '',
	sort_title_locked BOOLEAN NOT NULL DEFAULT FALSE,
	year INT,
	plot TEXT NOT NULL DEFAULT '',
	plot_locked BOOLEAN NOT NULL DEFAULT FALSE,
	tagline TEXT NOT NULL DEFAULT '',
	tagline_locked BOOLEAN NOT NULL DEFAULT FALSE,
	runtime_minutes INT,
	content_rating TEXT NOT NULL DEFAULT '',
	release_date DATE,
	popularity DOUBLE PRECISION NOT NULL DEFAULT 0,
	budget BIGINT NOT NULL DEFAULT 0,
	revenue BIGINT NOT NULL DEFAULT 0,
	language TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	trailer_locked BOOLEAN NOT NULL DEFAULT FALSE,
	file_path TEXT NOT NULL DEFAULT '',
	workflow_state TEXT NOT NULL DEFAULT 'needs_identification',
	monitored BOOLEAN NOT NULL DEFAULT TRUE,
	nfo_parsed_at TIMESTAMPTZ,
	last_enriched_at TIMESTAMPTZ,
	published_at TIMESTAMPTZ,
	published_nfo_hash TEXT NOT NULL DEFAULT '',
	purge_after TIMESTAMPTZ,
	locked_asset_types TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS movie_ratings (
	movie_id BIGINT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
	source_name TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	vote_count INT NOT NULL DEFAULT 0,
	PRIMARY KEY (movie_id, source_name)
);

CREATE TABLE IF NOT EXISTS related_entities (
	id BIGSERIAL PRIMARY KEY,
	kind TEXT NOT NULL, -- actor|genre|director|writer|studio|country|tag
	name TEXT NOT NULL,
	name_lower TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS related_entities_kind_name_lower ON related_entities(kind, name_lower);

CREATE TABLE IF NOT EXISTS movie_related_entities (
	movie_id BIGINT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
	related_entity_id BIGINT NOT NULL REFERENCES related_entities(id),
	role TEXT NOT NULL DEFAULT '',
	sort_order INT NOT NULL DEFAULT 0,
	PRIMARY KEY (movie_id, related_entity_id, role)
);

CREATE TABLE IF NOT EXISTS asset_candidates (
	id BIGSERIAL PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id BIGINT NOT NULL,
	asset_type TEXT NOT NULL,
	provider_name TEXT NOT NULL,
	provider_url TEXT NOT NULL,
	width INT NOT NULL DEFAULT 0,
	height INT NOT NULL DEFAULT 0,
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	language TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	perceptual_hash BIGINT,
	vote_count INT NOT NULL DEFAULT 0,
	likes_count INT NOT NULL DEFAULT 0,
	is_official BOOLEAN NOT NULL DEFAULT FALSE,
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_selected BOOLEAN NOT NULL DEFAULT FALSE,
	rank INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS asset_candidates_url_scope ON asset_candidates(entity_type, entity_id, asset_type, provider_url);

CREATE TABLE IF NOT EXISTS cache_entries (
	content_hash TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	kind TEXT NOT NULL,
	reference_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rejected_assets (
	entity_type TEXT NOT NULL,
	entity_id BIGINT NOT NULL,
	file_path TEXT NOT NULL,
	PRIMARY KEY (entity_type, entity_id, file_path)
);

CREATE TABLE IF NOT EXISTS provider_cache (
	entity_type TEXT NOT NULL,
	external_id TEXT NOT NULL,
	payload JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity_type, external_id)
);

CREATE TABLE IF NOT EXISTS trailer_candidates (
	id BIGSERIAL PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id BIGINT NOT NULL,
	url TEXT NOT NULL,
	site TEXT NOT NULL,
	analyzed BOOLEAN NOT NULL DEFAULT FALSE,
	resolution_height INT NOT NULL DEFAULT 0,
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	official BOOLEAN NOT NULL DEFAULT FALSE,
	language TEXT NOT NULL DEFAULT '',
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	failure_reason TEXT,
	retry_after TIMESTAMPTZ,
	failure_count INT NOT NULL DEFAULT 0,
	is_selected BOOLEAN NOT NULL DEFAULT FALSE,
	content_hash TEXT NOT NULL DEFAULT '',
	UNIQUE(entity_type, entity_id, url)
);

CREATE TABLE IF NOT EXISTS jobs (
	id BIGSERIAL PRIMARY KEY,
	type TEXT NOT NULL,
	priority INT NOT NULL,
	payload JSONB NOT NULL,
	state TEXT NOT NULL DEFAULT 'pending',
	retry_count INT NOT NULL DEFAULT 0,
	max_retries INT NOT NULL DEFAULT 3,
	scheduled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	leased_until TIMESTAMPTZ,
	last_error TEXT NOT NULL DEFAULT '',
	correlation_id UUID,
	entity_type TEXT NOT NULL DEFAULT '',
	entity_id BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS jobs_dispatch_order ON jobs(priority, id) WHERE state = 'pending';

CREATE TABLE IF NOT EXISTS entity_locks (
	entity_type TEXT NOT NULL,
	entity_id BIGINT NOT NULL,
	held_by_job_id BIGINT,
	held_until TIMESTAMPTZ,
	PRIMARY KEY (entity_type, entity_id)
);

CREATE TABLE IF NOT EXISTS priority_presets (
	name TEXT PRIMARY KEY,
	is_active BOOLEAN NOT NULL DEFAULT FALSE,
	entries JSONB NOT NULL DEFAULT '{}',
	disabled JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS scheduler_state (
	library_id BIGINT NOT NULL REFERENCES libraries(id),
	cadence TEXT NOT NULL, -- scan|provider_update
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	interval_hours INT NOT NULL,
	last_run_at TIMESTAMPTZ,
	PRIMARY KEY (library_id, cadence)
);

CREATE TABLE IF NOT EXISTS activity_log (
	id BIGSERIAL PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	kind TEXT NOT NULL,
	entity_type TEXT NOT NULL DEFAULT '',
	entity_id BIGINT NOT NULL DEFAULT 0,
	message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS recycle_bin (
	entity_type TEXT NOT NULL,
	entity_id BIGINT NOT NULL,
	deleted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	purge_after TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity_type, entity_id)
);
`
