package store

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/filmvault/curator/internal/errs"
)

// MovieRepo persists Movie rows and their related-entity links.
type MovieRepo struct {
	db *DB
}

func NewMovieRepo(db *DB) *MovieRepo { return &MovieRepo{db: db} }

func (r *MovieRepo) Create(ctx context.Context, m *Movie) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO movies (library_id, primary_db_id, imdb_id, title, original_title, year, file_path, workflow_state, monitored)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id
	`, m.LibraryID, m.PrimaryDBID, m.IMDbID, m.Title, m.OriginalTitle, m.Year, m.FilePath, m.WorkflowState, m.Monitored).Scan(&id)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorageQueryFailed, err, "insert movie").ForceRetryable(true)
	}
	return id, nil
}

func (r *MovieRepo) Get(ctx context.Context, id int64) (*Movie, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT * FROM movies WHERE id = $1`, id)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "select movie").ForceRetryable(true)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Movie])
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "movie not found").WithContext("movie_id", id)
		}
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan movie").ForceRetryable(true)
	}
	return m, nil
}

// List returns movies for the /movies listing endpoint, optionally scoped
// to one library, newest-updated first, paginated.
func (r *MovieRepo) List(ctx context.Context, libraryID *int64, limit, offset int) ([]Movie, error) {
	var rows pgx.Rows
	var err error
	if libraryID != nil {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT * FROM movies WHERE library_id = $1 AND purge_after IS NULL
			ORDER BY updated_at DESC LIMIT $2 OFFSET $3
		`, *libraryID, limit, offset)
	} else {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT * FROM movies WHERE purge_after IS NULL
			ORDER BY updated_at DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list movies").ForceRetryable(true)
	}
	movies, err := pgx.CollectRows(rows, pgx.RowToStructByName[Movie])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan movies").ForceRetryable(true)
	}
	return movies, nil
}

func (r *MovieRepo) GetByFilePath(ctx context.Context, libraryID int64, path string) (*Movie, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT * FROM movies WHERE library_id = $1 AND file_path = $2`, libraryID, path)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "select movie by path").ForceRetryable(true)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Movie])
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan movie by path").ForceRetryable(true)
	}
	return m, nil
}

// UpdateIdentity sets the fields resolved by the identify operation
// (spec.md §4.B); it never touches locked fields.
func (r *MovieRepo) UpdateIdentity(ctx context.Context, m *Movie) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE movies SET primary_db_id=$2, imdb_id=$3, secondary_db_id=$4, workflow_state=$5, updated_at=now()
		WHERE id=$1
	`, m.ID, m.PrimaryDBID, m.IMDbID, m.SecondaryDBID, m.WorkflowState)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "update movie identity").ForceRetryable(true)
	}
	return nil
}

// ApplyEnrichment writes fields returned by the merge pipeline, skipping any
// field currently locked on the row (spec.md §4.E Phase 1 "locked fields
// never change under enrichment").
func (r *MovieRepo) ApplyEnrichment(ctx context.Context, m *Movie) error {
	current, err := r.Get(ctx, m.ID)
	if err != nil {
		return err
	}

	title := current.Title
	if !current.TitleLocked {
		title = m.Title
	}
	sortTitle := current.SortTitle
	if !current.SortTitleLocked {
		sortTitle = m.SortTitle
	}
	plot := current.Plot
	if !current.PlotLocked {
		plot = m.Plot
	}
	tagline := current.Tagline
	if !current.TaglineLocked {
		tagline = m.Tagline
	}

	_, err = r.db.Pool.Exec(ctx, `
		UPDATE movies SET
			title=$2, sort_title=$3, plot=$4, tagline=$5,
			runtime_minutes=$6, content_rating=$7, release_date=$8,
			popularity=$9, budget=$10, revenue=$11, language=$12, status=$13,
			workflow_state=$14, last_enriched_at=now(), updated_at=now()
		WHERE id=$1
	`, m.ID, title, sortTitle, plot, tagline,
		m.RuntimeMinutes, m.ContentRating, m.ReleaseDate,
		m.Popularity, m.Budget, m.Revenue, m.Language, m.Status,
		m.WorkflowState)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "apply enrichment").ForceRetryable(true)
	}
	return nil
}

// MarkPublished records the published NFO hash and workflow transition
// (spec.md §4.F). publishNFO calls it on every NFO write; republishing an
// unchanged NFO stores the same hash again and moves published_at.
func (r *MovieRepo) MarkPublished(ctx context.Context, movieID int64, nfoHash string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE movies SET published_at=now(), published_nfo_hash=$2, workflow_state='published', updated_at=now()
		WHERE id=$1
	`, movieID, nfoHash)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "mark published").ForceRetryable(true)
	}
	return nil
}

func (r *MovieRepo) SetNFOParsedAt(ctx context.Context, movieID int64) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE movies SET nfo_parsed_at=now(), updated_at=now() WHERE id=$1`, movieID)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "set nfo parsed at").ForceRetryable(true)
	}
	return nil
}

func (r *MovieRepo) SoftDelete(ctx context.Context, movieID int64, purgeAfterDays int) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE movies SET purge_after = now() + ($2 || ' days')::interval, updated_at=now() WHERE id=$1
	`, movieID, purgeAfterDays)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "soft delete movie").ForceRetryable(true)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO recycle_bin (entity_type, entity_id, purge_after)
		VALUES ('movie', $1, now() + ($2 || ' days')::interval)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET deleted_at = now(), purge_after = EXCLUDED.purge_after
	`, movieID, purgeAfterDays)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "insert recycle bin entry").ForceRetryable(true)
	}
	return nil
}

// normalizeName lowercases and collapses internal whitespace, the
// deduplication key used before falling back to external person id
// (spec.md §4.E Phase 1 actor dedup rule).
func normalizeName(name string) string {
	fields := strings.Fields(name)
	return strings.ToLower(strings.Join(fields, " "))
}

// UpsertRelatedEntity finds-or-creates a related_entities row, deduping
// first by normalized name within kind, matching the original spec's
// "dedup by normalized name then by external id" rule: callers that already
// resolved an external id should look it up via provider_cache before
// calling this, so this only handles the name-collision half.
func (r *MovieRepo) UpsertRelatedEntity(ctx context.Context, kind RelatedEntityKind, name string) (int64, error) {
	nameLower := normalizeName(name)
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO related_entities (kind, name, name_lower) VALUES ($1,$2,$3)
		ON CONFLICT (kind, name_lower) DO UPDATE SET name = related_entities.name
		RETURNING id
	`, kind, name, nameLower).Scan(&id)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorageQueryFailed, err, "upsert related entity").ForceRetryable(true)
	}
	return id, nil
}

// LinkRelatedEntity idempotently associates a related entity with a movie
// at a given role and sort position (e.g. cast order for actors).
func (r *MovieRepo) LinkRelatedEntity(ctx context.Context, movieID, relatedEntityID int64, role string, sortOrder int) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO movie_related_entities (movie_id, related_entity_id, role, sort_order)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (movie_id, related_entity_id, role) DO UPDATE SET sort_order = EXCLUDED.sort_order
	`, movieID, relatedEntityID, role, sortOrder)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "link related entity").ForceRetryable(true)
	}
	return nil
}

// ClearRelations removes every link of kind for movieID before a full
// re-enrichment re-links the current provider-reported set.
func (r *MovieRepo) ClearRelations(ctx context.Context, movieID int64, kind RelatedEntityKind) error {
	_, err := r.db.Pool.Exec(ctx, `
		DELETE FROM movie_related_entities mre
		USING related_entities re
		WHERE mre.related_entity_id = re.id AND mre.movie_id = $1 AND re.kind = $2
	`, movieID, kind)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "clear relations").ForceRetryable(true)
	}
	return nil
}

func (r *MovieRepo) ListRelated(ctx context.Context, movieID int64, kind RelatedEntityKind) ([]RelatedEntity, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT re.id, re.kind, re.name, re.name_lower
		FROM related_entities re
		JOIN movie_related_entities mre ON mre.related_entity_id = re.id
		WHERE mre.movie_id = $1 AND re.kind = $2
		ORDER BY mre.sort_order ASC
	`, movieID, kind)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list related entities").ForceRetryable(true)
	}
	entities, err := pgx.CollectRows(rows, pgx.RowToStructByName[RelatedEntity])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan related entities").ForceRetryable(true)
	}
	return entities, nil
}

// ActorRef is one movie_related_entities row joined with its actor, carrying
// the per-movie role/order that ListRelated's shared shape can't (those
// belong to the movie_related_entities link row, not the related_entities
// row shared by every movie that entity appears in).
type ActorRef struct {
	Name      string `db:"name"`
	Role      string `db:"role"`
	SortOrder int    `db:"sort_order"`
}

func (r *MovieRepo) ListActors(ctx context.Context, movieID int64) ([]ActorRef, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT re.name, mre.role, mre.sort_order
		FROM related_entities re
		JOIN movie_related_entities mre ON mre.related_entity_id = re.id
		WHERE mre.movie_id = $1 AND re.kind = 'actor'
		ORDER BY mre.sort_order ASC
	`, movieID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list actors").ForceRetryable(true)
	}
	actors, err := pgx.CollectRows(rows, pgx.RowToStructByName[ActorRef])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan actors").ForceRetryable(true)
	}
	return actors, nil
}

// UpsertRating records or updates one source's rating for a movie
// (spec.md §4.D step 3 "ratings remain per-source").
func (r *MovieRepo) UpsertRating(ctx context.Context, movieID int64, sourceName string, value float64, voteCount int) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO movie_ratings (movie_id, source_name, value, vote_count)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (movie_id, source_name) DO UPDATE SET value = EXCLUDED.value, vote_count = EXCLUDED.vote_count
	`, movieID, sourceName, value, voteCount)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "upsert movie rating").ForceRetryable(true)
	}
	return nil
}

func (r *MovieRepo) ListRatings(ctx context.Context, movieID int64) ([]MovieRating, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT * FROM movie_ratings WHERE movie_id = $1 ORDER BY vote_count DESC`, movieID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list movie ratings").ForceRetryable(true)
	}
	ratings, err := pgx.CollectRows(rows, pgx.RowToStructByName[MovieRating])
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan movie ratings").ForceRetryable(true)
	}
	return ratings, nil
}

// ListDueForPurge returns movies whose recycle-bin grace window has passed
// (spec.md §9 Open Question: 7-day window is authoritative).
func (r *MovieRepo) ListDueForPurge(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT entity_id FROM recycle_bin WHERE entity_type = 'movie' AND purge_after <= now()
	`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "list due for purge").ForceRetryable(true)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "scan purge id").ForceRetryable(true)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
