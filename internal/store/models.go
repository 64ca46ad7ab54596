package store

import "time"

// WorkflowState is a Movie's position in the pipeline (spec.md §3).
type WorkflowState string

const (
	StateNeedsIdentification WorkflowState = "needs_identification"
	StatePendingMetadata      WorkflowState = "pending_metadata"
	StateIdentified           WorkflowState = "identified"
	StateEnriched             WorkflowState = "enriched"
	StatePublished            WorkflowState = "published"
	StateFailed               WorkflowState = "failed"
)

// Movie is the primary unit of work.
type Movie struct {
	ID              int64          `db:"id"`
	LibraryID       int64          `db:"library_id"`
	PrimaryDBID     *int64         `db:"primary_db_id"`
	IMDbID          *string        `db:"imdb_id"`
	SecondaryDBID   *int64         `db:"secondary_db_id"`
	Title           string         `db:"title"`
	TitleLocked     bool           `db:"title_locked"`
	OriginalTitle   string         `db:"original_title"`
	SortTitle       string         `db:"sort_title"`
	SortTitleLocked bool           `db:"sort_title_locked"`
	Year            *int           `db:"year"`
	Plot            string         `db:"plot"`
	PlotLocked      bool           `db:"plot_locked"`
	Tagline         string         `db:"tagline"`
	TaglineLocked   bool           `db:"tagline_locked"`
	RuntimeMinutes  *int           `db:"runtime_minutes"`
	ContentRating   string         `db:"content_rating"`
	ReleaseDate     *time.Time     `db:"release_date"`
	Popularity      float64        `db:"popularity"`
	Budget          int64          `db:"budget"`
	Revenue         int64          `db:"revenue"`
	Language        string         `db:"language"`
	Status          string         `db:"status"`
	TrailerLocked   bool           `db:"trailer_locked"`
	FilePath        string         `db:"file_path"`
	WorkflowState   WorkflowState  `db:"workflow_state"`
	Monitored       bool           `db:"monitored"`
	NFOParsedAt     *time.Time     `db:"nfo_parsed_at"`
	LastEnrichedAt  *time.Time     `db:"last_enriched_at"`
	PublishedAt     *time.Time     `db:"published_at"`
	PublishedNFOHash string        `db:"published_nfo_hash"`
	PurgeAfter      *time.Time     `db:"purge_after"`
	// LockedAssetTypes holds asset-type keys (poster, fanart, ...) whose
	// selection enrichment must preserve rather than re-score (spec.md §4.E
	// Phase 4 "locked asset types preserve their prior selection").
	LockedAssetTypes []string      `db:"locked_asset_types"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// IsFieldLocked reports whether enrichment must not overwrite field.
func (m *Movie) IsFieldLocked(field string) bool {
	switch field {
	case "title":
		return m.TitleLocked
	case "sort_title":
		return m.SortTitleLocked
	case "plot":
		return m.PlotLocked
	case "tagline":
		return m.TaglineLocked
	case "trailer":
		return m.TrailerLocked
	default:
		return false
	}
}

// IsAssetTypeLocked reports whether enrichment must preserve the current
// selection for assetType rather than re-scoring candidates.
func (m *Movie) IsAssetTypeLocked(assetType string) bool {
	for _, t := range m.LockedAssetTypes {
		if t == assetType {
			return true
		}
	}
	return false
}

// RelatedEntityKind enumerates the many-to-many link tables.
type RelatedEntityKind string

const (
	RelatedActor    RelatedEntityKind = "actor"
	RelatedGenre    RelatedEntityKind = "genre"
	RelatedDirector RelatedEntityKind = "director"
	RelatedWriter   RelatedEntityKind = "writer"
	RelatedStudio   RelatedEntityKind = "studio"
	RelatedCountry  RelatedEntityKind = "country"
	RelatedTag      RelatedEntityKind = "tag"
)

// MovieRating is one source's numeric rating (spec.md §3 "a small set of
// numeric ratings per source with vote counts"). Never merged across
// sources — each source keeps its own row.
type MovieRating struct {
	MovieID    int64   `db:"movie_id"`
	SourceName string  `db:"source_name"`
	Value      float64 `db:"value"`
	VoteCount  int     `db:"vote_count"`
}

type RelatedEntity struct {
	ID        int64             `db:"id"`
	Kind      RelatedEntityKind `db:"kind"`
	Name      string            `db:"name"`
	NameLower string            `db:"name_lower"`
}

type MovieRelation struct {
	MovieID         int64  `db:"movie_id"`
	RelatedEntityID int64  `db:"related_entity_id"`
	Role            string `db:"role"` // e.g. character role for actors
	SortOrder       int    `db:"sort_order"`
}

// AssetType enumerates the supported image/video/subtitle kinds.
type AssetType string

const (
	AssetPoster       AssetType = "poster"
	AssetFanart       AssetType = "fanart"
	AssetBanner       AssetType = "banner"
	AssetClearLogo    AssetType = "clearlogo"
	AssetClearArt     AssetType = "clearart"
	AssetDiscArt      AssetType = "discart"
	AssetLandscape    AssetType = "landscape"
	AssetCharacterArt AssetType = "characterart"
	AssetTrailer      AssetType = "trailer"
	AssetSubtitle     AssetType = "subtitle"
	AssetKeyArt       AssetType = "keyart"
	AssetThumb        AssetType = "thumb"
)

// AllAssetTypes enumerates every AssetType constant above, in the order
// publish and enrichment walk them.
var AllAssetTypes = []AssetType{
	AssetPoster, AssetFanart, AssetBanner, AssetClearLogo, AssetClearArt,
	AssetDiscArt, AssetLandscape, AssetCharacterArt, AssetTrailer,
	AssetSubtitle, AssetKeyArt, AssetThumb,
}

type AssetCandidate struct {
	ID              int64     `db:"id"`
	EntityType      string    `db:"entity_type"`
	EntityID        int64     `db:"entity_id"`
	AssetType       AssetType `db:"asset_type"`
	ProviderName    string    `db:"provider_name"`
	ProviderURL     string    `db:"provider_url"`
	Width           int       `db:"width"`
	Height          int       `db:"height"`
	DurationSeconds float64   `db:"duration_seconds"`
	Language        string    `db:"language"`
	ContentHash     string    `db:"content_hash"`
	PerceptualHash  *int64    `db:"perceptual_hash"`
	VoteCount       int       `db:"vote_count"`
	LikesCount      int       `db:"likes_count"`
	IsOfficial      bool      `db:"is_official"`
	Score           float64   `db:"score"`
	IsSelected      bool      `db:"is_selected"`
	Rank            int       `db:"rank"`
	CreatedAt       time.Time `db:"created_at"`
}

type RejectedAsset struct {
	EntityType string `db:"entity_type"`
	EntityID   int64  `db:"entity_id"`
	FilePath   string `db:"file_path"`
}

type ProviderCacheRow struct {
	EntityType string    `db:"entity_type"`
	ExternalID string    `db:"external_id"`
	Payload    []byte    `db:"payload"`
	FetchedAt  time.Time `db:"fetched_at"`
}

type TrailerFailureReason string

const (
	TrailerFailureNone        TrailerFailureReason = ""
	TrailerFailureUnavailable TrailerFailureReason = "unavailable"
	TrailerFailureRateLimited TrailerFailureReason = "rate_limited"
	TrailerFailureDownloadErr TrailerFailureReason = "download_error"
)

type TrailerCandidate struct {
	ID               int64                `db:"id"`
	EntityType       string               `db:"entity_type"`
	EntityID         int64                `db:"entity_id"`
	URL              string               `db:"url"`
	Site             string               `db:"site"`
	Analyzed         bool                 `db:"analyzed"`
	ResolutionHeight int                  `db:"resolution_height"`
	DurationSeconds  float64              `db:"duration_seconds"`
	Official         bool                 `db:"official"`
	Language         string               `db:"language"`
	Score            float64              `db:"score"`
	FailureReason    TrailerFailureReason `db:"failure_reason"`
	RetryAfter       *time.Time           `db:"retry_after"`
	FailureCount     int                  `db:"failure_count"`
	IsSelected       bool                 `db:"is_selected"`
	ContentHash      string               `db:"content_hash"`
}

// JobState is the lifecycle of a persisted Job row.
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobDead       JobState = "dead"
)

// Job priorities, lower runs first (spec.md §4.H).
const (
	PriorityCritical    = 1
	PriorityHigh        = 2
	PriorityHighDerived = 3
	PriorityNormal      = 5
	PriorityLow         = 7
)

type Job struct {
	ID            int64     `db:"id"`
	Type          string    `db:"type"`
	Priority      int       `db:"priority"`
	Payload       []byte    `db:"payload"`
	State         JobState  `db:"state"`
	RetryCount    int       `db:"retry_count"`
	MaxRetries    int       `db:"max_retries"`
	ScheduledAt   time.Time `db:"scheduled_at"`
	LeasedUntil   *time.Time `db:"leased_until"`
	LastError     string    `db:"last_error"`
	CorrelationID *string   `db:"correlation_id"`
	EntityType    string    `db:"entity_type"`
	EntityID      int64     `db:"entity_id"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// IsEntityScoped reports whether this job type must serialize per entity.
func (j *Job) IsEntityScoped() bool {
	switch j.Type {
	case "scan-movie", "enrich-metadata", "publish":
		return true
	default:
		return false
	}
}

type Library struct {
	ID                          int64  `db:"id"`
	Name                        string `db:"name"`
	RootPath                    string `db:"root_path"`
	AutoScan                    bool   `db:"auto_scan"`
	AutoEnrich                  bool   `db:"auto_enrich"`
	AutoPublish                 bool   `db:"auto_publish"`
	ScanIntervalHours           int    `db:"scan_interval_hours"`
	ProviderUpdateIntervalHours int    `db:"provider_update_interval_hours"`
}

type SchedulerCadence string

const (
	CadenceScan           SchedulerCadence = "scan"
	CadenceProviderUpdate SchedulerCadence = "provider_update"
)

type SchedulerState struct {
	LibraryID     int64            `db:"library_id"`
	Cadence       SchedulerCadence `db:"cadence"`
	Enabled       bool             `db:"enabled"`
	IntervalHours int              `db:"interval_hours"`
	LastRunAt     *time.Time       `db:"last_run_at"`
}

type ActivityEntry struct {
	ID         int64     `db:"id"`
	OccurredAt time.Time `db:"occurred_at"`
	Kind       string    `db:"kind"`
	EntityType string    `db:"entity_type"`
	EntityID   int64     `db:"entity_id"`
	Message    string    `db:"message"`
}

type RecycleBinEntry struct {
	EntityType string    `db:"entity_type"`
	EntityID   int64     `db:"entity_id"`
	DeletedAt  time.Time `db:"deleted_at"`
	PurgeAfter time.Time `db:"purge_after"`
}
