package providers

import "context"

// MovieLookupKeys is the "any subset of external ids" input to a metadata
// fetch (spec.md §4.D).
type MovieLookupKeys struct {
	TMDbID *int64
	IMDbID *string
	TVDbID *int64
}

// FetchOptions narrows what a provider call returns (e.g. preferred
// language), separate from the lookup keys themselves.
type FetchOptions struct {
	PreferredLanguage string
}

// MovieMetadataProvider adapts one external metadata source into the
// normalized shape (spec.md §6).
type MovieMetadataProvider interface {
	Name() string
	GetMovie(ctx context.Context, keys MovieLookupKeys, opts FetchOptions) (*NormalizedMovie, error)
}

// ImageProvider supplies images independent of (or supplementing) a
// metadata fetch.
type ImageProvider interface {
	Name() string
	GetImages(ctx context.Context, externalID string, assetType string) ([]NormalizedImage, error)
}

// VideoMetadataProvider probes a trailer URL for its playable properties.
// A nil result with a nil error means the video is unreachable/unavailable;
// adapters must distinguish rate-limit errors from other transient ones so
// the enrichment pipeline can classify failures per spec.md §4.E Phase 2.
type VideoMetadataProvider interface {
	Probe(ctx context.Context, url string) (*ProbeResult, error)
}

// VideoDownloader fetches trailer bytes to disk and can independently
// confirm whether a URL still exists, used to distinguish a genuinely
// unavailable video from a transient download failure.
type VideoDownloader interface {
	Download(ctx context.Context, url, outPath string, maxHeight int) (*DownloadResult, error)
	Verify(ctx context.Context, url string) (VerifyResult, error)
}

// ExternalPlayer is the single capability the player sync adapter (spec.md
// §4.K) operates over.
type ExternalPlayer interface {
	Scan(ctx context.Context, directory string) error
	Refresh(ctx context.Context, playerItemID string) error
	Remove(ctx context.Context, playerItemID string) error
	Find(ctx context.Context, q PlayerFindQuery) (playerItemID string, found bool, err error)
	IsScanning(ctx context.Context) (bool, error)
	GetInstances(ctx context.Context) ([]PlayerInstance, error)
	// OnScanFinished returns a channel a caller can select on for a push
	// notification; implementations without a streaming channel return nil
	// and callers fall back to polling IsScanning.
	OnScanFinished() <-chan struct{}
}

// NotificationChannel sends an activity payload to one configured
// destination (containrrr/shoutrrr-backed implementations live in
// internal/notify).
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, payload NotificationPayload) error
}

// NotificationPayload is the normalized event sent to every channel.
type NotificationPayload struct {
	Title      string
	Message    string
	EntityType string
	EntityID   int64
}
