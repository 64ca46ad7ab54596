package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/priority"
)

// CacheStore is the persistence seam for merged provider responses
// (internal/store.AssetRepo implements this against the provider_cache
// table).
type CacheStore interface {
	GetProviderCache(ctx context.Context, entityType, externalID string) (*CacheRow, error)
	PutProviderCache(ctx context.Context, entityType, externalID string, payload []byte) error
}

// CacheRow mirrors the persisted provider_cache row; kept independent of
// store's own row type so this package has no import-time dependency on
// internal/store.
type CacheRow struct {
	Payload   []byte
	FetchedAt time.Time
}

// FetchSource classifies where a FetchResult's data came from.
type FetchSource string

const (
	SourceCache   FetchSource = "cache"
	SourceFresh   FetchSource = "fresh"
	SourcePartial FetchSource = "partial"
)

type FetchResult struct {
	Movie        *NormalizedMovie
	Source       FetchSource
	Providers    []string
	CacheAge     time.Duration
}

// Orchestrator implements spec.md §4.D: consult the provider cache, else
// call every enabled provider in the resolver's order and merge.
type Orchestrator struct {
	Resolver  *priority.Resolver
	Providers map[string]MovieMetadataProvider // keyed by provider name
	Guard     *Guard
	Cache     CacheStore
	TTL       time.Duration
}

func NewOrchestrator(resolver *priority.Resolver, provs map[string]MovieMetadataProvider, guard *Guard, cache CacheStore, ttl time.Duration) *Orchestrator {
	return &Orchestrator{Resolver: resolver, Providers: provs, Guard: guard, Cache: cache, TTL: ttl}
}

// Fetch implements the cache-check, per-provider fan-out, and merge steps.
// cacheKey scopes the provider_cache row (the enrichment pipeline passes
// "movie:<internal movie id>", so two movie rows with the same external id
// do not share a cache row).
func (o *Orchestrator) Fetch(ctx context.Context, entityType, cacheKey string, keys MovieLookupKeys, opts FetchOptions, forceRefresh bool) (*FetchResult, error) {
	if !forceRefresh {
		row, err := o.Cache.GetProviderCache(ctx, entityType, cacheKey)
		if err != nil {
			return nil, err
		}
		if row != nil && time.Since(row.FetchedAt) < o.TTL {
			var movie NormalizedMovie
			if err := json.Unmarshal(row.Payload, &movie); err != nil {
				return nil, errs.Wrap(errs.KindSchemaMismatch, err, "unmarshal cached provider response")
			}
			return &FetchResult{Movie: &movie, Source: SourceCache, CacheAge: time.Since(row.FetchedAt)}, nil
		}
	}

	order := o.Resolver.Resolve(priority.CategoryMetadata, "title")

	var merged *NormalizedMovie
	var succeeded []string
	var retryableFailures []error
	var nonRetryableFailures int

	for _, name := range order {
		if name == "local" {
			continue
		}
		provider, ok := o.Providers[name]
		if !ok {
			continue
		}
		raw, callErr := o.Guard.Call(ctx, name, func() (any, error) {
			return provider.GetMovie(ctx, keys, opts)
		})
		if callErr != nil {
			if tagged, ok := errs.As(callErr); ok && !tagged.Retryable() {
				nonRetryableFailures++
			} else {
				retryableFailures = append(retryableFailures, callErr)
			}
			continue
		}
		result, _ := raw.(*NormalizedMovie)
		if result == nil {
			continue
		}
		succeeded = append(succeeded, name)
		merged = mergeMovie(merged, result)
	}

	if merged == nil {
		if len(retryableFailures) > 0 {
			return nil, errs.Wrap(errs.KindProviderUnavailable, retryableFailures[0], "all providers failed retryably")
		}
		// All failures non-retryable (or no providers configured): this is
		// an enrichment no-op per spec.md §4.D, not an error.
		return &FetchResult{Movie: nil, Source: SourcePartial}, nil
	}

	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, errs.Wrap(errs.KindInputInvalid, err, "marshal merged provider response")
	}
	if err := o.Cache.PutProviderCache(ctx, entityType, cacheKey, payload); err != nil {
		return nil, err
	}

	source := SourceFresh
	if len(retryableFailures) > 0 || nonRetryableFailures > 0 {
		source = SourcePartial
	}
	return &FetchResult{Movie: merged, Source: source, Providers: succeeded}, nil
}

// mergeMovie folds next into acc using first-non-null-wins for scalars and
// de-duplicated union for set-valued fields (spec.md §4.D step 3). acc may
// be nil on the first call.
func mergeMovie(acc, next *NormalizedMovie) *NormalizedMovie {
	if acc == nil {
		out := *next
		return &out
	}

	acc.Title = firstNonEmpty(acc.Title, next.Title)
	acc.OriginalTitle = firstNonEmpty(acc.OriginalTitle, next.OriginalTitle)
	acc.Plot = firstNonEmpty(acc.Plot, next.Plot)
	acc.Tagline = firstNonEmpty(acc.Tagline, next.Tagline)
	acc.ContentRating = firstNonEmpty(acc.ContentRating, next.ContentRating)
	acc.Language = firstNonEmpty(acc.Language, next.Language)
	acc.Status = firstNonEmpty(acc.Status, next.Status)
	acc.IMDbID = firstNonEmpty(acc.IMDbID, next.IMDbID)
	if acc.RuntimeMinutes == 0 {
		acc.RuntimeMinutes = next.RuntimeMinutes
	}
	if acc.ReleaseDate == nil {
		acc.ReleaseDate = next.ReleaseDate
	}
	if acc.Popularity == 0 {
		acc.Popularity = next.Popularity
	}
	if acc.Budget == 0 {
		acc.Budget = next.Budget
	}
	if acc.Revenue == 0 {
		acc.Revenue = next.Revenue
	}

	acc.Genres = unionStrings(acc.Genres, next.Genres)
	acc.Studios = unionStrings(acc.Studios, next.Studios)
	acc.Countries = unionStrings(acc.Countries, next.Countries)
	acc.Tags = unionStrings(acc.Tags, next.Tags)
	acc.Actors = unionPeople(acc.Actors, next.Actors)
	acc.Directors = unionPeople(acc.Directors, next.Directors)
	acc.Writers = unionPeople(acc.Writers, next.Writers)
	acc.Images = unionImages(acc.Images, next.Images)
	acc.Videos = unionVideos(acc.Videos, next.Videos)
	acc.Ratings = unionRatings(acc.Ratings, next.Ratings)
	return acc
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string{}, a...)
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func unionPeople(a, b []NormalizedPerson) []NormalizedPerson {
	seen := make(map[string]bool, len(a))
	out := append([]NormalizedPerson{}, a...)
	for _, p := range a {
		seen[p.SourceKey()] = true
	}
	for _, p := range b {
		key := p.SourceKey()
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}

// SourceKey identifies a person by (provider-internal-id, name) for the
// de-duplication rule in spec.md §4.D step 3; the provider's name is not
// part of the key.
func (p NormalizedPerson) SourceKey() string { return p.ExternalID + "|" + p.Name }

func unionImages(a, b []NormalizedImage) []NormalizedImage {
	seen := make(map[string]bool, len(a))
	out := append([]NormalizedImage{}, a...)
	for _, img := range a {
		seen[img.SourceName+"|"+img.ExternalID] = true
	}
	for _, img := range b {
		key := img.SourceName + "|" + img.ExternalID
		if !seen[key] {
			seen[key] = true
			out = append(out, img)
		}
	}
	return out
}

// unionRatings keeps at most one rating per source, matching "ratings
// remain per-source" (spec.md §4.D step 3) — never averaged or overwritten
// across refetches of the same source.
func unionRatings(a, b []NormalizedRating) []NormalizedRating {
	seen := make(map[string]bool, len(a))
	out := append([]NormalizedRating{}, a...)
	for _, r := range a {
		seen[r.SourceName] = true
	}
	for _, r := range b {
		if !seen[r.SourceName] {
			seen[r.SourceName] = true
			out = append(out, r)
		}
	}
	return out
}

func unionVideos(a, b []NormalizedVideo) []NormalizedVideo {
	seen := make(map[string]bool, len(a))
	out := append([]NormalizedVideo{}, a...)
	for _, v := range a {
		seen[v.SourceName+"|"+v.ExternalID] = true
	}
	for _, v := range b {
		key := v.SourceName + "|" + v.ExternalID
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}
