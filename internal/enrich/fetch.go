package enrich

import (
	"context"
	"strconv"
	"strings"

	"github.com/filmvault/curator/internal/providers"
	"github.com/filmvault/curator/internal/store"
)

// phaseFetch is spec.md §4.E Phase 1: provider fetch, lock-respecting field
// copy, related-entity upsert, and asset-candidate population.
func (p *Pipeline) phaseFetch(ctx context.Context, in Input, movie *store.Movie) error {
	if !movie.Monitored && !in.Manual {
		return nil
	}

	keys := providers.MovieLookupKeys{}
	if movie.PrimaryDBID != nil {
		keys.TMDbID = movie.PrimaryDBID
	}
	if movie.IMDbID != nil {
		keys.IMDbID = movie.IMDbID
	}
	cacheKey := "movie:" + strconv.FormatInt(movie.ID, 10)

	result, err := p.Orchestrator.Fetch(ctx, in.EntityType, cacheKey, keys,
		providers.FetchOptions{PreferredLanguage: in.PreferredLanguage}, in.ForceRefresh)
	if err != nil {
		return classifyFetchErr(err)
	}
	if result.Movie == nil {
		return nil // all providers failed non-retryably: enrichment no-op (spec.md §4.D)
	}
	normalized := result.Movie

	updated := *movie
	updated.Title = normalized.Title
	updated.OriginalTitle = normalized.OriginalTitle
	if !movie.SortTitleLocked && movie.SortTitle == "" {
		updated.SortTitle = deriveSortTitle(normalized.Title)
	}
	updated.Plot = normalized.Plot
	updated.Tagline = normalized.Tagline
	if normalized.RuntimeMinutes > 0 {
		updated.RuntimeMinutes = &normalized.RuntimeMinutes
	}
	updated.ContentRating = normalized.ContentRating
	updated.ReleaseDate = normalized.ReleaseDate
	updated.Popularity = normalized.Popularity
	updated.Budget = normalized.Budget
	updated.Revenue = normalized.Revenue
	updated.Language = normalized.Language
	updated.Status = normalized.Status
	updated.WorkflowState = store.StateEnriched
	if normalized.IMDbID != "" {
		updated.IMDbID = &normalized.IMDbID
	}

	if err := p.Movies.ApplyEnrichment(ctx, &updated); err != nil {
		return err
	}

	if err := p.upsertRelated(ctx, movie.ID, store.RelatedActor, normalized.Actors); err != nil {
		return err
	}
	if err := p.upsertRelatedNames(ctx, movie.ID, store.RelatedGenre, normalized.Genres); err != nil {
		return err
	}
	if err := p.upsertRelated(ctx, movie.ID, store.RelatedDirector, normalized.Directors); err != nil {
		return err
	}
	if err := p.upsertRelated(ctx, movie.ID, store.RelatedWriter, normalized.Writers); err != nil {
		return err
	}
	if err := p.upsertRelatedNames(ctx, movie.ID, store.RelatedStudio, normalized.Studios); err != nil {
		return err
	}
	if err := p.upsertRelatedNames(ctx, movie.ID, store.RelatedCountry, normalized.Countries); err != nil {
		return err
	}

	for _, rating := range normalized.Ratings {
		if err := p.Movies.UpsertRating(ctx, movie.ID, rating.SourceName, rating.Value, rating.VoteCount); err != nil {
			return err
		}
	}

	for _, img := range normalized.Images {
		candidate := &store.AssetCandidate{
			EntityType:   in.EntityType,
			EntityID:     movie.ID,
			AssetType:    store.AssetType(img.AssetType),
			ProviderName: img.SourceName,
			ProviderURL:  img.URLPath,
			Width:        img.Width,
			Height:       img.Height,
			Language:     img.Language,
			VoteCount:    img.VoteCount,
			LikesCount:   img.LikesCount,
			IsOfficial:   img.IsOfficial,
		}
		if _, err := p.Assets.AddCandidate(ctx, candidate); err != nil {
			return err
		}
	}

	if movie.IMDbID != nil {
		for _, ip := range p.ImageProviders {
			for assetType := range AssetLimits {
				images, err := ip.GetImages(ctx, *movie.IMDbID, string(assetType))
				if err != nil {
					continue // a supplemental image provider failing doesn't fail the phase
				}
				for _, img := range images {
					candidate := &store.AssetCandidate{
						EntityType:   in.EntityType,
						EntityID:     movie.ID,
						AssetType:    store.AssetType(img.AssetType),
						ProviderName: img.SourceName,
						ProviderURL:  img.URLPath,
						Width:        img.Width,
						Height:       img.Height,
						Language:     img.Language,
						VoteCount:    img.VoteCount,
						LikesCount:   img.LikesCount,
						IsOfficial:   img.IsOfficial,
					}
					if _, err := p.Assets.AddCandidate(ctx, candidate); err != nil {
						return err
					}
				}
			}
		}
	}

	for _, v := range normalized.Videos {
		if !isSupportedTrailerSite(v.Site) {
			continue
		}
		trailer := &store.TrailerCandidate{
			EntityType: in.EntityType,
			EntityID:   movie.ID,
			URL:        buildWatchURL(v.Site, v.Key),
			Site:       v.Site,
			Official:   v.IsOfficial,
			Language:   v.Language,
		}
		if _, err := p.Assets.AddTrailerCandidate(ctx, trailer); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) upsertRelated(ctx context.Context, movieID int64, kind store.RelatedEntityKind, people []providers.NormalizedPerson) error {
	if err := p.Movies.ClearRelations(ctx, movieID, kind); err != nil {
		return err
	}
	for _, person := range people {
		id, err := p.Movies.UpsertRelatedEntity(ctx, kind, person.Name)
		if err != nil {
			return err
		}
		if err := p.Movies.LinkRelatedEntity(ctx, movieID, id, person.Role, person.SortOrder); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) upsertRelatedNames(ctx context.Context, movieID int64, kind store.RelatedEntityKind, names []string) error {
	if err := p.Movies.ClearRelations(ctx, movieID, kind); err != nil {
		return err
	}
	for i, name := range names {
		id, err := p.Movies.UpsertRelatedEntity(ctx, kind, name)
		if err != nil {
			return err
		}
		if err := p.Movies.LinkRelatedEntity(ctx, movieID, id, "", i); err != nil {
			return err
		}
	}
	return nil
}

var supportedTrailerSites = map[string]bool{"youtube": true, "vimeo": true}

func isSupportedTrailerSite(site string) bool {
	return supportedTrailerSites[strings.ToLower(site)]
}

// buildWatchURL constructs the canonical watch URL for a site/key pair
// (spec.md §4.E Phase 2 "build the canonical watch URL").
func buildWatchURL(site, key string) string {
	switch strings.ToLower(site) {
	case "youtube":
		return "https://www.youtube.com/watch?v=" + key
	case "vimeo":
		return "https://vimeo.com/" + key
	default:
		return key
	}
}
