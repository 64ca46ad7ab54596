package enrich

import (
	"context"

	"github.com/filmvault/curator/internal/cache"
	"github.com/filmvault/curator/internal/priority"
	"github.com/filmvault/curator/internal/store"
)

// Locked asset types preserve their prior selection rather than being
// re-scored (spec.md §4.E Phase 4). Trailer locking is handled separately in
// phaseTrailerSelection via Movie.TrailerLocked; image/video asset types use
// Movie.LockedAssetTypes.
func (p *Pipeline) phaseAssetSelection(ctx context.Context, in Input, movie *store.Movie) error {
	resolver := p.PriorityFor(in.EntityType)

	for assetType, limit := range AssetLimits {
		if movie.IsAssetTypeLocked(string(assetType)) {
			continue // locked: keep whatever is already selected
		}

		candidates, err := p.Assets.ListCandidates(ctx, in.EntityType, movie.ID, assetType)
		if err != nil {
			return err
		}
		order := resolver.Resolve(priority.CategoryImage, string(assetType))
		rank := make(map[string]int, len(order))
		for i, name := range order {
			rank[name] = i
		}

		for i := range candidates {
			candidates[i].Score = scoreAsset(&candidates[i], rank, in.PreferredLanguage)
		}

		isDuplicate := func(a, b store.AssetCandidate) bool {
			if a.ContentHash != "" && a.ContentHash == b.ContentHash {
				return true
			}
			if a.PerceptualHash != nil && b.PerceptualHash != nil {
				return cache.IsNearDuplicate(cache.PerceptualHash(*a.PerceptualHash), cache.PerceptualHash(*b.PerceptualHash))
			}
			return false
		}

		if _, err := p.Assets.SelectTopRanked(ctx, in.EntityType, movie.ID, assetType, limit, isDuplicate); err != nil {
			return err
		}
	}
	return nil
}

// scoreAsset implements spec.md §4.E Phase 4's scoring inputs: provider
// priority order, vote count, likes count, resolution, language match. Each
// factor is weighted so priority order dominates ties, matching §4.C's
// invariant that priority is "used only for tie-breaking when quality/vote
// signals are equal" — here expressed as a small additive bonus rather than
// a strict lexicographic sort, since candidates rarely tie exactly.
func scoreAsset(c *store.AssetCandidate, providerRank map[string]int, preferredLanguage string) float64 {
	score := 0.0
	if rank, ok := providerRank[c.ProviderName]; ok {
		score += float64(len(providerRank)-rank) * 10
	}
	score += float64(c.VoteCount)
	score += float64(c.LikesCount) * 0.5
	score += float64(c.Width*c.Height) / 1_000_000
	if preferredLanguage != "" && c.Language == preferredLanguage {
		score += 25
	}
	if c.IsOfficial {
		score += 15
	}
	return score
}
