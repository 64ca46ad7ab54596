package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/store"
)

// phaseTrailerAnalysis is spec.md §4.E Phase 2: probe every unanalyzed
// trailer candidate, pacing calls 2 seconds apart, and classify failures.
func (p *Pipeline) phaseTrailerAnalysis(ctx context.Context, in Input, movie *store.Movie) error {
	candidates, err := p.Assets.ListTrailerCandidates(ctx, in.EntityType, movie.ID)
	if err != nil {
		return err
	}

	first := true
	for _, c := range candidates {
		if c.Analyzed {
			continue
		}
		if !first {
			select {
			case <-time.After(p.TrailerPacing):
			case <-ctx.Done():
				return errs.Wrap(errs.KindTimeout, ctx.Err(), "trailer analysis cancelled").ForceRetryable(true)
			}
		}
		first = false

		result, probeErr := p.VideoProbe.Probe(ctx, c.URL)
		updated := c
		if probeErr != nil {
			applyTrailerFailure(&updated, probeErr)
		} else if result == nil {
			updated.FailureReason = store.TrailerFailureUnavailable
		} else {
			updated.Analyzed = true
			updated.ResolutionHeight = result.BestHeight
			updated.DurationSeconds = result.Duration.Seconds()
			updated.FailureReason = store.TrailerFailureNone
		}

		if err := p.Assets.RecordAnalysis(ctx, c.ID, &updated); err != nil {
			return err
		}
	}
	return nil
}

// applyTrailerFailure classifies a probe error into the three trailer
// failure reasons spec.md §4.E Phase 2 names (rate_limited / unavailable /
// download_error).
func applyTrailerFailure(c *store.TrailerCandidate, probeErr error) {
	tagged, ok := errs.As(probeErr)
	if !ok {
		c.FailureReason = store.TrailerFailureDownloadErr
		return
	}
	switch {
	case tagged.Kind == errs.KindProviderRateLimit:
		c.FailureReason = store.TrailerFailureRateLimited
		retryAfter := time.Now().Add(time.Hour)
		if tagged.RetryAfter > 0 {
			retryAfter = time.Now().Add(tagged.RetryAfter)
		}
		c.RetryAfter = &retryAfter
	case tagged.Kind == errs.KindProviderUnavailable || containsUnavailableText(tagged.Message):
		c.FailureReason = store.TrailerFailureUnavailable
	default:
		c.FailureReason = store.TrailerFailureDownloadErr
	}
}

func containsUnavailableText(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "unavailable") || strings.Contains(lower, "private") || strings.Contains(lower, "removed")
}

// phaseTrailerSelection is spec.md §4.E Phase 3: score analyzed candidates
// and select the best one, unless the trailer field is locked.
func (p *Pipeline) phaseTrailerSelection(ctx context.Context, in Input, movie *store.Movie) error {
	if movie.TrailerLocked {
		return nil
	}

	candidates, err := p.Assets.ListTrailerCandidates(ctx, in.EntityType, movie.ID)
	if err != nil {
		return err
	}

	var best *store.TrailerCandidate
	var bestScore float64 = -1
	for i := range candidates {
		c := &candidates[i]
		if !c.Analyzed || c.FailureReason == store.TrailerFailureUnavailable {
			continue
		}
		score := scoreTrailer(c, in.PreferredLanguage, in.MaxResolution)
		c.Score = score
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if best == nil {
		return nil
	}
	return p.Assets.SelectTrailer(ctx, in.EntityType, movie.ID, best.ID)
}

// scoreTrailer implements spec.md §4.E Phase 3's scoring formula verbatim.
func scoreTrailer(c *store.TrailerCandidate, preferredLanguage string, maxResolutionConfig int) float64 {
	score := 0.0
	if c.Official {
		score += 100
	}
	if preferredLanguage != "" && c.Language == preferredLanguage {
		score += 50
	}

	effectiveHeight := c.ResolutionHeight
	if maxResolutionConfig > 0 && effectiveHeight > maxResolutionConfig {
		effectiveHeight = maxResolutionConfig
	}
	switch {
	case effectiveHeight >= 2160:
		score += 40
	case effectiveHeight >= 1080:
		score += 30
	case effectiveHeight >= 720:
		score += 20
	case effectiveHeight >= 480:
		score += 10
	}
	return score
}
