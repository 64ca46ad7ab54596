// Package enrich implements the five-phase enrichment pipeline of spec.md
// §4.E: provider fetch, trailer analysis, trailer selection, asset scoring
// and selection, and publish handoff.
package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/priority"
	"github.com/filmvault/curator/internal/providers"
	"github.com/filmvault/curator/internal/store"
)

// AssetLimits maps an asset type to the maximum number of selected
// candidates (spec.md §4.E Phase 4 "configured asset-limit per type").
var AssetLimits = map[store.AssetType]int{
	store.AssetPoster:       1,
	store.AssetFanart:       3,
	store.AssetBanner:       1,
	store.AssetClearLogo:    1,
	store.AssetClearArt:     1,
	store.AssetDiscArt:      1,
	store.AssetLandscape:    1,
	store.AssetCharacterArt: 5,
	store.AssetSubtitle:     5, // one per language track
	store.AssetKeyArt:       1,
	store.AssetThumb:        1,
}

// JobEnqueuer is the seam Phase 5 uses to hand off to the publisher without
// importing internal/queue (which in turn depends on this package's handler
// registration, avoiding an import cycle).
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType string, priority int, payload any, entityType string, entityID int64) error
}

// Input parametrizes a single enrichment run (spec.md §4.E).
type Input struct {
	EntityID          int64
	EntityType        string // "movie" (others out of scope per SPEC_FULL §1)
	Manual            bool
	ForceRefresh      bool
	PreferredLanguage string
	MaxResolution     int
	JobPriority       int // propagated to the Phase 5 publish handoff job
	PhaseConfig       PhaseConfig
}

type PhaseConfig struct {
	RunFetch    bool
	RunTrailers bool
	RunAssets   bool
	RunPublish  bool
}

func AllPhases() PhaseConfig {
	return PhaseConfig{RunFetch: true, RunTrailers: true, RunAssets: true, RunPublish: true}
}

// Pipeline wires the collaborators each phase needs.
type Pipeline struct {
	Movies       *store.MovieRepo
	Assets       *store.AssetRepo
	Libraries    *store.LibraryRepo
	Orchestrator   *providers.Orchestrator
	VideoProbe     providers.VideoMetadataProvider
	ImageProviders []providers.ImageProvider // supplement the merged metadata fetch's own images, e.g. fanart.tv
	PriorityFor    func(entityType string) *priority.Resolver
	Queue          JobEnqueuer

	TrailerPacing time.Duration // 2s between probes, spec.md §4.E Phase 2
}

func New(movies *store.MovieRepo, assets *store.AssetRepo, libraries *store.LibraryRepo,
	orchestrator *providers.Orchestrator, videoProbe providers.VideoMetadataProvider,
	priorityFor func(string) *priority.Resolver, queue JobEnqueuer) *Pipeline {
	return &Pipeline{
		Movies: movies, Assets: assets, Libraries: libraries,
		Orchestrator: orchestrator, VideoProbe: videoProbe,
		PriorityFor: priorityFor, Queue: queue,
		TrailerPacing: 2 * time.Second,
	}
}

// Run executes the phases selected by in.PhaseConfig in order.
func (p *Pipeline) Run(ctx context.Context, in Input) error {
	movie, err := p.Movies.Get(ctx, in.EntityID)
	if err != nil {
		return err
	}

	if in.PhaseConfig.RunFetch {
		if err := p.phaseFetch(ctx, in, movie); err != nil {
			return err
		}
		movie, err = p.Movies.Get(ctx, in.EntityID)
		if err != nil {
			return err
		}
	}
	if in.PhaseConfig.RunTrailers {
		if err := p.phaseTrailerAnalysis(ctx, in, movie); err != nil {
			return err
		}
		if err := p.phaseTrailerSelection(ctx, in, movie); err != nil {
			return err
		}
	}
	if in.PhaseConfig.RunAssets {
		if err := p.phaseAssetSelection(ctx, in, movie); err != nil {
			return err
		}
	}
	if in.PhaseConfig.RunPublish {
		if err := p.phasePublishHandoff(ctx, in, movie); err != nil {
			return err
		}
	}
	return nil
}

// phaseFetch is Phase 1 (fetch.go), phaseTrailerAnalysis/phaseTrailerSelection
// are Phase 2/3 (trailers.go), phaseAssetSelection is Phase 4 (assets.go),
// phasePublishHandoff is Phase 5 (publish_handoff.go).

func deriveSortTitle(title string) string {
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, article) {
			return strings.TrimSpace(title[len(article):])
		}
	}
	return title
}

func classifyFetchErr(err error) error {
	if tagged, ok := errs.As(err); ok {
		return tagged
	}
	return errs.Wrap(errs.KindProviderUnavailable, err, "fetch failed")
}
