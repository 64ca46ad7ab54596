// Package publish deploys selected assets and a generated NFO sidecar into
// a library directory (spec.md §4.F).
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/filmvault/curator/internal/cache"
	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/store"
)

// AssetSuffixes is the canonical suffix table (spec.md §4.F step 1).
var AssetSuffixes = map[store.AssetType]string{
	store.AssetPoster:       "-poster",
	store.AssetFanart:       "-fanart",
	store.AssetBanner:       "-banner",
	store.AssetClearLogo:    "-clearlogo",
	store.AssetClearArt:     "-clearart",
	store.AssetDiscArt:      "-disc",
	store.AssetLandscape:    "-landscape",
	store.AssetCharacterArt: "-characterart",
	store.AssetTrailer:      "-trailer",
	store.AssetSubtitle:     "-subtitle",
	store.AssetKeyArt:       "-keyart",
	store.AssetThumb:        "-thumb",
}

// suffixFor resolves the filename suffix for assetType. Every AssetType
// constant is mapped above; an asset type added to store.AllAssetTypes
// without a matching entry here falls back to the "-<type>" form (spec.md
// §9 Open Question 1), refusing to publish if that fallback would collide
// with one of the fixed suffixes already in use.
func suffixFor(assetType store.AssetType) (string, error) {
	if suffix, ok := AssetSuffixes[assetType]; ok {
		return suffix, nil
	}
	fallback := "-" + string(assetType)
	for known, suffix := range AssetSuffixes {
		if suffix == fallback && known != assetType {
			return "", errs.New(errs.KindInputInvalid, "asset suffix collides with a fixed media suffix").
				WithContext("asset_type", string(assetType)).WithContext("suffix", fallback)
		}
	}
	return fallback, nil
}

// sanitizeRe keeps the basename sanitization set from spec.md §4.F step 1;
// the teacher's equivalent (internal/extras.go's SanitizeFilename) only
// strips a narrower OS-reserved set, so this is widened to match the
// spec's explicit allow-list instead of reusing that regex verbatim.
var sanitizeRe = regexp.MustCompile(`[^A-Za-z0-9 _\-().]`)

func sanitizeBasename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	return sanitizeRe.ReplaceAllString(name, "_")
}

// PhaseConfig selects which publish steps run.
type PhaseConfig struct {
	PublishAssets   bool
	PublishActors   bool
	PublishTrailers bool
	GenerateNFO     bool
}

// Input parametrizes one publish call.
type Input struct {
	EntityID     int64
	EntityType   string
	LibraryPath  string
	MediaBaseName string
	PhaseConfig  PhaseConfig
}

// Result reports per-asset outcomes (spec.md §7 "publish call returns
// success = errors.length === 0").
type Result struct {
	AssetsCopied  int
	ActorsCopied  int
	NFOWritten    bool
	Errors        []error
}

func (r *Result) Success() bool { return len(r.Errors) == 0 }

// ActorImageFetcher downloads an actor's portrait into the cache if it
// isn't already there, returning the cache content hash.
type ActorImageFetcher interface {
	FetchActorImage(ctx context.Context, actorName string) (contentHash string, err error)
}

// Publisher wires the collaborators a publish run needs.
type Publisher struct {
	Cache  *cache.Cache
	Movies *store.MovieRepo
	Assets *store.AssetRepo
	Actors ActorImageFetcher

	now func() time.Time
}

func New(c *cache.Cache, movies *store.MovieRepo, assets *store.AssetRepo, actors ActorImageFetcher) *Publisher {
	return &Publisher{Cache: c, Movies: movies, Assets: assets, Actors: actors, now: time.Now}
}

// Run executes the publish steps (spec.md §4.F).
func (p *Publisher) Run(ctx context.Context, in Input) (*Result, error) {
	result := &Result{}

	if in.PhaseConfig.PublishAssets {
		p.publishAssets(ctx, in, result)
	}
	if in.PhaseConfig.PublishActors {
		p.publishActors(ctx, in, result)
	}
	if in.PhaseConfig.GenerateNFO {
		if err := p.publishNFO(ctx, in, result); err != nil {
			result.Errors = append(result.Errors, err)
		}
	}

	return result, nil
}

func (p *Publisher) publishAssets(ctx context.Context, in Input, result *Result) {
	for _, assetType := range store.AllAssetTypes {
		if assetType == store.AssetTrailer && !in.PhaseConfig.PublishTrailers {
			continue
		}
		suffix, err := suffixFor(assetType)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		candidates, err := p.Assets.ListCandidates(ctx, in.EntityType, in.EntityID, assetType)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		for _, c := range candidates {
			if !c.IsSelected {
				continue
			}
			if c.ContentHash == "" {
				continue // not yet downloaded into the cache
			}
			rankSuffix := suffix
			if c.Rank >= 2 {
				rankSuffix = suffix + strconv.Itoa(c.Rank-1)
			}
			ext := extensionForAsset(assetType)
			target := filepath.Join(in.LibraryPath, sanitizeBasename(in.MediaBaseName)+rankSuffix+ext)

			if err := p.copyFromCache(ctx, c.ContentHash, target); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.AssetsCopied++
		}
	}
}

func (p *Publisher) publishActors(ctx context.Context, in Input, result *Result) {
	actors, err := p.Movies.ListRelated(ctx, in.EntityID, store.RelatedActor)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}

	actorsDir := filepath.Join(in.LibraryPath, ".actors")
	if err := os.RemoveAll(actorsDir); err != nil {
		result.Errors = append(result.Errors, errs.Wrap(errs.KindFSWriteFailed, err, "remove actors dir"))
		return
	}
	if len(actors) == 0 {
		return
	}
	if err := os.MkdirAll(actorsDir, 0o755); err != nil {
		result.Errors = append(result.Errors, errs.Wrap(errs.KindFSWriteFailed, err, "recreate actors dir"))
		return
	}

	for _, actor := range actors {
		hash, err := p.Actors.FetchActorImage(ctx, actor.Name)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if hash == "" {
			continue
		}
		target := filepath.Join(actorsDir, sanitizeBasename(actor.Name)+".jpg")
		if err := p.copyFromCache(ctx, hash, target); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.ActorsCopied++
	}
}

// copyFromCache atomically copies a cached blob to target via
// ".tmp.<ts>"+rename (spec.md §4.F step 1).
func (p *Publisher) copyFromCache(ctx context.Context, contentHash, target string) error {
	src, err := p.Cache.Read(ctx, contentHash)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errs.Wrap(errs.KindFSWriteFailed, err, "mkdir publish target dir")
	}
	tmpPath := fmt.Sprintf("%s.tmp.%d", target, p.now().UnixNano())
	out, err := os.Create(tmpPath)
	if err != nil {
		return errs.Wrap(errs.KindFSWriteFailed, err, "create publish tmp file")
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindFSWriteFailed, err, "copy into publish tmp file").ForceRetryable(true)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindFSWriteFailed, err, "close publish tmp file")
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindFSWriteFailed, err, "rename into place")
	}
	return nil
}

func extensionForAsset(assetType store.AssetType) string {
	switch assetType {
	case store.AssetTrailer:
		return ".mkv"
	case store.AssetSubtitle:
		return ".srt"
	default:
		return ".jpg"
	}
}
