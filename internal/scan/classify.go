// Package scan walks a library directory tree, classifies files, and
// upserts the entities and local asset candidates they represent
// (spec.md §4.G).
package scan

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/filmvault/curator/internal/publish"
	"github.com/filmvault/curator/internal/store"
)

// videoExtensions is the O(1) lookup set for primary media files.
var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true,
	".mov": true, ".wmv": true, ".ts": true, ".webm": true,
}

var subtitleExtensions = map[string]bool{
	".srt": true, ".sub": true, ".ass": true, ".ssa": true,
}

const nfoExtension = ".nfo"

// assetPattern matches a sanitized-basename suffix (from publish.AssetSuffixes)
// followed by an optional rank digit and an image extension, e.g.
// "inception-fanart2.jpg". Precompiled once per asset type, per spec.md
// §4.G's "precompiled regex" requirement.
type assetPattern struct {
	assetType store.AssetType
	re        *regexp.Regexp
}

var assetPatterns = buildAssetPatterns()

func buildAssetPatterns() []assetPattern {
	patterns := make([]assetPattern, 0, len(publish.AssetSuffixes))
	for assetType, suffix := range publish.AssetSuffixes {
		if assetType == store.AssetTrailer {
			continue // trailers live under Trailers/Trailer subdirectories, not suffix-matched
		}
		pat := regexp.MustCompile(`(?i)^(.*)` + regexp.QuoteMeta(suffix) + `(\d*)\.(jpg|jpeg|png|webp)$`)
		patterns = append(patterns, assetPattern{assetType: assetType, re: pat})
	}
	return patterns
}

// classification is what classifyFile determined about one filesystem entry.
type classification struct {
	kind        string // "media", "nfo", "asset", "subtitle", "actor_thumb", "unknown"
	assetType   store.AssetType
	rank        int
	mediaPrefix string // the basename minus suffix/extension, for matching a local asset to its movie
}

func classifyFile(path string) classification {
	name := strings.ToLower(filepath.Base(path))
	ext := strings.ToLower(filepath.Ext(name))

	if filepath.Base(filepath.Dir(path)) == ".actors" {
		return classification{kind: "actor_thumb"}
	}
	if videoExtensions[ext] {
		return classification{kind: "media", mediaPrefix: strings.TrimSuffix(name, ext)}
	}
	if ext == nfoExtension {
		return classification{kind: "nfo", mediaPrefix: strings.TrimSuffix(name, ext)}
	}
	if subtitleExtensions[ext] {
		return classification{kind: "subtitle"}
	}
	for _, p := range assetPatterns {
		if m := p.re.FindStringSubmatch(name); m != nil {
			rank := 1
			if m[2] != "" {
				if n, err := strconv.Atoi(m[2]); err == nil {
					rank = n + 1 // publish.go writes rank>=2 as suffix+(rank-1)
				}
			}
			return classification{kind: "asset", assetType: p.assetType, rank: rank, mediaPrefix: m[1]}
		}
	}
	return classification{kind: "unknown"}
}

func isTrailerDir(dir string) bool {
	base := strings.ToLower(filepath.Base(dir))
	return base == "trailers" || base == "trailer"
}

func trailerCandidateURL(path string) string {
	// Local trailer files have no provider URL; use a stable file:// form so
	// AddCandidate's provider_url uniqueness constraint still dedups correctly.
	return "file://" + filepath.ToSlash(path)
}
