// Package priority implements the provider-priority resolver of spec.md
// §4.C: given a category and a field-or-asset-type key, it returns the
// ordered list of provider names to try, honoring forced-local fields and
// the active preset (built-in or custom). Field locks are not consulted
// here.
package priority

// Category scopes a resolution to metadata fields or image/asset types.
type Category string

const (
	CategoryMetadata Category = "metadata"
	CategoryImage    Category = "image"
)

// EntityKind selects which balanced-default table applies.
type EntityKind string

const (
	EntityMovie EntityKind = "movie"
	EntityTV    EntityKind = "tv"
	EntityMusic EntityKind = "music"
)

// FORCED_LOCAL_FIELDS never take a provider value, regardless of preset.
var ForcedLocalFields = map[string]bool{
	"runtime": true,
	"codec":   true,
	"file_path": true,
	"video_resolution": true,
}

// balancedDefaults are the fallback provider orders per (entity kind, category).
var balancedDefaults = map[EntityKind]map[Category][]string{
	EntityMovie: {
		CategoryMetadata: {"imdb", "tmdb", "local"},
		CategoryImage:    {"fanart_tv", "tmdb", "local"},
	},
	EntityTV: {
		CategoryMetadata: {"tvdb", "tmdb", "local"},
		CategoryImage:    {"fanart_tv", "tvdb", "tmdb", "local"},
	},
	EntityMusic: {
		CategoryMetadata: {"musicbrainz", "theaudiodb", "local"},
		CategoryImage:    {"theaudiodb", "musicbrainz", "local"},
	},
}

// Preset is a named, possibly-custom mapping of (category, key) -> ordered
// provider list, plus a disabled-provider set applied when active.
type Preset struct {
	Name      string // "balanced", "custom", ...
	Entries   map[Category]map[string][]string
	Disabled  map[string]bool
}

// IsCustom reports whether this preset is the user-editable override set.
func (p Preset) IsCustom() bool { return p.Name == "custom" }

// Resolver resolves provider order for a field or asset type.
type Resolver struct {
	Entity EntityKind
	Active Preset
}

func New(entity EntityKind, active Preset) *Resolver {
	return &Resolver{Entity: entity, Active: active}
}

// Resolve implements the first-match-wins rule chain from spec.md §4.C.
func (r *Resolver) Resolve(category Category, key string) []string {
	if ForcedLocalFields[key] {
		return []string{"local"}
	}

	if r.Active.IsCustom() {
		if byCat, ok := r.Active.Entries[category]; ok {
			if order, ok := byCat[key]; ok {
				return r.filterDisabled(order)
			}
		}
	}

	defaults := balancedDefaults[r.Entity][category]
	return r.filterDisabled(defaults)
}

func (r *Resolver) filterDisabled(order []string) []string {
	out := make([]string, 0, len(order))
	for _, name := range order {
		if r.Active.Disabled[name] {
			continue
		}
		out = append(out, name)
	}
	return ensureLocalLast(out)
}

// ensureLocalLast enforces the invariant that "local" never precedes
// another provider in a resolved order, without changing the relative
// order of the rest.
func ensureLocalLast(order []string) []string {
	out := make([]string, 0, len(order))
	hasLocal := false
	for _, name := range order {
		if name == "local" {
			hasLocal = true
			continue
		}
		out = append(out, name)
	}
	if hasLocal {
		out = append(out, "local")
	}
	return out
}
