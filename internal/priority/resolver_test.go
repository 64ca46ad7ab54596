package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func balancedPreset() Preset {
	return Preset{Name: "balanced"}
}

func TestForcedLocalFieldsIgnorePreset(t *testing.T) {
	custom := Preset{
		Name: "custom",
		Entries: map[Category]map[string][]string{
			CategoryMetadata: {"runtime": {"tmdb", "imdb"}},
		},
	}
	r := New(EntityMovie, custom)
	assert.Equal(t, []string{"local"}, r.Resolve(CategoryMetadata, "runtime"))

	r2 := New(EntityMovie, balancedPreset())
	assert.Equal(t, []string{"local"}, r2.Resolve(CategoryMetadata, "runtime"))
}

func TestBalancedDefaultsMovies(t *testing.T) {
	r := New(EntityMovie, balancedPreset())
	assert.Equal(t, []string{"imdb", "tmdb", "local"}, r.Resolve(CategoryMetadata, "title"))
	assert.Equal(t, []string{"fanart_tv", "tmdb", "local"}, r.Resolve(CategoryImage, "poster"))
}

func TestBalancedDefaultsTV(t *testing.T) {
	r := New(EntityTV, balancedPreset())
	assert.Equal(t, []string{"tvdb", "tmdb", "local"}, r.Resolve(CategoryMetadata, "title"))
	assert.Equal(t, []string{"fanart_tv", "tvdb", "tmdb", "local"}, r.Resolve(CategoryImage, "poster"))
}

func TestCustomPresetFiltersDisabled(t *testing.T) {
	custom := Preset{
		Name: "custom",
		Entries: map[Category]map[string][]string{
			CategoryMetadata: {"plot": {"imdb", "tmdb", "local"}},
		},
		Disabled: map[string]bool{"imdb": true},
	}
	r := New(EntityMovie, custom)
	assert.Equal(t, []string{"tmdb", "local"}, r.Resolve(CategoryMetadata, "plot"))
}

func TestCustomPresetFallsBackToDefaultsWhenKeyMissing(t *testing.T) {
	custom := Preset{Name: "custom", Entries: map[Category]map[string][]string{}}
	r := New(EntityMovie, custom)
	assert.Equal(t, []string{"imdb", "tmdb", "local"}, r.Resolve(CategoryMetadata, "title"))
}

func TestLocalAlwaysLast(t *testing.T) {
	custom := Preset{
		Name: "custom",
		Entries: map[Category]map[string][]string{
			CategoryMetadata: {"title": {"local", "tmdb", "imdb"}},
		},
	}
	r := New(EntityMovie, custom)
	order := r.Resolve(CategoryMetadata, "title")
	assert.Equal(t, "local", order[len(order)-1])
}
