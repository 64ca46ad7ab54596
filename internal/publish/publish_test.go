package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/filmvault/curator/internal/cache"
	"github.com/filmvault/curator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeBasenameStripsDisallowedCharacters(t *testing.T) {
	assert.Equal(t, "Movie_ Title_ (2020)_", sanitizeBasename("Movie: Title? (2020)!"))
}

func TestSanitizeBasenameStripsPathTraversal(t *testing.T) {
	got := sanitizeBasename("../../etc/passwd")
	assert.NotContains(t, got, "..")
	assert.NotContains(t, got, "/")
}

func TestSanitizeBasenameKeepsParenthesesAndDashes(t *testing.T) {
	assert.Equal(t, "Inception (2010)-poster", sanitizeBasename("Inception (2010)-poster"))
}

func TestExtensionForAsset(t *testing.T) {
	assert.Equal(t, ".mkv", extensionForAsset(store.AssetTrailer))
	assert.Equal(t, ".srt", extensionForAsset(store.AssetSubtitle))
	assert.Equal(t, ".jpg", extensionForAsset(store.AssetPoster))
	assert.Equal(t, ".jpg", extensionForAsset(store.AssetFanart))
	assert.Equal(t, ".jpg", extensionForAsset(store.AssetKeyArt))
	assert.Equal(t, ".jpg", extensionForAsset(store.AssetThumb))
}

func TestAssetSuffixesCoverEveryPublishableType(t *testing.T) {
	for _, want := range store.AllAssetTypes {
		_, ok := AssetSuffixes[want]
		assert.Truef(t, ok, "missing suffix for %s", want)
	}
}

func TestSuffixForUsesCanonicalMapping(t *testing.T) {
	suffix, err := suffixFor(store.AssetSubtitle)
	require.NoError(t, err)
	assert.Equal(t, "-subtitle", suffix)
}

func TestSuffixForFallsBackForUnmappedType(t *testing.T) {
	suffix, err := suffixFor(store.AssetType("director_cut_art"))
	require.NoError(t, err)
	assert.Equal(t, "-director_cut_art", suffix)
}

func TestSuffixForRefusesFallbackCollidingWithFixedSuffix(t *testing.T) {
	// "disc" isn't a canonical key, but its "-<type>" fallback ("-disc")
	// collides with store.AssetDiscArt's own mapped suffix. Publishing it
	// unchecked would silently overwrite that file; suffixFor must refuse.
	_, err := suffixFor(store.AssetType("disc"))
	require.Error(t, err)
}

// fakeEntryStore is a minimal cache.EntryStore backing a real cache.Cache
// for copyFromCache, which only touches the cache — not the database.
type fakeEntryStore struct{ entries map[string]*cache.Entry }

func newFakeEntryStore() *fakeEntryStore { return &fakeEntryStore{entries: map[string]*cache.Entry{}} }

func (f *fakeEntryStore) Upsert(ctx context.Context, hash, path string, size int64, kind cache.Kind) error {
	f.entries[hash] = &cache.Entry{ContentHash: hash, Path: path, SizeBytes: size, Kind: kind}
	return nil
}
func (f *fakeEntryStore) Get(ctx context.Context, hash string) (*cache.Entry, error) {
	e, ok := f.entries[hash]
	if !ok {
		return nil, nil
	}
	return e, nil
}
func (f *fakeEntryStore) IncRef(ctx context.Context, hash string) error { return nil }
func (f *fakeEntryStore) DecRef(ctx context.Context, hash string) error { return nil }
func (f *fakeEntryStore) ZeroRefOlderThan(ctx context.Context, cutoff time.Time) ([]cache.Entry, error) {
	return nil, nil
}
func (f *fakeEntryStore) DeleteIfStillZero(ctx context.Context, hash string) (bool, error) {
	return false, nil
}

func TestCopyFromCacheAtomicallyCopiesBlob(t *testing.T) {
	root := t.TempDir()
	c := cache.New(root, newFakeEntryStore())
	ctx := t.Context()

	hash, _, err := c.Put(ctx, strings.NewReader("poster bytes"), cache.KindImage, ".jpg")
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "Movie-poster.jpg")
	p := &Publisher{Cache: c, now: time.Now}
	require.NoError(t, p.copyFromCache(ctx, hash, target))

	body, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "poster bytes", string(body))
}

func TestResultSuccessReflectsErrors(t *testing.T) {
	r := &Result{}
	assert.True(t, r.Success())
	r.Errors = append(r.Errors, assertErr{})
	assert.False(t, r.Success())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
