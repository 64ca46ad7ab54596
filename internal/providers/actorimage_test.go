package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/filmvault/curator/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memEntryStore struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
}

func newMemEntryStore() *memEntryStore { return &memEntryStore{entries: map[string]*cache.Entry{}} }

func (m *memEntryStore) Upsert(ctx context.Context, hash, path string, size int64, kind cache.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[hash] = &cache.Entry{ContentHash: hash, Path: path, SizeBytes: size, Kind: kind, CreatedAt: time.Now()}
	return nil
}
func (m *memEntryStore) Get(ctx context.Context, hash string) (*cache.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[hash]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}
func (m *memEntryStore) IncRef(ctx context.Context, hash string) error { return nil }
func (m *memEntryStore) DecRef(ctx context.Context, hash string) error { return nil }
func (m *memEntryStore) ZeroRefOlderThan(ctx context.Context, cutoff time.Time) ([]cache.Entry, error) {
	return nil, nil
}
func (m *memEntryStore) DeleteIfStillZero(ctx context.Context, hash string) (bool, error) {
	return false, nil
}

type fakeSearcher struct {
	url   string
	found bool
	err   error
}

func (f fakeSearcher) SearchPersonImage(ctx context.Context, name string) (string, bool, error) {
	return f.url, f.found, f.err
}

func TestFetchActorImageDownloadsAndCaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	c := cache.New(t.TempDir(), newMemEntryStore())
	a := NewActorImageCache(fakeSearcher{url: srv.URL + "/profile.jpg", found: true}, c)

	hash, err := a.FetchActorImage(t.Context(), "Keanu Reeves")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestFetchActorImageReturnsEmptyWhenNotFound(t *testing.T) {
	c := cache.New(t.TempDir(), newMemEntryStore())
	a := NewActorImageCache(fakeSearcher{found: false}, c)

	hash, err := a.FetchActorImage(t.Context(), "Nobody")
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestFetchActorImagePropagatesSearcherError(t *testing.T) {
	c := cache.New(t.TempDir(), newMemEntryStore())
	a := NewActorImageCache(fakeSearcher{err: errors.New("boom")}, c)

	_, err := a.FetchActorImage(t.Context(), "Someone")
	assert.Error(t, err)
}
