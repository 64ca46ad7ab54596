package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memEntryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func newMemEntryStore() *memEntryStore {
	return &memEntryStore{entries: map[string]*Entry{}}
}

func (m *memEntryStore) Upsert(ctx context.Context, hash, path string, size int64, kind Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[hash]; ok {
		e.Path = path
		e.SizeBytes = size
		return nil
	}
	m.entries[hash] = &Entry{ContentHash: hash, Path: path, SizeBytes: size, Kind: kind, CreatedAt: time.Now()}
	return nil
}

func (m *memEntryStore) Get(ctx context.Context, hash string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[hash]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memEntryStore) IncRef(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[hash]; ok {
		e.ReferenceCount++
	}
	return nil
}

func (m *memEntryStore) DecRef(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[hash]; ok && e.ReferenceCount > 0 {
		e.ReferenceCount--
	}
	return nil
}

func (m *memEntryStore) ZeroRefOlderThan(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.ReferenceCount == 0 && e.CreatedAt.Before(cutoff) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memEntryStore) DeleteIfStillZero(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[hash]
	if !ok || e.ReferenceCount != 0 {
		return false, nil
	}
	delete(m.entries, hash)
	return true, nil
}

func TestPutIsContentAddressedAndIdempotent(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, newMemEntryStore())
	ctx := context.Background()

	h1, p1, err := c.Put(ctx, strings.NewReader("hello world"), KindImage, ".jpg")
	require.NoError(t, err)
	require.NoError(t, c.RefInc(ctx, h1))

	h2, p2, err := c.Put(ctx, strings.NewReader("hello world"), KindImage, ".jpg")
	require.NoError(t, err)
	require.NoError(t, c.RefInc(ctx, h2))

	assert.Equal(t, h1, h2)
	assert.Equal(t, p1, p2)

	entry, err := c.Entries.Get(ctx, h1)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.ReferenceCount)
}

func TestGCSkipsEntriesWithReferences(t *testing.T) {
	dir := t.TempDir()
	store := newMemEntryStore()
	c := New(dir, store)
	ctx := context.Background()

	hash, _, err := c.Put(ctx, strings.NewReader("referenced"), KindImage, ".jpg")
	require.NoError(t, err)
	require.NoError(t, c.RefInc(ctx, hash))
	store.entries[hash].CreatedAt = time.Now().Add(-time.Hour)

	removed, err := c.GC(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestGCRemovesZeroRefEntries(t *testing.T) {
	dir := t.TempDir()
	store := newMemEntryStore()
	c := New(dir, store)
	ctx := context.Background()

	hash, _, err := c.Put(ctx, strings.NewReader("orphan"), KindImage, ".jpg")
	require.NoError(t, err)
	store.entries[hash].CreatedAt = time.Now().Add(-time.Hour)

	removed, err := c.GC(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = c.Read(ctx, hash)
	require.Error(t, err)
}

func TestPerceptualHashSimilarity(t *testing.T) {
	var a PerceptualHash = 0b1010101010101010
	var identical = a
	assert.Equal(t, 1.0, Similarity(a, identical))

	var allBitsFlipped PerceptualHash = ^a
	assert.InDelta(t, 0.0, Similarity(a, allBitsFlipped), 1e-9)
	assert.False(t, IsNearDuplicate(a, allBitsFlipped))
}
