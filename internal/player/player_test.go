package player

import (
	"context"
	"testing"
	"time"

	"github.com/filmvault/curator/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupMapPathRewritesConfiguredPrefix(t *testing.T) {
	g := Group{PathMapping: map[string]string{"/mnt/media": "/data"}}
	assert.Equal(t, "/data/Movie (2020)", g.mapPath("/mnt/media/Movie (2020)"))
}

func TestGroupMapPathLeavesUnmappedPathUnchanged(t *testing.T) {
	g := Group{PathMapping: map[string]string{"/mnt/media": "/data"}}
	assert.Equal(t, "/elsewhere/Movie (2020)", g.mapPath("/elsewhere/Movie (2020)"))
}

// fakePlayer is a minimal in-memory providers.ExternalPlayer for exercising
// the adapter's scenarios without a real media server.
type fakePlayer struct {
	instances    []providers.PlayerInstance
	scanCalls    []string
	foundAfter   int // Find reports found once scanCalls reaches this length
	externalID   string
	refreshCalls []string
	removeCalls  []string
}

func (f *fakePlayer) Scan(ctx context.Context, directory string) error {
	f.scanCalls = append(f.scanCalls, directory)
	return nil
}
func (f *fakePlayer) Refresh(ctx context.Context, id string) error {
	f.refreshCalls = append(f.refreshCalls, id)
	return nil
}
func (f *fakePlayer) Remove(ctx context.Context, id string) error {
	f.removeCalls = append(f.removeCalls, id)
	return nil
}
func (f *fakePlayer) Find(ctx context.Context, q providers.PlayerFindQuery) (string, bool, error) {
	if q.ExternalID != "" && q.ExternalID == f.externalID && len(f.scanCalls) >= f.foundAfter {
		return "item-1", true, nil
	}
	return "", false, nil
}
func (f *fakePlayer) IsScanning(ctx context.Context) (bool, error) { return false, nil }
func (f *fakePlayer) GetInstances(ctx context.Context) ([]providers.PlayerInstance, error) {
	return f.instances, nil
}
func (f *fakePlayer) OnScanFinished() <-chan struct{} { return nil }

var _ providers.ExternalPlayer = (*fakePlayer)(nil)

func adapterForTest(p *fakePlayer) *Adapter {
	a := New(p)
	a.PollInterval = time.Millisecond
	a.ScanCap = 5 * time.Millisecond
	a.FullScanCap = 5 * time.Millisecond
	a.RefreshCap = 5 * time.Millisecond
	return a
}

func TestPublishedSucceedsOnDirectoryScan(t *testing.T) {
	p := &fakePlayer{
		instances:  []providers.PlayerInstance{{ID: "main"}},
		foundAfter: 1,
		externalID: "tt123",
	}
	a := adapterForTest(p)
	err := a.Published(context.Background(), Group{LibraryID: 1}, "/data/movie", "tt123")
	require.NoError(t, err)
	assert.Len(t, p.scanCalls, 1)
}

func TestPublishedSkipsActiveInstances(t *testing.T) {
	p := &fakePlayer{instances: []providers.PlayerInstance{{ID: "main", IsActive: true}}}
	a := adapterForTest(p)
	err := a.Published(context.Background(), Group{LibraryID: 1, SkipActive: true}, "/data/movie", "tt123")
	assert.Error(t, err)
	assert.Empty(t, p.scanCalls)
}

func TestDeletedIsNoOpWhenItemNotFound(t *testing.T) {
	p := &fakePlayer{}
	a := adapterForTest(p)
	err := a.Deleted(context.Background(), "tt999", "/data/movie", "Some Movie", 2020)
	require.NoError(t, err)
	assert.Empty(t, p.removeCalls)
}
