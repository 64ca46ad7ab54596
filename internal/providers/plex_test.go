package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlexPlayer(t *testing.T, handler http.HandlerFunc) *PlexPlayer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewPlexPlayer(srv.URL, "tok", "5")
	p.client = srv.Client()
	return p
}

func TestPlexFindMatchesByYear(t *testing.T) {
	p := newTestPlexPlayer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MediaContainer":{"Metadata":[
			{"ratingKey":"100","year":2010},
			{"ratingKey":"200","year":2020}
		]}}`))
	})
	id, found, err := p.Find(t.Context(), PlayerFindQuery{Title: "Inception", Year: 2020})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "200", id)
}

func TestPlexFindFallsBackToFirstWhenYearUnspecified(t *testing.T) {
	p := newTestPlexPlayer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MediaContainer":{"Metadata":[{"ratingKey":"100","year":2010}]}}`))
	})
	id, found, err := p.Find(t.Context(), PlayerFindQuery{Title: "Inception"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "100", id)
}

func TestPlexFindReturnsNotFoundOnEmptyQuery(t *testing.T) {
	p := newTestPlexPlayer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not make a request when title is empty")
	})
	_, found, err := p.Find(t.Context(), PlayerFindQuery{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPlexIsScanningReadsRefreshingFlag(t *testing.T) {
	p := newTestPlexPlayer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MediaContainer":{"refreshing":true}}`))
	})
	scanning, err := p.IsScanning(t.Context())
	require.NoError(t, err)
	assert.True(t, scanning)
}

func TestPlexGetInstancesReturnsSelf(t *testing.T) {
	p := NewPlexPlayer("http://plex.local", "tok", "5")
	p.IsActive = true
	instances, err := p.GetInstances(t.Context())
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "5", instances[0].ID)
	assert.True(t, instances[0].IsActive)
}

func TestPlexOnScanFinishedIsNil(t *testing.T) {
	p := NewPlexPlayer("http://plex.local", "tok", "5")
	assert.Nil(t, p.OnScanFinished())
}

func TestPlexScanReturnsErrorOnNon2xx(t *testing.T) {
	p := newTestPlexPlayer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := p.Scan(t.Context(), "/data/movie")
	assert.Error(t, err)
}
