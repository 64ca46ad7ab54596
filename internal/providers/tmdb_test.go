package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/filmvault/curator/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildImageURL(t *testing.T) {
	p := NewTMDbProvider("key")
	assert.Equal(t, "https://image.tmdb.org/t/p/original/poster.jpg", p.BuildImageURL("/poster.jpg"))
}

func newTestTMDbProvider(t *testing.T, handler http.HandlerFunc) *TMDbProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &TMDbProvider{APIKey: "key", BaseURL: srv.URL, Client: srv.Client()}
}

func TestGetMovieNormalizesResponse(t *testing.T) {
	p := newTestTMDbProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": 603, "imdb_id": "tt0133093", "title": "The Matrix",
			"overview": "plot", "runtime": 136, "release_date": "1999-03-31",
			"genres": [{"name": "Action"}],
			"credits": {"cast": [{"id": 1, "name": "Keanu Reeves", "character": "Neo", "order": 0}]},
			"images": {"posters": [{"file_path": "/p.jpg", "width": 500, "height": 750}]},
			"videos": {"results": [{"id": "v1", "key": "abc", "site": "YouTube", "official": true, "type": "Trailer"}]}
		}`))
	})
	tmdbID := int64(603)
	movie, err := p.GetMovie(t.Context(), MovieLookupKeys{TMDbID: &tmdbID}, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", movie.Title)
	assert.Equal(t, "tt0133093", movie.IMDbID)
	assert.Equal(t, 136, movie.RuntimeMinutes)
	require.Len(t, movie.Genres, 1)
	assert.Equal(t, "Action", movie.Genres[0])
	require.Len(t, movie.Actors, 1)
	assert.Equal(t, "Keanu Reeves", movie.Actors[0].Name)
	require.Len(t, movie.Images, 1)
	assert.Equal(t, "poster", movie.Images[0].AssetType)
	require.Len(t, movie.Videos, 1)
	assert.Equal(t, "YouTube", movie.Videos[0].Site)
	require.NotNil(t, movie.ReleaseDate)
	assert.Equal(t, 1999, movie.ReleaseDate.Year())
}

func TestGetMovieRequiresTMDbID(t *testing.T) {
	p := NewTMDbProvider("key")
	_, err := p.GetMovie(t.Context(), MovieLookupKeys{}, FetchOptions{})
	require.Error(t, err)
	tagged, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInputInvalid, tagged.Kind)
}

func TestGetMovieMapsNotFound(t *testing.T) {
	p := newTestTMDbProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	id := int64(1)
	_, err := p.GetMovie(t.Context(), MovieLookupKeys{TMDbID: &id}, FetchOptions{})
	tagged, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindNotFound, tagged.Kind)
}

func TestGetMovieMapsRateLimitWithRetryAfter(t *testing.T) {
	p := newTestTMDbProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	id := int64(1)
	_, err := p.GetMovie(t.Context(), MovieLookupKeys{TMDbID: &id}, FetchOptions{})
	tagged, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindProviderRateLimit, tagged.Kind)
	assert.Equal(t, 30*time.Second, tagged.RetryAfter)
}

func TestSearchPersonImageReturnsFirstProfilePath(t *testing.T) {
	p := newTestTMDbProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"name":"Keanu Reeves","profile_path":"/kr.jpg"}]}`))
	})
	url, found, err := p.SearchPersonImage(t.Context(), "Keanu Reeves")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "https://image.tmdb.org/t/p/original/kr.jpg", url)
}

func TestSearchPersonImageNotFound(t *testing.T) {
	p := newTestTMDbProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})
	_, found, err := p.SearchPersonImage(t.Context(), "Nobody")
	require.NoError(t, err)
	assert.False(t, found)
}
