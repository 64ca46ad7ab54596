package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strconv"
	"time"

	"github.com/filmvault/curator/internal/errs"
)

// TMDbProvider adapts The Movie Database's v3 API into NormalizedMovie,
// following the teacher's plain net/http request-building style
// (internal/plex.go's performPlexSearch/doRefreshRequest).
type TMDbProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewTMDbProvider(apiKey string) *TMDbProvider {
	return &TMDbProvider{
		APIKey:  apiKey,
		BaseURL: "https://api.themoviedb.org/3",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *TMDbProvider) Name() string { return "tmdb" }

type tmdbMovieResponse struct {
	ID            int64   `json:"id"`
	IMDbID        string  `json:"imdb_id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	Tagline       string  `json:"tagline"`
	Runtime       int     `json:"runtime"`
	ReleaseDate   string  `json:"release_date"`
	Popularity    float64 `json:"popularity"`
	Budget        int64   `json:"budget"`
	Revenue       int64   `json:"revenue"`
	Status        string  `json:"status"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	Genres        []struct {
		Name string `json:"name"`
	} `json:"genres"`
	ProductionCompanies []struct {
		Name string `json:"name"`
	} `json:"production_companies"`
	ProductionCountries []struct {
		Name string `json:"name"`
	} `json:"production_countries"`
	Credits struct {
		Cast []struct {
			ID        int64  `json:"id"`
			Name      string `json:"name"`
			Character string `json:"character"`
			Order     int    `json:"order"`
		} `json:"cast"`
		Crew []struct {
			ID  int64  `json:"id"`
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
	Images struct {
		Posters []tmdbImage `json:"posters"`
		Backdrops []tmdbImage `json:"backdrops"`
		Logos     []tmdbImage `json:"logos"`
	} `json:"images"`
	Videos struct {
		Results []tmdbVideo `json:"results"`
	} `json:"videos"`
}

type tmdbImage struct {
	FilePath    string  `json:"file_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	VoteCount   int     `json:"vote_count"`
	Iso639_1    string  `json:"iso_639_1"`
}

type tmdbVideo struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Site     string `json:"site"`
	Official bool   `json:"official"`
	Type     string `json:"type"`
}

// BuildImageURL joins a TMDb image path with the "original" size prefix
// (spec.md §4.E Phase 1's named example).
func (p *TMDbProvider) BuildImageURL(filePath string) string {
	return "https://image.tmdb.org/t/p/original" + filePath
}

// SearchPersonImage looks up a cast/crew member by name and returns the
// full URL of their profile image, if TMDb has one on file.
func (p *TMDbProvider) SearchPersonImage(ctx context.Context, name string) (string, bool, error) {
	url := fmt.Sprintf("%s/search/person?api_key=%s&query=%s", p.BaseURL, p.APIKey, neturl.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, errs.Wrap(errs.KindProviderUnavailable, err, "build tmdb person search request")
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return "", false, errs.Wrap(errs.KindProviderUnavailable, err, "tmdb person search request").ForceRetryable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, errs.NewProviderServerError(resp.StatusCode, "tmdb person search returned non-200")
	}
	var body struct {
		Results []struct {
			Name         string `json:"name"`
			ProfilePath  string `json:"profile_path"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, errs.Wrap(errs.KindSchemaMismatch, err, "decode tmdb person search response")
	}
	for _, r := range body.Results {
		if r.ProfilePath != "" {
			return p.BuildImageURL(r.ProfilePath), true, nil
		}
	}
	return "", false, nil
}

func (p *TMDbProvider) GetMovie(ctx context.Context, keys MovieLookupKeys, opts FetchOptions) (*NormalizedMovie, error) {
	if keys.TMDbID == nil {
		return nil, errs.New(errs.KindInputInvalid, "tmdb provider requires tmdb_id")
	}
	url := fmt.Sprintf("%s/movie/%d?api_key=%s&append_to_response=credits,images,videos",
		p.BaseURL, *keys.TMDbID, p.APIKey)
	if opts.PreferredLanguage != "" {
		url += "&language=" + opts.PreferredLanguage
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetConnectionFailed, err, "build tmdb request")
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetConnectionFailed, err, "call tmdb").ForceRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errs.New(errs.KindNotFound, "tmdb movie not found")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Minute
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, errs.New(errs.KindProviderRateLimit, "tmdb rate limited").WithRetryAfter(retryAfter)
	}
	if resp.StatusCode >= 500 {
		return nil, errs.NewProviderServerError(resp.StatusCode, "tmdb server error")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.KindProviderInvalidResponse, fmt.Sprintf("tmdb unexpected status %d", resp.StatusCode))
	}

	var body tmdbMovieResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errs.Wrap(errs.KindProviderInvalidResponse, err, "decode tmdb response")
	}

	movie := &NormalizedMovie{
		SourceName:     p.Name(),
		ExternalID:     strconv.FormatInt(body.ID, 10),
		IMDbID:         body.IMDbID,
		Title:          body.Title,
		OriginalTitle:  body.OriginalTitle,
		Plot:           body.Overview,
		Tagline:        body.Tagline,
		RuntimeMinutes: body.Runtime,
		Popularity:     body.Popularity,
		Budget:         body.Budget,
		Revenue:        body.Revenue,
		Status:         body.Status,
		Language:       opts.PreferredLanguage,
	}
	if body.VoteCount > 0 {
		movie.Ratings = append(movie.Ratings, NormalizedRating{
			SourceName: p.Name(), Value: body.VoteAverage, VoteCount: body.VoteCount,
		})
	}
	if t, err := time.Parse("2006-01-02", body.ReleaseDate); err == nil {
		movie.ReleaseDate = &t
	}
	for _, g := range body.Genres {
		movie.Genres = append(movie.Genres, g.Name)
	}
	for _, c := range body.ProductionCompanies {
		movie.Studios = append(movie.Studios, c.Name)
	}
	for _, c := range body.ProductionCountries {
		movie.Countries = append(movie.Countries, c.Name)
	}
	for _, cast := range body.Credits.Cast {
		movie.Actors = append(movie.Actors, NormalizedPerson{
			ExternalID: strconv.FormatInt(cast.ID, 10),
			Name:       cast.Name,
			Role:       cast.Character,
			SortOrder:  cast.Order,
		})
	}
	for _, crew := range body.Credits.Crew {
		person := NormalizedPerson{ExternalID: strconv.FormatInt(crew.ID, 10), Name: crew.Name}
		switch crew.Job {
		case "Director":
			movie.Directors = append(movie.Directors, person)
		case "Writer", "Screenplay":
			movie.Writers = append(movie.Writers, person)
		}
	}
	for _, img := range body.Images.Posters {
		movie.Images = append(movie.Images, normalizeTMDbImage(p, img, "poster"))
	}
	for _, img := range body.Images.Backdrops {
		movie.Images = append(movie.Images, normalizeTMDbImage(p, img, "fanart"))
	}
	for _, img := range body.Images.Logos {
		movie.Images = append(movie.Images, normalizeTMDbImage(p, img, "clearlogo"))
	}
	for _, v := range body.Videos.Results {
		if v.Type != "Trailer" {
			continue
		}
		movie.Videos = append(movie.Videos, NormalizedVideo{
			SourceName: p.Name(),
			ExternalID: v.ID,
			Site:       v.Site,
			Key:        v.Key,
			IsOfficial: v.Official,
		})
	}

	return movie, nil
}

func normalizeTMDbImage(p *TMDbProvider, img tmdbImage, assetType string) NormalizedImage {
	return NormalizedImage{
		SourceName: p.Name(),
		ExternalID: img.FilePath,
		AssetType:  assetType,
		URLPath:    p.BuildImageURL(img.FilePath),
		Width:      img.Width,
		Height:     img.Height,
		VoteCount:  img.VoteCount,
		Language:   img.Iso639_1,
		IsOfficial: img.Iso639_1 == "",
	}
}
