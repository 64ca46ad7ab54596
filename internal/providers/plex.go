package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/filmvault/curator/internal/errs"
)

// PlexPlayer implements ExternalPlayer against a single Plex Media Server
// instance's REST API, following the same request shapes
// trailarr-trailarr's internal/plex.go uses: a server-wide /search by
// title, an item refresh via PUT .../refresh with the token as a query
// parameter, and the standard X-Plex-Token header for reads.
type PlexPlayer struct {
	BaseURL   string
	Token     string
	SectionID string // Plex library section this instance scans
	IsActive  bool

	client *http.Client
}

func NewPlexPlayer(baseURL, token, sectionID string) *PlexPlayer {
	return &PlexPlayer{
		BaseURL:   baseURL,
		Token:     token,
		SectionID: sectionID,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *PlexPlayer) Scan(ctx context.Context, directory string) error {
	u := fmt.Sprintf("%s/library/sections/%s/refresh", p.BaseURL, p.SectionID)
	if directory != "" {
		u += "?path=" + url.QueryEscape(directory)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "build plex scan request")
	}
	req.Header.Set("X-Plex-Token", p.Token)
	resp, err := p.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "plex scan request").ForceRetryable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errs.New(errs.KindProviderUnavailable, "plex scan returned non-2xx").WithContext("status", resp.StatusCode)
	}
	return nil
}

func (p *PlexPlayer) Refresh(ctx context.Context, playerItemID string) error {
	refreshURL := fmt.Sprintf("%s/library/metadata/%s/refresh?X-Plex-Token=%s", p.BaseURL, playerItemID, url.QueryEscape(p.Token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, refreshURL, nil)
	if err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "build plex refresh request")
	}
	req.Header.Set("X-Plex-Product", "curator")
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "plex refresh request").ForceRetryable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errs.New(errs.KindProviderUnavailable, "plex item refresh returned non-2xx").WithContext("status", resp.StatusCode)
	}
	return nil
}

func (p *PlexPlayer) Remove(ctx context.Context, playerItemID string) error {
	u := fmt.Sprintf("%s/library/metadata/%s", p.BaseURL, playerItemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "build plex remove request")
	}
	req.Header.Set("X-Plex-Token", p.Token)
	resp, err := p.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "plex remove request").ForceRetryable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errs.New(errs.KindProviderUnavailable, "plex remove returned non-2xx").WithContext("status", resp.StatusCode)
	}
	return nil
}

func (p *PlexPlayer) Find(ctx context.Context, q PlayerFindQuery) (string, bool, error) {
	if q.Title == "" {
		return "", false, nil
	}
	u := fmt.Sprintf("%s/search?query=%s&type=1", p.BaseURL, url.QueryEscape(q.Title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false, errs.Wrap(errs.KindProviderUnavailable, err, "build plex search request")
	}
	req.Header.Set("X-Plex-Token", p.Token)
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return "", false, errs.Wrap(errs.KindProviderUnavailable, err, "plex search request").ForceRetryable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, errs.Wrap(errs.KindProviderUnavailable, err, "read plex search response")
	}

	var parsed struct {
		MediaContainer struct {
			Metadata []struct {
				RatingKey string `json:"ratingKey"`
				Year      int    `json:"year"`
			} `json:"Metadata"`
		} `json:"MediaContainer"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.MediaContainer.Metadata) == 0 {
		return "", false, nil
	}
	for _, item := range parsed.MediaContainer.Metadata {
		if q.Year == 0 || item.Year == q.Year {
			return item.RatingKey, true, nil
		}
	}
	return parsed.MediaContainer.Metadata[0].RatingKey, true, nil
}

func (p *PlexPlayer) IsScanning(ctx context.Context) (bool, error) {
	u := fmt.Sprintf("%s/library/sections/%s", p.BaseURL, p.SectionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, errs.Wrap(errs.KindProviderUnavailable, err, "build plex section status request")
	}
	req.Header.Set("X-Plex-Token", p.Token)
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return false, errs.Wrap(errs.KindProviderUnavailable, err, "plex section status request").ForceRetryable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, errs.Wrap(errs.KindProviderUnavailable, err, "read plex section status response")
	}
	var parsed struct {
		MediaContainer struct {
			Refreshing bool `json:"refreshing"`
		} `json:"MediaContainer"`
	}
	_ = json.Unmarshal(body, &parsed)
	return parsed.MediaContainer.Refreshing, nil
}

func (p *PlexPlayer) GetInstances(ctx context.Context) ([]PlayerInstance, error) {
	return []PlayerInstance{{ID: p.SectionID, IsActive: p.IsActive}}, nil
}

// OnScanFinished is nil: Plex has no scan-completion push channel over this
// REST surface, so the adapter falls back to polling IsScanning.
func (p *PlexPlayer) OnScanFinished() <-chan struct{} { return nil }

var _ ExternalPlayer = (*PlexPlayer)(nil)
