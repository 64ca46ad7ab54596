package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/filmvault/curator/internal/errs"
)

// FanartProvider adapts fanart.tv into the ImageProvider capability,
// the balanced default image source for movies and TV (spec.md §4.C).
type FanartProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewFanartProvider(apiKey string) *FanartProvider {
	return &FanartProvider{
		APIKey:  apiKey,
		BaseURL: "https://webservice.fanart.tv/v3",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *FanartProvider) Name() string { return "fanart_tv" }

type fanartImagesResponse map[string][]struct {
	URL    string `json:"url"`
	Likes  string `json:"likes"`
	Lang   string `json:"lang"`
}

var fanartAssetKeys = map[string]string{
	"poster":       "movieposter",
	"fanart":       "moviebackground",
	"banner":       "moviebanner",
	"clearlogo":    "hdmovielogo",
	"clearart":     "hdmovieclearart",
	"discart":      "moviedisc",
	"characterart": "characterart",
}

func (p *FanartProvider) GetImages(ctx context.Context, externalID string, assetType string) ([]NormalizedImage, error) {
	key, ok := fanartAssetKeys[assetType]
	if !ok {
		return nil, nil
	}

	url := fmt.Sprintf("%s/movies/%s?api_key=%s", p.BaseURL, externalID, p.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetConnectionFailed, err, "build fanart request")
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetConnectionFailed, err, "call fanart").ForceRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.New(errs.KindProviderRateLimit, "fanart rate limited").WithRetryAfter(time.Minute)
	}
	if resp.StatusCode >= 500 {
		return nil, errs.NewProviderServerError(resp.StatusCode, "fanart server error")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.KindProviderInvalidResponse, fmt.Sprintf("fanart unexpected status %d", resp.StatusCode))
	}

	var body fanartImagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errs.Wrap(errs.KindProviderInvalidResponse, err, "decode fanart response")
	}

	var out []NormalizedImage
	for _, entry := range body[key] {
		likes := 0
		fmt.Sscanf(entry.Likes, "%d", &likes)
		out = append(out, NormalizedImage{
			SourceName: p.Name(),
			ExternalID: entry.URL,
			AssetType:  assetType,
			URLPath:    entry.URL,
			Language:   entry.Lang,
			LikesCount: likes,
		})
	}
	return out, nil
}
