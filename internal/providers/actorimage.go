package providers

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/filmvault/curator/internal/cache"
	"github.com/filmvault/curator/internal/errs"
)

// PersonImageSearcher is the narrow seam ActorImageCache needs from a
// metadata provider; TMDbProvider.SearchPersonImage satisfies it.
type PersonImageSearcher interface {
	SearchPersonImage(ctx context.Context, name string) (url string, found bool, err error)
}

// ActorImageCache satisfies internal/publish.ActorImageFetcher by looking a
// cast member up with the given searcher and downloading the result into
// the content-addressed cache, the same Put-then-hash flow the trailer
// download path (internal/providers.YtDlpProvider + internal/cache) uses.
type ActorImageCache struct {
	Searcher PersonImageSearcher
	Cache    *cache.Cache
	Client   *http.Client
}

func NewActorImageCache(searcher PersonImageSearcher, c *cache.Cache) *ActorImageCache {
	return &ActorImageCache{
		Searcher: searcher,
		Cache:    c,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *ActorImageCache) FetchActorImage(ctx context.Context, actorName string) (string, error) {
	url, found, err := a.Searcher.SearchPersonImage(ctx, actorName)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errs.Wrap(errs.KindProviderUnavailable, err, "build actor image request")
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.KindProviderUnavailable, err, "actor image request").ForceRetryable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errs.New(errs.KindProviderUnavailable, "actor image fetch returned non-200").WithContext("status", resp.StatusCode)
	}

	ext := strings.TrimPrefix(filepath.Ext(url), ".")
	if ext == "" {
		ext = "jpg"
	}
	hash, _, err := a.Cache.Put(ctx, resp.Body, cache.KindImage, ext)
	if err != nil {
		return "", err
	}
	return hash, nil
}

var _ interface {
	FetchActorImage(ctx context.Context, actorName string) (string, error)
} = (*ActorImageCache)(nil)
