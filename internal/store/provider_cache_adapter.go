package store

import (
	"context"

	"github.com/filmvault/curator/internal/providers"
)

// ProviderCacheAdapter satisfies providers.CacheStore over AssetRepo, so the
// orchestrator's cache seam doesn't need to know about the richer
// ProviderCacheRow shape this package persists.
type ProviderCacheAdapter struct {
	assets *AssetRepo
}

func NewProviderCacheAdapter(assets *AssetRepo) *ProviderCacheAdapter {
	return &ProviderCacheAdapter{assets: assets}
}

func (a *ProviderCacheAdapter) GetProviderCache(ctx context.Context, entityType, externalID string) (*providers.CacheRow, error) {
	row, err := a.assets.GetProviderCache(ctx, entityType, externalID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return &providers.CacheRow{Payload: row.Payload, FetchedAt: row.FetchedAt}, nil
}

func (a *ProviderCacheAdapter) PutProviderCache(ctx context.Context, entityType, externalID string, payload []byte) error {
	return a.assets.PutProviderCache(ctx, entityType, externalID, payload)
}
