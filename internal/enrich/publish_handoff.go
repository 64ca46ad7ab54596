package enrich

import (
	"context"

	"github.com/filmvault/curator/internal/store"
)

// phasePublishHandoff is spec.md §4.E Phase 5: enqueue a publish job at the
// same priority as this enrichment run when the library auto-publishes,
// otherwise leave the entity in "enriched" state for a manual trigger.
func (p *Pipeline) phasePublishHandoff(ctx context.Context, in Input, movie *store.Movie) error {
	lib, err := p.Libraries.Get(ctx, movie.LibraryID)
	if err != nil {
		return err
	}
	if !lib.AutoPublish {
		return nil
	}
	return p.Queue.Enqueue(ctx, "publish", in.JobPriority, map[string]any{
		"entity_id":   movie.ID,
		"entity_type": in.EntityType,
	}, in.EntityType, movie.ID)
}
