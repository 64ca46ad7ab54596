// Package player drives an external media player's library scan and
// verifies the result before declaring success (spec.md §4.K). Every
// mutating call follows Action -> Verification -> Completion; nothing here
// is fire-and-forget.
package player

import (
	"context"
	"strings"
	"time"

	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/providers"
)

// Group is one set of player instances managing a library, with the
// path-mapping and skip-active policy applied to every scenario.
type Group struct {
	LibraryID   int64
	SkipActive  bool
	PathMapping map[string]string // local prefix -> player-visible prefix
}

func (g Group) mapPath(local string) string {
	for from, to := range g.PathMapping {
		if strings.HasPrefix(local, from) {
			return to + strings.TrimPrefix(local, from)
		}
	}
	return local
}

// Adapter orchestrates the three scenarios of spec.md §4.K over one
// ExternalPlayer capability.
type Adapter struct {
	Player providers.ExternalPlayer

	PollInterval time.Duration
	ScanCap      time.Duration
	FullScanCap  time.Duration
	RefreshCap   time.Duration
}

func New(p providers.ExternalPlayer) *Adapter {
	return &Adapter{
		Player:       p,
		PollInterval: 2 * time.Second,
		ScanCap:      60 * time.Second,
		FullScanCap:  120 * time.Second,
		RefreshCap:   30 * time.Second,
	}
}

// Published is scenario 1: trigger a directory-scoped scan across every
// non-skipped instance in the group's fallback chain, verify the entity
// appeared by external id, falling back to a full-library scan if not.
func (a *Adapter) Published(ctx context.Context, g Group, directory, externalID string) error {
	instances, err := a.Player.GetInstances(ctx)
	if err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "list player instances").ForceRetryable(true)
	}

	var lastErr error
	for _, inst := range instances {
		if g.SkipActive && inst.IsActive {
			continue
		}
		if err := a.tryPublish(ctx, g, directory, externalID); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errs.New(errs.KindProviderUnavailable, "no eligible player instance").WithContext("library_id", g.LibraryID)
	}
	return lastErr
}

func (a *Adapter) tryPublish(ctx context.Context, g Group, directory, externalID string) error {
	mapped := g.mapPath(directory)
	if err := a.Player.Scan(ctx, mapped); err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "trigger directory scan").ForceRetryable(true)
	}
	a.waitForScan(ctx, a.ScanCap)

	if found, _ := a.findByExternalID(ctx, externalID); found {
		return nil
	}

	// Fallback: full-library scan.
	if err := a.Player.Scan(ctx, ""); err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "trigger full library scan").ForceRetryable(true)
	}
	a.waitForScan(ctx, a.FullScanCap)

	if found, _ := a.findByExternalID(ctx, externalID); found {
		return nil
	}
	return errs.New(errs.KindNotFound, "entity did not appear after scan").WithContext("external_id", externalID)
}

// Republished is scenario 2: refresh a known player item directly; fall
// back to the full Published scenario if the item can't be located.
func (a *Adapter) Republished(ctx context.Context, g Group, directory, externalID, title string, year int) error {
	playerID, found, err := a.locate(ctx, externalID, directory, title, year)
	if err != nil {
		return err
	}
	if !found {
		return a.Published(ctx, g, directory, externalID)
	}

	if err := a.Player.Refresh(ctx, playerID); err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "refresh player item").ForceRetryable(true)
	}
	a.waitForScan(ctx, a.RefreshCap)

	if found, _ := a.findByExternalID(ctx, externalID); found {
		return nil
	}
	return a.Published(ctx, g, directory, externalID)
}

// Deleted is scenario 3: remove a known player item and verify it is gone.
func (a *Adapter) Deleted(ctx context.Context, externalID, directory, title string, year int) error {
	playerID, found, err := a.locate(ctx, externalID, directory, title, year)
	if err != nil {
		return err
	}
	if !found {
		return nil // nothing to remove
	}

	if err := a.Player.Remove(ctx, playerID); err != nil {
		return errs.Wrap(errs.KindProviderUnavailable, err, "remove player item").ForceRetryable(true)
	}

	if stillFound, _ := a.findByExternalID(ctx, externalID); stillFound {
		return errs.New(errs.KindInvalidState, "player item still present after remove").WithContext("external_id", externalID)
	}
	return nil
}

func (a *Adapter) locate(ctx context.Context, externalID, path, title string, year int) (string, bool, error) {
	if id, found, err := a.findByExternalID(ctx, externalID); err != nil {
		return "", false, err
	} else if found {
		return id, true, nil
	}
	id, found, err := a.Player.Find(ctx, providers.PlayerFindQuery{Path: path, Title: title, Year: year})
	if err != nil {
		return "", false, errs.Wrap(errs.KindProviderUnavailable, err, "find player item by path/title/year").ForceRetryable(true)
	}
	return id, found, nil
}

func (a *Adapter) findByExternalID(ctx context.Context, externalID string) (string, bool, error) {
	if externalID == "" {
		return "", false, nil
	}
	id, found, err := a.Player.Find(ctx, providers.PlayerFindQuery{ExternalID: externalID})
	if err != nil {
		return "", false, errs.Wrap(errs.KindProviderUnavailable, err, "find player item by external id").ForceRetryable(true)
	}
	return id, found, nil
}

// waitForScan blocks until a scan-finished push event arrives, IsScanning
// reports false, or cap elapses — whichever comes first. Errors are
// deliberately swallowed: a failed poll just means the caller proceeds to
// verification, which is the real completion check.
func (a *Adapter) waitForScan(ctx context.Context, cap time.Duration) {
	deadline := time.Now().Add(cap)
	if push := a.Player.OnScanFinished(); push != nil {
		select {
		case <-push:
			return
		case <-ctx.Done():
			return
		case <-time.After(time.Until(deadline)):
			return
		}
	}

	ticker := time.NewTicker(a.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scanning, err := a.Player.IsScanning(ctx)
			if err != nil || !scanning {
				return
			}
			if time.Now().After(deadline) {
				return
			}
		}
	}
}
