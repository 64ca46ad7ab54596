// Package cache implements the content-addressed blob store described in
// spec.md §4.B: immutable blobs keyed by SHA-256, refcounted by whatever
// AssetCandidate or sidecar-hash record points at them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/filmvault/curator/internal/errs"
)

// Kind is the blob family, which selects the on-disk subdirectory.
type Kind string

const (
	KindImage Kind = "images"
	KindVideo Kind = "videos"
	KindAudio Kind = "audio"
	KindText  Kind = "text"
)

// Entry mirrors the persisted CacheEntry row (spec.md §3).
type Entry struct {
	ContentHash    string
	Path           string
	SizeBytes      int64
	Kind           Kind
	ReferenceCount int
	CreatedAt      time.Time
}

// EntryStore is the persistence seam for CacheEntry rows; internal/store
// implements this against Postgres.
type EntryStore interface {
	Upsert(ctx context.Context, hash string, path string, size int64, kind Kind) error
	Get(ctx context.Context, hash string) (*Entry, error)
	IncRef(ctx context.Context, hash string) error
	DecRef(ctx context.Context, hash string) error
	ZeroRefOlderThan(ctx context.Context, cutoff time.Time) ([]Entry, error)
	DeleteIfStillZero(ctx context.Context, hash string) (bool, error)
}

// Cache is the content-addressed blob store rooted at Root on disk.
type Cache struct {
	Root    string
	Entries EntryStore
}

func New(root string, entries EntryStore) *Cache {
	return &Cache{Root: root, Entries: entries}
}

// pathFor returns the canonical on-disk path for a hash: <root>/<kind>/<aa>/<hash><ext>.
func (c *Cache) pathFor(kind Kind, hash, ext string) string {
	return filepath.Join(c.Root, string(kind), hash[:2], hash+ext)
}

// Put writes bytes to the cache, computing the hash itself. If the blob
// already exists the write is skipped and the existing path is returned;
// reference accounting is left to the caller, who increments it separately
// within their own transaction boundary (spec.md §4.B).
func (c *Cache) Put(ctx context.Context, r io.Reader, kind Kind, ext string) (hash string, path string, err error) {
	if err := os.MkdirAll(c.Root, 0o755); err != nil {
		return "", "", errs.Wrap(errs.KindFSWriteFailed, err, "mkdir cache root")
	}
	tmp, err := os.CreateTemp(c.Root, "put-*.tmp")
	if err != nil {
		return "", "", errs.Wrap(errs.KindFSWriteFailed, err, "create temp file").ForceRetryable(true)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	closeErr := tmp.Close()
	if err != nil {
		return "", "", errs.Wrap(errs.KindFSWriteFailed, err, "write blob").ForceRetryable(true)
	}
	if closeErr != nil {
		return "", "", errs.Wrap(errs.KindFSWriteFailed, closeErr, "close temp file").ForceRetryable(true)
	}

	hash = hex.EncodeToString(h.Sum(nil))
	finalPath := c.pathFor(kind, hash, ext)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return "", "", errs.Wrap(errs.KindFSWriteFailed, err, "mkdir cache dir")
	}

	if _, statErr := os.Stat(finalPath); statErr == nil {
		// Idempotent: identical bytes already cached under this hash.
		if err := c.Entries.Upsert(ctx, hash, finalPath, size, kind); err != nil {
			return "", "", err
		}
		return hash, finalPath, nil
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", "", errs.Wrap(errs.KindFSWriteFailed, err, "rename into place").ForceRetryable(true)
	}
	if err := c.Entries.Upsert(ctx, hash, finalPath, size, kind); err != nil {
		return "", "", err
	}
	return hash, finalPath, nil
}

// Read opens the blob for hash. Reads never block writes because writes
// never mutate an existing path (content addressing); a given hash's bytes
// are written exactly once.
func (c *Cache) Read(ctx context.Context, hash string) (io.ReadCloser, error) {
	entry, err := c.Entries.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errs.New(errs.KindNotFound, fmt.Sprintf("cache entry %s not found", hash))
	}
	f, err := os.Open(entry.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.KindFSNotFound, err, "blob missing from disk")
		}
		return nil, errs.Wrap(errs.KindFSReadFailed, err, "open blob")
	}
	return f, nil
}

// RefInc increments the reference count for hash.
func (c *Cache) RefInc(ctx context.Context, hash string) error {
	return c.Entries.IncRef(ctx, hash)
}

// RefDec decrements the reference count for hash. It never deletes the
// blob itself — GC is a separate, deliberately delayed sweep.
func (c *Cache) RefDec(ctx context.Context, hash string) error {
	return c.Entries.DecRef(ctx, hash)
}

// GC sweeps entries with reference_count = 0 older than grace and unlinks
// their on-disk blob, re-verifying refcount = 0 under the store's own
// transaction immediately before deleting (spec.md §4.B).
func (c *Cache) GC(ctx context.Context, grace time.Duration) (removed int, err error) {
	cutoff := time.Now().Add(-grace)
	candidates, err := c.Entries.ZeroRefOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, entry := range candidates {
		ok, err := c.Entries.DeleteIfStillZero(ctx, entry.ContentHash)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue // refcount moved off zero between listing and delete
		}
		if rmErr := os.Remove(entry.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			return removed, errs.Wrap(errs.KindFSWriteFailed, rmErr, "unlink gc'd blob")
		}
		removed++
	}
	return removed, nil
}
