// Package webhook receives external-downloader events and fans them out
// into job-queue work (spec.md §4.I). HMAC verification follows the
// crypto/hmac + crypto/subtle constant-time-compare shape; the path-mapping
// and longest-prefix library lookup follow the same manual-matching style
// trailarr-trailarr uses for its own Sonarr/Radarr path mappings.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/scan"
	"github.com/filmvault/curator/internal/store"
)

// EventKind is the normalized event kind carried in a webhook payload.
type EventKind string

const (
	EventGrab       EventKind = "grab"
	EventDownload   EventKind = "download"
	EventRename     EventKind = "rename"
	EventFileDelete EventKind = "file_delete"
)

// MoviePayload is the subset of an event body this dispatcher needs.
type MoviePayload struct {
	Title       string
	Year        int
	PrimaryDBID *int64
	IMDbID      *string
	FolderPath  string
}

// Event is the normalized webhook request after signature verification.
type Event struct {
	Source string
	Kind   EventKind
	Movie  MoviePayload
}

// Source configures one external downloader integration.
type Source struct {
	Name        string
	HMACSecret  string // empty disables verification for this source
	PathPrefix  string // this source's own path prefix (e.g. its container mount)
	LocalPrefix string // rewritten local-filesystem equivalent
}

// Enqueuer is the seam the dispatcher uses to fan out jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, priority int, payload any, entityType string, entityID int64) error
	EnqueueWithCorrelation(ctx context.Context, jobType string, priority int, payload any, entityType string, entityID int64, correlationID string) error
}

// Dispatcher fans out verified webhook events per spec.md §4.I.
type Dispatcher struct {
	Sources       map[string]Source
	Libraries     *store.LibraryRepo
	Movies        *store.MovieRepo
	Scanner       *scan.Scanner
	Queue         Enqueuer
	NotifyChannel []string // enabled notification channel names

	PurgeGraceDays int
}

func New(sources []Source, libraries *store.LibraryRepo, movies *store.MovieRepo, scanner *scan.Scanner, queue Enqueuer, notifyChannels []string) *Dispatcher {
	byName := make(map[string]Source, len(sources))
	for _, s := range sources {
		byName[s.Name] = s
	}
	return &Dispatcher{
		Sources:        byName,
		Libraries:      libraries,
		Movies:         movies,
		Scanner:        scanner,
		Queue:          queue,
		NotifyChannel:  notifyChannels,
		PurgeGraceDays: 7,
	}
}

// VerifySignature checks body against the HMAC-SHA256 signature header for
// source, in constant time. Sources with no configured secret always pass.
func (d *Dispatcher) VerifySignature(sourceName string, body []byte, signatureHex string) bool {
	src, ok := d.Sources[sourceName]
	if !ok || src.HMACSecret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(src.HMACSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(signatureHex)), []byte(expected)) == 1
}

// Handle processes one verified event, fanning out work per spec.md §4.I.
func (d *Dispatcher) Handle(ctx context.Context, ev Event, correlationID string) error {
	switch ev.Kind {
	case EventGrab:
		return nil // log + return; no state change
	case EventDownload, EventRename:
		return d.handleDownloadOrRename(ctx, ev, correlationID)
	case EventFileDelete:
		return d.handleFileDelete(ctx, ev)
	default:
		return errs.New(errs.KindInputInvalid, "unrecognized webhook event kind").WithContext("kind", string(ev.Kind))
	}
}

func (d *Dispatcher) handleDownloadOrRename(ctx context.Context, ev Event, correlationID string) error {
	localPath := d.mapPath(ev.Source, ev.Movie.FolderPath)

	lib, err := d.findOwningLibrary(ctx, localPath)
	if err != nil {
		return err
	}

	movieID, err := d.Scanner.ScanDirectory(ctx, lib, localPath, &scan.Identity{
		Title:       ev.Movie.Title,
		Year:        intPtr(ev.Movie.Year),
		PrimaryDBID: ev.Movie.PrimaryDBID,
		IMDbID:      ev.Movie.IMDbID,
	})
	if err != nil {
		return err
	}

	if err := d.Queue.EnqueueWithCorrelation(ctx, "scan-movie", store.PriorityHigh, map[string]any{
		"entity_id": movieID,
		"directory": localPath,
	}, "movie", movieID, correlationID); err != nil {
		return err
	}

	for _, channel := range d.NotifyChannel {
		if err := d.Queue.EnqueueWithCorrelation(ctx, "notify-"+channel, store.PriorityNormal, map[string]any{
			"entity_id": movieID,
			"event":     string(ev.Kind),
		}, "movie", movieID, correlationID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handleFileDelete(ctx context.Context, ev Event) error {
	localPath := d.mapPath(ev.Source, ev.Movie.FolderPath)
	lib, err := d.findOwningLibrary(ctx, localPath)
	if err != nil {
		return err
	}
	movie, err := d.Movies.GetByFilePath(ctx, lib.ID, localPath)
	if err != nil {
		return err
	}
	if movie == nil {
		return nil // nothing to soft-delete
	}
	return d.Movies.SoftDelete(ctx, movie.ID, d.PurgeGraceDays)
}

// mapPath rewrites a source-reported path to its local-filesystem
// equivalent via the configured prefix rewrite for that source.
func (d *Dispatcher) mapPath(sourceName, path string) string {
	src, ok := d.Sources[sourceName]
	if !ok || src.PathPrefix == "" || !strings.HasPrefix(path, src.PathPrefix) {
		return path
	}
	return src.LocalPrefix + strings.TrimPrefix(path, src.PathPrefix)
}

// findOwningLibrary returns the library whose root_path is the longest
// matching prefix of path.
func (d *Dispatcher) findOwningLibrary(ctx context.Context, path string) (*store.Library, error) {
	libs, err := d.Libraries.List(ctx)
	if err != nil {
		return nil, err
	}
	var best *store.Library
	for i := range libs {
		lib := &libs[i]
		if strings.HasPrefix(path, lib.RootPath) {
			if best == nil || len(lib.RootPath) > len(best.RootPath) {
				best = lib
			}
		}
	}
	if best == nil {
		return nil, errs.New(errs.KindNotFound, "no library owns this path").WithContext("path", path)
	}
	return best, nil
}

func intPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
