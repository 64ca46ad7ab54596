package scan

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/store"
)

// Enqueuer is the seam scan uses to chain into enrichment, matching
// enrich.JobEnqueuer's shape so both can be satisfied by the same queue
// client without an import back into internal/queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, priority int, payload any, entityType string, entityID int64) error
}

// Identity is what a webhook event already knows about a movie, letting
// ScanDirectory skip straight to "identified" instead of
// "needs_identification" (spec.md §4.G, scenario S1 in spec.md §10).
type Identity struct {
	Title         string
	OriginalTitle string
	Year          *int
	PrimaryDBID   *int64
	IMDbID        *string
}

// Scanner walks library directory trees and upserts the entities and local
// asset candidates they contain.
type Scanner struct {
	Movies    *store.MovieRepo
	Assets    *store.AssetRepo
	Libraries *store.LibraryRepo
	Queue     Enqueuer
}

func New(movies *store.MovieRepo, assets *store.AssetRepo, libraries *store.LibraryRepo, queue Enqueuer) *Scanner {
	return &Scanner{Movies: movies, Assets: assets, Libraries: libraries, Queue: queue}
}

// Result reports what a scan discovered.
type Result struct {
	NewMovieIDs     []int64
	UpdatedMovieIDs []int64
	Errors          []error
}

// ScanLibrary walks lib.RootPath top to bottom, classifying every file and
// upserting one Movie row per directory that holds a media file; the
// largest media file in that directory is taken as the movie's file
// (spec.md §4.G).
func (s *Scanner) ScanLibrary(ctx context.Context, lib *store.Library) (*Result, error) {
	result := &Result{}

	mediaDirs := map[string]bool{}
	err := filepath.WalkDir(lib.RootPath, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			result.Errors = append(result.Errors, errs.Wrap(errs.KindFSReadFailed, walkErr, "walk library").WithContext("path", path))
			return nil // keep walking; one bad entry shouldn't abort the whole scan
		}
		if d.IsDir() {
			return nil
		}
		cl := classifyFile(path)
		if cl.kind == "media" {
			mediaDirs[filepath.Dir(path)] = true
		}
		return nil
	})
	if err != nil {
		return result, errs.Wrap(errs.KindFSReadFailed, err, "walk library root").WithContext("library_id", lib.ID)
	}

	for dir := range mediaDirs {
		movieID, isNew, scanErr := s.scanDirectory(ctx, lib, dir, nil)
		if scanErr != nil {
			result.Errors = append(result.Errors, scanErr)
			continue
		}
		if isNew {
			result.NewMovieIDs = append(result.NewMovieIDs, movieID)
		} else {
			result.UpdatedMovieIDs = append(result.UpdatedMovieIDs, movieID)
		}
		if lib.AutoEnrich {
			if err := s.Queue.Enqueue(ctx, "enrich-metadata", store.PriorityHighDerived, map[string]any{
				"entity_id": movieID,
			}, "movie", movieID); err != nil {
				result.Errors = append(result.Errors, err)
			}
		}
	}
	return result, nil
}

// ScanDirectory rescans a single movie's directory, optionally seeded with
// identity fields already known from a webhook event. It is the handler
// behind the entity-scoped "scan-movie" job (spec.md §4.H).
func (s *Scanner) ScanDirectory(ctx context.Context, lib *store.Library, dir string, identity *Identity) (int64, error) {
	movieID, _, err := s.scanDirectory(ctx, lib, dir, identity)
	return movieID, err
}

func (s *Scanner) scanDirectory(ctx context.Context, lib *store.Library, dir string, identity *Identity) (movieID int64, isNew bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, false, errs.Wrap(errs.KindFSReadFailed, err, "read movie directory").WithContext("dir", dir)
	}

	var mediaPath string
	var nfoPath string
	type localAsset struct {
		path      string
		assetType store.AssetType
		rank      int
	}
	var assets []localAsset
	var trailerPaths []string

	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if isTrailerDir(full) {
				sub, err := os.ReadDir(full)
				if err == nil {
					for _, se := range sub {
						if !se.IsDir() && videoExtensions[strings.ToLower(filepath.Ext(se.Name()))] {
							trailerPaths = append(trailerPaths, filepath.Join(full, se.Name()))
						}
					}
				}
			}
			continue
		}
		cl := classifyFile(full)
		switch cl.kind {
		case "media":
			if mediaPath == "" || fileSize(full) > fileSize(mediaPath) {
				mediaPath = full
			}
		case "nfo":
			nfoPath = full
		case "asset":
			assets = append(assets, localAsset{path: full, assetType: cl.assetType, rank: cl.rank})
		case "subtitle":
			assets = append(assets, localAsset{path: full, assetType: store.AssetSubtitle, rank: 1})
		}
	}

	if mediaPath == "" {
		return 0, false, errs.New(errs.KindNotFound, "no media file in directory").WithContext("dir", dir)
	}

	movie, err := s.Movies.GetByFilePath(ctx, lib.ID, mediaPath)
	if err != nil {
		return 0, false, err
	}

	if movie == nil {
		m := &store.Movie{
			LibraryID:     lib.ID,
			FilePath:      mediaPath,
			Monitored:     true,
			WorkflowState: store.StateNeedsIdentification,
			Title:         filepath.Base(strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))),
		}
		if identity != nil {
			m.Title = identity.Title
			m.OriginalTitle = identity.OriginalTitle
			m.Year = identity.Year
			m.PrimaryDBID = identity.PrimaryDBID
			m.IMDbID = identity.IMDbID
			m.WorkflowState = store.StateIdentified
		}
		id, err := s.Movies.Create(ctx, m)
		if err != nil {
			return 0, false, err
		}
		movieID, isNew = id, true
	} else {
		movieID = movie.ID
		if identity != nil && movie.WorkflowState == store.StateNeedsIdentification {
			movie.Title = identity.Title
			movie.OriginalTitle = identity.OriginalTitle
			movie.Year = identity.Year
			movie.PrimaryDBID = identity.PrimaryDBID
			movie.IMDbID = identity.IMDbID
			movie.WorkflowState = store.StateIdentified
			if err := s.Movies.UpdateIdentity(ctx, movie); err != nil {
				return movieID, false, err
			}
		}
	}

	if nfoPath != "" {
		if err := s.Movies.SetNFOParsedAt(ctx, movieID); err != nil {
			return movieID, isNew, err
		}
	}

	for _, a := range assets {
		rejected, err := s.Assets.IsRejected(ctx, "movie", movieID, a.path)
		if err != nil {
			return movieID, isNew, err
		}
		if rejected {
			continue
		}
		if _, err := s.Assets.AddCandidate(ctx, &store.AssetCandidate{
			EntityType:   "movie",
			EntityID:     movieID,
			AssetType:    a.assetType,
			ProviderName: "local",
			ProviderURL:  a.path,
		}); err != nil {
			return movieID, isNew, err
		}
	}

	for _, t := range trailerPaths {
		rejected, err := s.Assets.IsRejected(ctx, "movie", movieID, t)
		if err != nil {
			return movieID, isNew, err
		}
		if rejected {
			continue
		}
		if _, err := s.Assets.AddTrailerCandidate(ctx, &store.TrailerCandidate{
			EntityType: "movie",
			EntityID:   movieID,
			URL:        trailerCandidateURL(t),
			Site:       "local",
		}); err != nil {
			return movieID, isNew, err
		}
	}

	return movieID, isNew, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
