package publish

import (
	"bytes"
	"context"
	"encoding/xml"
	"path/filepath"
	"strconv"

	"github.com/filmvault/curator/internal/cache"
	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/store"
)

// nfoMovie mirrors spec.md §6's NFO schema. Field order matches the spec's
// listing so a diff against a hand-written sample NFO stays readable.
type nfoMovie struct {
	XMLName       xml.Name    `xml:"movie"`
	Title         string      `xml:"title"`
	OriginalTitle string      `xml:"originaltitle,omitempty"`
	SortTitle     string      `xml:"sorttitle,omitempty"`
	Rating        float64     `xml:"rating,omitempty"`
	Year          int         `xml:"year,omitempty"`
	Premiered     string      `xml:"premiered,omitempty"`
	Plot          string      `xml:"plot,omitempty"`
	Tagline       string      `xml:"tagline,omitempty"`
	Runtime       int         `xml:"runtime,omitempty"`
	UniqueIDs     []nfoUnique `xml:"uniqueid"`
	Genres        []string    `xml:"genre,omitempty"`
	Actors        []nfoActor  `xml:"actor"`
	Directors     []string    `xml:"director,omitempty"`
	Credits       []string    `xml:"credits,omitempty"`
	Studios       []string    `xml:"studio,omitempty"`
}

type nfoUnique struct {
	Type    string `xml:"type,attr"`
	Default bool   `xml:"default,attr,omitempty"`
	Value   string `xml:",chardata"`
}

type nfoActor struct {
	Name      string `xml:"name"`
	Role      string `xml:"role,omitempty"`
	SortOrder int    `xml:"order"`
	Thumb     string `xml:"thumb,omitempty"`
}

// publishNFO is spec.md §4.F step 2: render the NFO sidecar, hash it,
// cache it, copy it into the library, and record the published state.
func (p *Publisher) publishNFO(ctx context.Context, in Input, result *Result) error {
	movie, err := p.Movies.Get(ctx, in.EntityID)
	if err != nil {
		return err
	}

	doc, err := p.buildNFO(ctx, movie)
	if err != nil {
		return err
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindInputInvalid, err, "marshal nfo")
	}
	body = append([]byte(xml.Header), body...)

	hash, _, err := p.Cache.Put(ctx, bytes.NewReader(body), cache.KindText, ".nfo")
	if err != nil {
		return err
	}

	target := filepath.Join(in.LibraryPath, sanitizeBasename(in.MediaBaseName)+".nfo")
	if err := p.copyFromCache(ctx, hash, target); err != nil {
		return err
	}

	if err := p.Movies.MarkPublished(ctx, movie.ID, hash); err != nil {
		return err
	}
	result.NFOWritten = true
	return nil
}

func (p *Publisher) buildNFO(ctx context.Context, movie *store.Movie) (*nfoMovie, error) {
	doc := &nfoMovie{
		Title:         movie.Title,
		OriginalTitle: movie.OriginalTitle,
		SortTitle:     movie.SortTitle,
		Plot:          movie.Plot,
		Tagline:       movie.Tagline,
	}
	if movie.Year != nil {
		doc.Year = *movie.Year
	}
	if movie.RuntimeMinutes != nil {
		doc.Runtime = *movie.RuntimeMinutes
	}
	if movie.ReleaseDate != nil {
		doc.Premiered = movie.ReleaseDate.Format("2006-01-02")
	}
	if movie.PrimaryDBID != nil {
		id := strconv.FormatInt(*movie.PrimaryDBID, 10)
		doc.UniqueIDs = append(doc.UniqueIDs, nfoUnique{Type: "tmdb", Default: true, Value: id})
	}
	if movie.IMDbID != nil && *movie.IMDbID != "" {
		doc.UniqueIDs = append(doc.UniqueIDs, nfoUnique{Type: "imdb", Value: *movie.IMDbID})
	}

	ratings, err := p.Movies.ListRatings(ctx, movie.ID)
	if err != nil {
		return nil, err
	}
	doc.Rating = pickRating(ratings)

	genres, err := p.Movies.ListRelated(ctx, movie.ID, store.RelatedGenre)
	if err != nil {
		return nil, err
	}
	for _, g := range genres {
		doc.Genres = append(doc.Genres, g.Name)
	}

	directors, err := p.Movies.ListRelated(ctx, movie.ID, store.RelatedDirector)
	if err != nil {
		return nil, err
	}
	for _, d := range directors {
		doc.Directors = append(doc.Directors, d.Name)
	}

	writers, err := p.Movies.ListRelated(ctx, movie.ID, store.RelatedWriter)
	if err != nil {
		return nil, err
	}
	for _, w := range writers {
		doc.Credits = append(doc.Credits, w.Name)
	}

	studios, err := p.Movies.ListRelated(ctx, movie.ID, store.RelatedStudio)
	if err != nil {
		return nil, err
	}
	for _, s := range studios {
		doc.Studios = append(doc.Studios, s.Name)
	}

	actors, err := p.Movies.ListActors(ctx, movie.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range actors {
		doc.Actors = append(doc.Actors, nfoActor{Name: a.Name, Role: a.Role, SortOrder: a.SortOrder})
	}

	return doc, nil
}

// pickRating collapses the entity's per-source ratings (spec.md §3) into
// the single scalar the NFO schema's <rating> element carries, preferring
// the source with the most votes as the most statistically meaningful one.
func pickRating(ratings []store.MovieRating) float64 {
	best := store.MovieRating{}
	for _, r := range ratings {
		if r.VoteCount > best.VoteCount {
			best = r
		}
	}
	return best.Value
}
