package scan

import (
	"testing"

	"github.com/filmvault/curator/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestClassifyFileRecognizesMedia(t *testing.T) {
	c := classifyFile("/lib/Inception (2010)/Inception (2010).mkv")
	assert.Equal(t, "media", c.kind)
	assert.Equal(t, "inception (2010)", c.mediaPrefix)
}

func TestClassifyFileRecognizesNFO(t *testing.T) {
	c := classifyFile("/lib/Inception (2010)/Inception (2010).nfo")
	assert.Equal(t, "nfo", c.kind)
}

func TestClassifyFileRecognizesSubtitle(t *testing.T) {
	c := classifyFile("/lib/Inception (2010)/Inception (2010).srt")
	assert.Equal(t, "subtitle", c.kind)
}

func TestClassifyFileRecognizesActorThumb(t *testing.T) {
	c := classifyFile("/lib/Inception (2010)/.actors/Leonardo DiCaprio.jpg")
	assert.Equal(t, "actor_thumb", c.kind)
}

func TestClassifyFileRecognizesPosterAsset(t *testing.T) {
	c := classifyFile("/lib/Inception (2010)/Inception (2010)-poster.jpg")
	assert.Equal(t, "asset", c.kind)
	assert.Equal(t, store.AssetPoster, c.assetType)
	assert.Equal(t, 1, c.rank)
	assert.Equal(t, "inception (2010)", c.mediaPrefix)
}

func TestClassifyFileRecognizesRankedFanartAsset(t *testing.T) {
	c := classifyFile("/lib/Inception (2010)/Inception (2010)-fanart2.jpg")
	assert.Equal(t, "asset", c.kind)
	assert.Equal(t, store.AssetFanart, c.assetType)
	assert.Equal(t, 3, c.rank)
}

func TestClassifyFileReturnsUnknownForUnmatchedFile(t *testing.T) {
	c := classifyFile("/lib/Inception (2010)/readme.txt")
	assert.Equal(t, "unknown", c.kind)
}

func TestIsTrailerDir(t *testing.T) {
	assert.True(t, isTrailerDir("/lib/Inception (2010)/Trailers"))
	assert.True(t, isTrailerDir("/lib/Inception (2010)/trailer"))
	assert.False(t, isTrailerDir("/lib/Inception (2010)"))
}

func TestTrailerCandidateURL(t *testing.T) {
	assert.Equal(t, "file:///lib/movie/trailer.mkv", trailerCandidateURL("/lib/movie/trailer.mkv"))
}
