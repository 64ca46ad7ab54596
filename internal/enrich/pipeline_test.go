package enrich

import (
	"errors"
	"testing"

	"github.com/filmvault/curator/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestDeriveSortTitleStripsLeadingArticle(t *testing.T) {
	assert.Equal(t, "Matrix", deriveSortTitle("The Matrix"))
	assert.Equal(t, "Room", deriveSortTitle("A Room"))
	assert.Equal(t, "American Tail", deriveSortTitle("An American Tail"))
}

func TestDeriveSortTitleLeavesTitleWithoutArticle(t *testing.T) {
	assert.Equal(t, "Inception", deriveSortTitle("Inception"))
}

func TestBuildWatchURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", buildWatchURL("YouTube", "abc123"))
	assert.Equal(t, "https://vimeo.com/555", buildWatchURL("vimeo", "555"))
	assert.Equal(t, "xyz", buildWatchURL("dailymotion", "xyz"))
}

func TestIsSupportedTrailerSite(t *testing.T) {
	assert.True(t, isSupportedTrailerSite("YouTube"))
	assert.True(t, isSupportedTrailerSite("vimeo"))
	assert.False(t, isSupportedTrailerSite("dailymotion"))
}

func TestClassifyFetchErrPreservesTaggedError(t *testing.T) {
	tagged := errs.New(errs.KindProviderRateLimit, "slow down")
	got := classifyFetchErr(tagged)
	wrapped, ok := errs.As(got)
	assert.True(t, ok)
	assert.Equal(t, errs.KindProviderRateLimit, wrapped.Kind)
}

func TestClassifyFetchErrWrapsPlainError(t *testing.T) {
	got := classifyFetchErr(errors.New("boom"))
	wrapped, ok := errs.As(got)
	assert.True(t, ok)
	assert.Equal(t, errs.KindProviderUnavailable, wrapped.Kind)
}

func TestAllPhasesEnablesEveryPhase(t *testing.T) {
	pc := AllPhases()
	assert.True(t, pc.RunFetch)
	assert.True(t, pc.RunTrailers)
	assert.True(t, pc.RunAssets)
	assert.True(t, pc.RunPublish)
}
