package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("WARNING"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("nonsense"))
}

func TestCtxReturnsGlobalLoggerWhenNoneStashed(t *testing.T) {
	l := Ctx(context.Background())
	assert.NotNil(t, l)
}

func TestWithContextThenCtxRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	custom := Logger().With().Str("marker", "present").Logger().Output(&buf)
	ctx := WithContext(context.Background(), custom)
	got := Ctx(ctx)
	assert.NotNil(t, got)
	got.Info().Msg("round trip")
	assert.Contains(t, buf.String(), `"marker":"present"`)
}

func TestForJobCarriesFields(t *testing.T) {
	Init("info", "json")
	l := ForJob(7, "enrich-metadata", "movie", 99, 2)
	assert.NotNil(t, l)
	var buf bytes.Buffer
	out := l.Output(&buf)
	out.Info().Msg("job line")
	assert.Contains(t, buf.String(), `"job_id":7`)
	assert.Contains(t, buf.String(), `"job_type":"enrich-metadata"`)
	assert.Contains(t, buf.String(), `"entity_type":"movie"`)
	assert.Contains(t, buf.String(), `"entity_id":99`)
	assert.Contains(t, buf.String(), `"attempt":2`)
}
