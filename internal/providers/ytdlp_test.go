package providers

import (
	"errors"
	"testing"
	"time"

	"github.com/filmvault/curator/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyYtDlpErrorRateLimit(t *testing.T) {
	err := classifyYtDlpError("HTTP Error 429: Too Many Requests", errors.New("exit 1"))
	tagged, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindProviderRateLimit, tagged.Kind)
	assert.Equal(t, time.Hour, tagged.RetryAfter)
}

func TestClassifyYtDlpErrorUnavailable(t *testing.T) {
	err := classifyYtDlpError("ERROR: [youtube] abc123: Video unavailable", errors.New("exit 1"))
	tagged, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindProviderUnavailable, tagged.Kind)
	assert.False(t, tagged.Retryable())
}

func TestClassifyYtDlpErrorTransient(t *testing.T) {
	err := classifyYtDlpError("connection reset by peer", errors.New("exit 1"))
	tagged, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindNetConnectionFailed, tagged.Kind)
	assert.True(t, tagged.Retryable())
}

func TestIsUnavailableOutput(t *testing.T) {
	assert.True(t, isUnavailableOutput("This video is not available in your country"))
	assert.True(t, isUnavailableOutput("Private video"))
	assert.False(t, isUnavailableOutput("connection timed out"))
}
