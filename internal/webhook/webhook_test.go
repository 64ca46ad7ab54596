package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func dispatcherWithSources(sources ...Source) *Dispatcher {
	return New(sources, nil, nil, nil, nil, nil)
}

func TestVerifySignatureAcceptsValidMAC(t *testing.T) {
	body := []byte(`{"event":"download"}`)
	d := dispatcherWithSources(Source{Name: "radarr", HMACSecret: "s3cret"})
	assert.True(t, d.VerifySignature("radarr", body, sign("s3cret", body)))
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"event":"download"}`)
	d := dispatcherWithSources(Source{Name: "radarr", HMACSecret: "s3cret"})
	assert.False(t, d.VerifySignature("radarr", body, sign("wrong", body)))
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	d := dispatcherWithSources(Source{Name: "radarr", HMACSecret: "s3cret"})
	sig := sign("s3cret", []byte(`{"event":"download"}`))
	assert.False(t, d.VerifySignature("radarr", []byte(`{"event":"delete"}`), sig))
}

func TestVerifySignaturePassesWhenNoSecretConfigured(t *testing.T) {
	d := dispatcherWithSources(Source{Name: "radarr"})
	assert.True(t, d.VerifySignature("radarr", []byte("anything"), "garbage"))
}

func TestVerifySignaturePassesForUnknownSource(t *testing.T) {
	d := dispatcherWithSources()
	assert.True(t, d.VerifySignature("unknown", []byte("anything"), "garbage"))
}

func TestMapPathRewritesConfiguredPrefix(t *testing.T) {
	d := dispatcherWithSources(Source{
		Name:        "radarr",
		PathPrefix:  "/downloads",
		LocalPrefix: "/mnt/media",
	})
	assert.Equal(t, "/mnt/media/Movie (2020)", d.mapPath("radarr", "/downloads/Movie (2020)"))
}

func TestMapPathLeavesUnmatchedPathUnchanged(t *testing.T) {
	d := dispatcherWithSources(Source{Name: "radarr", PathPrefix: "/downloads", LocalPrefix: "/mnt/media"})
	assert.Equal(t, "/elsewhere/Movie (2020)", d.mapPath("radarr", "/elsewhere/Movie (2020)"))
}

func TestMapPathLeavesPathUnchangedWhenSourceHasNoPrefix(t *testing.T) {
	d := dispatcherWithSources(Source{Name: "radarr"})
	assert.Equal(t, "/downloads/Movie (2020)", d.mapPath("radarr", "/downloads/Movie (2020)"))
}
