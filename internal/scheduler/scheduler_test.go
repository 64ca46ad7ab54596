package scheduler

import (
	"testing"

	"github.com/filmvault/curator/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestJobTypeForKnownCadences(t *testing.T) {
	assert.Equal(t, "scan-movie", jobTypeFor(store.CadenceScan))
	assert.Equal(t, "provider-update", jobTypeFor(store.CadenceProviderUpdate))
}

func TestJobTypeForUnknownCadenceIsEmpty(t *testing.T) {
	assert.Equal(t, "", jobTypeFor(store.SchedulerCadence("bogus")))
}
