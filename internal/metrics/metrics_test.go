package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSchedulerRunSetsGaugeForLibraryCadence(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	at := time.Unix(1700000000, 0)
	m.RecordSchedulerRun("42", "scan", at)

	var out dto.Metric
	require.NoError(t, m.SchedulerLastRun.WithLabelValues("42", "scan").Write(&out))
	assert.Equal(t, float64(1700000000), out.GetGauge().GetValue())
}

func TestNewRegistersAllGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	assert.NotNil(t, m.CacheBytes)
	assert.NotNil(t, m.CacheBlobCount)
	assert.NotNil(t, m.PlayerSyncActive)
}
