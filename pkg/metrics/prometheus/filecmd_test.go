package prometheus

import (
	"testing"
	"time"

	"github.com/marmos91/filecmd/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the value of the sample of family name whose labels
// include all of want. Counters and gauges only.
func gathered(t *testing.T, name string, want map[string]string) float64 {
	t.Helper()

	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	samples:
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue samples
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}

	t.Fatalf("metric %s%v not found", name, want)
	return 0
}

func TestServerMetrics_Records(t *testing.T) {
	metrics.InitRegistry()

	m := NewServerMetrics()
	_, ok := m.(*serverMetrics)
	require.True(t, ok, "registry is enabled, expected the Prometheus implementation")

	m.RecordRequest("get", "SUCCESS", 5*time.Millisecond)
	m.RecordRequest("get", "FAILED", time.Millisecond)
	m.RecordRequest("get", "SUCCESS", time.Millisecond)
	m.RecordBytes("in", 100)
	m.RecordBytes("out", 40)
	m.RecordConnectionAccepted()
	m.SetActiveConnections(3)
	m.SetQueueDepth(2)
	m.RecordFrameRejected()

	assert.Equal(t, 2.0, gathered(t, "filecmd_requests_total", map[string]string{"verb": "get", "status": "SUCCESS"}))
	assert.Equal(t, 1.0, gathered(t, "filecmd_requests_total", map[string]string{"verb": "get", "status": "FAILED"}))
	assert.Equal(t, 100.0, gathered(t, "filecmd_bytes_transferred_total", map[string]string{"direction": "in"}))
	assert.Equal(t, 40.0, gathered(t, "filecmd_bytes_transferred_total", map[string]string{"direction": "out"}))
	assert.Equal(t, 1.0, gathered(t, "filecmd_connections_accepted_total", nil))
	assert.Equal(t, 3.0, gathered(t, "filecmd_active_connections", nil))
	assert.Equal(t, 2.0, gathered(t, "filecmd_pool_queue_depth", nil))
	assert.Equal(t, 1.0, gathered(t, "filecmd_frames_rejected_total", nil))
}
