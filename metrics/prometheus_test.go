package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		got[l.GetName()] = l.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestPrometheusRecordsQueueActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheus(reg)

	rec.RecordEnqueued("view-1", 1)
	rec.RecordEnqueued("view-1", 2)
	rec.RecordStarted("view-1")
	rec.RecordCompleted("view-1", 5*time.Millisecond, true, false)
	rec.RecordStarted("view-1")
	rec.RecordCompleted("view-1", time.Millisecond, false, true)
	rec.RecordRejected("view-2")

	assert.Equal(t, 2.0, metricValue(t, reg, "action_queue_enqueued_total", map[string]string{"owner": "view-1"}))
	assert.Equal(t, 2.0, metricValue(t, reg, "action_queue_started_total", map[string]string{"owner": "view-1"}))
	assert.Equal(t, 0.0, metricValue(t, reg, "action_queue_depth", map[string]string{"owner": "view-1"}))
	assert.Equal(t, 0.0, metricValue(t, reg, "action_queue_running", nil))
	assert.Equal(t, 1.0, metricValue(t, reg, "action_queue_rejected_total", map[string]string{"owner": "view-2"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "action_queue_completed_total", map[string]string{"owner": "view-1", "status": "success"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "action_queue_completed_total", map[string]string{"owner": "view-1", "status": "drained"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "action_queue_handle_duration_seconds", map[string]string{"owner": "view-1", "status": "success"}))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "success", statusLabel(true, false))
	assert.Equal(t, "failure", statusLabel(false, false))
	assert.Equal(t, "drained", statusLabel(false, true))
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheus(reg)
	rec.RecordRejected("view-9")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `action_queue_rejected_total{owner="view-9"} 1`)
}
