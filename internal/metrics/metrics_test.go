// internal/metrics/metrics_test.go
package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fingerprint-bridge/internal/model"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.SetState(model.StateConnected)
	m.Handshake(true)
	m.Handshake(false)
	m.Handshake(false)
	m.Reconnect()
	m.LineReceived()
	m.LineReceived()
	m.Command(true)
	m.SubscriberDelta(2)
	m.SubscriberDelta(-1)

	assert.Equal(t, float64(model.StateConnected), testutil.ToFloat64(m.connectionState))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.handshakes.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.handshakes.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconnects))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.linesReceived))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.commands.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.subscribers))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SetState(model.StateScanning)
		m.Handshake(true)
		m.Reconnect()
		m.LineReceived()
		m.Command(false)
		m.SubscriberDelta(1)
		m.ObserveRequest("GET", "/health", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Reconnect()
	m.ObserveRequest("GET", "/api/v1/device/status", 200, 3*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "fingerprint_bridge_reconnects_total 1")
	assert.Contains(t, body, `fingerprint_bridge_http_request_duration_seconds_count{code="200",method="GET",route="/api/v1/device/status"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
