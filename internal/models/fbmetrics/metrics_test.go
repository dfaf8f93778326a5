package fbmetrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveRequest("GET", "/api/funnels", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", "/api/funnels", 200, 20*time.Millisecond)
	m.Event("page_view")
	m.Payment("pix", true)
	m.Payment("pix", false)
	m.Webhook("changed")
	m.Sweep("offline", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/api/funnels", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("page_view")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Payments.WithLabelValues("pix", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Webhooks.WithLabelValues("changed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Sweeps.WithLabelValues("offline")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/", 200, time.Millisecond)
		m.Event("page_view")
		m.Payment("pix", true)
		m.Webhook("ignored")
		m.Sweep("cleanup", 1)
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Event("form_submit")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `funnelboard_tracked_events_total{event_type="form_submit"} 1`)
}
