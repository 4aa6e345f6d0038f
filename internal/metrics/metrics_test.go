package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewire/pulsewire/internal/metrics"
)

func TestSet_Snapshot(t *testing.T) {
	s := metrics.New()

	s.ConnOpened()
	s.ConnOpened()
	s.ConnClosed()
	s.FrameReceived()
	s.Publish(3, 1)
	s.HistoryRecorded()

	snap := s.Snapshot()
	assert.EqualValues(t, 2, snap.ConnectionsOpened)
	assert.EqualValues(t, 1, snap.ConnectionsActive)
	assert.EqualValues(t, 1, snap.FramesReceived)
	assert.EqualValues(t, 1, snap.Publishes)
	assert.EqualValues(t, 3, snap.EventsDelivered)
	assert.EqualValues(t, 1, snap.DeliveryFailures)
	assert.EqualValues(t, 1, snap.HistoryRecorded)
}

func TestSet_ServeHTTP_TextExposition(t *testing.T) {
	s := metrics.New()
	s.ConnOpened()
	s.Publish(2, 0)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(rec.Body)
	require.NoError(t, err)

	opened, ok := families["pulsewire_connections_opened_total"]
	require.True(t, ok, "exposition must include the opened counter")
	assert.Equal(t, float64(1), opened.GetMetric()[0].GetCounter().GetValue())

	delivered, ok := families["pulsewire_events_delivered_total"]
	require.True(t, ok)
	assert.Equal(t, float64(2), delivered.GetMetric()[0].GetCounter().GetValue())

	active, ok := families["pulsewire_connections_active"]
	require.True(t, ok)
	assert.Equal(t, float64(1), active.GetMetric()[0].GetGauge().GetValue())

	_, ok = families["pulsewire_uptime_seconds"]
	assert.True(t, ok)
}
