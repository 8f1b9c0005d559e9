package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBatch(t *testing.T) {
	m := NewMetrics()

	m.ObserveBatch(OutcomeProvisioned, 10)
	m.ObserveBatch(OutcomeProvisioned, 5)
	m.ObserveBatch(OutcomeFailed, 10)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.batches.WithLabelValues(OutcomeProvisioned)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.batches.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, float64(15), testutil.ToFloat64(m.subscribers))
}

func TestObserveUpstreamAndHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveUpstream(http.MethodPost, "/api/v2/groups.json", http.StatusCreated, 20*time.Millisecond)
	m.ObserveUpstream(http.MethodGet, "/api/v2/contacts.json", 0, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.upstreamRequests.WithLabelValues(http.MethodGet, "/api/v2/contacts.json", "error")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "smsbatch_upstream_requests_total")
}

func TestRegistryGathersCollectors(t *testing.T) {
	m := NewMetrics()
	m.ObserveBatch(OutcomeProvisioned, 3)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["smsbatch_ingestion_batches_total"])
	assert.True(t, names["go_goroutines"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBatch(OutcomeFailed, 3)
		m.ObserveUpstream(http.MethodGet, "/", 200, time.Millisecond)
	})
}
