package output

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/botradar/internal/domain"
)

type fixedInspector int

func (f fixedInspector) TrackedClients() int { return int(f) }

func (f fixedInspector) TopClients(int) []domain.ClientSummary { return nil }

func TestPrometheusMetrics_Counters(t *testing.T) {
	m := NewPrometheusMetrics("test")

	m.ObserveClassification(domain.Good(), 0.00001)
	m.ObserveClassification(domain.Good(), 0.00001)
	m.ObserveClassification(domain.Bad(), 0.00002)
	m.OnEviction("a")
	m.OnClockRegression("b")
	m.IncrementBackendErrors()
	m.IncrementDroppedDecisions()
	m.OnDecision(decision("c", domain.Suspicious(0.5)))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.classifications.WithLabelValues("GOOD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifications.WithLabelValues("BAD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clockRegressions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedDecisions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("SUSPICIOUS", "proxy")))
}

func TestPrometheusMetrics_IndependentRegistries(t *testing.T) {
	a := NewPrometheusMetrics("")
	b := NewPrometheusMetrics("")

	a.IncrementBackendErrors()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.backendErrors))
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	m := NewPrometheusMetrics("botradar")
	m.BindInspector(fixedInspector(42))
	m.ObserveClassification(domain.Bad(), 0.001)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `botradar_classifications_total{class="BAD"} 1`)
	assert.Contains(t, body, "botradar_tracked_clients 42")
	assert.True(t, strings.Contains(body, "botradar_memory_bytes"))
}
