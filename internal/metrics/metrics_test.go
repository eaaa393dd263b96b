package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/algelab-auth/internal/metrics"
	"github.com/stretchr/testify/require"
)

func TestCountersExposed(t *testing.T) {
	m := metrics.New()
	m.LoginOutcome("established")
	m.RefreshOutcome("rotated")
	m.ReuseDetected()
	m.Purged("login_state", 3)
	m.Purged("login_state", 0)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var purged float64
	for _, f := range families {
		if f.GetName() == "algelab_auth_janitor_purged_total" {
			for _, metric := range f.GetMetric() {
				purged += metric.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, float64(3), purged)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `algelab_auth_login_outcomes_total{outcome="established"} 1`)
	require.Contains(t, string(body), "algelab_auth_refresh_reuse_detected_total 1")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.LoginOutcome("x")
	m.ReuseDetected()
	m.Purged("x", 1)
	require.Nil(t, m.Registry())
}
