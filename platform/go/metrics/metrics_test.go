package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveAuthCounts(t *testing.T) {
	t.Parallel()

	m := New("test")
	m.ObserveAuth("signin", "success")
	m.ObserveAuth("signin", "success")
	m.ObserveAuth("signin", "invalid_credentials")

	require.Equal(t, 2.0, testutil.ToFloat64(m.AuthOutcomes.WithLabelValues("signin", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AuthOutcomes.WithLabelValues("signin", "invalid_credentials")))
}

func TestNilMetricsAreNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveAuth("signin", "success")
		m.ObserveSaga("signup", "completed")
	})
}

func TestHandlerExposesPrefixedSeries(t *testing.T) {
	t.Parallel()

	m := New("")
	m.ObserveSaga("signup", "compensated")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `igreja_saga_outcomes_total{outcome="compensated",saga="signup"} 1`))
	require.Contains(t, body, "go_goroutines")
}
