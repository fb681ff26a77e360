package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRunStarted()
	c.RecordRunStarted()
	c.RecordRunSuperseded()
	c.RecordLine("log")
	c.RecordLine("log")
	c.RecordLine("fault")
	c.RecordAuthFailure("invalid_credential")
	c.RecordRunFinished(150 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsSuperseded))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.lines.WithLabelValues("log")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lines.WithLabelValues("fault")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.authFailures.WithLabelValues("invalid_credential")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "hyperlearn_run_duration_seconds")
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRunStarted()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "hyperlearn_runs_started_total 1"))
}
