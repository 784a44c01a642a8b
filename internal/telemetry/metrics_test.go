package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRun("COMPLETED")
	m.ObserveRun("COMPLETED")
	m.ObserveRun("ABORTED")
	m.ObserveStep("function_call", "EXECUTED", 150*time.Millisecond)
	m.ObserveStep("function_call", "EXECUTION_FAILED", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ABORTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("function_call", "EXECUTED")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("COMPLETED")
		m.ObserveStep("get_variable", "EXECUTED", time.Millisecond)
	})
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	NewMetrics(reg).ObserveRun("COMPLETED")

	require.NoError(t, Push(context.Background(), srv.URL, "genflow", reg))
	assert.Equal(t, "/metrics/job/genflow", gotPath)
	assert.Contains(t, gotBody, "genflow_runs_total")
}

func TestWithStep(t *testing.T) {
	var buf strings.Builder
	logger := slogText(&buf)

	WithStep(WithRunID(logger, "r1"), "load", "function_call").Info("step executed")

	out := buf.String()
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "step=load")
	assert.Contains(t, out, "step_type=function_call")
}
