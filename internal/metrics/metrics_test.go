package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveProbe(ProbeOK, 120*time.Millisecond, 3)
	m.ObserveProbe(ProbeTimeout, time.Second, 0)
	m.ObserveSwitch("auto", "completed")
	m.ObserveWeight("selection")
	m.ObserveWeight("selection")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues(ProbeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues(ProbeTimeout)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.candidates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("auto", "completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.weightDeltas.WithLabelValues("selection")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveProbe(ProbeError, time.Millisecond, 1)
		m.ObserveSwitch("manual", "failed")
		m.ObserveWeight("penalty")
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveSwitch("manual", "completed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "sourceswitch_switch_operations_total"))
}
