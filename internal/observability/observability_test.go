package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitMetrics_RecordsValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := InitMetrics(reg)
	require.NoError(t, err)

	m.ObserveRequest("/api/cvideo", http.MethodGet, 200, 10*time.Millisecond)
	m.ObserveRequest("/api/cvideo", http.MethodGet, 200, 20*time.Millisecond)
	m.AddUploadBytes(1024)
	m.AddUploadBytes(-5)
	m.SetInventory(3, 4096)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/cvideo", "GET", "200")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.uploadBytes))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.videosStored))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.bytesStored))
}

func TestInitMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := InitMetrics(reg)
	require.NoError(t, err)
	second, err := InitMetrics(reg)
	require.NoError(t, err)

	first.AddUploadBytes(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(second.uploadBytes))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/", "GET", 200, time.Second)
		m.AddUploadBytes(1)
		m.SetInventory(1, 1)
	})
}

func TestTraceHandler_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := InitTracerProvider(&buf, zap.NewNop())
	require.NoError(t, err)

	h := TraceHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), tp)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cvideo", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ShutdownTracerProvider(context.Background(), tp, zap.NewNop())
	assert.Contains(t, buf.String(), "GET /api/cvideo")
}

func TestInitLogger(t *testing.T) {
	for _, dev := range []bool{true, false} {
		logger, err := InitLogger(dev)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}
