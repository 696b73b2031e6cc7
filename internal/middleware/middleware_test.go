package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/PaulBabatuyi/cvideo/internal/observability"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("first"), mark("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cvideo", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"videos":[]}`))
	})
	mux.HandleFunc("DELETE /api/cvideo", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	return mux
}

func TestLogging_LevelsAndFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := Chain(newMux(), RequestID, Logging(zap.New(core)))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/cvideo", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/cvideo", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	entries := logs.All()
	require.Len(t, entries, 3)

	ok := entries[0].ContextMap()
	assert.Equal(t, "info", entries[0].Level.String())
	assert.Equal(t, "GET /api/cvideo", ok["route"])
	assert.Equal(t, int64(200), ok["status"])
	assert.NotEmpty(t, ok["request_id"])

	assert.Equal(t, "error", entries[1].Level.String())
	assert.Equal(t, "warn", entries[2].Level.String())
	assert.Equal(t, "unmatched", entries[2].ContextMap()["route"])
}

func TestMetrics_CountsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.InitMetrics(reg)
	require.NoError(t, err)

	h := Chain(newMux(), Metrics(m))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/cvideo", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/cvideo", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/cvideo", nil))

	expected := `
# HELP cvideo_http_requests_total HTTP requests by route, method and status code.
# TYPE cvideo_http_requests_total counter
cvideo_http_requests_total{code="200",method="GET",route="GET /api/cvideo"} 2
cvideo_http_requests_total{code="500",method="DELETE",route="DELETE /api/cvideo"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cvideo_http_requests_total"))
}

func TestCORS_Preflight(t *testing.T) {
	h := Chain(newMux(), CORS([]string{"http://example.com"}))

	req := httptest.NewRequest(http.MethodOptions, "/api/cvideo", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}

func TestStatusRecorder_HijackUnsupported(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	_, _, err := rec.Hijack()
	assert.Error(t, err)
}
