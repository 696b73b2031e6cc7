package middleware

import (
	"net/http"
	"time"

	"github.com/PaulBabatuyi/cvideo/internal/observability"
)

// Metrics records request counts and latency per mux route.
func Metrics(m *observability.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			m.ObserveRequest(routeOf(r), r.Method, rec.status, time.Since(start))
		})
	}
}
