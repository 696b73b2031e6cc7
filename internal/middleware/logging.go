package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging logs every request with timing and status.
func Logging(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			duration := time.Since(start)

			logLevel := zapcore.InfoLevel
			switch {
			case rec.status >= 500:
				logLevel = zapcore.ErrorLevel
			case rec.status >= 400:
				logLevel = zapcore.WarnLevel
			}

			logger.Check(logLevel, "http request").Write(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", routeOf(r)),
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", rec.status),
				zap.Int64("bytes", rec.written),
				zap.Duration("duration", duration),
			)
		})
	}
}

// routeOf returns the mux pattern that served r. ServeMux records it on the
// request it was handed, so this only works for middleware inside the mux's caller.
func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}
