package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the Prometheus collectors for the video service.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	uploadBytes  prometheus.Counter
	videosStored prometheus.Gauge
	bytesStored  prometheus.Gauge
}

// InitMetrics registers the service collectors with reg.
func InitMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cvideo",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cvideo",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"route", "method"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cvideo",
			Name:      "upload_bytes_total",
			Help:      "Bytes written by successful uploads.",
		}),
		videosStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cvideo",
			Name:      "videos_stored",
			Help:      "Videos currently in the store.",
		}),
		bytesStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cvideo",
			Name:      "video_bytes_stored",
			Help:      "Total size of videos currently in the store.",
		}),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.uploadBytes, err = register(reg, m.uploadBytes); err != nil {
		return nil, err
	}
	if m.videosStored, err = register(reg, m.videosStored); err != nil {
		return nil, err
	}
	if m.bytesStored, err = register(reg, m.bytesStored); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing the existing collector when it was
// already registered (useful for testing).
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) AddUploadBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.uploadBytes.Add(float64(n))
}

func (m *Metrics) SetInventory(videos int, bytes int64) {
	if m == nil {
		return
	}
	m.videosStored.Set(float64(videos))
	m.bytesStored.Set(float64(bytes))
}

// StartMetricsServer serves /metrics and /health on port in the background.
// The caller owns shutdown of the returned server.
func StartMetricsServer(port string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
