package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the domain counters for the file store and preview cache.
type Metrics struct {
	Ingests           *prometheus.CounterVec
	PreviewRequests   *prometheus.CounterVec
	ConverterRuns     *prometheus.CounterVec
	ConverterDuration prometheus.Histogram
	RenderJoins       prometheus.Counter
	AuditEntries      *prometheus.CounterVec
}

// NewMetrics registers the domain metrics on reg. A nil reg gets a private
// registry so components can be built without global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Ingests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "projectfiles",
			Name:      "ingests_total",
			Help:      "Uploaded files by category and result.",
		}, []string{"category", "result"}),
		PreviewRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "projectfiles",
			Name:      "preview_requests_total",
			Help:      "Preview lookups by kind and cache outcome.",
		}, []string{"kind", "cache"}),
		ConverterRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "projectfiles",
			Name:      "converter_runs_total",
			Help:      "External document converter invocations by result.",
		}, []string{"result"}),
		ConverterDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "projectfiles",
			Name:      "converter_duration_seconds",
			Help:      "Wall time of external converter runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		RenderJoins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "projectfiles",
			Name:      "render_joins_total",
			Help:      "Preview requests that joined a render already in flight for the same artifact.",
		}),
		AuditEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "projectfiles",
			Name:      "audit_entries_total",
			Help:      "Audit entries written by action.",
		}, []string{"action"}),
	}
}

// NewServerMetrics builds and registers the gRPC server metrics.
func NewServerMetrics(reg prometheus.Registerer) (*grpcprom.ServerMetrics, error) {
	serverMetrics := grpcprom.NewServerMetrics(
		grpcprom.WithServerHandlingTimeHistogram(
			grpcprom.WithHistogramBuckets([]float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10}),
		),
	)

	if err := reg.Register(serverMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
	}
	return serverMetrics, nil
}

// NewMetricsServer serves /metrics from gatherer plus a /health endpoint.
func NewMetricsServer(addr string, gatherer prometheus.Gatherer, health func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartMetricsServer runs srv in the background until it is shut down.
func StartMetricsServer(srv *http.Server, logger *zap.Logger) {
	go func() {
		logger.Info("starting metrics server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}
