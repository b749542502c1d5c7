// Package metrics exports batch outcomes as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studiowebux/roundtrip/internal/batch"
	"github.com/studiowebux/roundtrip/internal/types"
)

const namespace = "roundtrip"

// Recorder implements batch.Recorder on a private registry
type Recorder struct {
	registry *prometheus.Registry

	results  *prometheus.CounterVec
	failures *prometheus.CounterVec
	retries  prometheus.Counter
	duration prometheus.Histogram
	batches  prometheus.Counter
	elapsed  prometheus.Gauge
}

var _ batch.Recorder = (*Recorder)(nil)

// NewRecorder creates a Recorder with all collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_total",
			Help:      "Completed round-trip tests by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Transport failures by kind.",
		}, []string{"kind"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_retries_total",
			Help:      "Connect attempts repeated after a failed dial.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "test_duration_seconds",
			Help:      "Wall time of a single test, connect phase included.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches completed or cancelled.",
		}),
		elapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_elapsed_seconds",
			Help:      "Processing time of the most recent batch.",
		}),
	}

	r.registry.MustRegister(r.results, r.failures, r.retries, r.duration, r.batches, r.elapsed)
	return r
}

// Registry returns the registry the collectors live on
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveResult records one finished test
func (r *Recorder) ObserveResult(result *types.TestResult, kind string) {
	r.results.WithLabelValues(string(result.Outcome())).Inc()
	if kind != "" {
		r.failures.WithLabelValues(kind).Inc()
	}
	r.duration.Observe(result.Duration.Seconds())
}

// ObserveRetry records one reconnect
func (r *Recorder) ObserveRetry() {
	r.retries.Inc()
}

// ObserveBatch records a finished batch
func (r *Recorder) ObserveBatch(report *batch.Report) {
	r.batches.Inc()
	r.elapsed.Set(report.Elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until Shutdown is called
func (r *Recorder) Serve(addr string) (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return server, errCh
}
