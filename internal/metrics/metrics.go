package metrics

/*
whoistint — whois record highlighter and query driver

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry           = prometheus.NewRegistry()
	defaultRegisterer  = promauto.With(registry)
	metricsInitialized sync.Once
	metricsEnabled     bool
	metricsServer      *http.Server
)

// Metrics contains all the Prometheus metrics for the application
type Metrics struct {
	// Classification metrics
	LinesClassified *prometheus.CounterVec

	// Session metrics
	SessionsStarted *prometheus.CounterVec
	SessionsFailed  *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec
	SessionLines    *prometheus.HistogramVec

	// Expansion metrics
	ExpandOutcomes *prometheus.CounterVec

	// Batch queue metrics
	QueueSize            *prometheus.GaugeVec
	QueueBackpressureHit *prometheus.CounterVec
	WorkerBusy           *prometheus.GaugeVec
	WorkerPanicsTotal    *prometheus.CounterVec
	RateLimitDelay       *prometheus.HistogramVec

	// Output metrics
	OutputBytesWritten *prometheus.CounterVec
	OutputFlushesTotal *prometheus.CounterVec
}

// Global instance of metrics
var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection
func EnableMetrics() {
	metricsEnabled = true
}

// IsMetricsEnabled returns whether metrics collection is enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// newMetrics creates and registers all metrics
func newMetrics() *Metrics {
	durationBuckets := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}
	lineBuckets := []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}

	return &Metrics{
		LinesClassified: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whoistint_lines_classified_total",
				Help: "Total number of record lines classified, by category",
			},
			[]string{"category"},
		),
		SessionsStarted: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whoistint_sessions_started_total",
				Help: "Total number of lookup sessions started",
			},
			[]string{"mode"},
		),
		SessionsFailed: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whoistint_sessions_failed_total",
				Help: "Total number of lookup sessions that failed",
			},
			[]string{"mode", "error_type"},
		),
		SessionDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whoistint_session_duration_seconds",
				Help:    "Wall time from subprocess start to stream close",
				Buckets: durationBuckets,
			},
			[]string{"mode"},
		),
		SessionLines: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whoistint_session_lines",
				Help:    "Record lines delivered per session",
				Buckets: lineBuckets,
			},
			[]string{"mode"},
		),
		ExpandOutcomes: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whoistint_expand_outcomes_total",
				Help: "Follow-up expansion attempts by outcome",
			},
			[]string{"outcome"},
		),
		QueueSize: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "whoistint_queue_size",
				Help: "Current size of batch worker queues",
			},
			[]string{"worker_id"},
		),
		QueueBackpressureHit: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whoistint_queue_backpressure_hits_total",
				Help: "Number of times a full worker queue rejected a submission",
			},
			[]string{"worker_id"},
		),
		WorkerBusy: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "whoistint_worker_busy",
				Help: "Whether a batch worker is currently busy (1) or idle (0)",
			},
			[]string{"worker_id"},
		),
		WorkerPanicsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whoistint_worker_panics_total",
				Help: "Total number of panics recovered by batch workers",
			},
			[]string{"worker_id"},
		),
		RateLimitDelay: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whoistint_rate_limit_delay_seconds",
				Help:    "Time spent waiting on per-shard rate limiters",
				Buckets: durationBuckets,
			},
			[]string{"shard"},
		),
		OutputBytesWritten: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whoistint_output_bytes_written_total",
				Help: "Bytes written to batch output files",
			},
			[]string{"path"},
		),
		OutputFlushesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whoistint_output_flushes_total",
				Help: "Flush operations on batch output buffers",
			},
			[]string{"path"},
		),
	}
}

// StartMetricsServer starts an HTTP server to expose Prometheus metrics
func StartMetricsServer(addr string) error {
	if !metricsEnabled {
		return nil
	}

	var startErr error
	metricsInitialized.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		metricsServer = &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		go func() {
			log.Printf("Starting metrics server on %s", addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	})

	return startErr
}

// ShutdownMetricsServer gracefully shuts down the metrics server
func ShutdownMetricsServer(ctx context.Context) error {
	if metricsServer != nil {
		log.Println("Shutting down metrics server...")
		return metricsServer.Shutdown(ctx)
	}
	return nil
}

// MeasureDuration is a helper to measure the duration of an operation
func MeasureDuration(histogram *prometheus.HistogramVec, labels prometheus.Labels) func() {
	if !metricsEnabled {
		return func() {}
	}

	start := time.Now()
	return func() {
		histogram.With(labels).Observe(time.Since(start).Seconds())
	}
}

// CountLine records one classified line when metrics are enabled
func (m *Metrics) CountLine(category string) {
	if !metricsEnabled {
		return
	}
	m.LinesClassified.WithLabelValues(category).Inc()
}
