// Package metrics exposes Prometheus collectors for the mirror pipeline.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	edgarRequestsTotal         *prometheus.CounterVec
	edgarRetriesTotal          *prometheus.CounterVec
	edgarBytesTotal            prometheus.Counter
	filingsTotal               *prometheus.CounterVec
	documentsDownloadedTotal   prometheus.Counter
	documentsSkippedTotal      *prometheus.CounterVec
	rateLimitDelaySeconds      prometheus.Histogram
	filingDownloadDurationSecs prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		edgarRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgar_requests_total",
				Help: "Total number of upstream requests, labeled by kind and status code.",
			},
			[]string{"kind", "code"},
		)

		edgarRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgar_retries_total",
				Help: "Total number of retried attempts, labeled by request kind.",
			},
			[]string{"kind"},
		)

		edgarBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "edgar_bytes_total",
				Help: "Total number of document bytes written to disk.",
			},
		)

		filingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mirror_filings_total",
				Help: "Total number of filings processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		documentsDownloadedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mirror_documents_downloaded_total",
				Help: "Total number of documents fetched and written.",
			},
		)

		documentsSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mirror_documents_skipped_total",
				Help: "Total number of documents skipped, labeled by reason.",
			},
			[]string{"reason"},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "edgar_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		filingDownloadDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mirror_filing_download_duration_seconds",
				Help:    "Histogram of per-filing download latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)
	})
}

// ObserveRequest increments the request counter for an upstream attempt.
func ObserveRequest(kind string, code int) {
	if edgarRequestsTotal == nil {
		return
	}
	edgarRequestsTotal.WithLabelValues(kind, strconv.Itoa(code)).Inc()
}

// ObserveRetry increments the retry counter for a request kind.
func ObserveRetry(kind string) {
	if edgarRetriesTotal == nil {
		return
	}
	edgarRetriesTotal.WithLabelValues(kind).Inc()
}

// ObserveBytes adds written document bytes.
func ObserveBytes(n int64) {
	if edgarBytesTotal == nil || n <= 0 {
		return
	}
	edgarBytesTotal.Add(float64(n))
}

// ObserveFiling increments the filing counter for the given outcome.
func ObserveFiling(outcome string) {
	if filingsTotal == nil {
		return
	}
	filingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDocumentDownloaded increments the downloaded-document counter.
func ObserveDocumentDownloaded() {
	if documentsDownloadedTotal == nil {
		return
	}
	documentsDownloadedTotal.Inc()
}

// ObserveDocumentSkipped increments the skipped-document counter.
func ObserveDocumentSkipped(reason string) {
	if documentsSkippedTotal == nil {
		return
	}
	documentsSkippedTotal.WithLabelValues(reason).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(d time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// ObserveFilingDuration records how long one filing took end to end.
func ObserveFilingDuration(d time.Duration) {
	if filingDownloadDurationSecs == nil {
		return
	}
	filingDownloadDurationSecs.Observe(d.Seconds())
}
