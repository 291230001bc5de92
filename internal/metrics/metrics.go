// Package metrics exposes Prometheus collectors for the login and worklog flows.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	acquisitionsTotal          *prometheus.CounterVec
	acquisitionDurationSeconds prometheus.Histogram
	clickAttemptsTotal         *prometheus.CounterVec
	cookiesCapturedTotal       *prometheus.CounterVec
	submissionsTotal           *prometheus.CounterVec
	httpClientRequestsTotal    *prometheus.CounterVec
	httpClientDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; the Observe helpers call it lazily.
func Init() {
	once.Do(func() {
		acquisitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempo_session_acquisitions_total",
				Help: "Total number of browser login runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		acquisitionDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempo_session_acquisition_duration_seconds",
				Help:    "Histogram of browser login durations.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
		)

		clickAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempo_click_attempts_total",
				Help: "Total number of click attempts on login controls, labeled by element and outcome.",
			},
			[]string{"element", "outcome"},
		)

		cookiesCapturedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempo_cookies_captured_total",
				Help: "Total number of session tokens captured, labeled by kind.",
			},
			[]string{"kind"},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempo_worklog_submissions_total",
				Help: "Total number of worklog submissions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpClientRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempo_http_client_requests_total",
				Help: "Total number of outbound REST requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpClientDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempo_http_client_request_duration_seconds",
				Help:    "Histogram of outbound REST request latencies, labeled by method.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method"},
		)
	})
}

// ObserveAcquisition records the result and duration of one login run.
func ObserveAcquisition(outcome string, duration time.Duration) {
	Init()
	acquisitionsTotal.WithLabelValues(outcome).Inc()
	acquisitionDurationSeconds.Observe(duration.Seconds())
}

// ObserveClick counts one click attempt on the element.
func ObserveClick(element, outcome string) {
	Init()
	clickAttemptsTotal.WithLabelValues(element, outcome).Inc()
}

// ObserveCookie counts a captured session token of the given kind.
func ObserveCookie(kind string) {
	Init()
	cookiesCapturedTotal.WithLabelValues(kind).Inc()
}

// ObserveSubmission counts one worklog submission.
func ObserveSubmission(outcome string) {
	Init()
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// InstrumentTransport wraps next so every outbound request is counted and timed.
// A nil next means http.DefaultTransport.
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	Init()
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(httpClientRequestsTotal,
		promhttp.InstrumentRoundTripperDuration(httpClientDurationSeconds, next))
}

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
