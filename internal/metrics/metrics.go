// Package metrics exposes Prometheus collectors for the relay service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal         *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	probeRoundsTotal           prometheus.Counter
	endpointAvailable          *prometheus.GaugeVec
	relayResolutionsTotal      *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apirelay_fetch_requests_total",
				Help: "Total number of outbound fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apirelay_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of served HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		probeRoundsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "apirelay_probe_rounds_total",
				Help: "Total number of availability probe rounds executed.",
			},
		)

		endpointAvailable = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "apirelay_endpoint_available",
				Help: "Last probed availability per endpoint (1 reachable, 0 unreachable).",
			},
			[]string{"endpoint"},
		)

		relayResolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apirelay_resolutions_total",
				Help: "Total trigger resolutions, labeled by provenance source.",
			},
			[]string{"source"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch increments the fetch counters for one URL attempt.
func ObserveFetch(site string, outcome string, bytesFetched int) {
	sanitizedSite := SanitizeSite(site)
	fetchRequestsTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveHTTPRequest increments the served request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveProbeRound increments the probe round counter.
func ObserveProbeRound() {
	probeRoundsTotal.Inc()
}

// SetEndpointAvailable records the latest probe verdict for an endpoint.
func SetEndpointAvailable(endpoint string, available bool) {
	v := 0.0
	if available {
		v = 1.0
	}
	endpointAvailable.WithLabelValues(endpoint).Set(v)
}

// ObserveResolution counts a trigger resolution by provenance source.
func ObserveResolution(source string) {
	relayResolutionsTotal.WithLabelValues(source).Inc()
}
