// Package metrics implements the analysis metrics collector on Prometheus,
// plus a noop collector for deployments that disable the metrics endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector exports analysis counters and timings.
type PrometheusCollector struct {
	registry *prometheus.Registry

	analyses    *prometheus.CounterVec
	duration    prometheus.Histogram
	spam        *prometheus.CounterVec
	phishing    *prometheus.CounterVec
	checkErrors *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector with its own registry, so tests
// and multiple instances never collide on metric registration.
func NewPrometheusCollector() *PrometheusCollector {
	registry := prometheus.NewRegistry()

	c := &PrometheusCollector{
		registry: registry,
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsentry_analyses_total",
			Help: "Completed analyses by resulting risk level.",
		}, []string{"risk_level"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailsentry_analysis_duration_seconds",
			Help:    "Wall-clock duration of one full analysis.",
			Buckets: prometheus.DefBuckets,
		}),
		spam: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsentry_spam_detected_total",
			Help: "Messages classified as spam, by account.",
		}, []string{"account"}),
		phishing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsentry_phishing_detected_total",
			Help: "Messages classified as phishing, by account.",
		}, []string{"account"}),
		checkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsentry_check_errors_total",
			Help: "Checks that could not complete, by check name.",
		}, []string{"check"}),
	}

	registry.MustRegister(c.analyses, c.duration, c.spam, c.phishing, c.checkErrors)
	return c
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *PrometheusCollector) AnalysisCompleted(riskLevel string, duration time.Duration) {
	c.analyses.WithLabelValues(riskLevel).Inc()
	c.duration.Observe(duration.Seconds())
}

func (c *PrometheusCollector) SpamDetected(account string) {
	c.spam.WithLabelValues(account).Inc()
}

func (c *PrometheusCollector) PhishingDetected(account string) {
	c.phishing.WithLabelValues(account).Inc()
}

func (c *PrometheusCollector) CheckErrored(checkName string) {
	c.checkErrors.WithLabelValues(checkName).Inc()
}

// Noop discards every observation.
type Noop struct{}

// NewNoop returns the no-op collector.
func NewNoop() Noop { return Noop{} }

func (Noop) AnalysisCompleted(string, time.Duration) {}
func (Noop) SpamDetected(string)                     {}
func (Noop) PhishingDetected(string)                 {}
func (Noop) CheckErrored(string)                     {}
