// Package metrics exports chain and HTTP metrics on a private Prometheus
// registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeberg.org/snonux/sahachari/internal/fallback"
)

const namespace = "sahachari"

// Collector implements fallback.Observer.
type Collector struct {
	registry *prometheus.Registry

	tierAttempts    *prometheus.CounterVec
	results         *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.tierAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_attempts_total",
			Help:      "Handler attempts by service, tier, provider and status",
		},
		[]string{"service", "tier", "provider", "status"},
	)
	c.results = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Service results by outcome and source tier",
		},
		[]string{"service", "outcome", "tier"},
	)
	c.attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Duration of attempted handlers",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"service", "tier"},
	)
	c.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Chain state machine transitions",
		},
		[]string{"service", "to"},
	)
	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		},
		[]string{"path", "method", "status"},
	)
	c.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	c.registry.MustRegister(
		c.tierAttempts, c.results, c.attemptDuration, c.transitions,
		c.httpRequests, c.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the registry for tests and custom handlers.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Transition(service string, _, to fallback.State) {
	c.transitions.WithLabelValues(service, to.String()).Inc()
}

func (c *Collector) Attempted(service string, a fallback.Attempt) {
	c.tierAttempts.WithLabelValues(service, a.Tier.String(), a.Provider, string(a.Status)).Inc()
	if a.Status != fallback.StatusSkipped {
		c.attemptDuration.WithLabelValues(service, a.Tier.String()).Observe(a.Duration.Seconds())
	}
}

func (c *Collector) Finished(service string, outcome fallback.Outcome, tier fallback.Tier) {
	c.results.WithLabelValues(service, outcome.String(), tier.String()).Inc()
}

// Middleware records request counts and latency per route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		c.httpLatency.WithLabelValues(path, ctx.Request.Method).Observe(time.Since(start).Seconds())
		c.httpRequests.WithLabelValues(path, ctx.Request.Method, strconv.Itoa(ctx.Writer.Status())).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}
