// Package metrics exposes Prometheus counters for HTTP traffic and inventory
// transfers on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transfer outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	transfers       *prometheus.CounterVec
	transferredUnit *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_transfers_total",
			Help: "Inventory transfers by kind and outcome",
		}, []string{"kind", "outcome"}),
		transferredUnit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_transferred_units_total",
			Help: "Units moved by successful inventory transfers",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.transfers,
		m.transferredUnit,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is exposed for tests and for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTransfer records one inventory transfer. units is only counted on success.
func (m *Metrics) ObserveTransfer(kind string, units int, err error) {
	if err != nil {
		m.transfers.WithLabelValues(kind, OutcomeFailure).Inc()
		return
	}
	m.transfers.WithLabelValues(kind, OutcomeSuccess).Inc()
	if units > 0 {
		m.transferredUnit.WithLabelValues(kind).Add(float64(units))
	}
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
