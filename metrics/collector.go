// Package metrics exposes monitoring pass and HTTP metrics to Prometheus and
// CloudWatch.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"cart-monitor-service/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector owns a private registry so several collectors can coexist in
// one process (tests).
type Collector struct {
	registry *prometheus.Registry

	passesTotal     *prometheus.CounterVec
	passDuration    prometheus.Histogram
	lastPassTime    prometheus.Gauge
	cartsScanned    prometheus.Counter
	cartsAbandoned  prometheus.Counter
	eventsPublished prometheus.Counter
	publishFailures prometheus.Counter
	decodeFailures  prometheus.Counter
	emptyCarts      prometheus.Counter
	enrichFailures  prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

func NewCollector(namespace string, logger *zap.Logger) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.passesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Monitoring passes by final state",
		},
		[]string{"state", "cancelled"},
	)
	c.passDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pass_duration_seconds",
		Help:      "Duration of monitoring passes",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
	c.lastPassTime = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix time the last monitoring pass finished",
	})

	c.cartsScanned = counter("carts_scanned_total", "Cart entries visited by the keyspace scan")
	c.cartsAbandoned = counter("carts_abandoned_total", "Carts classified as abandoned")
	c.eventsPublished = counter("events_published_total", "Abandonment events accepted by the bus")
	c.publishFailures = counter("publish_failures_total", "Abandonment events the bus rejected")
	c.decodeFailures = counter("decode_failures_total", "Cart payloads that could not be decoded")
	c.emptyCarts = counter("empty_carts_total", "Abandoned carts without items")
	c.enrichFailures = counter("enrich_failures_total", "Product lookups that fell back to Unknown")

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// ObservePass records the summary of a finished pass.
func (c *Collector) ObservePass(stats services.PassStats) {
	c.passesTotal.WithLabelValues(string(stats.State), strconv.FormatBool(stats.Cancelled)).Inc()
	c.passDuration.Observe(stats.Duration.Seconds())
	c.lastPassTime.Set(float64(stats.StartedAt.Add(stats.Duration).Unix()))

	c.cartsScanned.Add(float64(stats.Scanned))
	c.cartsAbandoned.Add(float64(stats.Abandoned))
	c.eventsPublished.Add(float64(stats.Published))
	c.publishFailures.Add(float64(stats.PublishFailures))
	c.decodeFailures.Add(float64(stats.DecodeFailures))
	c.emptyCarts.Add(float64(stats.EmptyCarts))
	c.enrichFailures.Add(float64(stats.EnrichFailures))
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(c.logger),
	})
}
