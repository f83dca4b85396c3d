// Package metrics exports request outcomes as Prometheus metrics.
package metrics

import (
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/s0up4200/reqflow/request"
)

// Collector records settled calls. It implements request.Observer and is
// safe for concurrent use.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	throttledTotal  *prometheus.CounterVec
}

// NewCollector registers the collector's metrics on the default registerer
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry registers the collector's metrics on registry
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	return &Collector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqflow_requests_total",
				Help: "Total number of settled calls by outcome",
			},
			[]string{"method", "host", "outcome"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reqflow_request_duration_seconds",
				Help:    "Time from call start to settlement in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "host", "outcome"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqflow_transport_errors_total",
				Help: "Total number of transport failures by error class",
			},
			[]string{"method", "host", "class"},
		),
		throttledTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqflow_throttled_total",
				Help: "Total number of throttled calls by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Observe implements request.Observer
func (c *Collector) Observe(ev request.Event) {
	if c == nil {
		return
	}

	host := hostOf(ev.URL)
	outcome := string(ev.Outcome)

	c.requestsTotal.WithLabelValues(ev.Method, host, outcome).Inc()
	if ev.Duration > 0 {
		c.requestDuration.WithLabelValues(ev.Method, host, outcome).Observe(ev.Duration.Seconds())
	}
	if ev.Class != "" {
		c.errorsTotal.WithLabelValues(ev.Method, host, ev.Class).Inc()
	}
	if ev.Throttled {
		c.throttledTotal.WithLabelValues(outcome).Inc()
	}
}

// hostOf keeps label cardinality bounded by dropping path and query
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "relative"
	}
	return u.Host
}
