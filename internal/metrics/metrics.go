// Package metrics exposes Prometheus instruments for the ledger and its
// persistence layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rentbook"

// Recorder owns a private registry so tests can create as many as they need.
type Recorder struct {
	registry *prometheus.Registry

	Mutations       *prometheus.CounterVec
	PersistDuration prometheus.Histogram
	Properties      prometheus.Gauge
	Expenses        prometheus.Gauge
	Notifications   *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
}

// New creates a Recorder with Go runtime and process collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Store mutations by operation and result.",
		}, []string{"operation", "result"}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_duration_seconds",
			Help:      "Time spent writing the full state to the blob store.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		Properties: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "properties",
			Help:      "Number of stored properties.",
		}),
		Expenses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expenses",
			Help:      "Number of stored expense records.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_notifications_total",
			Help:      "Change notifications by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status class.",
		}, []string{"method", "code"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Mutations,
		r.PersistDuration,
		r.Properties,
		r.Expenses,
		r.Notifications,
		r.HTTPRequests,
	)
	return r
}

// ObserveMutation records the outcome of one Store mutation. A nil Recorder
// is a no-op.
func (r *Recorder) ObserveMutation(op string, persist time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Mutations.WithLabelValues(op, result).Inc()
	r.PersistDuration.Observe(persist.Seconds())
}

// SetSizes updates the collection size gauges.
func (r *Recorder) SetSizes(properties, expenses int) {
	if r == nil {
		return
	}
	r.Properties.Set(float64(properties))
	r.Expenses.Set(float64(expenses))
}

// ObserveNotification counts a change notification attempt.
func (r *Recorder) ObserveNotification(err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.Notifications.WithLabelValues("error").Inc()
		return
	}
	r.Notifications.WithLabelValues("ok").Inc()
}

// ObserveHTTP counts a served request, bucketing the status as 2xx, 4xx...
func (r *Recorder) ObserveHTTP(method string, status int) {
	if r == nil {
		return
	}
	code := strconv.Itoa(status/100) + "xx"
	r.HTTPRequests.WithLabelValues(method, code).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
