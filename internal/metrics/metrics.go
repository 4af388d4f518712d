// Package metrics exposes Prometheus instrumentation for the API and the
// sheet store behind it.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/sheetrest/internal/core"
)

// Metrics holds the collectors of one process, on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	storeDuration   *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	rateLimitHits   prometheus.Counter
}

// New creates and registers all collectors under namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sheetrest"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	m.storeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Sheet store call duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)

	m.storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Total number of failed sheet store calls",
		},
		[]string{"op"},
	)

	m.rateLimitHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.storeDuration,
		m.storeErrors,
		m.rateLimitHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveStore records one store call.
func (m *Metrics) ObserveStore(op string, d time.Duration, err error) {
	m.storeDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	m.rateLimitHits.Inc()
}

// InstrumentStore wraps store so every call is timed and failures counted.
func InstrumentStore(store core.Store, m *Metrics) core.Store {
	return &instrumentedStore{next: store, m: m}
}

type instrumentedStore struct {
	next core.Store
	m    *Metrics
}

func (s *instrumentedStore) Open(ctx context.Context) (core.Document, error) {
	start := time.Now()
	doc, err := s.next.Open(ctx)
	s.m.ObserveStore("open", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &instrumentedDocument{Document: doc, m: s.m}, nil
}

type instrumentedDocument struct {
	core.Document
	m *Metrics
}

func (d *instrumentedDocument) Rows(ctx context.Context, sheet core.SheetInfo, page core.Page) ([]core.Record, error) {
	start := time.Now()
	recs, err := d.Document.Rows(ctx, sheet, page)
	d.m.ObserveStore("rows", time.Since(start), err)
	return recs, err
}

func (d *instrumentedDocument) AppendRow(ctx context.Context, sheet core.SheetInfo, row core.Row) error {
	start := time.Now()
	err := d.Document.AppendRow(ctx, sheet, row)
	d.m.ObserveStore("append", time.Since(start), err)
	return err
}

func (d *instrumentedDocument) UpdateRow(ctx context.Context, sheet core.SheetInfo, rec core.Record) error {
	start := time.Now()
	err := d.Document.UpdateRow(ctx, sheet, rec)
	d.m.ObserveStore("update", time.Since(start), err)
	return err
}

func (d *instrumentedDocument) DeleteRow(ctx context.Context, sheet core.SheetInfo, ref core.RowRef) error {
	start := time.Now()
	err := d.Document.DeleteRow(ctx, sheet, ref)
	d.m.ObserveStore("delete", time.Since(start), err)
	return err
}
