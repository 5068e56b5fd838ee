package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

// MetricsService encapsulates Prometheus instrumentation. All methods are safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	enrollments      *prometheus.CounterVec
	remoteCalls      *prometheus.HistogramVec
	outboxDeliveries *prometheus.CounterVec
	outboxPending    prometheus.Gauge
	eventsPublished  *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

// NewMetricsService registers the service collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	enrollments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sis_enrollment_operations_total",
		Help: "Enroll and drop operations by outcome",
	}, []string{"operation", "outcome"})

	remoteCalls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sis_enrollment_service_call_seconds",
		Help:    "Latency of calls to the enrollment-record service",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	outboxDeliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sis_outbox_deliveries_total",
		Help: "Outbox delivery attempts by kind and outcome",
	}, []string{"kind", "outcome"})

	outboxPending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sis_outbox_pending",
		Help: "Outbox entries waiting for delivery",
	})

	eventsPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sis_grade_events_published_total",
		Help: "Grade events appended to the event stream",
	}, []string{"outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sis_notifications_total",
		Help: "Grade notifications handled by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		enrollments, remoteCalls, outboxDeliveries, outboxPending, eventsPublished, notifications, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		enrollments:      enrollments,
		remoteCalls:      remoteCalls,
		outboxDeliveries: outboxDeliveries,
		outboxPending:    outboxPending,
		eventsPublished:  eventsPublished,
		notifications:    notifications,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordEnrollment counts an enroll or drop by outcome (ok or an error code).
func (m *MetricsService) RecordEnrollment(operation string, err error) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(operation, outcomeLabel(err)).Inc()
}

// ObserveRemoteCall records one call to the enrollment-record service.
func (m *MetricsService) ObserveRemoteCall(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.remoteCalls.WithLabelValues(operation, okOrError(err)).Observe(duration.Seconds())
}

// RecordOutboxDelivery counts an outbox attempt; outcome is delivered, retry or failed.
func (m *MetricsService) RecordOutboxDelivery(kind, outcome string) {
	if m == nil {
		return
	}
	m.outboxDeliveries.WithLabelValues(kind, outcome).Inc()
}

// SetOutboxPending updates the backlog gauge.
func (m *MetricsService) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}

// RecordEventPublished counts grade event publication attempts.
func (m *MetricsService) RecordEventPublished(err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(okOrError(err)).Inc()
}

// RecordNotification counts consumer outcomes (sent, duplicate, in_flight, failed, invalid).
func (m *MetricsService) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return appErrors.FromError(err).Code
}

func okOrError(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
