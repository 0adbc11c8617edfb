package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-behavior-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, the cache
// and the incident lifecycle.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	incidentsCreated    *prometheus.CounterVec
	incidentTransitions *prometheus.CounterVec
	incidentRejections  *prometheus.CounterVec
	notificationJobs    *prometheus.CounterVec
	followUpsDue        prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		incidentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incidents_created_total",
			Help: "Incidents recorded, by type and severity",
		}, []string{"type", "severity"}),
		incidentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incident_transitions_total",
			Help: "Incident status changes",
		}, []string{"from", "to"}),
		incidentRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incident_rejections_total",
			Help: "Incident writes rejected before reaching the store, by reason",
		}, []string{"reason"}),
		notificationJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_total",
			Help: "Notification job attempts, by type and outcome",
		}, []string{"type", "outcome"}),
		followUpsDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "incident_follow_ups_due",
			Help: "Follow-up reminders found due on the last scheduler run",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency.(prometheus.Collector), m.cacheWrite.(prometheus.Collector), m.cacheHits, m.cacheMisses,
		m.incidentsCreated, m.incidentTransitions, m.incidentRejections, m.notificationJobs, m.followUpsDue,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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
	labelStatus := strconv.Itoa(status)
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
		return
	}
	m.cacheMisses.Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// IncidentCreated counts a newly stored incident.
func (m *MetricsService) IncidentCreated(kind models.IncidentType, severity models.SeverityLevel) {
	if m == nil {
		return
	}
	m.incidentsCreated.WithLabelValues(string(kind), string(severity)).Inc()
}

// IncidentTransitioned counts a status change.
func (m *MetricsService) IncidentTransitioned(from, to models.IncidentStatus) {
	if m == nil {
		return
	}
	m.incidentTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// IncidentRejected counts a write refused by validation, lifecycle or confirmation rules.
func (m *MetricsService) IncidentRejected(reason string) {
	if m == nil {
		return
	}
	m.incidentRejections.WithLabelValues(reason).Inc()
}

// ObserveNotificationJob records the outcome of a notification job attempt.
func (m *MetricsService) ObserveNotificationJob(jobType string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.notificationJobs.WithLabelValues(jobType, outcome).Inc()
}

// SetFollowUpsDue publishes how many reminders the last scheduler run found.
func (m *MetricsService) SetFollowUpsDue(count int) {
	if m == nil {
		return
	}
	m.followUpsDue.Set(float64(count))
}
