package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Reference Data Layer
	CompoundTotalCount   GaugeVec
	ProductTotalCount    GaugeVec
	SimilarityInvalidations CounterVec
	SearchRequestsTotal  CounterVec
	SearchDuration       HistogramVec

	// Infrastructure Layer
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	EventsPublishedTotal   CounterVec
	EventPublishDuration   HistogramVec

	// System Health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics and returns the AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Reference data
	m.CompoundTotalCount = collector.RegisterGauge("compound_total_count", "Total compounds", "validity")
	m.ProductTotalCount = collector.RegisterGauge("product_total_count", "Total products", "kind")
	m.SimilarityInvalidations = collector.RegisterCounter("similarity_invalidations_total", "Similarity rows invalidated", "reason")
	m.SearchRequestsTotal = collector.RegisterCounter("compound_search_requests_total", "Compound search requests", "search_type", "status")
	m.SearchDuration = collector.RegisterHistogram("compound_search_duration_seconds", "Compound search duration", DefaultHTTPDurationBuckets, "search_type")

	// Infrastructure
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.EventsPublishedTotal = collector.RegisterCounter("events_published_total", "Events published", "topic", "status")
	m.EventPublishDuration = collector.RegisterHistogram("event_publish_duration_seconds", "Event publish duration", DefaultHTTPDurationBuckets, "topic")

	// System health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordEventPublished(metrics *AppMetrics, topic string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.EventsPublishedTotal.WithLabelValues(topic, status).Inc()
	metrics.EventPublishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}
