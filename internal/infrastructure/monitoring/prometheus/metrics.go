package prometheus

import (
	"strconv"
	"time"
)

// Default buckets.
var (
	DefaultSearchDurationBuckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 30}
	DefaultMappingCountBuckets   = []float64{0, 1, 2, 5, 10, 50, 100, 1000, 10000}
	DefaultHTTPDurationBuckets   = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
)

// MatchMetrics holds the substructure-search and HTTP metrics.  It
// satisfies matching.Recorder.
type MatchMetrics struct {
	SearchesTotal  CounterVec
	SearchDuration HistogramVec
	MappingsFound  HistogramVec
	SearchNodes    CounterVec
	BatchTargets   CounterVec

	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec
}

// NewMatchMetrics registers all metrics on collector.
func NewMatchMetrics(collector MetricsCollector) *MatchMetrics {
	m := &MatchMetrics{}

	m.SearchesTotal = collector.RegisterCounter("searches_total", "Substructure searches by mode and result", "mode", "result")
	m.SearchDuration = collector.RegisterHistogram("search_duration_seconds", "Substructure search duration", DefaultSearchDurationBuckets, "mode")
	m.MappingsFound = collector.RegisterHistogram("mappings_found", "Mappings reported per search", DefaultMappingCountBuckets, "mode")
	m.SearchNodes = collector.RegisterCounter("search_nodes_total", "Search tree nodes expanded", "mode")
	m.BatchTargets = collector.RegisterCounter("batch_targets_total", "Batch targets processed by result", "result")

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	return m
}

// ObserveSearch records one query/target search.
func (m *MatchMetrics) ObserveSearch(mode, result string, elapsed time.Duration, mappings int, nodes int64) {
	m.SearchesTotal.WithLabelValues(mode, result).Inc()
	m.SearchDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	m.MappingsFound.WithLabelValues(mode).Observe(float64(mappings))
	if nodes > 0 {
		m.SearchNodes.WithLabelValues(mode).Add(float64(nodes))
	}
}

// ObserveBatchTarget counts one processed batch target.
func (m *MatchMetrics) ObserveBatchTarget(result string) {
	m.BatchTargets.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records a finished request.
func (m *MatchMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
