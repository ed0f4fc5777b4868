// Package metrics exposes broadcaster counters and gauges on a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the broadcaster. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	manifestsServed   *prometheus.CounterVec
	segmentsServed    *prometheus.CounterVec
	segmentMisses     *prometheus.CounterVec
	fragmentsQueued   *prometheus.CounterVec
	fragmentsRejected *prometheus.CounterVec
	refillFailures    *prometheus.CounterVec
	statusChanges     *prometheus.CounterVec
	activeStations    prometheus.Gauge
	windowSegments    *prometheus.GaugeVec
}

// New creates and registers the broadcaster metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_http_requests_total",
			Help: "Total number of HTTP requests by status code",
		}, []string{"code"}),
		manifestsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_manifests_served_total",
			Help: "Playlists served per station",
		}, []string{"station"}),
		segmentsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_segments_served_total",
			Help: "Segments served per station",
		}, []string{"station"}),
		segmentMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_segment_misses_total",
			Help: "Segment requests for sequences no longer in the window",
		}, []string{"station"}),
		fragmentsQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_fragments_queued_total",
			Help: "Fragments accepted into a station queue by priority",
		}, []string{"station", "priority"}),
		fragmentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_fragments_rejected_total",
			Help: "Fragments refused by a station queue by reason",
		}, []string{"station", "reason"}),
		refillFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_refill_failures_total",
			Help: "Failed attempts to fetch fragments from the catalog",
		}, []string{"station"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_status_changes_total",
			Help: "Station status transitions by target status",
		}, []string{"station", "status"}),
		activeStations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "broadcaster_active_stations",
			Help: "Number of stations held by the pool",
		}),
		windowSegments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "broadcaster_window_segments",
			Help: "Segments currently held in a station's live window",
		}, []string{"station"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.manifestsServed,
		m.segmentsServed,
		m.segmentMisses,
		m.fragmentsQueued,
		m.fragmentsRejected,
		m.refillFailures,
		m.statusChanges,
		m.activeStations,
		m.windowSegments,
	)
	return m
}

// ObserveRequest counts a finished HTTP request.
func (m *Metrics) ObserveRequest(status int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// IncManifest counts a served playlist.
func (m *Metrics) IncManifest(station string) {
	if m == nil {
		return
	}
	m.manifestsServed.WithLabelValues(station).Inc()
}

// IncSegment counts a served segment.
func (m *Metrics) IncSegment(station string) {
	if m == nil {
		return
	}
	m.segmentsServed.WithLabelValues(station).Inc()
}

// IncSegmentMiss counts a segment request that found nothing.
func (m *Metrics) IncSegmentMiss(station string) {
	if m == nil {
		return
	}
	m.segmentMisses.WithLabelValues(station).Inc()
}

// IncFragmentQueued counts an accepted fragment.
func (m *Metrics) IncFragmentQueued(station, priority string) {
	if m == nil {
		return
	}
	m.fragmentsQueued.WithLabelValues(station, priority).Inc()
}

// IncFragmentRejected counts a refused fragment.
func (m *Metrics) IncFragmentRejected(station, reason string) {
	if m == nil {
		return
	}
	m.fragmentsRejected.WithLabelValues(station, reason).Inc()
}

// IncRefillFailure counts a failed catalog fetch.
func (m *Metrics) IncRefillFailure(station string) {
	if m == nil {
		return
	}
	m.refillFailures.WithLabelValues(station).Inc()
}

// IncStatusChange counts a status transition.
func (m *Metrics) IncStatusChange(station, status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(station, status).Inc()
}

// SetActiveStations sets the active stations gauge.
func (m *Metrics) SetActiveStations(n int) {
	if m == nil {
		return
	}
	m.activeStations.Set(float64(n))
}

// SetWindowSegments sets the window size gauge for a station.
func (m *Metrics) SetWindowSegments(station string, n int) {
	if m == nil {
		return
	}
	m.windowSegments.WithLabelValues(station).Set(float64(n))
}

// ForgetStation drops per-station gauge series.
func (m *Metrics) ForgetStation(station string) {
	if m == nil {
		return
	}
	m.windowSegments.DeleteLabelValues(station)
}

// Handler returns an http.Handler that serves the registry.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
