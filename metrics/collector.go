// Package metrics exposes the engine's ambient observability -- plugin
// counts per lifecycle state, resolve/start/stop durations and failure
// counts -- as Prometheus collectors, the way the teacher's monitoring
// stack instruments its own request path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the runtime core reports against. A nil
// *Collector is not valid; use NewCollector or DefaultCollector.
type Collector struct {
	PluginsByState *prometheus.GaugeVec
	ResolveSeconds *prometheus.HistogramVec
	StartSeconds   *prometheus.HistogramVec
	StopSeconds    *prometheus.HistogramVec
	Failures       *prometheus.CounterVec
	ScanErrors     prometheus.Counter
}

// NewCollector registers a fresh set of collectors against reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		PluginsByState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pluginhost",
			Name:      "plugins_by_state",
			Help:      "Number of registered plug-ins currently in each lifecycle state.",
		}, []string{"state"}),
		ResolveSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pluginhost",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving a plug-in's dependency graph.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin_id"}),
		StartSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pluginhost",
			Name:      "start_duration_seconds",
			Help:      "Time spent in a plug-in's start callback.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin_id"}),
		StopSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pluginhost",
			Name:      "stop_duration_seconds",
			Help:      "Time spent in a plug-in's stop callback.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin_id"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pluginhost",
			Name:      "failures_total",
			Help:      "Count of lifecycle failures by kind.",
		}, []string{"plugin_id", "kind"}),
		ScanErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pluginhost",
			Name:      "scan_errors_total",
			Help:      "Count of errors encountered during directory scans.",
		}),
	}
}

// DefaultCollector registers against the global Prometheus registry.
func DefaultCollector() *Collector {
	return NewCollector(prometheus.DefaultRegisterer)
}

// SetStateCounts replaces the plugins_by_state gauge values wholesale,
// given a fresh tally (typically the result of Context.StateCounts).
func (c *Collector) SetStateCounts(counts map[string]int) {
	c.PluginsByState.Reset()
	for state, n := range counts {
		c.PluginsByState.WithLabelValues(state).Set(float64(n))
	}
}

// RecordFailure increments the failure counter for a plug-in/kind pair.
func (c *Collector) RecordFailure(pluginID, kind string) {
	c.Failures.WithLabelValues(pluginID, kind).Inc()
}

// Handler returns the HTTP handler serving the Prometheus exposition
// format for gatherer (typically a *prometheus.Registry, or
// prometheus.DefaultGatherer for the global registry).
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
