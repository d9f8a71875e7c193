// -----------------------------------------------------------------------
// Metrics - Prometheus gauges/counters for queue depth, browser fleet
// occupancy, proxy pool health and hedge-win rate
// -----------------------------------------------------------------------

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the gateway exposes.
type Metrics struct {
	QueueDepth     prometheus.Gauge
	ActiveBrowsers prometheus.Gauge
	BusyTabs       prometheus.Gauge
	ProxyPoolSize  *prometheus.GaugeVec
	HedgeOutcomes  *prometheus.CounterVec
	JobOutcomes    *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
}

// New creates and registers the gateway's metrics against reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "queue_depth",
			Help:      "Number of jobs currently pending dispatch.",
		}),

		ActiveBrowsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "browser_pool",
			Name:      "active_instances",
			Help:      "Number of launched browser slots.",
		}),

		BusyTabs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "browser_pool",
			Name:      "busy_tabs",
			Help:      "Number of tabs currently assigned to a job.",
		}),

		ProxyPoolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "pool_size",
			Help:      "Current proxy inventory size by status.",
		}, []string{"status"}),

		HedgeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "hedge_outcomes_total",
			Help:      "Hedged execution outcomes by winning attempt slot.",
		}, []string{"winner"}),

		JobOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "job_outcomes_total",
			Help:      "Terminal job outcomes by kind and status.",
		}, []string{"kind", "status"}),

		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "fetch_duration_seconds",
			Help:      "Wall-clock duration of a dispatched job from processing to terminal.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}

	reg.MustRegister(
		m.QueueDepth,
		m.ActiveBrowsers,
		m.BusyTabs,
		m.ProxyPoolSize,
		m.HedgeOutcomes,
		m.JobOutcomes,
		m.FetchDuration,
	)
	return m
}
