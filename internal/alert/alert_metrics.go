package alert

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the alert lifecycle engine.
type Metrics struct {
	IngestsTotal     *prometheus.CounterVec
	EvaluationsTotal *prometheus.CounterVec
	ResolutionsTotal *prometheus.CounterVec
	SweepRunsTotal   prometheus.Counter
	SweepClosedTotal prometheus.Counter
	SweepDuration    prometheus.Histogram
	AuditWritesTotal *prometheus.CounterVec
	AuditQueueDepth  prometheus.Gauge
	ActiveAlerts     *prometheus.GaugeVec
}

// NewMetrics registers and returns alert metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_ingests_total",
			Help: "Total alert submissions by result.",
		}, []string{"result"}),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_rule_evaluations_total",
			Help: "Total rule evaluations by source type and outcome.",
		}, []string{"source_type", "outcome"}),
		ResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_resolutions_total",
			Help: "Total manual resolution attempts by outcome.",
		}, []string{"outcome"}),
		SweepRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_sweep_runs_total",
			Help: "Total staleness sweep runs.",
		}),
		SweepClosedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_sweep_closed_total",
			Help: "Total alerts auto-closed by the staleness sweeper.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetwatch_sweep_duration_seconds",
			Help:    "Duration of staleness sweep runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}),
		AuditWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_audit_writes_total",
			Help: "Total audit trail writes by outcome.",
		}, []string{"outcome"}),
		AuditQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetwatch_audit_queue_depth",
			Help: "Transition records queued for asynchronous audit write.",
		}),
		ActiveAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetwatch_active_alerts",
			Help: "Currently active alerts by status, sampled on sweep runs.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.IngestsTotal,
		m.EvaluationsTotal,
		m.ResolutionsTotal,
		m.SweepRunsTotal,
		m.SweepClosedTotal,
		m.SweepDuration,
		m.AuditWritesTotal,
		m.AuditQueueDepth,
		m.ActiveAlerts,
	)

	return m
}
