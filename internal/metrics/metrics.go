// Package metrics holds the Prometheus collectors for oracle runs and
// persisted frontiers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run kinds used as the kind label.
const (
	KindAnchorMaxWelfare   = "anchor_max_welfare"
	KindAnchorMinEmissions = "anchor_min_emissions"
	KindInterior           = "interior"
)

type Metrics struct {
	OracleRuns         *prometheus.CounterVec
	OracleRunSeconds   *prometheus.HistogramVec
	FrontierPoints     *prometheus.GaugeVec
	ScenariosAbandoned *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer to
// expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OracleRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pareto_oracle_runs_total",
			Help: "Oracle invocations by scenario, run kind and outcome.",
		}, []string{"scenario", "kind", "outcome"}),
		OracleRunSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pareto_oracle_run_seconds",
			Help:    "Solve time reported by successful oracle runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"scenario", "kind"}),
		FrontierPoints: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pareto_frontier_points",
			Help: "Points on the most recently persisted frontier of each scenario.",
		}, []string{"scenario"}),
		ScenariosAbandoned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pareto_scenarios_abandoned_total",
			Help: "Scenarios abandoned because an anchor run produced no result.",
		}, []string{"scenario"}),
	}
}

// ObserveRun records one oracle run. A nil receiver is a no-op.
func (m *Metrics) ObserveRun(scenario, kind, outcome string, solve time.Duration) {
	if m == nil {
		return
	}
	m.OracleRuns.WithLabelValues(scenario, kind, outcome).Inc()
	if outcome == "ok" {
		m.OracleRunSeconds.WithLabelValues(scenario, kind).Observe(solve.Seconds())
	}
}

func (m *Metrics) FrontierPersisted(scenario string, points int) {
	if m == nil {
		return
	}
	m.FrontierPoints.WithLabelValues(scenario).Set(float64(points))
}

func (m *Metrics) ScenarioAbandoned(scenario string) {
	if m == nil {
		return
	}
	m.ScenariosAbandoned.WithLabelValues(scenario).Inc()
}
