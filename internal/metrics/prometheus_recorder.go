package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	dispatches  *prom.CounterVec
	runOutcomes *prom.CounterVec
	runDuration prom.Histogram
}

// NewPrometheusRecorder constructs the publish metrics and registers them on reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		dispatches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ansuz",
			Name:      "dispatch_total",
			Help:      "Remote publish calls by action and result",
		}, []string{"action", "result"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ansuz",
			Name:      "runs_total",
			Help:      "Publish runs by final outcome",
		}, []string{"outcome"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "ansuz",
			Name:      "run_duration_seconds",
			Help:      "Total publish run duration",
			Buckets:   prom.DefBuckets,
		}),
	}
	reg.MustRegister(pr.dispatches, pr.runOutcomes, pr.runDuration)
	return pr
}

func (p *PrometheusRecorder) IncDispatch(action string, result ResultLabel) {
	if p == nil || p.dispatches == nil {
		return
	}
	p.dispatches.WithLabelValues(action, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}
