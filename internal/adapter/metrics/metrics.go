package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ControlPlaneMetrics holds the Prometheus metrics for the provisioning
// control plane.
type ControlPlaneMetrics struct {
	StoresCreated       prometheus.Counter
	GuardrailRejections *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	ProvisionDuration   prometheus.Histogram
	BreakerState        *prometheus.GaugeVec
	OrchestratorQueue   prometheus.Gauge
}

// New initializes and registers the control-plane metrics on the default
// registry.
func New() *ControlPlaneMetrics {
	return &ControlPlaneMetrics{
		StoresCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "storepilot",
			Subsystem: "stores",
			Name:      "created_total",
			Help:      "Total number of accepted store creation requests.",
		}),
		GuardrailRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storepilot",
			Subsystem: "guardrail",
			Name:      "rejections_total",
			Help:      "Creation requests rejected before orchestration, by reason.",
		}, []string{"reason"}), // reason: quota, cooldown, engine, duplicate
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storepilot",
			Subsystem: "stores",
			Name:      "transitions_total",
			Help:      "Store lifecycle transitions applied, by source and destination state.",
		}, []string{"from", "to"}),
		ProvisionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storepilot",
			Subsystem: "orchestrator",
			Name:      "provision_duration_seconds",
			Help:      "Wall-clock duration of successful provisioning runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "storepilot",
			Subsystem: "health",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open).",
		}, []string{"dependency"}),
		OrchestratorQueue: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "storepilot",
			Subsystem: "orchestrator",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the orchestrator queue.",
		}),
	}
}
