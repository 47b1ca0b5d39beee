// Package metrics provides internal Prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates Prometheus metrics for the coordination core.
type Collector struct {
	// Registry metrics
	agentRegistrations *prometheus.CounterVec
	agentEvictions     prometheus.Counter
	agentsTotal        prometheus.Gauge

	// Coordination metrics
	coordinationsTotal   *prometheus.CounterVec
	coordinationDuration prometheus.Histogram

	// DAG execution metrics
	dagExecutionsTotal  *prometheus.CounterVec
	dagExecutionSeconds prometheus.Histogram
	dagTasksTotal       *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered on the default
// Prometheus registerer.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.agentRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_registrations_total",
			Help:      "Total number of agent registrations",
		},
		[]string{"system"},
	)

	c.agentEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_evictions_total",
			Help:      "Total number of stale-agent evictions",
		},
	)

	c.agentsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents",
			Help:      "Current number of registered agents",
		},
	)

	c.coordinationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinations_total",
			Help:      "Total number of multi-system coordination requests",
		},
		[]string{"status"},
	)

	c.coordinationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coordination_duration_seconds",
			Help:      "Coordination wall-clock duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	c.dagExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dag_executions_total",
			Help:      "Total number of DAG executions",
		},
		[]string{"status"},
	)

	c.dagExecutionSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dag_execution_duration_seconds",
			Help:      "DAG execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.dagTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dag_tasks_total",
			Help:      "Total number of DAG task executions",
		},
		[]string{"status"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// AgentRegistered records a registration for the given system type.
func (c *Collector) AgentRegistered(system string) {
	c.agentRegistrations.WithLabelValues(system).Inc()
}

// AgentEvicted records a stale-agent eviction.
func (c *Collector) AgentEvicted() {
	c.agentEvictions.Inc()
}

// SetAgentCount sets the current registered agent population.
func (c *Collector) SetAgentCount(n int) {
	c.agentsTotal.Set(float64(n))
}

// CoordinationCompleted records one coordination request.
func (c *Collector) CoordinationCompleted(status string, seconds float64) {
	c.coordinationsTotal.WithLabelValues(status).Inc()
	c.coordinationDuration.Observe(seconds)
}

// DAGExecutionCompleted records one DAG execution.
func (c *Collector) DAGExecutionCompleted(status string, seconds float64) {
	c.dagExecutionsTotal.WithLabelValues(status).Inc()
	c.dagExecutionSeconds.Observe(seconds)
}

// DAGTaskCompleted records one task execution outcome.
func (c *Collector) DAGTaskCompleted(status string) {
	c.dagTasksTotal.WithLabelValues(status).Inc()
}
