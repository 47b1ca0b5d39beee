package coordinator

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/types"
)

// HealthReport is the output of one network health evaluation.
type HealthReport struct {
	Status            types.CoordinationStatus           `json:"status"`
	AverageOverheadMs float64                            `json:"average_overhead_ms"`
	ConnectedSystems  int                                `json:"connected_systems"`
	UnhealthySystems  int                                `json:"unhealthy_systems"`
	TotalSystems      int                                `json:"total_systems"`
	SystemStates      map[string]types.SystemIntegration `json:"system_states"`
	Insights          []string                           `json:"insights,omitempty"`
	Timestamp         time.Time                          `json:"timestamp"`
}

// MonitorNetworkHealth recomputes the coordination status from two
// signals: average coordination overhead against the configured
// ceiling, and the fraction of Connected adapters. Overhead above the
// ceiling or any disconnected adapter downgrades to Degraded; more than
// half the adapters unhealthy, or overhead above twice the ceiling,
// downgrades to Critical.
func (c *Coordinator) MonitorNetworkHealth() *HealthReport {
	c.mu.RLock()
	order := append([]string(nil), c.adapterOrder...)
	avgOverhead := c.perf.AverageOverheadMs
	c.mu.RUnlock()

	report := &HealthReport{
		AverageOverheadMs: avgOverhead,
		TotalSystems:      len(order),
		SystemStates:      make(map[string]types.SystemIntegration, len(order)),
		Timestamp:         time.Now(),
	}

	if len(order) == 0 {
		report.Status = types.CoordinationOffline
		c.setStatus(report.Status, nil)
		return report
	}

	for _, name := range order {
		c.mu.RLock()
		adapter := c.adapters[name]
		c.mu.RUnlock()

		snap := adapter.GetIntegrationStatus()
		report.SystemStates[name] = snap

		if snap.Status == types.IntegrationConnected {
			report.ConnectedSystems++
		}
		if snap.Status != types.IntegrationConnected || snap.SuccessRate < degradedSuccessRate {
			report.UnhealthySystems++
		}
	}

	ceiling := c.cfg.MaxCoordinationOverheadMs
	var insights []string

	switch {
	case report.UnhealthySystems*2 > report.TotalSystems:
		report.Status = types.CoordinationCritical
		insights = append(insights, fmt.Sprintf("%d of %d systems unhealthy",
			report.UnhealthySystems, report.TotalSystems))
	case avgOverhead > 2*ceiling:
		report.Status = types.CoordinationCritical
		insights = append(insights, fmt.Sprintf("coordination overhead %.0fms exceeds twice the %.0fms ceiling",
			avgOverhead, ceiling))
	case avgOverhead > ceiling:
		report.Status = types.CoordinationDegraded
		insights = append(insights, fmt.Sprintf("coordination overhead %.0fms exceeds the %.0fms ceiling",
			avgOverhead, ceiling))
	case report.ConnectedSystems < report.TotalSystems:
		report.Status = types.CoordinationDegraded
		insights = append(insights, fmt.Sprintf("%d of %d systems connected",
			report.ConnectedSystems, report.TotalSystems))
	default:
		report.Status = types.CoordinationOptimal
	}

	report.Insights = insights
	c.setStatus(report.Status, insights)

	c.logger.Info("network health evaluated",
		zap.String("status", string(report.Status)),
		zap.Float64("avg_overhead_ms", avgOverhead),
		zap.Int("connected", report.ConnectedSystems),
		zap.Int("total", report.TotalSystems),
	)
	return report
}

// degradedSuccessRate mirrors the adapter-side degraded threshold; an
// adapter below it counts as unhealthy for network-level aggregation.
const degradedSuccessRate = 0.5

func (c *Coordinator) setStatus(status types.CoordinationStatus, insights []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.insights = insights
}
