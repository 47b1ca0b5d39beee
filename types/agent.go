package types

import "time"

// AgentStatus represents the lifecycle status of a registered agent.
type AgentStatus string

const (
	// AgentStatusIdle indicates the agent is registered but not working.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusActive indicates the agent is available and working normally.
	AgentStatusActive AgentStatus = "active"
	// AgentStatusBusy indicates the agent is at capacity.
	AgentStatusBusy AgentStatus = "busy"
	// AgentStatusError indicates the agent reported a fault.
	AgentStatusError AgentStatus = "error"
	// AgentStatusOffline indicates the agent was deliberately stopped.
	// Offline agents are evicted on the next cleanup pass.
	AgentStatusOffline AgentStatus = "offline"
)

// SystemType tags the subsystem that owns an agent.
type SystemType string

const (
	// SystemConsensus is the consensus/voting subsystem.
	SystemConsensus SystemType = "consensus"
	// SystemSwarm is the swarm orchestration subsystem.
	SystemSwarm SystemType = "swarm"
	// SystemDAG is the DAG task execution subsystem.
	SystemDAG SystemType = "dag"
)

// PerformanceMetric is a single reported measurement for an agent.
type PerformanceMetric struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ResourceUsage is a point-in-time resource snapshot for an agent.
type ResourceUsage struct {
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryMB    float64   `json:"memory_mb"`
	NetworkKBps float64   `json:"network_kbps"`
	DiskIOPS    float64   `json:"disk_iops"`
	Timestamp   time.Time `json:"timestamp"`
}

// AgentInfo describes a registered agent. Instances handed out by the
// registry are copies; mutating them does not affect registry state.
type AgentInfo struct {
	// ID is the unique agent identifier.
	ID string `json:"id"`

	// SystemType is the owning subsystem tag.
	SystemType SystemType `json:"system_type"`

	// Capabilities is the set of capability tags the agent provides.
	Capabilities []string `json:"capabilities"`

	// Status is the current lifecycle status.
	Status AgentStatus `json:"status"`

	// PerformanceHistory is a bounded ordered sequence of reported
	// metrics, oldest first. Length is capped by the registry.
	PerformanceHistory []PerformanceMetric `json:"performance_history,omitempty"`

	// ResourceUsage is the latest resource snapshot, if any.
	ResourceUsage *ResourceUsage `json:"resource_usage,omitempty"`

	// CreatedAt is when the agent was first registered.
	CreatedAt time.Time `json:"created_at"`

	// LastSeen is the last time any update was received for the agent.
	// It only ever moves forward.
	LastSeen time.Time `json:"last_seen"`

	// Metadata contains additional string metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HasCapability reports whether the agent provides the given capability.
func (a *AgentInfo) HasCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// IntegrationStatus represents the connection state of a system integration.
type IntegrationStatus string

const (
	// IntegrationDisconnected indicates the integration is not connected.
	IntegrationDisconnected IntegrationStatus = "disconnected"
	// IntegrationConnecting indicates a connection attempt is in progress.
	IntegrationConnecting IntegrationStatus = "connecting"
	// IntegrationConnected indicates the integration is operational.
	IntegrationConnected IntegrationStatus = "connected"
	// IntegrationError indicates the integration failed to connect.
	IntegrationError IntegrationStatus = "error"
)

// ModuleState is the coarse health state of a module (adapter or registry).
type ModuleState string

const (
	// ModuleShutdown indicates the module has not been started.
	ModuleShutdown ModuleState = "shutdown"
	// ModuleInitializing indicates the module is starting up.
	ModuleInitializing ModuleState = "initializing"
	// ModuleHealthy indicates the module operates within thresholds.
	ModuleHealthy ModuleState = "healthy"
	// ModuleDegraded indicates reduced but functional operation.
	ModuleDegraded ModuleState = "degraded"
	// ModuleUnhealthy indicates the module is failing.
	ModuleUnhealthy ModuleState = "unhealthy"
)

// SystemIntegration is a read-only snapshot of one adapter's state,
// owned exclusively by the adapter that produced it.
type SystemIntegration struct {
	SystemName             string            `json:"system_name"`
	Status                 IntegrationStatus `json:"status"`
	ActiveAgents           []string          `json:"active_agents,omitempty"`
	CoordinationOverheadMs float64           `json:"coordination_overhead_ms"`
	SuccessRate            float64           `json:"success_rate"`
	LastHealthCheck        time.Time         `json:"last_health_check"`
	ErrorCount             int64             `json:"error_count"`
}

// HealthIndicator is a single named health signal exposed by a module.
type HealthIndicator struct {
	Name      string      `json:"name"`
	Status    ModuleState `json:"status"`
	Value     float64     `json:"value"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// CoordinationStatus is the aggregate health of the coordinator's network.
type CoordinationStatus string

const (
	// CoordinationOptimal indicates all systems connected and overhead
	// within the configured ceiling.
	CoordinationOptimal CoordinationStatus = "optimal"
	// CoordinationDegraded indicates elevated overhead or a disconnected
	// system.
	CoordinationDegraded CoordinationStatus = "degraded"
	// CoordinationCritical indicates the majority of systems are
	// unhealthy or overhead far exceeds the ceiling.
	CoordinationCritical CoordinationStatus = "critical"
	// CoordinationOffline indicates no systems are registered.
	CoordinationOffline CoordinationStatus = "offline"
)
