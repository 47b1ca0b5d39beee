package integration

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/scheduler"
	"github.com/BaSui01/agentmesh/types"
)

// Module health thresholds. Tunable constants, not derived values.
const (
	healthyRateThreshold  = 0.8
	degradedRateThreshold = 0.5

	// overheadAlpha is the smoothing factor of the rolling coordination
	// overhead average.
	overheadAlpha = 0.2
)

// CoordinationRequest carries everything an adapter may need for its
// primary coordination operation. Adapters read only the fields relevant
// to their domain.
type CoordinationRequest struct {
	// RequestID correlates the request across systems.
	RequestID string

	// Objective is a human-readable description of what is coordinated.
	Objective string

	// Agents are the candidate agents selected for this system.
	Agents []*types.AgentInfo

	// Options and Preferences drive consensus decisions: the choices on
	// the table and each agent's declared preference, if any.
	Options     []string
	Preferences map[string]string

	// Tasks and Dependencies define a task graph for DAG execution.
	Tasks        []scheduler.Task
	Dependencies map[string][]string

	// Timeout bounds the coordination operation. Zero means no limit.
	Timeout time.Duration
}

// CoordinationOutcome is the common result shape returned by adapters.
type CoordinationOutcome struct {
	System        string         `json:"system"`
	Success       bool           `json:"success"`
	AgentsEngaged []string       `json:"agents_engaged,omitempty"`
	DurationMs    float64        `json:"duration_ms"`
	Details       map[string]any `json:"details,omitempty"`
}

// Integration is the contract every subsystem adapter implements.
type Integration interface {
	// Name returns the adapter's system name.
	Name() string

	// SystemType returns the subsystem tag this adapter serves.
	SystemType() types.SystemType

	// Start connects the adapter to its subsystem.
	Start(ctx context.Context) error

	// Stop disconnects, cancelling any in-flight sessions it owns
	// before returning.
	Stop(ctx context.Context) error

	// Coordinate performs the adapter's primary coordination operation.
	Coordinate(ctx context.Context, req *CoordinationRequest) (*CoordinationOutcome, error)

	// GetIntegrationStatus returns a read-only state snapshot.
	GetIntegrationStatus() types.SystemIntegration

	// GetHealthIndicators returns the adapter's health signals.
	GetHealthIndicators() []types.HealthIndicator
}

// BaseIntegration implements the bookkeeping shared by all adapters:
// connection status, module health state, success/failure counters, the
// rolling overhead average, and the active agent set.
type BaseIntegration struct {
	name       string
	systemType types.SystemType
	logger     *zap.Logger

	mu              sync.RWMutex
	status          types.IntegrationStatus
	state           types.ModuleState
	successCount    int64
	failureCount    int64
	errorCount      int64
	overheadMs      float64
	activeAgents    map[string]struct{}
	lastHealthCheck time.Time
}

// NewBaseIntegration creates the shared adapter state.
func NewBaseIntegration(name string, systemType types.SystemType, logger *zap.Logger) *BaseIntegration {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseIntegration{
		name:         name,
		systemType:   systemType,
		logger:       logger.With(zap.String("component", name+"_integration")),
		status:       types.IntegrationDisconnected,
		state:        types.ModuleShutdown,
		activeAgents: make(map[string]struct{}),
	}
}

// Name returns the adapter's system name.
func (b *BaseIntegration) Name() string { return b.name }

// SystemType returns the subsystem tag.
func (b *BaseIntegration) SystemType() types.SystemType { return b.systemType }

// Logger returns the adapter-scoped logger.
func (b *BaseIntegration) Logger() *zap.Logger { return b.logger }

// markConnecting transitions to Connecting/Initializing.
func (b *BaseIntegration) markConnecting() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = types.IntegrationConnecting
	b.state = types.ModuleInitializing
}

// markConnected transitions to Connected and recomputes module health.
func (b *BaseIntegration) markConnected() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = types.IntegrationConnected
	b.state = b.moduleStateLocked()
	b.lastHealthCheck = time.Now()
}

// markDisconnected transitions back to Disconnected/Shutdown.
func (b *BaseIntegration) markDisconnected() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = types.IntegrationDisconnected
	b.state = types.ModuleShutdown
}

// markError records a connection failure; module health short-circuits
// to Unhealthy regardless of success rate.
func (b *BaseIntegration) markError() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = types.IntegrationError
	b.state = types.ModuleUnhealthy
	b.errorCount++
}

// recordOutcome folds one coordination operation into the counters and
// rolling overhead average.
func (b *BaseIntegration) recordOutcome(success bool, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.successCount++
	} else {
		b.failureCount++
		b.errorCount++
	}

	ms := float64(duration.Milliseconds())
	if b.successCount+b.failureCount == 1 {
		b.overheadMs = ms
	} else {
		b.overheadMs = b.overheadMs*(1-overheadAlpha) + ms*overheadAlpha
	}

	if b.status == types.IntegrationConnected {
		b.state = b.moduleStateLocked()
	}
	b.lastHealthCheck = time.Now()
}

// engageAgents marks agents as actively coordinated by this adapter.
func (b *BaseIntegration) engageAgents(ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		b.activeAgents[id] = struct{}{}
	}
}

// releaseAgents removes agents from the active set.
func (b *BaseIntegration) releaseAgents(ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.activeAgents, id)
	}
}

// SuccessRate derives success/(success+failure), defaulting to 1.0 when
// no operations have run yet.
func (b *BaseIntegration) SuccessRate() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.successRateLocked()
}

func (b *BaseIntegration) successRateLocked() float64 {
	total := b.successCount + b.failureCount
	if total == 0 {
		return 1.0
	}
	return float64(b.successCount) / float64(total)
}

// moduleStateLocked applies the health thresholds to the success rate.
func (b *BaseIntegration) moduleStateLocked() types.ModuleState {
	if b.status == types.IntegrationError {
		return types.ModuleUnhealthy
	}
	rate := b.successRateLocked()
	switch {
	case rate >= healthyRateThreshold:
		return types.ModuleHealthy
	case rate >= degradedRateThreshold:
		return types.ModuleDegraded
	default:
		return types.ModuleUnhealthy
	}
}

// ModuleState returns the adapter's current health state.
func (b *BaseIntegration) ModuleState() types.ModuleState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// GetIntegrationStatus returns a read-only snapshot of the adapter.
func (b *BaseIntegration) GetIntegrationStatus() types.SystemIntegration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	agents := make([]string, 0, len(b.activeAgents))
	for id := range b.activeAgents {
		agents = append(agents, id)
	}

	return types.SystemIntegration{
		SystemName:             b.name,
		Status:                 b.status,
		ActiveAgents:           agents,
		CoordinationOverheadMs: b.overheadMs,
		SuccessRate:            b.successRateLocked(),
		LastHealthCheck:        b.lastHealthCheck,
		ErrorCount:             b.errorCount,
	}
}

// GetHealthIndicators returns the adapter's health signals.
func (b *BaseIntegration) GetHealthIndicators() []types.HealthIndicator {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := time.Now()
	return []types.HealthIndicator{
		{
			Name:      b.name + "_success_rate",
			Status:    b.state,
			Value:     b.successRateLocked(),
			Timestamp: now,
		},
		{
			Name:      b.name + "_coordination_overhead_ms",
			Status:    b.state,
			Value:     b.overheadMs,
			Timestamp: now,
		},
		{
			Name:      b.name + "_active_agents",
			Status:    b.state,
			Value:     float64(len(b.activeAgents)),
			Timestamp: now,
		},
	}
}

// requireConnected returns INTEGRATION_UNAVAILABLE unless the adapter is
// Connected.
func (b *BaseIntegration) requireConnected() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.status != types.IntegrationConnected {
		return types.NewError(types.ErrIntegrationUnavailable,
			"integration %s is %s, not connected", b.name, b.status)
	}
	return nil
}

func agentIDs(agents []*types.AgentInfo) []string {
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	return ids
}
