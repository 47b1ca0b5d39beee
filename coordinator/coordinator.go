package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/integration"
	"github.com/BaSui01/agentmesh/internal/metrics"
	"github.com/BaSui01/agentmesh/registry"
	"github.com/BaSui01/agentmesh/scheduler"
	"github.com/BaSui01/agentmesh/types"
)

// defaultAgentsPerSystem caps how many candidate agents are engaged per
// system when the requirements do not say otherwise.
const defaultAgentsPerSystem = 10

// TaskRequirements describes a multi-system coordination request.
type TaskRequirements struct {
	// Objective describes what is being coordinated.
	Objective string

	// RequiredCapabilities every engaged agent must provide.
	RequiredCapabilities []string

	// PreferredCapabilities improve an agent's ranking.
	PreferredCapabilities []string

	// TargetSystems restricts coordination to the named systems. Empty
	// means every registered system with eligible agents is relevant.
	TargetSystems []types.SystemType

	// MaxAgentsPerSystem caps candidates per system. Zero applies the
	// default cap.
	MaxAgentsPerSystem int

	// Options and Preferences are forwarded to consensus coordination.
	Options     []string
	Preferences map[string]string

	// Tasks and Dependencies are forwarded to DAG coordination.
	Tasks        []scheduler.Task
	Dependencies map[string][]string

	// Timeout bounds each adapter's coordination operation.
	Timeout time.Duration
}

// CoordinationResult aggregates per-system outcomes for one request.
type CoordinationResult struct {
	RequestID          string                                      `json:"request_id"`
	Success            bool                                        `json:"success"`
	SystemResults      map[string]*integration.CoordinationOutcome `json:"system_results"`
	Errors             map[string]string                           `json:"errors,omitempty"`
	InvolvedAgents     []string                                    `json:"involved_agents"`
	CoordinationTimeMs float64                                     `json:"coordination_time_ms"`
	CompletedAt        time.Time                                   `json:"completed_at"`
}

// PerformanceMetrics are the coordinator's aggregate totals.
type PerformanceMetrics struct {
	TotalCoordinations      int64   `json:"total_coordinations"`
	SuccessfulCoordinations int64   `json:"successful_coordinations"`
	AverageOverheadMs       float64 `json:"average_overhead_ms"`
}

// NetworkState is the coordinator's aggregate view of the network.
type NetworkState struct {
	ActiveAgents         map[string]*types.AgentInfo        `json:"active_agents"`
	SystemIntegrations   map[string]types.SystemIntegration `json:"system_integrations"`
	Performance          PerformanceMetrics                 `json:"performance"`
	CoordinationStatus   types.CoordinationStatus           `json:"coordination_status"`
	IntelligenceInsights []string                           `json:"intelligence_insights,omitempty"`
}

// Coordinator routes multi-system task requests and tracks network-wide
// coordination health.
type Coordinator struct {
	cfg       *config.Config
	reg       *registry.Registry
	collector *metrics.Collector
	logger    *zap.Logger

	mu           sync.RWMutex
	adapters     map[string]integration.Integration
	adapterOrder []string
	integrations map[string]types.SystemIntegration
	perf         PerformanceMetrics
	status       types.CoordinationStatus
	insights     []string
}

// New creates a network coordinator.
func New(cfg *config.Config, reg *registry.Registry, logger *zap.Logger) *Coordinator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:          cfg,
		reg:          reg,
		logger:       logger.With(zap.String("component", "network_coordinator")),
		adapters:     make(map[string]integration.Integration),
		integrations: make(map[string]types.SystemIntegration),
		status:       types.CoordinationOffline,
	}
}

// AttachCollector wires a metrics collector.
func (c *Coordinator) AttachCollector(col *metrics.Collector) {
	c.collector = col
}

// RegisterSystemIntegration stores an adapter and immediately records
// its integration snapshot as Connected in the network state.
func (c *Coordinator) RegisterSystemIntegration(name string, adapter integration.Integration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.adapters[name]; !exists {
		c.adapterOrder = append(c.adapterOrder, name)
	}
	c.adapters[name] = adapter

	snapshot := adapter.GetIntegrationStatus()
	snapshot.Status = types.IntegrationConnected
	c.integrations[name] = snapshot

	if c.status == types.CoordinationOffline {
		c.status = types.CoordinationOptimal
	}

	c.logger.Info("system integration registered",
		zap.String("system", name),
		zap.String("type", string(adapter.SystemType())),
	)
}

// Stop stops every registered adapter, cancelling their in-flight
// sessions, and marks the network offline.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.RLock()
	order := append([]string(nil), c.adapterOrder...)
	adapters := make(map[string]integration.Integration, len(c.adapters))
	for name, a := range c.adapters {
		adapters[name] = a
	}
	c.mu.RUnlock()

	var firstErr error
	for _, name := range order {
		if err := adapters[name].Stop(ctx); err != nil {
			c.logger.Error("failed to stop integration",
				zap.String("system", name),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	c.mu.Lock()
	c.status = types.CoordinationOffline
	c.mu.Unlock()

	c.logger.Info("network coordinator stopped")
	return firstErr
}

// CoordinateMultiSystemAgents routes a task request to every relevant
// adapter: it queries the registry for eligible agents per system,
// builds the coordination plan, invokes each adapter's coordination
// operation, merges outcomes, and records the total wall-clock overhead.
func (c *Coordinator) CoordinateMultiSystemAgents(ctx context.Context, req *TaskRequirements) (*CoordinationResult, error) {
	tracer := otel.Tracer("github.com/BaSui01/agentmesh/coordinator")
	ctx, span := tracer.Start(ctx, "coordinator.CoordinateMultiSystemAgents")
	defer span.End()

	start := time.Now()
	result := &CoordinationResult{
		RequestID:     uuid.NewString(),
		SystemResults: make(map[string]*integration.CoordinationOutcome),
		Errors:        make(map[string]string),
	}
	span.SetAttributes(attribute.String("coordination.request_id", result.RequestID))

	plan := c.buildPlan(req)
	if len(plan) == 0 {
		c.recordCoordination(false, time.Since(start))
		return nil, types.NewError(types.ErrNoAgentsAvailable,
			"no registered system has eligible agents for capabilities %v", req.RequiredCapabilities)
	}

	c.logger.Info("coordinating multi-system request",
		zap.String("request_id", result.RequestID),
		zap.String("objective", req.Objective),
		zap.Int("systems", len(plan)),
	)

	involved := make(map[string]struct{})
	success := true

	for _, entry := range plan {
		outcome, err := entry.adapter.Coordinate(ctx, &integration.CoordinationRequest{
			RequestID:    result.RequestID,
			Objective:    req.Objective,
			Agents:       entry.candidates,
			Options:      req.Options,
			Preferences:  req.Preferences,
			Tasks:        req.Tasks,
			Dependencies: req.Dependencies,
			Timeout:      req.Timeout,
		})
		if err != nil {
			success = false
			result.Errors[entry.name] = err.Error()
			c.logger.Warn("system coordination failed",
				zap.String("request_id", result.RequestID),
				zap.String("system", entry.name),
				zap.Error(err),
			)
			continue
		}

		result.SystemResults[entry.name] = outcome
		if !outcome.Success {
			success = false
		}
		for _, id := range outcome.AgentsEngaged {
			involved[id] = struct{}{}
		}
	}

	result.Success = success
	result.InvolvedAgents = sortedKeys(involved)
	result.CoordinationTimeMs = float64(time.Since(start).Milliseconds())
	result.CompletedAt = time.Now()

	c.refreshIntegrationSnapshots()
	c.recordCoordination(success, time.Since(start))

	span.SetAttributes(attribute.Bool("coordination.success", success))
	return result, nil
}

// planEntry pairs an adapter with its candidate agents.
type planEntry struct {
	name       string
	adapter    integration.Integration
	candidates []*types.AgentInfo
}

// buildPlan selects the relevant systems and their candidate agents.
// A system is relevant when explicitly targeted, or when the registry
// holds eligible agents of its type for the required capabilities.
func (c *Coordinator) buildPlan(req *TaskRequirements) []planEntry {
	c.mu.RLock()
	order := append([]string(nil), c.adapterOrder...)
	adapters := make(map[string]integration.Integration, len(c.adapters))
	for name, a := range c.adapters {
		adapters[name] = a
	}
	c.mu.RUnlock()

	limit := req.MaxAgentsPerSystem
	if limit <= 0 {
		limit = defaultAgentsPerSystem
	}

	targeted := make(map[types.SystemType]bool, len(req.TargetSystems))
	for _, s := range req.TargetSystems {
		targeted[s] = true
	}

	var plan []planEntry
	for _, name := range order {
		adapter := adapters[name]
		if len(targeted) > 0 && !targeted[adapter.SystemType()] {
			continue
		}

		var candidates []*types.AgentInfo
		if len(req.PreferredCapabilities) > 0 {
			for _, a := range c.reg.CapabilityMatch(req.RequiredCapabilities, req.PreferredCapabilities) {
				if a.SystemType == adapter.SystemType() {
					candidates = append(candidates, a)
				}
			}
			if len(candidates) > limit {
				candidates = candidates[:limit]
			}
		} else {
			candidates = c.reg.DiscoverAgents(registry.Filter{
				Capabilities: req.RequiredCapabilities,
				SystemType:   adapter.SystemType(),
				Limit:        limit,
			})
		}

		if len(candidates) == 0 {
			continue
		}
		plan = append(plan, planEntry{name: name, adapter: adapter, candidates: candidates})
	}
	return plan
}

// recordCoordination folds one request into the aggregate totals.
func (c *Coordinator) recordCoordination(success bool, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := float64(elapsed.Milliseconds())
	c.perf.TotalCoordinations++
	if success {
		c.perf.SuccessfulCoordinations++
	}
	if c.perf.TotalCoordinations == 1 {
		c.perf.AverageOverheadMs = ms
	} else {
		n := float64(c.perf.TotalCoordinations)
		c.perf.AverageOverheadMs += (ms - c.perf.AverageOverheadMs) / n
	}

	if c.collector != nil {
		status := "success"
		if !success {
			status = "failure"
		}
		c.collector.CoordinationCompleted(status, elapsed.Seconds())
	}
}

// refreshIntegrationSnapshots re-reads every adapter's snapshot into the
// network state.
func (c *Coordinator) refreshIntegrationSnapshots() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, adapter := range c.adapters {
		c.integrations[name] = adapter.GetIntegrationStatus()
	}
}

// GetNetworkState assembles the aggregate network view. The active
// agent mirror is refreshed from the registry on demand.
func (c *Coordinator) GetNetworkState() *NetworkState {
	agents := make(map[string]*types.AgentInfo)
	for _, a := range c.reg.ListAgents() {
		agents[a.ID] = a
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	integrations := make(map[string]types.SystemIntegration, len(c.integrations))
	for name, snap := range c.integrations {
		integrations[name] = snap
	}

	return &NetworkState{
		ActiveAgents:         agents,
		SystemIntegrations:   integrations,
		Performance:          c.perf,
		CoordinationStatus:   c.status,
		IntelligenceInsights: append([]string(nil), c.insights...),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
