package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/internal/metrics"
	"github.com/BaSui01/agentmesh/types"
)

// maxPerformanceHistory caps the per-agent metric history. The oldest
// entry is evicted on overflow.
const maxPerformanceHistory = 100

// Filter constrains a discovery query. Zero-valued fields are ignored.
type Filter struct {
	// Capabilities lists capabilities the agent must all provide.
	Capabilities []string

	// SystemType restricts results to one owning subsystem.
	SystemType types.SystemType

	// Status restricts results to agents in one status.
	Status types.AgentStatus

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Stats summarizes the registry population for monitoring callers.
type Stats struct {
	TotalAgents int                       `json:"total_agents"`
	ByStatus    map[types.AgentStatus]int `json:"by_status"`
	BySystem    map[types.SystemType]int  `json:"by_system"`
}

// Registry is the in-memory agent registry. All exported methods are
// safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	// agents stores registered agents by ID.
	agents map[string]*types.AgentInfo

	// Derived indexes: key -> set of agent IDs. Every agent appears in
	// exactly the buckets matching its current capabilities, system
	// type, and status. Empty buckets are removed.
	byCapability map[string]map[string]struct{}
	bySystem     map[types.SystemType]map[string]struct{}
	byStatus     map[types.AgentStatus]map[string]struct{}

	state types.ModuleState

	cfg       *config.Config
	collector *metrics.Collector
	logger    *zap.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a new agent registry. The collector may be nil.
func New(cfg *config.Config, logger *zap.Logger) *Registry {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		agents:       make(map[string]*types.AgentInfo),
		byCapability: make(map[string]map[string]struct{}),
		bySystem:     make(map[types.SystemType]map[string]struct{}),
		byStatus:     make(map[types.AgentStatus]map[string]struct{}),
		state:        types.ModuleShutdown,
		cfg:          cfg,
		logger:       logger.With(zap.String("component", "agent_registry")),
		done:         make(chan struct{}),
	}
}

// AttachCollector wires a metrics collector. Call before Start.
func (r *Registry) AttachCollector(c *metrics.Collector) {
	r.collector = c
}

// Start launches the background eviction loop.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	r.state = types.ModuleInitializing
	r.mu.Unlock()

	r.wg.Add(1)
	go r.cleanupLoop(ctx)

	r.mu.Lock()
	r.state = types.ModuleHealthy
	r.mu.Unlock()

	r.logger.Info("agent registry started",
		zap.Int("agent_timeout_seconds", r.cfg.AgentTimeoutSeconds),
		zap.Int("cleanup_interval_seconds", r.cfg.CleanupIntervalSeconds),
	)
	return nil
}

// Stop terminates the eviction loop and waits for it to exit.
func (r *Registry) Stop() {
	close(r.done)
	r.wg.Wait()

	r.mu.Lock()
	r.state = types.ModuleShutdown
	r.mu.Unlock()

	r.logger.Info("agent registry stopped")
}

// State returns the registry's module health state.
func (r *Registry) State() types.ModuleState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// RegisterAgent registers an agent or, if the ID already exists, updates
// it in place: the agent is removed from its old index buckets, the new
// capabilities and system type are applied, and lastSeen is refreshed.
// Registration is idempotent by ID.
func (r *Registry) RegisterAgent(id string, system types.SystemType, capabilities []string, metadata map[string]string) bool {
	if id == "" {
		r.logger.Warn("rejecting registration with empty agent id")
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if existing, ok := r.agents[id]; ok {
		r.deindexLocked(existing)
		existing.SystemType = system
		existing.Capabilities = append([]string(nil), capabilities...)
		existing.LastSeen = now
		if metadata != nil {
			existing.Metadata = copyMetadata(metadata)
		}
		r.indexLocked(existing)

		r.logger.Info("agent re-registered",
			zap.String("agent_id", id),
			zap.String("system", string(system)),
			zap.Int("capabilities", len(capabilities)),
		)
		return true
	}

	info := &types.AgentInfo{
		ID:           id,
		SystemType:   system,
		Capabilities: append([]string(nil), capabilities...),
		Status:       types.AgentStatusIdle,
		CreatedAt:    now,
		LastSeen:     now,
		Metadata:     copyMetadata(metadata),
	}
	r.agents[id] = info
	r.indexLocked(info)

	if r.collector != nil {
		r.collector.AgentRegistered(string(system))
		r.collector.SetAgentCount(len(r.agents))
	}

	r.logger.Info("agent registered",
		zap.String("agent_id", id),
		zap.String("system", string(system)),
		zap.Int("capabilities", len(capabilities)),
	)
	return true
}

// UnregisterAgent removes an agent from the main map and all three
// indexes. Returns false if the agent is unknown.
func (r *Registry) UnregisterAgent(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id, "unregistered")
}

// GetAgent returns a copy of the agent's current state.
func (r *Registry) GetAgent(id string) (*types.AgentInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.agents[id]
	if !ok {
		return nil, false
	}
	return copyAgentInfo(info), true
}

// ListAgents returns copies of all registered agents.
func (r *Registry) ListAgents() []*types.AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*types.AgentInfo, 0, len(r.agents))
	for _, info := range r.agents {
		agents = append(agents, copyAgentInfo(info))
	}
	return agents
}

// DiscoverAgents intersects the index buckets for every supplied filter
// and returns matching agents ordered by score, descending. A filter
// value with zero matching agents short-circuits to an empty result.
func (r *Registry) DiscoverAgents(filter Filter) []*types.AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := r.candidateSetLocked(filter)
	if candidates == nil {
		return nil
	}

	results := make([]*types.AgentInfo, 0, len(candidates))
	for id := range candidates {
		if info, ok := r.agents[id]; ok {
			results = append(results, copyAgentInfo(info))
		}
	}

	sortByScore(results)

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results
}

// candidateSetLocked computes the intersection of index buckets for the
// filter. Returns nil when any supplied filter value has no matches;
// with no filters at all, every agent is a candidate.
func (r *Registry) candidateSetLocked(filter Filter) map[string]struct{} {
	var candidates map[string]struct{}

	intersect := func(bucket map[string]struct{}) bool {
		if len(bucket) == 0 {
			return false
		}
		if candidates == nil {
			candidates = make(map[string]struct{}, len(bucket))
			for id := range bucket {
				candidates[id] = struct{}{}
			}
			return true
		}
		for id := range candidates {
			if _, ok := bucket[id]; !ok {
				delete(candidates, id)
			}
		}
		return len(candidates) > 0
	}

	for _, cap := range filter.Capabilities {
		if !intersect(r.byCapability[cap]) {
			return nil
		}
	}
	if filter.SystemType != "" {
		if !intersect(r.bySystem[filter.SystemType]) {
			return nil
		}
	}
	if filter.Status != "" {
		if !intersect(r.byStatus[filter.Status]) {
			return nil
		}
	}

	if candidates == nil {
		candidates = make(map[string]struct{}, len(r.agents))
		for id := range r.agents {
			candidates[id] = struct{}{}
		}
	}
	return candidates
}

// UpdateAgentStatus moves the agent between status buckets and refreshes
// lastSeen. Returns false if the agent is unknown.
func (r *Registry) UpdateAgentStatus(id string, status types.AgentStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[id]
	if !ok {
		return false
	}

	oldStatus := info.Status
	if oldStatus != status {
		removeFromBucket(r.byStatus, oldStatus, id)
		info.Status = status
		addToBucket(r.byStatus, status, id)
	}
	info.LastSeen = time.Now()

	r.logger.Debug("agent status updated",
		zap.String("agent_id", id),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(status)),
	)
	return true
}

// TrackPerformance appends a metric to the agent's bounded history and
// refreshes lastSeen. Returns false if the agent is unknown.
func (r *Registry) TrackPerformance(id string, metric types.PerformanceMetric) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[id]
	if !ok {
		return false
	}

	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now()
	}
	info.PerformanceHistory = append(info.PerformanceHistory, metric)
	if len(info.PerformanceHistory) > maxPerformanceHistory {
		info.PerformanceHistory = info.PerformanceHistory[len(info.PerformanceHistory)-maxPerformanceHistory:]
	}
	info.LastSeen = time.Now()
	return true
}

// UpdateResources replaces the agent's resource snapshot and refreshes
// lastSeen. Returns false if the agent is unknown.
func (r *Registry) UpdateResources(id string, usage types.ResourceUsage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[id]
	if !ok {
		return false
	}

	if usage.Timestamp.IsZero() {
		usage.Timestamp = time.Now()
	}
	info.ResourceUsage = &usage
	info.LastSeen = time.Now()
	return true
}

// Heartbeat refreshes the agent's lastSeen without other changes.
func (r *Registry) Heartbeat(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[id]
	if !ok {
		return false
	}
	info.LastSeen = time.Now()
	return true
}

// Stats returns population counts per status and system type.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		TotalAgents: len(r.agents),
		ByStatus:    make(map[types.AgentStatus]int, len(r.byStatus)),
		BySystem:    make(map[types.SystemType]int, len(r.bySystem)),
	}
	for status, bucket := range r.byStatus {
		s.ByStatus[status] = len(bucket)
	}
	for system, bucket := range r.bySystem {
		s.BySystem[system] = len(bucket)
	}
	return s
}

// cleanupLoop periodically evicts stale and offline agents.
func (r *Registry) cleanupLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Duration(r.cfg.CleanupIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictStale()
		case <-r.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// evictStale removes agents not seen within the configured timeout, and
// agents deliberately set Offline regardless of staleness.
func (r *Registry) evictStale() {
	timeout := time.Duration(r.cfg.AgentTimeoutSeconds) * time.Second
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, info := range r.agents {
		if info.Status == types.AgentStatusOffline || now.Sub(info.LastSeen) > timeout {
			evicted = append(evicted, id)
		}
	}
	for _, id := range evicted {
		r.removeLocked(id, "evicted")
		if r.collector != nil {
			r.collector.AgentEvicted()
		}
	}

	if len(evicted) > 0 {
		r.logger.Info("stale agents evicted",
			zap.Int("count", len(evicted)),
			zap.Strings("agent_ids", evicted),
		)
	}
}

// removeLocked removes one agent from the main map and all indexes.
// Caller must hold the write lock.
func (r *Registry) removeLocked(id, reason string) bool {
	info, ok := r.agents[id]
	if !ok {
		return false
	}

	r.deindexLocked(info)
	delete(r.agents, id)

	if r.collector != nil {
		r.collector.SetAgentCount(len(r.agents))
	}

	r.logger.Info("agent removed",
		zap.String("agent_id", id),
		zap.String("reason", reason),
	)
	return true
}

func (r *Registry) indexLocked(info *types.AgentInfo) {
	for _, cap := range info.Capabilities {
		addToBucket(r.byCapability, cap, info.ID)
	}
	addToBucket(r.bySystem, info.SystemType, info.ID)
	addToBucket(r.byStatus, info.Status, info.ID)
}

func (r *Registry) deindexLocked(info *types.AgentInfo) {
	for _, cap := range info.Capabilities {
		removeFromBucket(r.byCapability, cap, info.ID)
	}
	removeFromBucket(r.bySystem, info.SystemType, info.ID)
	removeFromBucket(r.byStatus, info.Status, info.ID)
}

func addToBucket[K comparable](index map[K]map[string]struct{}, key K, id string) {
	if index[key] == nil {
		index[key] = make(map[string]struct{})
	}
	index[key][id] = struct{}{}
}

func removeFromBucket[K comparable](index map[K]map[string]struct{}, key K, id string) {
	if bucket, ok := index[key]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(index, key)
		}
	}
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// copyAgentInfo creates a deep copy of AgentInfo.
func copyAgentInfo(info *types.AgentInfo) *types.AgentInfo {
	if info == nil {
		return nil
	}

	cp := &types.AgentInfo{
		ID:         info.ID,
		SystemType: info.SystemType,
		Status:     info.Status,
		CreatedAt:  info.CreatedAt,
		LastSeen:   info.LastSeen,
	}
	cp.Capabilities = append([]string(nil), info.Capabilities...)
	if len(info.PerformanceHistory) > 0 {
		cp.PerformanceHistory = append([]types.PerformanceMetric(nil), info.PerformanceHistory...)
	}
	if info.ResourceUsage != nil {
		usage := *info.ResourceUsage
		cp.ResourceUsage = &usage
	}
	cp.Metadata = copyMetadata(info.Metadata)
	return cp
}
