package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(config.Default(), zap.NewNop())
}

func TestRegisterAgent(t *testing.T) {
	r := newTestRegistry(t)

	ok := r.RegisterAgent("agent-1", types.SystemDAG, []string{"compute", "io"}, map[string]string{"zone": "a"})
	require.True(t, ok)

	info, found := r.GetAgent("agent-1")
	require.True(t, found)
	assert.Equal(t, "agent-1", info.ID)
	assert.Equal(t, types.SystemDAG, info.SystemType)
	assert.Equal(t, types.AgentStatusIdle, info.Status)
	assert.Equal(t, []string{"compute", "io"}, info.Capabilities)
	assert.Equal(t, "a", info.Metadata["zone"])
	assert.False(t, info.CreatedAt.IsZero())
	assert.False(t, info.LastSeen.IsZero())
}

func TestRegisterAgentEmptyID(t *testing.T) {
	r := newTestRegistry(t)
	assert.False(t, r.RegisterAgent("", types.SystemDAG, nil, nil))
}

func TestRegisterAgentIdempotentUpdate(t *testing.T) {
	r := newTestRegistry(t)

	require.True(t, r.RegisterAgent("agent-1", types.SystemDAG, []string{"compute"}, nil))
	first, _ := r.GetAgent("agent-1")

	// Re-registration replaces capabilities and system type but keeps
	// the original creation time.
	require.True(t, r.RegisterAgent("agent-1", types.SystemSwarm, []string{"search"}, nil))
	second, found := r.GetAgent("agent-1")
	require.True(t, found)
	assert.Equal(t, types.SystemSwarm, second.SystemType)
	assert.Equal(t, []string{"search"}, second.Capabilities)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	// Old capability bucket no longer yields the agent.
	assert.Empty(t, r.DiscoverAgents(Filter{Capabilities: []string{"compute"}}))
	assert.Len(t, r.DiscoverAgents(Filter{Capabilities: []string{"search"}}), 1)
}

func TestUnregisterAgent(t *testing.T) {
	r := newTestRegistry(t)

	r.RegisterAgent("agent-1", types.SystemConsensus, []string{"vote"}, nil)
	require.True(t, r.UnregisterAgent("agent-1"))

	_, found := r.GetAgent("agent-1")
	assert.False(t, found)
	assert.Empty(t, r.DiscoverAgents(Filter{Capabilities: []string{"vote"}}))
	assert.Empty(t, r.DiscoverAgents(Filter{SystemType: types.SystemConsensus}))
	assert.Empty(t, r.DiscoverAgents(Filter{Status: types.AgentStatusIdle}))

	assert.False(t, r.UnregisterAgent("agent-1"), "second removal reports unknown agent")
	assert.False(t, r.UnregisterAgent("never-existed"))
}

func TestCapabilityIndexMembership(t *testing.T) {
	r := newTestRegistry(t)

	r.RegisterAgent("a", types.SystemDAG, []string{"compute", "io"}, nil)
	r.RegisterAgent("b", types.SystemDAG, []string{"compute"}, nil)
	r.RegisterAgent("c", types.SystemSwarm, []string{"io"}, nil)

	// An agent appears in a capability bucket exactly when it currently
	// advertises that capability.
	byCompute := r.DiscoverAgents(Filter{Capabilities: []string{"compute"}})
	ids := agentIDSet(byCompute)
	assert.Contains(t, ids, "a")
	assert.Contains(t, ids, "b")
	assert.NotContains(t, ids, "c")

	both := r.DiscoverAgents(Filter{Capabilities: []string{"compute", "io"}})
	require.Len(t, both, 1)
	assert.Equal(t, "a", both[0].ID)
}

func TestDiscoverAgentsFilters(t *testing.T) {
	r := newTestRegistry(t)

	r.RegisterAgent("a", types.SystemDAG, []string{"compute"}, nil)
	r.RegisterAgent("b", types.SystemSwarm, []string{"compute"}, nil)
	r.UpdateAgentStatus("b", types.AgentStatusBusy)

	got := r.DiscoverAgents(Filter{Capabilities: []string{"compute"}, SystemType: types.SystemSwarm})
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	got = r.DiscoverAgents(Filter{Status: types.AgentStatusIdle})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	// An unknown capability short-circuits to empty even when other
	// filter values match.
	assert.Empty(t, r.DiscoverAgents(Filter{Capabilities: []string{"missing"}, SystemType: types.SystemDAG}))

	// No filters returns everything.
	assert.Len(t, r.DiscoverAgents(Filter{}), 2)
}

func TestDiscoverAgentsLimitAndOrdering(t *testing.T) {
	r := newTestRegistry(t)

	r.RegisterAgent("low", types.SystemDAG, []string{"compute"}, nil)
	r.RegisterAgent("high", types.SystemDAG, []string{"compute"}, nil)
	r.UpdateAgentStatus("high", types.AgentStatusActive)
	r.UpdateAgentStatus("low", types.AgentStatusBusy)

	got := r.DiscoverAgents(Filter{Capabilities: []string{"compute"}})
	require.Len(t, got, 2)
	assert.Equal(t, "high", got[0].ID, "active agent outranks busy agent")

	got = r.DiscoverAgents(Filter{Capabilities: []string{"compute"}, Limit: 1})
	require.Len(t, got, 1)
	assert.Equal(t, "high", got[0].ID)
}

func TestUpdateAgentStatus(t *testing.T) {
	r := newTestRegistry(t)

	r.RegisterAgent("a", types.SystemDAG, nil, nil)
	require.True(t, r.UpdateAgentStatus("a", types.AgentStatusActive))

	info, _ := r.GetAgent("a")
	assert.Equal(t, types.AgentStatusActive, info.Status)
	assert.Empty(t, r.DiscoverAgents(Filter{Status: types.AgentStatusIdle}))
	assert.Len(t, r.DiscoverAgents(Filter{Status: types.AgentStatusActive}), 1)

	// Same-status update is a no-op apart from the lastSeen refresh.
	require.True(t, r.UpdateAgentStatus("a", types.AgentStatusActive))
	assert.Len(t, r.DiscoverAgents(Filter{Status: types.AgentStatusActive}), 1)

	assert.False(t, r.UpdateAgentStatus("unknown", types.AgentStatusActive))
}

func TestTrackPerformanceBoundedHistory(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterAgent("a", types.SystemDAG, nil, nil)

	for i := 0; i < maxPerformanceHistory+25; i++ {
		ok := r.TrackPerformance("a", types.PerformanceMetric{Name: "latency", Value: float64(i)})
		require.True(t, ok)
	}

	info, _ := r.GetAgent("a")
	require.Len(t, info.PerformanceHistory, maxPerformanceHistory)
	// Oldest entries were dropped.
	assert.Equal(t, float64(25), info.PerformanceHistory[0].Value)

	assert.False(t, r.TrackPerformance("unknown", types.PerformanceMetric{}))
}

func TestUpdateResources(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterAgent("a", types.SystemDAG, nil, nil)

	require.True(t, r.UpdateResources("a", types.ResourceUsage{CPUPercent: 42, MemoryMB: 512}))
	info, _ := r.GetAgent("a")
	require.NotNil(t, info.ResourceUsage)
	assert.Equal(t, 42.0, info.ResourceUsage.CPUPercent)
	assert.False(t, info.ResourceUsage.Timestamp.IsZero())

	assert.False(t, r.UpdateResources("unknown", types.ResourceUsage{}))
}

func TestHeartbeat(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterAgent("a", types.SystemDAG, nil, nil)

	before, _ := r.GetAgent("a")
	time.Sleep(5 * time.Millisecond)
	require.True(t, r.Heartbeat("a"))
	after, _ := r.GetAgent("a")
	assert.True(t, after.LastSeen.After(before.LastSeen))

	assert.False(t, r.Heartbeat("unknown"))
}

func TestEvictStale(t *testing.T) {
	r := newTestRegistry(t)

	r.RegisterAgent("fresh", types.SystemDAG, nil, nil)
	r.RegisterAgent("stale", types.SystemDAG, nil, nil)
	r.RegisterAgent("offline", types.SystemDAG, nil, nil)

	timeout := time.Duration(r.cfg.AgentTimeoutSeconds) * time.Second
	r.mu.Lock()
	r.agents["stale"].LastSeen = time.Now().Add(-timeout - time.Minute)
	r.mu.Unlock()
	r.UpdateAgentStatus("offline", types.AgentStatusOffline)

	r.evictStale()

	_, found := r.GetAgent("fresh")
	assert.True(t, found)
	_, found = r.GetAgent("stale")
	assert.False(t, found, "agent past the timeout is evicted")
	_, found = r.GetAgent("offline")
	assert.False(t, found, "offline agent is evicted regardless of staleness")
}

func TestStats(t *testing.T) {
	r := newTestRegistry(t)

	r.RegisterAgent("a", types.SystemDAG, nil, nil)
	r.RegisterAgent("b", types.SystemDAG, nil, nil)
	r.RegisterAgent("c", types.SystemSwarm, nil, nil)
	r.UpdateAgentStatus("a", types.AgentStatusBusy)

	s := r.Stats()
	assert.Equal(t, 3, s.TotalAgents)
	assert.Equal(t, 2, s.BySystem[types.SystemDAG])
	assert.Equal(t, 1, s.BySystem[types.SystemSwarm])
	assert.Equal(t, 1, s.ByStatus[types.AgentStatusBusy])
	assert.Equal(t, 2, s.ByStatus[types.AgentStatusIdle])
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.CleanupIntervalSeconds = 1
	r := New(cfg, zap.NewNop())

	assert.Equal(t, types.ModuleShutdown, r.State())
	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, types.ModuleHealthy, r.State())

	r.Stop()
	assert.Equal(t, types.ModuleShutdown, r.State())
}

func TestGetAgentReturnsCopy(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterAgent("a", types.SystemDAG, []string{"compute"}, nil)

	info, _ := r.GetAgent("a")
	info.Capabilities[0] = "mutated"
	info.Status = types.AgentStatusError

	fresh, _ := r.GetAgent("a")
	assert.Equal(t, "compute", fresh.Capabilities[0])
	assert.Equal(t, types.AgentStatusIdle, fresh.Status)
}

func agentIDSet(agents []*types.AgentInfo) map[string]struct{} {
	set := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		set[a.ID] = struct{}{}
	}
	return set
}
