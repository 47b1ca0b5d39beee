package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentmesh/types"
)

func recommendationFor(t *testing.T, result *AllocationResult, system types.SystemType) AllocationRecommendation {
	t.Helper()
	for _, rec := range result.Recommendations {
		if rec.System == system {
			return rec
		}
	}
	t.Fatalf("no recommendation for system %s", system)
	return AllocationRecommendation{}
}

func TestOptimizeAgentAllocationScaleUp(t *testing.T) {
	h := newHarness(t)
	h.addAgents(t, types.SystemDAG, nil, 1)

	result := h.coord.OptimizeAgentAllocation(&WorkloadForecast{
		ExpectedTasks: map[types.SystemType]int{types.SystemDAG: 25},
	})

	rec := recommendationFor(t, result, types.SystemDAG)
	assert.Equal(t, 1, rec.CurrentAgents)
	assert.Equal(t, 3, rec.RecommendedAgents, "25 tasks need three agents at ten tasks each")
	assert.Equal(t, ActionScaleUp, rec.Action)
}

func TestOptimizeAgentAllocationScaleDown(t *testing.T) {
	h := newHarness(t)
	h.addAgents(t, types.SystemSwarm, nil, 5)

	result := h.coord.OptimizeAgentAllocation(&WorkloadForecast{
		ExpectedTasks: map[types.SystemType]int{types.SystemSwarm: 10},
	})

	rec := recommendationFor(t, result, types.SystemSwarm)
	assert.Equal(t, 5, rec.CurrentAgents)
	assert.Equal(t, 1, rec.RecommendedAgents)
	assert.Equal(t, ActionScaleDown, rec.Action)
}

func TestOptimizeAgentAllocationHold(t *testing.T) {
	h := newHarness(t)
	h.addAgents(t, types.SystemConsensus, nil, 2)

	result := h.coord.OptimizeAgentAllocation(&WorkloadForecast{
		ExpectedTasks: map[types.SystemType]int{types.SystemConsensus: 15},
	})

	rec := recommendationFor(t, result, types.SystemConsensus)
	assert.Equal(t, ActionHold, rec.Action)
}

func TestOptimizeAgentAllocationMinimumOneAgent(t *testing.T) {
	h := newHarness(t)

	result := h.coord.OptimizeAgentAllocation(&WorkloadForecast{
		ExpectedTasks: map[types.SystemType]int{types.SystemDAG: 1},
	})

	rec := recommendationFor(t, result, types.SystemDAG)
	assert.Equal(t, 1, rec.RecommendedAgents)
	assert.Equal(t, ActionScaleUp, rec.Action)
}

func TestOptimizeAgentAllocationStableOrder(t *testing.T) {
	h := newHarness(t)

	forecast := &WorkloadForecast{
		ExpectedTasks: map[types.SystemType]int{
			types.SystemSwarm:     5,
			types.SystemDAG:       5,
			types.SystemConsensus: 5,
		},
	}

	want := []types.SystemType{types.SystemConsensus, types.SystemDAG, types.SystemSwarm}
	for i := 0; i < 10; i++ {
		result := h.coord.OptimizeAgentAllocation(forecast)
		got := make([]types.SystemType, 0, len(result.Recommendations))
		for _, rec := range result.Recommendations {
			got = append(got, rec.System)
		}
		assert.Equal(t, want, got)
	}
}

func TestOptimizeAgentAllocationEmptyForecast(t *testing.T) {
	h := newHarness(t)

	result := h.coord.OptimizeAgentAllocation(&WorkloadForecast{})
	require.Empty(t, result.Recommendations)
}
