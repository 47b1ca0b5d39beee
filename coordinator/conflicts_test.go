package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentmesh/types"
)

func TestHandleConflictLowSeverityResolvesLocally(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.reg.RegisterAgent("solo", types.SystemDAG, nil, nil))

	resolution, err := h.coord.HandleCrossSystemConflicts(context.Background(), &ConflictData{
		Description: "lock contention on shard 3",
		Systems:     []string{"dag"},
		Agents:      []string{"solo"},
		Severity:    SeverityLow,
	})
	require.NoError(t, err)

	assert.False(t, resolution.RequiresEscalation)
	assert.Equal(t, "solo", resolution.WinningAgent)
	assert.Equal(t, "coordinator", resolution.DecidedBy)
}

func TestHandleConflictEscalationTriggers(t *testing.T) {
	h := newHarness(t)
	h.startConsensus(t)

	cases := []struct {
		name     string
		conflict *ConflictData
	}{
		{"multiple systems", &ConflictData{Systems: []string{"dag", "swarm"}, Agents: []string{"a"}, Severity: SeverityLow}},
		{"multiple agents", &ConflictData{Systems: []string{"dag"}, Agents: []string{"a", "b"}, Severity: SeverityLow}},
		{"high severity", &ConflictData{Systems: []string{"dag"}, Agents: []string{"a"}, Severity: SeverityHigh}},
		{"critical severity", &ConflictData{Systems: []string{"dag"}, Agents: []string{"a"}, Severity: SeverityCritical}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolution, err := h.coord.HandleCrossSystemConflicts(context.Background(), tc.conflict)
			require.NoError(t, err)
			assert.True(t, resolution.RequiresEscalation)
			assert.Equal(t, "consensus", resolution.DecidedBy)
		})
	}
}

func TestHandleConflictEscalationDecidesByVote(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.reg.RegisterAgent("a1", types.SystemConsensus, nil, nil))
	require.True(t, h.reg.RegisterAgent("a2", types.SystemConsensus, nil, nil))
	h.startConsensus(t)

	resolution, err := h.coord.HandleCrossSystemConflicts(context.Background(), &ConflictData{
		Description: "two agents claim the same lease",
		Systems:     []string{"consensus"},
		Agents:      []string{"a1", "a2"},
		Severity:    SeverityMedium,
	})
	require.NoError(t, err)

	assert.True(t, resolution.RequiresEscalation)
	// With no declared preferences the vote falls back to the first
	// option, which is the first contending agent.
	assert.Equal(t, "a1", resolution.WinningAgent)
}

func TestHandleConflictEscalationWithoutConsensusAdapter(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.HandleCrossSystemConflicts(context.Background(), &ConflictData{
		Description: "no arbiter available",
		Systems:     []string{"dag", "swarm"},
		Severity:    SeverityHigh,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrIntegrationUnavailable, types.GetErrorCode(err))
}

func TestFirstRegisteredAgentPrefersOldest(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.reg.RegisterAgent("older", types.SystemDAG, nil, nil))
	require.True(t, h.reg.RegisterAgent("newer", types.SystemDAG, nil, nil))

	// Force distinct creation times regardless of clock resolution.
	h.reg.UnregisterAgent("newer")
	time.Sleep(time.Millisecond)
	require.True(t, h.reg.RegisterAgent("newer", types.SystemDAG, nil, nil))

	assert.Equal(t, "older", h.coord.firstRegisteredAgent([]string{"newer", "older"}))
	assert.Equal(t, "unknown", h.coord.firstRegisteredAgent([]string{"unknown"}),
		"unregistered agents fall back to list order")
	assert.Empty(t, h.coord.firstRegisteredAgent(nil))
}
