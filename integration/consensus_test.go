package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/registry"
	"github.com/BaSui01/agentmesh/types"
)

func testAgents(n int) []*types.AgentInfo {
	out := make([]*types.AgentInfo, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &types.AgentInfo{
			ID:         fmt.Sprintf("agent-%02d", i),
			SystemType: types.SystemConsensus,
			Status:     types.AgentStatusIdle,
		})
	}
	return out
}

func startedConsensus(t *testing.T, cfg *config.Config) *ConsensusIntegration {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	reg := registry.New(cfg, zap.NewNop())
	c := NewConsensusIntegration(cfg, reg, nil, zap.NewNop())
	require.NoError(t, c.Start(context.Background()))
	return c
}

func TestMajorityEngineTally(t *testing.T) {
	engine := MajorityEngine{}
	agents := testAgents(5)

	decision, err := engine.Decide(context.Background(), &Proposal{
		Topic:        "rollout",
		Options:      []string{"proceed", "defer"},
		Participants: agents,
		Preferences: map[string]string{
			"agent-00": "proceed",
			"agent-01": "proceed",
			"agent-02": "proceed",
			"agent-03": "defer",
			// agent-04 abstains.
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "proceed", decision.Selected)
	assert.InDelta(t, 0.6, decision.Confidence, 1e-9)
	assert.Equal(t, 3, decision.Votes["proceed"])
	assert.Equal(t, 1, decision.Votes["defer"])
	assert.Len(t, decision.Participants, 5)
}

func TestMajorityEngineTieBreaksByOptionOrder(t *testing.T) {
	engine := MajorityEngine{}
	agents := testAgents(2)

	decision, err := engine.Decide(context.Background(), &Proposal{
		Topic:        "tie",
		Options:      []string{"alpha", "beta"},
		Participants: agents,
		Preferences: map[string]string{
			"agent-00": "alpha",
			"agent-01": "beta",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "alpha", decision.Selected)
}

func TestMajorityEngineIgnoresInvalidVotes(t *testing.T) {
	engine := MajorityEngine{}
	agents := testAgents(2)

	decision, err := engine.Decide(context.Background(), &Proposal{
		Topic:        "invalid",
		Options:      []string{"a"},
		Participants: agents,
		Preferences: map[string]string{
			"agent-00": "not-an-option",
			"agent-01": "a",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, decision.Votes["a"])
}

func TestMajorityEngineNoOptions(t *testing.T) {
	engine := MajorityEngine{}
	_, err := engine.Decide(context.Background(), &Proposal{Topic: "empty"})
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
}

func TestProposeDecisionEscalatesLowConfidence(t *testing.T) {
	cfg := config.Default()
	cfg.ConfidenceThreshold = 0.7
	c := startedConsensus(t, cfg)

	// 2/5 votes for the winner is well below the threshold.
	decision, err := c.ProposeDecision(context.Background(), &Proposal{
		Topic:        "split",
		Options:      []string{"a", "b"},
		Participants: testAgents(5),
		Preferences: map[string]string{
			"agent-00": "a",
			"agent-01": "a",
			"agent-02": "b",
		},
	})
	require.NoError(t, err)
	assert.True(t, decision.Escalated)

	// A unanimous vote clears the threshold.
	decision, err = c.ProposeDecision(context.Background(), &Proposal{
		Topic:        "unanimous",
		Options:      []string{"a"},
		Participants: testAgents(2),
		Preferences: map[string]string{
			"agent-00": "a",
			"agent-01": "a",
		},
	})
	require.NoError(t, err)
	assert.False(t, decision.Escalated)
}

func TestProposeDecisionCapsParticipants(t *testing.T) {
	cfg := config.Default()
	cfg.MaxConsensusParticipants = 3
	c := startedConsensus(t, cfg)

	decision, err := c.ProposeDecision(context.Background(), &Proposal{
		Topic:        "crowded",
		Options:      []string{"a"},
		Participants: testAgents(10),
	})
	require.NoError(t, err)
	assert.Len(t, decision.Participants, 3)
}

func TestProposeDecisionRequiresConnection(t *testing.T) {
	cfg := config.Default()
	reg := registry.New(cfg, zap.NewNop())
	c := NewConsensusIntegration(cfg, reg, nil, zap.NewNop())

	_, err := c.ProposeDecision(context.Background(), &Proposal{
		Topic:   "offline",
		Options: []string{"a"},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrIntegrationUnavailable, types.GetErrorCode(err))
}

func TestConsensusCoordinateDefaultsOptions(t *testing.T) {
	c := startedConsensus(t, nil)

	outcome, err := c.Coordinate(context.Background(), &CoordinationRequest{
		RequestID: "req-1",
		Objective: "deploy",
		Agents:    testAgents(3),
		Preferences: map[string]string{
			"agent-00": "proceed",
			"agent-01": "proceed",
			"agent-02": "proceed",
		},
	})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, "consensus", outcome.System)
	assert.Equal(t, "proceed", outcome.Details["selected"])
	assert.Equal(t, false, outcome.Details["escalated"])
	assert.Len(t, outcome.AgentsEngaged, 3)
}

func TestConsensusStopDisconnects(t *testing.T) {
	c := startedConsensus(t, nil)
	require.NoError(t, c.Stop(context.Background()))

	snap := c.GetIntegrationStatus()
	assert.Equal(t, types.IntegrationDisconnected, snap.Status)
}
