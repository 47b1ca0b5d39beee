package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/registry"
	"github.com/BaSui01/agentmesh/types"
)

func startedSwarm(t *testing.T, cfg *config.Config) *SwarmIntegration {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	reg := registry.New(cfg, zap.NewNop())
	s := NewSwarmIntegration(cfg, reg, nil, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	return s
}

func TestRoundRobinDeployerRoles(t *testing.T) {
	d := RoundRobinDeployer{}

	deployment, err := d.Deploy(context.Background(), &SwarmSpec{
		Objective: "index",
		Agents:    testAgents(5),
		Roles:     []string{"leader", "worker"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, deployment.DeploymentID)
	assert.Equal(t, 5, deployment.Size)
	assert.Equal(t, "leader", deployment.RoleByAgent["agent-00"])
	assert.Equal(t, "worker", deployment.RoleByAgent["agent-01"])
	assert.Equal(t, "leader", deployment.RoleByAgent["agent-02"])
}

func TestRoundRobinDeployerDefaultRole(t *testing.T) {
	d := RoundRobinDeployer{}

	deployment, err := d.Deploy(context.Background(), &SwarmSpec{
		Objective: "scan",
		Agents:    testAgents(2),
	})
	require.NoError(t, err)
	for id, role := range deployment.RoleByAgent {
		assert.Equal(t, "worker", role, "agent %s", id)
	}
}

func TestRoundRobinDeployerNoAgents(t *testing.T) {
	d := RoundRobinDeployer{}
	_, err := d.Deploy(context.Background(), &SwarmSpec{Objective: "empty"})
	require.Error(t, err)
	assert.Equal(t, types.ErrNoAgentsAvailable, types.GetErrorCode(err))
}

func TestDeploySwarmCapsSize(t *testing.T) {
	cfg := config.Default()
	cfg.MaxSwarmSize = 4
	s := startedSwarm(t, cfg)

	deployment, err := s.DeploySwarm(context.Background(), &SwarmSpec{
		Objective: "crowded",
		Agents:    testAgents(10),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, deployment.Size)
}

func TestDeploySwarmEngagesAgents(t *testing.T) {
	s := startedSwarm(t, nil)

	deployment, err := s.DeploySwarm(context.Background(), &SwarmSpec{
		Objective: "track",
		Agents:    testAgents(3),
	})
	require.NoError(t, err)

	snap := s.GetIntegrationStatus()
	assert.Len(t, snap.ActiveAgents, 3)

	s.ReleaseSwarm(deployment)
	snap = s.GetIntegrationStatus()
	assert.Empty(t, snap.ActiveAgents)
}

func TestDeploySwarmRequiresConnection(t *testing.T) {
	cfg := config.Default()
	reg := registry.New(cfg, zap.NewNop())
	s := NewSwarmIntegration(cfg, reg, nil, zap.NewNop())

	_, err := s.DeploySwarm(context.Background(), &SwarmSpec{
		Objective: "offline",
		Agents:    testAgents(1),
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrIntegrationUnavailable, types.GetErrorCode(err))
}

func TestSwarmCoordinate(t *testing.T) {
	s := startedSwarm(t, nil)

	outcome, err := s.Coordinate(context.Background(), &CoordinationRequest{
		RequestID: "req-1",
		Objective: "crawl",
		Agents:    testAgents(3),
	})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, "swarm", outcome.System)
	assert.Equal(t, 3, outcome.Details["swarm_size"])
	assert.NotEmpty(t, outcome.Details["deployment_id"])
	assert.Equal(t, []string{"agent-00", "agent-01", "agent-02"}, outcome.AgentsEngaged)
}
