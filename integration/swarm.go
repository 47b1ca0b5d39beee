package integration

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/registry"
	"github.com/BaSui01/agentmesh/types"
)

// SwarmSpec describes a swarm deployment request.
type SwarmSpec struct {
	// Objective is what the swarm is deployed to achieve.
	Objective string

	// Agents are the members of the swarm.
	Agents []*types.AgentInfo

	// Roles are role names distributed across the swarm. When empty a
	// single "worker" role is used.
	Roles []string
}

// SwarmDeployment is the outcome of a swarm deployment.
type SwarmDeployment struct {
	DeploymentID string            `json:"deployment_id"`
	Objective    string            `json:"objective"`
	RoleByAgent  map[string]string `json:"role_by_agent"`
	Size         int               `json:"size"`
	DeployedAt   time.Time         `json:"deployed_at"`
}

// Deployer is the pluggable swarm deployment strategy.
type Deployer interface {
	Deploy(ctx context.Context, spec *SwarmSpec) (*SwarmDeployment, error)
}

// RoundRobinDeployer distributes roles over the swarm members in order.
type RoundRobinDeployer struct{}

// Deploy implements Deployer.
func (RoundRobinDeployer) Deploy(ctx context.Context, spec *SwarmSpec) (*SwarmDeployment, error) {
	if len(spec.Agents) == 0 {
		return nil, types.NewError(types.ErrNoAgentsAvailable, "swarm %q has no agents", spec.Objective)
	}

	roles := spec.Roles
	if len(roles) == 0 {
		roles = []string{"worker"}
	}

	assignment := make(map[string]string, len(spec.Agents))
	for i, agent := range spec.Agents {
		assignment[agent.ID] = roles[i%len(roles)]
	}

	return &SwarmDeployment{
		DeploymentID: uuid.NewString(),
		Objective:    spec.Objective,
		RoleByAgent:  assignment,
		Size:         len(assignment),
		DeployedAt:   time.Now(),
	}, nil
}

// SwarmIntegration bridges the coordinator to the swarm orchestration
// subsystem.
type SwarmIntegration struct {
	*BaseIntegration

	cfg      *config.Config
	reg      *registry.Registry
	deployer Deployer
}

// NewSwarmIntegration creates the swarm adapter. A nil deployer defaults
// to RoundRobinDeployer.
func NewSwarmIntegration(cfg *config.Config, reg *registry.Registry, deployer Deployer, logger *zap.Logger) *SwarmIntegration {
	if cfg == nil {
		cfg = config.Default()
	}
	if deployer == nil {
		deployer = RoundRobinDeployer{}
	}
	return &SwarmIntegration{
		BaseIntegration: NewBaseIntegration("swarm", types.SystemSwarm, logger),
		cfg:             cfg,
		reg:             reg,
		deployer:        deployer,
	}
}

// Start connects the adapter.
func (s *SwarmIntegration) Start(ctx context.Context) error {
	s.markConnecting()
	s.markConnected()
	s.Logger().Info("swarm integration started",
		zap.Int("max_swarm_size", s.cfg.MaxSwarmSize),
	)
	return nil
}

// Stop disconnects the adapter.
func (s *SwarmIntegration) Stop(ctx context.Context) error {
	s.markDisconnected()
	s.Logger().Info("swarm integration stopped")
	return nil
}

// DeploySwarm deploys a swarm of agents toward an objective. Swarms
// beyond the configured size cap are trimmed in agent-score order.
func (s *SwarmIntegration) DeploySwarm(ctx context.Context, spec *SwarmSpec) (*SwarmDeployment, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	start := time.Now()

	if max := s.cfg.MaxSwarmSize; len(spec.Agents) > max {
		trimmed := append([]*types.AgentInfo(nil), spec.Agents...)
		sort.SliceStable(trimmed, func(i, j int) bool {
			return registry.AgentScore(trimmed[i]) > registry.AgentScore(trimmed[j])
		})
		spec = &SwarmSpec{Objective: spec.Objective, Agents: trimmed[:max], Roles: spec.Roles}
	}

	ids := agentIDs(spec.Agents)
	s.engageAgents(ids)

	deployment, err := s.deployer.Deploy(ctx, spec)
	s.recordOutcome(err == nil, time.Since(start))
	if err != nil {
		s.releaseAgents(ids)
		s.Logger().Warn("swarm deployment failed",
			zap.String("objective", spec.Objective),
			zap.Error(err),
		)
		return nil, err
	}

	s.Logger().Info("swarm deployed",
		zap.String("deployment_id", deployment.DeploymentID),
		zap.String("objective", deployment.Objective),
		zap.Int("size", deployment.Size),
	)
	return deployment, nil
}

// ReleaseSwarm releases the agents of a completed deployment.
func (s *SwarmIntegration) ReleaseSwarm(deployment *SwarmDeployment) {
	ids := make([]string, 0, len(deployment.RoleByAgent))
	for id := range deployment.RoleByAgent {
		ids = append(ids, id)
	}
	s.releaseAgents(ids)
}

// Coordinate implements Integration by deploying the request's agents as
// a swarm.
func (s *SwarmIntegration) Coordinate(ctx context.Context, req *CoordinationRequest) (*CoordinationOutcome, error) {
	start := time.Now()

	deployment, err := s.DeploySwarm(ctx, &SwarmSpec{
		Objective: req.Objective,
		Agents:    req.Agents,
	})
	if err != nil {
		return nil, err
	}

	engaged := make([]string, 0, len(deployment.RoleByAgent))
	for id := range deployment.RoleByAgent {
		engaged = append(engaged, id)
	}
	sort.Strings(engaged)

	return &CoordinationOutcome{
		System:        s.Name(),
		Success:       true,
		AgentsEngaged: engaged,
		DurationMs:    float64(time.Since(start).Milliseconds()),
		Details: map[string]any{
			"deployment_id": deployment.DeploymentID,
			"swarm_size":    deployment.Size,
		},
	}, nil
}

var _ Integration = (*SwarmIntegration)(nil)
