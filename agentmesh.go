// Package agentmesh provides a top-level convenience entry point for
// assembling the full coordination stack with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/agentmesh"
//
//	mesh, err := agentmesh.New(agentmesh.WithLogger(logger))
//	if err != nil { ... }
//	if err := mesh.Start(ctx); err != nil { ... }
//	defer mesh.Stop(ctx)
//
//	mesh.Registry().RegisterAgent("agent-1", types.SystemDAG, []string{"compute"}, nil)
//	result, err := mesh.Coordinate(ctx, &coordinator.TaskRequirements{...})
//
// The mesh wires a registry, a DAG scheduler, the three built-in system
// integrations (consensus, swarm, DAG), and a network coordinator. Each
// component remains usable on its own; this package only assembles them.
package agentmesh

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/coordinator"
	"github.com/BaSui01/agentmesh/integration"
	"github.com/BaSui01/agentmesh/internal/metrics"
	"github.com/BaSui01/agentmesh/registry"
	"github.com/BaSui01/agentmesh/scheduler"
)

// Option configures the mesh created by [New].
type Option func(*options)

type options struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	runner     scheduler.TaskRunner
	engine     integration.DecisionEngine
	deployer   integration.Deployer

	metricsNamespace string
}

// WithConfig sets an explicit configuration. Takes precedence over
// WithConfigFile.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigFile loads configuration from a YAML file.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTaskRunner sets the runner the DAG scheduler invokes per task.
// Defaults to a no-op runner that reports immediate success.
func WithTaskRunner(r scheduler.TaskRunner) Option {
	return func(o *options) { o.runner = r }
}

// WithDecisionEngine sets the consensus decision engine. Defaults to a
// majority-vote engine.
func WithDecisionEngine(e integration.DecisionEngine) Option {
	return func(o *options) { o.engine = e }
}

// WithDeployer sets the swarm role deployer. Defaults to round-robin
// role assignment.
func WithDeployer(d integration.Deployer) Option {
	return func(o *options) { o.deployer = d }
}

// WithMetrics enables Prometheus metrics under the given namespace.
func WithMetrics(namespace string) Option {
	return func(o *options) { o.metricsNamespace = namespace }
}

// Mesh is the assembled coordination stack.
type Mesh struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector

	reg       *registry.Registry
	sched     *scheduler.Scheduler
	consensus *integration.ConsensusIntegration
	swarm     *integration.SwarmIntegration
	dag       *integration.DAGIntegration
	coord     *coordinator.Coordinator
}

// New assembles a mesh from the given options. The mesh is not running
// until [Mesh.Start] is called.
func New(opts ...Option) (*Mesh, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.cfg
	if cfg == nil && o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Mesh{
		cfg:    cfg,
		logger: logger,
	}

	if o.metricsNamespace != "" {
		m.collector = metrics.NewCollector(o.metricsNamespace, logger)
	}

	m.reg = registry.New(cfg, logger)
	m.sched = scheduler.New(cfg, o.runner, logger)

	engine := o.engine
	if engine == nil {
		engine = &integration.MajorityEngine{}
	}
	deployer := o.deployer
	if deployer == nil {
		deployer = &integration.RoundRobinDeployer{}
	}

	m.consensus = integration.NewConsensusIntegration(cfg, m.reg, engine, logger)
	m.swarm = integration.NewSwarmIntegration(cfg, m.reg, deployer, logger)
	m.dag = integration.NewDAGIntegration(cfg, m.reg, m.sched, logger)

	m.coord = coordinator.New(cfg, m.reg, logger)

	if m.collector != nil {
		m.reg.AttachCollector(m.collector)
		m.sched.AttachCollector(m.collector)
		m.coord.AttachCollector(m.collector)
	}

	return m, nil
}

// Start starts the registry's background maintenance and every system
// integration, then registers the integrations with the coordinator.
func (m *Mesh) Start(ctx context.Context) error {
	if err := m.reg.Start(ctx); err != nil {
		return err
	}
	if err := m.consensus.Start(ctx); err != nil {
		return err
	}
	if err := m.swarm.Start(ctx); err != nil {
		return err
	}
	if err := m.dag.Start(ctx); err != nil {
		return err
	}

	m.coord.RegisterSystemIntegration(m.consensus.Name(), m.consensus)
	m.coord.RegisterSystemIntegration(m.swarm.Name(), m.swarm)
	m.coord.RegisterSystemIntegration(m.dag.Name(), m.dag)

	m.logger.Info("agent mesh started")
	return nil
}

// Stop shuts the stack down in reverse order of Start. The first error
// encountered is returned after every component has been stopped.
func (m *Mesh) Stop(ctx context.Context) error {
	err := m.coord.Stop(ctx)
	m.reg.Stop()
	m.logger.Info("agent mesh stopped")
	return err
}

// Registry returns the agent registry.
func (m *Mesh) Registry() *registry.Registry { return m.reg }

// Scheduler returns the DAG scheduler.
func (m *Mesh) Scheduler() *scheduler.Scheduler { return m.sched }

// Coordinator returns the network coordinator.
func (m *Mesh) Coordinator() *coordinator.Coordinator { return m.coord }

// Consensus returns the consensus integration.
func (m *Mesh) Consensus() *integration.ConsensusIntegration { return m.consensus }

// Swarm returns the swarm integration.
func (m *Mesh) Swarm() *integration.SwarmIntegration { return m.swarm }

// DAG returns the DAG execution integration.
func (m *Mesh) DAG() *integration.DAGIntegration { return m.dag }

// Coordinate routes a multi-system task request through the coordinator.
func (m *Mesh) Coordinate(ctx context.Context, req *coordinator.TaskRequirements) (*coordinator.CoordinationResult, error) {
	return m.coord.CoordinateMultiSystemAgents(ctx, req)
}
