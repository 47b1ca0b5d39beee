package integration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/registry"
	"github.com/BaSui01/agentmesh/scheduler"
	"github.com/BaSui01/agentmesh/types"
)

// DAGIntegration bridges the coordinator to the DAG task execution
// subsystem. The dependency scheduler lives inside this adapter.
type DAGIntegration struct {
	*BaseIntegration

	cfg   *config.Config
	reg   *registry.Registry
	sched *scheduler.Scheduler
}

// NewDAGIntegration creates the DAG adapter around a scheduler.
func NewDAGIntegration(cfg *config.Config, reg *registry.Registry, sched *scheduler.Scheduler, logger *zap.Logger) *DAGIntegration {
	if cfg == nil {
		cfg = config.Default()
	}
	return &DAGIntegration{
		BaseIntegration: NewBaseIntegration("dag", types.SystemDAG, logger),
		cfg:             cfg,
		reg:             reg,
		sched:           sched,
	}
}

// Scheduler exposes the underlying dependency scheduler.
func (d *DAGIntegration) Scheduler() *scheduler.Scheduler {
	return d.sched
}

// Start connects the adapter.
func (d *DAGIntegration) Start(ctx context.Context) error {
	d.markConnecting()
	d.markConnected()
	d.Logger().Info("dag integration started",
		zap.Int("max_parallel_tasks", d.cfg.MaxParallelTasks),
	)
	return nil
}

// Stop disconnects the adapter, cancelling any in-flight DAG executions
// before returning.
func (d *DAGIntegration) Stop(ctx context.Context) error {
	for _, dagID := range d.sched.ActiveExecutions() {
		if d.sched.CancelExecution(dagID) {
			d.Logger().Info("cancelled in-flight execution on stop",
				zap.String("dag_id", dagID),
			)
		}
	}
	d.markDisconnected()
	d.Logger().Info("dag integration stopped")
	return nil
}

// CoordinateParallelExecution is the adapter's primary coordination
// operation: it builds a task graph from the request, selects candidate
// agents, and executes the graph through the dependency scheduler.
func (d *DAGIntegration) CoordinateParallelExecution(ctx context.Context, dagID string, tasks []scheduler.Task, dependencies map[string][]string, candidates []*types.AgentInfo, timeout time.Duration) (*scheduler.ExecutionResult, error) {
	if err := d.requireConnected(); err != nil {
		return nil, err
	}

	start := time.Now()

	ids := agentIDs(candidates)
	d.engageAgents(ids)
	defer d.releaseAgents(ids)

	graph := scheduler.NewTaskGraph(tasks, dependencies)
	result, err := d.sched.Execute(ctx, dagID, graph, candidates, timeout)
	d.recordOutcome(err == nil, time.Since(start))
	return result, err
}

// Coordinate implements Integration by executing the request's task
// graph over the request's agents.
func (d *DAGIntegration) Coordinate(ctx context.Context, req *CoordinationRequest) (*CoordinationOutcome, error) {
	if len(req.Tasks) == 0 {
		return nil, types.NewError(types.ErrValidation,
			"dag coordination request %s has no tasks", req.RequestID)
	}

	start := time.Now()
	result, err := d.CoordinateParallelExecution(ctx, req.RequestID, req.Tasks, req.Dependencies, req.Agents, req.Timeout)
	if err != nil {
		return nil, err
	}

	engaged := make(map[string]struct{}, len(result.TaskResults))
	for _, tr := range result.TaskResults {
		engaged[tr.AssignedAgent] = struct{}{}
	}
	agents := make([]string, 0, len(engaged))
	for id := range engaged {
		agents = append(agents, id)
	}

	return &CoordinationOutcome{
		System:        d.Name(),
		Success:       result.State == scheduler.ExecutionCompleted,
		AgentsEngaged: agents,
		DurationMs:    float64(time.Since(start).Milliseconds()),
		Details: map[string]any{
			"execution_id":    result.ExecutionID,
			"batches":         len(result.Batches),
			"completed_tasks": result.CompletedTasks,
			"failed_tasks":    result.FailedTasks,
			"total_tasks":     result.TotalTasks,
		},
	}, nil
}

var _ Integration = (*DAGIntegration)(nil)
