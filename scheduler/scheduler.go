package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/internal/metrics"
	"github.com/BaSui01/agentmesh/types"
)

// maxRunHistory bounds the retained execution results.
const maxRunHistory = 50

// ExecutionState is the lifecycle state of a DAG execution.
type ExecutionState string

const (
	// ExecutionPending indicates the execution has not started.
	ExecutionPending ExecutionState = "pending"
	// ExecutionRunning indicates batches are being executed.
	ExecutionRunning ExecutionState = "running"
	// ExecutionCompleted indicates every task completed successfully.
	ExecutionCompleted ExecutionState = "completed"
	// ExecutionFailed indicates at least one task failed; subsequent
	// batches were skipped.
	ExecutionFailed ExecutionState = "failed"
	// ExecutionCancelled indicates the run was cancelled between batches.
	ExecutionCancelled ExecutionState = "cancelled"
)

// TaskState is the outcome of a single task execution.
type TaskState string

const (
	// TaskCompleted indicates the task ran successfully.
	TaskCompleted TaskState = "completed"
	// TaskFailed indicates the task returned an error.
	TaskFailed TaskState = "failed"
)

// TaskResult records the outcome of one task execution.
type TaskResult struct {
	TaskID        string        `json:"task_id"`
	Status        TaskState     `json:"status"`
	AssignedAgent string        `json:"assigned_agent"`
	ExecutionTime time.Duration `json:"execution_time"`
	Error         string        `json:"error,omitempty"`
}

// ExecutionResult is the overall outcome of a DAG execution.
type ExecutionResult struct {
	DAGID          string                `json:"dag_id"`
	ExecutionID    string                `json:"execution_id"`
	State          ExecutionState        `json:"state"`
	Batches        [][]string            `json:"batches"`
	TaskResults    map[string]TaskResult `json:"task_results"`
	TotalTasks     int                   `json:"total_tasks"`
	CompletedTasks int                   `json:"completed_tasks"`
	FailedTasks    int                   `json:"failed_tasks"`
	FailedTaskIDs  []string              `json:"failed_task_ids,omitempty"`
	StartedAt      time.Time             `json:"started_at"`
	EndedAt        time.Time             `json:"ended_at"`
}

// TaskRunner dispatches a task's action to whatever executes it. The
// core treats the action as an opaque identifier; real dispatch belongs
// to the embedding application.
type TaskRunner interface {
	RunTask(ctx context.Context, task Task, agentID string) error
}

// TaskRunnerFunc adapts a function to the TaskRunner interface.
type TaskRunnerFunc func(ctx context.Context, task Task, agentID string) error

// RunTask implements TaskRunner.
func (f TaskRunnerFunc) RunTask(ctx context.Context, task Task, agentID string) error {
	return f(ctx, task, agentID)
}

// noopRunner is the default runner; it accepts every task immediately.
type noopRunner struct{}

func (noopRunner) RunTask(ctx context.Context, task Task, agentID string) error {
	return ctx.Err()
}

// activeRun tracks a running execution for cancellation. mu guards
// every field of result; the executing goroutine and concurrent
// query/cancel callers both go through it.
type activeRun struct {
	mu         sync.Mutex
	result     *ExecutionResult
	cancelOnce sync.Once
	cancelled  chan struct{}
}

func (a *activeRun) cancel() {
	a.cancelOnce.Do(func() { close(a.cancelled) })
}

func (a *activeRun) state() ExecutionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result.State
}

func (a *activeRun) setState(state ExecutionState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.State = state
	switch state {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		a.result.EndedAt = time.Now()
	}
}

// recordTask stores one task outcome and updates the counters.
func (a *activeRun) recordTask(tr TaskResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.TaskResults[tr.TaskID] = tr
	if tr.Status == TaskFailed {
		a.result.FailedTasks++
		a.result.FailedTaskIDs = append(a.result.FailedTaskIDs, tr.TaskID)
	} else {
		a.result.CompletedTasks++
	}
}

// failRemaining records a failed result for every task that never ran,
// so the counters stay consistent with FailedTaskIDs, then marks the
// run Failed.
func (a *activeRun) failRemaining(assignments map[string]string, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, batch := range a.result.Batches {
		for _, id := range batch {
			if _, done := a.result.TaskResults[id]; done {
				continue
			}
			a.result.TaskResults[id] = TaskResult{
				TaskID:        id,
				Status:        TaskFailed,
				AssignedAgent: assignments[id],
				Error:         reason,
			}
			a.result.FailedTasks++
			a.result.FailedTaskIDs = append(a.result.FailedTaskIDs, id)
		}
	}
	a.result.State = ExecutionFailed
	a.result.EndedAt = time.Now()
}

func (a *activeRun) failedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result.FailedTasks
}

// snapshot returns a deep copy of the result safe to hand to callers
// while the run is still mutating.
func (a *activeRun) snapshot() *ExecutionResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *a.result
	cp.TaskResults = make(map[string]TaskResult, len(a.result.TaskResults))
	for id, tr := range a.result.TaskResults {
		cp.TaskResults[id] = tr
	}
	cp.FailedTaskIDs = append([]string(nil), a.result.FailedTaskIDs...)
	return &cp
}

// Scheduler validates task graphs, assigns agents, and executes batches
// with bounded parallelism.
type Scheduler struct {
	cfg       *config.Config
	runner    TaskRunner
	collector *metrics.Collector
	logger    *zap.Logger

	mu      sync.Mutex
	active  map[string]*activeRun
	history []*ExecutionResult
}

// New creates a scheduler. A nil runner defaults to a runner that
// accepts every task.
func New(cfg *config.Config, runner TaskRunner, logger *zap.Logger) *Scheduler {
	if cfg == nil {
		cfg = config.Default()
	}
	if runner == nil {
		runner = noopRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		logger: logger.With(zap.String("component", "dependency_scheduler")),
		active: make(map[string]*activeRun),
	}
}

// AttachCollector wires a metrics collector.
func (s *Scheduler) AttachCollector(c *metrics.Collector) {
	s.collector = c
}

// AssignAgents deterministically round-robins tasks over the candidate
// agents in the order given (callers pass them in registry-score order).
// Returns NO_AGENTS_AVAILABLE when no candidates exist.
func (s *Scheduler) AssignAgents(tasks []Task, candidates []*types.AgentInfo) (map[string]string, error) {
	if len(candidates) == 0 {
		return nil, types.NewError(types.ErrNoAgentsAvailable, "no candidate agents for %d tasks", len(tasks))
	}

	assignments := make(map[string]string, len(tasks))
	for i, t := range tasks {
		assignments[t.ID] = candidates[i%len(candidates)].ID
	}
	return assignments, nil
}

// Execute validates the graph, detects cycles, computes topological
// batches, assigns agents, and runs the batches in order. Within a
// batch tasks run concurrently, bounded by maxParallelTasks; a batch
// does not start until the previous batch has fully resolved. On task
// failure the in-flight batch drains, the run is marked Failed, and all
// subsequent batches are skipped.
//
// Validation, cycle, and assignment errors are returned before any task
// runs. A runtime failure returns the result together with an
// EXECUTION_FAILURE error; cancellation returns the result with a
// CANCELLED error.
func (s *Scheduler) Execute(ctx context.Context, dagID string, graph *TaskGraph, candidates []*types.AgentInfo, timeout time.Duration) (*ExecutionResult, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	if hasCycles, cycles := graph.DetectCycles(); hasCycles {
		return nil, types.NewError(types.ErrCyclicDependency,
			"task graph contains cycles: %s", formatCycles(cycles))
	}

	batches, err := graph.TopologicalBatches()
	if err != nil {
		return nil, err
	}

	assignments, err := s.AssignAgents(graph.Tasks(), candidates)
	if err != nil {
		return nil, err
	}

	result := &ExecutionResult{
		DAGID:       dagID,
		ExecutionID: uuid.NewString(),
		State:       ExecutionPending,
		Batches:     batches,
		TaskResults: make(map[string]TaskResult, graph.Len()),
		TotalTasks:  graph.Len(),
		StartedAt:   time.Now(),
	}

	run := &activeRun{result: result, cancelled: make(chan struct{})}
	s.mu.Lock()
	if _, exists := s.active[dagID]; exists {
		s.mu.Unlock()
		return nil, types.NewError(types.ErrValidation, "dag %s is already executing", dagID)
	}
	s.active[dagID] = run
	s.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tracer := otel.Tracer("github.com/BaSui01/agentmesh/scheduler")
	ctx, span := tracer.Start(ctx, "scheduler.Execute")
	span.SetAttributes(
		attribute.String("dag.id", dagID),
		attribute.Int("dag.tasks", result.TotalTasks),
		attribute.Int("dag.batches", len(batches)),
	)
	defer span.End()

	s.logger.Info("starting DAG execution",
		zap.String("dag_id", dagID),
		zap.String("execution_id", result.ExecutionID),
		zap.Int("tasks", result.TotalTasks),
		zap.Int("batches", len(batches)),
	)

	run.setState(ExecutionRunning)
	s.runBatches(ctx, run, graph, assignments)
	s.finish(dagID, run)

	switch result.State {
	case ExecutionFailed:
		return result, types.NewError(types.ErrExecutionFailure,
			"dag %s failed: %d/%d tasks failed (%s)",
			dagID, result.FailedTasks, result.TotalTasks, strings.Join(result.FailedTaskIDs, ", "))
	case ExecutionCancelled:
		return result, types.NewError(types.ErrCancelled, "dag %s execution cancelled", dagID)
	default:
		return result, nil
	}
}

// runBatches executes batches in topological order, stopping on the
// first batch containing a failure or on cancellation between batches.
func (s *Scheduler) runBatches(ctx context.Context, run *activeRun, graph *TaskGraph, assignments map[string]string) {
	result := run.result

	for batchIdx, batch := range result.Batches {
		select {
		case <-run.cancelled:
			run.setState(ExecutionCancelled)
			return
		case <-ctx.Done():
			s.handleContextDone(ctx, run, assignments)
			return
		default:
		}

		s.logger.Debug("executing batch",
			zap.String("dag_id", result.DAGID),
			zap.Int("batch", batchIdx),
			zap.Int("size", len(batch)),
		)

		var g errgroup.Group
		g.SetLimit(s.cfg.MaxParallelTasks)

		failedBefore := run.failedCount()

		for _, taskID := range batch {
			task, _ := graph.taskByID(taskID)
			agentID := assignments[taskID]

			g.Go(func() error {
				start := time.Now()
				runErr := s.runner.RunTask(ctx, task, agentID)

				tr := TaskResult{
					TaskID:        task.ID,
					Status:        TaskCompleted,
					AssignedAgent: agentID,
					ExecutionTime: time.Since(start),
				}
				if runErr != nil {
					tr.Status = TaskFailed
					tr.Error = runErr.Error()
				}
				run.recordTask(tr)

				if s.collector != nil {
					s.collector.DAGTaskCompleted(string(tr.Status))
				}
				if runErr != nil {
					s.logger.Warn("task failed",
						zap.String("dag_id", result.DAGID),
						zap.String("task_id", task.ID),
						zap.String("agent_id", agentID),
						zap.Error(runErr),
					)
				}
				// The in-flight batch is allowed to drain; errors are
				// recorded per task, not propagated through the group.
				return nil
			})
		}

		// Fan-in: the next batch must not start until this one resolves.
		_ = g.Wait()

		if run.failedCount() > failedBefore {
			s.logger.Warn("batch failed, skipping remaining batches",
				zap.String("dag_id", result.DAGID),
				zap.Int("batch", batchIdx),
				zap.Int("remaining_batches", len(result.Batches)-batchIdx-1),
			)
			run.setState(ExecutionFailed)
			return
		}
	}

	run.setState(ExecutionCompleted)
}

// handleContextDone maps context termination to a terminal state:
// explicit cancellation wins over deadline expiry.
func (s *Scheduler) handleContextDone(ctx context.Context, run *activeRun, assignments map[string]string) {
	select {
	case <-run.cancelled:
		run.setState(ExecutionCancelled)
		return
	default:
	}
	if ctx.Err() == context.Canceled {
		run.setState(ExecutionCancelled)
		return
	}
	run.failRemaining(assignments, ctx.Err().Error())
}

// CancelExecution requests cooperative cancellation of a running DAG.
// Valid only while the execution is Running; completed tasks are not
// rolled back.
func (s *Scheduler) CancelExecution(dagID string) bool {
	s.mu.Lock()
	run, ok := s.active[dagID]
	s.mu.Unlock()

	if !ok || run.state() != ExecutionRunning {
		return false
	}

	run.cancel()
	s.logger.Info("DAG execution cancellation requested", zap.String("dag_id", dagID))
	return true
}

// GetExecution returns the current or most recent execution result for
// a DAG ID. While the run is active the returned result is a copy; it
// does not track further progress.
func (s *Scheduler) GetExecution(dagID string) (*ExecutionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run, ok := s.active[dagID]; ok {
		return run.snapshot(), true
	}
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].DAGID == dagID {
			return s.history[i], true
		}
	}
	return nil, false
}

// ActiveExecutions lists the DAG IDs currently running.
func (s *Scheduler) ActiveExecutions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// History returns retained execution results, oldest first.
func (s *Scheduler) History() []*ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ExecutionResult(nil), s.history...)
}

// finish retires an active run into the bounded history and records
// metrics.
func (s *Scheduler) finish(dagID string, run *activeRun) {
	result := run.result

	s.mu.Lock()
	delete(s.active, dagID)
	s.history = append(s.history, result)
	if len(s.history) > maxRunHistory {
		s.history = s.history[len(s.history)-maxRunHistory:]
	}
	s.mu.Unlock()

	if s.collector != nil {
		s.collector.DAGExecutionCompleted(string(result.State), result.EndedAt.Sub(result.StartedAt).Seconds())
	}

	s.logger.Info("DAG execution finished",
		zap.String("dag_id", dagID),
		zap.String("execution_id", result.ExecutionID),
		zap.String("state", string(result.State)),
		zap.Int("completed", result.CompletedTasks),
		zap.Int("failed", result.FailedTasks),
		zap.Duration("duration", result.EndedAt.Sub(result.StartedAt)),
	)
}

func formatCycles(cycles [][]string) string {
	parts := make([]string, 0, len(cycles))
	for _, c := range cycles {
		parts = append(parts, strings.Join(c, " -> "))
	}
	return strings.Join(parts, "; ")
}
