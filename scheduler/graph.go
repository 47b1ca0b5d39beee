package scheduler

import (
	"sort"

	"github.com/BaSui01/agentmesh/types"
)

// Task is a single unit of work in a task graph. Action is an opaque
// identifier dispatched by the caller's task runner.
type Task struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// TaskGraph is a directed acyclic dependency graph over tasks. The
// dependency map points from a task to its prerequisites.
type TaskGraph struct {
	// tasks maps task IDs to task definitions.
	tasks map[string]Task

	// order preserves task insertion order for deterministic traversal.
	order []string

	// dependencies maps a task ID to the set of prerequisite task IDs.
	dependencies map[string][]string
}

// NewTaskGraph builds a graph from a task list and a dependency map.
// The graph is not validated; call Validate before use.
func NewTaskGraph(tasks []Task, dependencies map[string][]string) *TaskGraph {
	g := &TaskGraph{
		tasks:        make(map[string]Task, len(tasks)),
		dependencies: make(map[string][]string, len(dependencies)),
	}
	for _, t := range tasks {
		if _, seen := g.tasks[t.ID]; !seen {
			g.order = append(g.order, t.ID)
		}
		g.tasks[t.ID] = t
	}
	for id, deps := range dependencies {
		g.dependencies[id] = append([]string(nil), deps...)
	}
	return g
}

// Tasks returns the tasks in insertion order.
func (g *TaskGraph) Tasks() []Task {
	out := make([]Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id])
	}
	return out
}

// Dependencies returns the prerequisites of a task.
func (g *TaskGraph) Dependencies(taskID string) []string {
	return g.dependencies[taskID]
}

// Len returns the number of tasks in the graph.
func (g *TaskGraph) Len() int {
	return len(g.tasks)
}

// taskByID looks up a task definition.
func (g *TaskGraph) taskByID(id string) (Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Validate checks that every task has a non-empty ID and action, and
// that every dependency references an existing task.
func (g *TaskGraph) Validate() error {
	if len(g.tasks) == 0 {
		return types.NewError(types.ErrValidation, "task graph has no tasks")
	}
	for _, id := range g.order {
		t := g.tasks[id]
		if t.ID == "" {
			return types.NewError(types.ErrValidation, "task has empty id")
		}
		if t.Action == "" {
			return types.NewError(types.ErrValidation, "task %s has empty action", t.ID)
		}
	}
	for id, deps := range g.dependencies {
		if _, ok := g.tasks[id]; !ok {
			return types.NewError(types.ErrValidation, "dependency map references unknown task %s", id)
		}
		for _, dep := range deps {
			if _, ok := g.tasks[dep]; !ok {
				return types.NewError(types.ErrValidation, "task %s depends on unknown task %s", id, dep)
			}
		}
	}
	return nil
}

// DetectCycles runs a depth-first sweep over the dependency edges,
// tracking the recursion stack. Revisiting a node already on the stack
// records the cycle slice from that node's first occurrence to the
// current node. The sweep reports every cycle it encounters; whenever
// any cycle exists, at least one is returned.
func (g *TaskGraph) DetectCycles() (bool, [][]string) {
	visited := make(map[string]bool, len(g.tasks))
	onStack := make(map[string]bool, len(g.tasks))
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		deps := append([]string(nil), g.dependencies[id]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if onStack[dep] {
				// Cycle: slice from dep's first stack occurrence to here.
				start := 0
				for i, n := range stack {
					if n == dep {
						start = i
						break
					}
				}
				cycle := append([]string(nil), stack[start:]...)
				cycles = append(cycles, cycle)
				continue
			}
			if !visited[dep] {
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	roots := append([]string(nil), g.order...)
	sort.Strings(roots)
	for _, id := range roots {
		if !visited[id] {
			visit(id)
		}
	}

	return len(cycles) > 0, cycles
}

// TopologicalBatches produces batches of tasks via Kahn's algorithm: at
// each step the batch is the set of all tasks whose prerequisites have
// resolved, the unit of parallelism for execution. Callers must check
// acyclicity first; on a cyclic graph the remaining tasks can never
// reach zero in-degree and a CYCLIC_DEPENDENCY error is returned.
func (g *TaskGraph) TopologicalBatches() ([][]string, error) {
	inDegree := make(map[string]int, len(g.tasks))
	dependents := make(map[string][]string, len(g.tasks))

	for _, id := range g.order {
		inDegree[id] = len(g.dependencies[id])
		for _, dep := range g.dependencies[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	remaining := len(g.tasks)
	var batches [][]string

	for remaining > 0 {
		var batch []string
		for _, id := range g.order {
			if deg, ok := inDegree[id]; ok && deg == 0 {
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			return nil, types.NewError(types.ErrCyclicDependency,
				"no zero in-degree task among %d remaining, graph is cyclic", remaining)
		}
		sort.Strings(batch)

		for _, id := range batch {
			delete(inDegree, id)
			for _, dependent := range dependents[id] {
				if _, ok := inDegree[dependent]; ok {
					inDegree[dependent]--
				}
			}
		}
		remaining -= len(batch)
		batches = append(batches, batch)
	}

	return batches, nil
}
