// Package scheduler provides DAG task-graph validation, cycle detection,
// topological batch ordering, agent assignment, and bounded-parallel
// batch execution.
//
// A task graph is constructed fresh per execution request, validated,
// converted into an ordered sequence of parallel-eligible batches, then
// discarded; results persist only in the scheduler's bounded run history.
//
// The core ordering guarantee: within a batch, tasks run concurrently in
// unspecified order; across batches, order is strict: no task from
// batch n+1 starts before batch n has fully resolved.
package scheduler
