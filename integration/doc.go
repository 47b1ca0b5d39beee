// Package integration defines the adapter contract that bridges the
// network coordinator to each external subsystem (consensus, swarm, DAG
// execution), plus the three concrete adapters.
//
// Every adapter owns its SystemIntegration snapshot exclusively and
// tracks its own success and failure counters; the success rate defaults
// to 1.0 before any operation has run, so an untested adapter reports
// optimistically healthy. Module health follows a shared state machine:
// Shutdown -> Initializing -> {Healthy | Degraded | Unhealthy}, with a
// connection error short-circuiting to Unhealthy regardless of rate.
package integration
