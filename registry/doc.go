// Package registry provides the in-memory agent registry: registration,
// capability-indexed discovery, performance tracking, scoring, and
// stale-agent eviction.
//
// The registry is the only component in the core whose state is mutated
// from multiple call sites. All maps and indexes are guarded by a single
// mutex; reads hand out copies so callers never observe a partially
// updated index.
//
// Create and start a registry:
//
//	reg := registry.New(config.Default(), logger)
//	reg.Start(ctx)
//	defer reg.Stop()
//
// Register and discover agents:
//
//	reg.RegisterAgent("worker-1", types.SystemDAG, []string{"exec"}, nil)
//	agents := reg.DiscoverAgents(registry.Filter{Capabilities: []string{"exec"}})
package registry
