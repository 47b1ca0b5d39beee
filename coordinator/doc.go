// Package coordinator provides the network coordinator: the component
// that owns global network state, routes multi-system task requests to
// the right integration adapters, aggregates coordination overhead and
// success rates, resolves cross-system conflicts, and monitors network
// health.
//
// The coordinator's NetworkState is mutated only by the coordinator's
// own methods; adapters and the registry own their respective state, so
// no cross-component locking is needed.
package coordinator
