// Package types defines the shared data model for the agentmesh core:
// agent descriptors, status enums, integration snapshots, and the
// structured error taxonomy used across the registry, scheduler, and
// coordinator packages.
package types
