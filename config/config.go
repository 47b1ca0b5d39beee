// Package config provides the flat configuration surface for the
// agentmesh core. All values are supplied at construction; there is no
// live reload.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds tunables for the registry, scheduler, adapters, and
// coordinator.
type Config struct {
	// AgentTimeoutSeconds is how long an agent may go without a
	// heartbeat or update before the cleanup loop evicts it.
	AgentTimeoutSeconds int `yaml:"agent_timeout_seconds"`

	// CleanupIntervalSeconds is the interval of the registry eviction loop.
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds"`

	// MaxParallelTasks bounds concurrent task execution within a DAG batch.
	MaxParallelTasks int `yaml:"max_parallel_tasks"`

	// MaxCoordinationOverheadMs is the overhead ceiling used by network
	// health monitoring. Average overhead above this downgrades the
	// coordination status.
	MaxCoordinationOverheadMs float64 `yaml:"max_coordination_overhead_ms"`

	// ConfidenceThreshold is the minimum confidence for consensus
	// decisions to be accepted without escalation.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// MaxConsensusParticipants caps the number of agents engaged in a
	// single consensus session.
	MaxConsensusParticipants int `yaml:"max_consensus_participants"`

	// MaxSwarmSize caps the number of agents in a single swarm deployment.
	MaxSwarmSize int `yaml:"max_swarm_size"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		AgentTimeoutSeconds:       300,
		CleanupIntervalSeconds:    60,
		MaxParallelTasks:          10,
		MaxCoordinationOverheadMs: 1000,
		ConfidenceThreshold:       0.7,
		MaxConsensusParticipants:  21,
		MaxSwarmSize:              50,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.AgentTimeoutSeconds <= 0 {
		return fmt.Errorf("agent_timeout_seconds must be positive, got %d", c.AgentTimeoutSeconds)
	}
	if c.CleanupIntervalSeconds <= 0 {
		return fmt.Errorf("cleanup_interval_seconds must be positive, got %d", c.CleanupIntervalSeconds)
	}
	if c.MaxParallelTasks <= 0 {
		return fmt.Errorf("max_parallel_tasks must be positive, got %d", c.MaxParallelTasks)
	}
	if c.MaxCoordinationOverheadMs <= 0 {
		return fmt.Errorf("max_coordination_overhead_ms must be positive, got %f", c.MaxCoordinationOverheadMs)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %f", c.ConfidenceThreshold)
	}
	if c.MaxConsensusParticipants <= 0 {
		return fmt.Errorf("max_consensus_participants must be positive, got %d", c.MaxConsensusParticipants)
	}
	if c.MaxSwarmSize <= 0 {
		return fmt.Errorf("max_swarm_size must be positive, got %d", c.MaxSwarmSize)
	}
	return nil
}

// Load reads a YAML config file, applying defaults for missing keys.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
