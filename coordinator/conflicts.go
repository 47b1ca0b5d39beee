package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/integration"
	"github.com/BaSui01/agentmesh/types"
)

// ConflictSeverity classifies how serious a reported conflict is.
type ConflictSeverity string

const (
	// SeverityLow marks routine contention.
	SeverityLow ConflictSeverity = "low"
	// SeverityMedium marks contention needing attention.
	SeverityMedium ConflictSeverity = "medium"
	// SeverityHigh marks contention that must be escalated.
	SeverityHigh ConflictSeverity = "high"
	// SeverityCritical marks contention endangering the network.
	SeverityCritical ConflictSeverity = "critical"
)

// ConflictData describes a cross-system conflict reported to the
// coordinator.
type ConflictData struct {
	// Description is a human-readable account of the conflict.
	Description string

	// Systems lists the system names involved.
	Systems []string

	// Agents lists the agent IDs contending.
	Agents []string

	// Severity is the reporter's assessment.
	Severity ConflictSeverity
}

// ConflictResolution is the coordinator's ruling on a conflict.
type ConflictResolution struct {
	RequiresEscalation bool   `json:"requires_escalation"`
	Resolution         string `json:"resolution"`
	WinningAgent       string `json:"winning_agent,omitempty"`
	DecidedBy          string `json:"decided_by"`
}

// HandleCrossSystemConflicts classifies a conflict and resolves it.
// Conflicts spanning multiple systems or agents, or explicitly marked
// high or critical, require escalation and are delegated to the
// consensus adapter. Low-complexity conflicts resolve deterministically:
// the first-registered involved agent wins.
func (c *Coordinator) HandleCrossSystemConflicts(ctx context.Context, conflict *ConflictData) (*ConflictResolution, error) {
	escalate := len(conflict.Systems) > 1 ||
		len(conflict.Agents) > 1 ||
		conflict.Severity == SeverityHigh ||
		conflict.Severity == SeverityCritical

	c.logger.Info("handling cross-system conflict",
		zap.String("description", conflict.Description),
		zap.Strings("systems", conflict.Systems),
		zap.Strings("agents", conflict.Agents),
		zap.String("severity", string(conflict.Severity)),
		zap.Bool("escalate", escalate),
	)

	if !escalate {
		winner := c.firstRegisteredAgent(conflict.Agents)
		return &ConflictResolution{
			RequiresEscalation: false,
			Resolution:         "first-registered agent retains the resource",
			WinningAgent:       winner,
			DecidedBy:          "coordinator",
		}, nil
	}

	consensus := c.consensusAdapter()
	if consensus == nil {
		return nil, types.NewError(types.ErrIntegrationUnavailable,
			"conflict requires escalation but no consensus integration is registered")
	}

	options := conflict.Agents
	if len(options) == 0 {
		options = conflict.Systems
	}

	outcome, err := consensus.Coordinate(ctx, &integration.CoordinationRequest{
		RequestID: fmt.Sprintf("conflict-%s", conflict.Severity),
		Objective: conflict.Description,
		Agents:    c.reg.ListAgents(),
		Options:   options,
	})
	if err != nil {
		return nil, err
	}

	resolution := &ConflictResolution{
		RequiresEscalation: true,
		Resolution:         "resolved by consensus vote",
		DecidedBy:          "consensus",
	}
	if selected, ok := outcome.Details["selected"].(string); ok {
		resolution.WinningAgent = selected
	}
	return resolution, nil
}

// firstRegisteredAgent picks the involved agent with the earliest
// registration time; unknown agents fall back to list order.
func (c *Coordinator) firstRegisteredAgent(agents []string) string {
	if len(agents) == 0 {
		return ""
	}

	winner := agents[0]
	var winnerKnown bool
	var winnerCreated int64

	for _, id := range agents {
		info, ok := c.reg.GetAgent(id)
		if !ok {
			continue
		}
		created := info.CreatedAt.UnixNano()
		if !winnerKnown || created < winnerCreated {
			winner = id
			winnerKnown = true
			winnerCreated = created
		}
	}
	return winner
}

// consensusAdapter finds the registered consensus integration, if any.
func (c *Coordinator) consensusAdapter() integration.Integration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, name := range c.adapterOrder {
		if c.adapters[name].SystemType() == types.SystemConsensus {
			return c.adapters[name]
		}
	}
	return nil
}
