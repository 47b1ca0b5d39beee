package integration

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/registry"
	"github.com/BaSui01/agentmesh/types"
)

// Proposal describes a decision put to the consensus subsystem.
type Proposal struct {
	// Topic identifies what is being decided.
	Topic string

	// Options are the choices on the table. At least one is required.
	Options []string

	// Participants are the agents taking part in the vote.
	Participants []*types.AgentInfo

	// Preferences maps agent IDs to their declared option, if known.
	// Agents without a declared preference abstain.
	Preferences map[string]string
}

// Decision is the outcome of a consensus session.
type Decision struct {
	Topic        string         `json:"topic"`
	Selected     string         `json:"selected"`
	Confidence   float64        `json:"confidence"`
	Votes        map[string]int `json:"votes"`
	Participants []string       `json:"participants"`
	Escalated    bool           `json:"escalated"`
}

// DecisionEngine is the pluggable voting logic. The default engine is a
// simple tally; real consensus protocols plug in here.
type DecisionEngine interface {
	Decide(ctx context.Context, proposal *Proposal) (*Decision, error)
}

// MajorityEngine tallies declared preferences and selects the option
// with the most votes, breaking ties by option order. Confidence is the
// winning share of participants.
type MajorityEngine struct{}

// Decide implements DecisionEngine.
func (MajorityEngine) Decide(ctx context.Context, proposal *Proposal) (*Decision, error) {
	if len(proposal.Options) == 0 {
		return nil, types.NewError(types.ErrValidation, "proposal %q has no options", proposal.Topic)
	}

	votes := make(map[string]int, len(proposal.Options))
	for _, opt := range proposal.Options {
		votes[opt] = 0
	}
	for _, agent := range proposal.Participants {
		if opt, ok := proposal.Preferences[agent.ID]; ok {
			if _, valid := votes[opt]; valid {
				votes[opt]++
			}
		}
	}

	selected := proposal.Options[0]
	for _, opt := range proposal.Options {
		if votes[opt] > votes[selected] {
			selected = opt
		}
	}

	confidence := 0.0
	if n := len(proposal.Participants); n > 0 {
		confidence = float64(votes[selected]) / float64(n)
	}

	ids := make([]string, 0, len(proposal.Participants))
	for _, a := range proposal.Participants {
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)

	return &Decision{
		Topic:        proposal.Topic,
		Selected:     selected,
		Confidence:   confidence,
		Votes:        votes,
		Participants: ids,
	}, nil
}

// ConsensusIntegration bridges the coordinator to the consensus/voting
// subsystem.
type ConsensusIntegration struct {
	*BaseIntegration

	cfg    *config.Config
	reg    *registry.Registry
	engine DecisionEngine
}

// NewConsensusIntegration creates the consensus adapter. A nil engine
// defaults to MajorityEngine.
func NewConsensusIntegration(cfg *config.Config, reg *registry.Registry, engine DecisionEngine, logger *zap.Logger) *ConsensusIntegration {
	if cfg == nil {
		cfg = config.Default()
	}
	if engine == nil {
		engine = MajorityEngine{}
	}
	return &ConsensusIntegration{
		BaseIntegration: NewBaseIntegration("consensus", types.SystemConsensus, logger),
		cfg:             cfg,
		reg:             reg,
		engine:          engine,
	}
}

// Start connects the adapter.
func (c *ConsensusIntegration) Start(ctx context.Context) error {
	c.markConnecting()
	c.markConnected()
	c.Logger().Info("consensus integration started",
		zap.Int("max_participants", c.cfg.MaxConsensusParticipants),
	)
	return nil
}

// Stop disconnects the adapter.
func (c *ConsensusIntegration) Stop(ctx context.Context) error {
	c.markDisconnected()
	c.Logger().Info("consensus integration stopped")
	return nil
}

// ProposeDecision runs one consensus session. Participants beyond the
// configured cap are dropped in agent-score order (best kept). A
// decision below the confidence threshold is flagged as escalated.
func (c *ConsensusIntegration) ProposeDecision(ctx context.Context, proposal *Proposal) (*Decision, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}

	start := time.Now()

	if max := c.cfg.MaxConsensusParticipants; len(proposal.Participants) > max {
		trimmed := append([]*types.AgentInfo(nil), proposal.Participants...)
		sort.SliceStable(trimmed, func(i, j int) bool {
			return registry.AgentScore(trimmed[i]) > registry.AgentScore(trimmed[j])
		})
		proposal = &Proposal{
			Topic:        proposal.Topic,
			Options:      proposal.Options,
			Participants: trimmed[:max],
			Preferences:  proposal.Preferences,
		}
	}

	ids := agentIDs(proposal.Participants)
	c.engageAgents(ids)
	defer c.releaseAgents(ids)

	decision, err := c.engine.Decide(ctx, proposal)
	c.recordOutcome(err == nil, time.Since(start))
	if err != nil {
		c.Logger().Warn("consensus session failed",
			zap.String("topic", proposal.Topic),
			zap.Error(err),
		)
		return nil, err
	}

	decision.Escalated = decision.Confidence < c.cfg.ConfidenceThreshold

	c.Logger().Info("consensus decision reached",
		zap.String("topic", decision.Topic),
		zap.String("selected", decision.Selected),
		zap.Float64("confidence", decision.Confidence),
		zap.Bool("escalated", decision.Escalated),
	)
	return decision, nil
}

// Coordinate implements Integration by running a consensus session over
// the request's options and agents.
func (c *ConsensusIntegration) Coordinate(ctx context.Context, req *CoordinationRequest) (*CoordinationOutcome, error) {
	start := time.Now()

	options := req.Options
	if len(options) == 0 {
		options = []string{"proceed", "defer"}
	}

	decision, err := c.ProposeDecision(ctx, &Proposal{
		Topic:        req.Objective,
		Options:      options,
		Participants: req.Agents,
		Preferences:  req.Preferences,
	})
	if err != nil {
		return nil, err
	}

	return &CoordinationOutcome{
		System:        c.Name(),
		Success:       true,
		AgentsEngaged: decision.Participants,
		DurationMs:    float64(time.Since(start).Milliseconds()),
		Details: map[string]any{
			"selected":   decision.Selected,
			"confidence": decision.Confidence,
			"escalated":  decision.Escalated,
			"votes":      decision.Votes,
		},
	}, nil
}

var _ Integration = (*ConsensusIntegration)(nil)
