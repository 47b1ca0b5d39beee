package coordinator

import (
	"sort"

	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/types"
)

// tasksPerAgent is the planning assumption for allocation advice: how
// many forecast tasks one agent absorbs. Tunable constant.
const tasksPerAgent = 10

// WorkloadForecast projects upcoming task volume per system.
type WorkloadForecast struct {
	// ExpectedTasks maps each system type to its forecast task count.
	ExpectedTasks map[types.SystemType]int
}

// AllocationAction is the recommended direction for a system's pool.
type AllocationAction string

const (
	// ActionScaleUp recommends adding agents.
	ActionScaleUp AllocationAction = "scale_up"
	// ActionScaleDown recommends removing agents.
	ActionScaleDown AllocationAction = "scale_down"
	// ActionHold recommends no change.
	ActionHold AllocationAction = "hold"
)

// AllocationRecommendation is one system's advisory sizing proposal.
type AllocationRecommendation struct {
	System            types.SystemType `json:"system"`
	CurrentAgents     int              `json:"current_agents"`
	RecommendedAgents int              `json:"recommended_agents"`
	Action            AllocationAction `json:"action"`
}

// AllocationResult is the full advisory allocation proposal. The
// coordinator never mutates agent counts itself.
type AllocationResult struct {
	Recommendations []AllocationRecommendation `json:"recommendations"`
}

// OptimizeAgentAllocation compares forecast task volume against the
// current registry population and proposes a scaling strategy per
// system. Advisory only.
func (c *Coordinator) OptimizeAgentAllocation(forecast *WorkloadForecast) *AllocationResult {
	stats := c.reg.Stats()
	result := &AllocationResult{}

	for system, expected := range forecast.ExpectedTasks {
		current := stats.BySystem[system]
		recommended := (expected + tasksPerAgent - 1) / tasksPerAgent
		if recommended < 1 && expected > 0 {
			recommended = 1
		}

		action := ActionHold
		if recommended > current {
			action = ActionScaleUp
		} else if recommended < current {
			action = ActionScaleDown
		}

		result.Recommendations = append(result.Recommendations, AllocationRecommendation{
			System:            system,
			CurrentAgents:     current,
			RecommendedAgents: recommended,
			Action:            action,
		})

		c.logger.Debug("allocation recommendation",
			zap.String("system", string(system)),
			zap.Int("current", current),
			zap.Int("recommended", recommended),
			zap.String("action", string(action)),
		)
	}

	// Map iteration order is random; keep the output stable.
	sort.Slice(result.Recommendations, func(i, j int) bool {
		return result.Recommendations[i].System < result.Recommendations[j].System
	})
	return result
}
