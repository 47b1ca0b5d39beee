package registry

import (
	"sort"

	"github.com/BaSui01/agentmesh/types"
)

// Scoring heuristics. The blending weights and bonus caps are tunable
// constants carried over from operational tuning, not derived values.
const (
	baseScore           = 0.5
	recentMetricWindow  = 10
	minLoadFactor       = 0.1
	capabilityBonusCap  = 0.2
	capabilityBonusStep = 0.05
)

// statusWeights favors available agents and rules out offline ones.
var statusWeights = map[types.AgentStatus]float64{
	types.AgentStatusActive:  1.0,
	types.AgentStatusIdle:    0.8,
	types.AgentStatusBusy:    0.6,
	types.AgentStatusError:   0.2,
	types.AgentStatusOffline: 0.0,
}

// AgentScore computes a ranking score in [0,1] for an agent. The base
// score is blended with the mean of the last recentMetricWindow metric
// values, weighted by status, then scaled down for loaded agents.
func AgentScore(info *types.AgentInfo) float64 {
	score := baseScore

	if n := len(info.PerformanceHistory); n > 0 {
		start := n - recentMetricWindow
		if start < 0 {
			start = 0
		}
		recent := info.PerformanceHistory[start:]
		var sum float64
		for _, m := range recent {
			sum += m.Value
		}
		score = (score + sum/float64(len(recent))) / 2
	}

	score *= statusWeights[info.Status]

	if info.ResourceUsage != nil {
		loadFactor := 1 - info.ResourceUsage.CPUPercent/100
		if loadFactor < minLoadFactor {
			loadFactor = minLoadFactor
		}
		score *= loadFactor
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// sortByScore orders agents by score descending, breaking ties by ID so
// results are deterministic.
func sortByScore(agents []*types.AgentInfo) {
	sort.SliceStable(agents, func(i, j int) bool {
		si, sj := AgentScore(agents[i]), AgentScore(agents[j])
		if si != sj {
			return si > sj
		}
		return agents[i].ID < agents[j].ID
	})
}

// CapabilityMatch finds agents providing every required capability, then
// re-ranks them by preferred-capability overlap plus a small breadth
// bonus for agents with many capabilities.
func (r *Registry) CapabilityMatch(required, preferred []string) []*types.AgentInfo {
	matched := r.DiscoverAgents(Filter{Capabilities: required})
	if len(matched) == 0 {
		return nil
	}

	rank := func(info *types.AgentInfo) float64 {
		overlap := 0
		for _, p := range preferred {
			if info.HasCapability(p) {
				overlap++
			}
		}
		denom := len(preferred)
		if denom < 1 {
			denom = 1
		}
		breadth := capabilityBonusStep * float64(len(info.Capabilities))
		if breadth > capabilityBonusCap {
			breadth = capabilityBonusCap
		}
		return 1.0 + float64(overlap)/float64(denom) + breadth
	}

	sort.SliceStable(matched, func(i, j int) bool {
		ri, rj := rank(matched[i]), rank(matched[j])
		if ri != rj {
			return ri > rj
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}
