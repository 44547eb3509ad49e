package core

import (
	"math"

	"github.com/signalsfoundry/swarm-simulator/model"
)

// nearestFriendlyDistance returns the smallest distance from hostile to self
// or any live friendly in others. self is always part of the set, so the
// minimum is never taken over nothing.
func nearestFriendlyDistance(hostile, self *model.Agent, others []*model.Agent) float64 {
	best := math.Inf(1)
	if self.IsLive() {
		best = self.DistanceTo(hostile)
	}
	for _, f := range others {
		if !f.IsLive() || !f.IsFriendly() {
			continue
		}
		if d := f.DistanceTo(hostile); d < best {
			best = d
		}
	}
	return best
}

// firstWithin returns the first candidate strictly closer to a than radius.
func firstWithin(a *model.Agent, candidates []*model.Agent, radius float64) (*model.Agent, float64, bool) {
	for _, c := range candidates {
		if d := a.DistanceTo(c); d < radius {
			return c, d, true
		}
	}
	return nil, 0, false
}
