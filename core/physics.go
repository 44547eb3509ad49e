package core

import (
	"time"

	"github.com/signalsfoundry/swarm-simulator/model"
)

// integrate advances every live agent by one Euler step. Neutralized agents
// stay put and accumulate blink time instead.
func integrate(agents []*model.Agent, dt time.Duration) {
	seconds := dt.Seconds()
	for _, a := range agents {
		if a.Neutralized {
			a.BlinkTimer += dt
			continue
		}
		a.Position = a.Position.Add(a.Velocity.Scale(seconds))
	}
}

// resolveEngagements pairs each live hostile with the first live friendly
// inside radius. The hostile is neutralized and the friendly is marked for
// removal. A marked friendly stays live until the removals are applied, so
// it can still take out other hostiles in the same tick.
func resolveEngagements(agents []*model.Agent, radius float64) ([]model.Engagement, map[model.AgentID]struct{}) {
	friendlies := make([]*model.Agent, 0, len(agents))
	for _, a := range agents {
		if a.IsFriendly() && a.IsLive() {
			friendlies = append(friendlies, a)
		}
	}

	lost := make(map[model.AgentID]struct{})
	var engagements []model.Engagement
	for _, h := range agents {
		if !h.IsHostile() || !h.IsLive() {
			continue
		}
		f, d, ok := firstWithin(h, friendlies, radius)
		if !ok {
			continue
		}
		h.Neutralized = true
		lost[f.ID] = struct{}{}
		engagements = append(engagements, model.Engagement{HostileID: h.ID, FriendlyID: f.ID, Distance: d})
	}
	return engagements, lost
}
