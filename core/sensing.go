package core

import "github.com/signalsfoundry/swarm-simulator/model"

// View is what one agent perceives in a single tick.
type View struct {
	Friendlies []*model.Agent
	Hostiles   []*model.Agent
}

// LocalView partitions every other live agent strictly closer than radius
// into friendlies and hostiles. The observer never sees itself and nothing
// is remembered between calls.
func LocalView(observer *model.Agent, agents []*model.Agent, radius float64) View {
	var v View
	for _, a := range agents {
		if inView(observer, a, radius) {
			v.add(a)
		}
	}
	return v
}

func inView(observer, a *model.Agent, radius float64) bool {
	if a.ID == observer.ID || a.Neutralized {
		return false
	}
	return observer.DistanceTo(a) < radius
}

func (v *View) add(a *model.Agent) {
	switch a.Faction {
	case model.FactionHostile:
		v.Hostiles = append(v.Hostiles, a)
	case model.FactionFriendly:
		v.Friendlies = append(v.Friendlies, a)
	}
}
