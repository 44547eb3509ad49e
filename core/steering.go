package core

import "github.com/signalsfoundry/swarm-simulator/model"

const (
	separationWeight = 2.0
	cohesionWeight   = 0.5
	// separationEpsilon keeps the inverse-square push finite when two
	// friendlies share a position.
	separationEpsilon = 1e-6
)

// FormationVector combines separation from friendlies closer than
// SafeSeparation with cohesion toward the centroid of all in-range
// friendlies. It is zero when no friendly is in range.
func FormationVector(agent *model.Agent, friendlies []*model.Agent, p Params) model.Vec2 {
	if len(friendlies) == 0 {
		return model.Zero
	}

	separation := model.Zero
	for _, other := range friendlies {
		d := agent.DistanceTo(other)
		if d < p.SafeSeparation {
			away := agent.Position.Sub(other.Position)
			separation = separation.Add(away.Scale(1 / (d*d + separationEpsilon)))
		}
	}

	cohesion := centroid(friendlies).Sub(agent.Position)

	return separation.Scale(separationWeight).Add(cohesion.Scale(cohesionWeight))
}

// SteerVelocity turns a desired velocity into one the airframe can reach in
// a single tick: the change is limited to MaxAcceleration and the result to
// MaxSpeed.
func SteerVelocity(current, desired model.Vec2, p Params) model.Vec2 {
	steering := desired.Sub(current).ClampMagnitude(p.MaxAcceleration)
	next := current.Add(steering.Scale(p.dt()))
	return next.ClampMagnitude(p.MaxSpeed)
}

func centroid(agents []*model.Agent) model.Vec2 {
	sum := model.Zero
	for _, a := range agents {
		sum = sum.Add(a.Position)
	}
	return sum.Scale(1 / float64(len(agents)))
}
