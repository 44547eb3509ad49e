package core

import (
	"math"
	"sort"

	"github.com/signalsfoundry/swarm-simulator/model"
)

const (
	// pursuitSpeedFraction of MaxSpeed is flown toward a claimed hostile.
	pursuitSpeedFraction = 0.95
	// pursuitFormationBlend keeps a little formation influence while
	// pursuing.
	pursuitFormationBlend = 0.05
)

// Decision is the outcome of one friendly's turn in the decision pass.
type Decision struct {
	// Velocity is the realizable velocity for the next integration step.
	Velocity model.Vec2
	// Desired is the velocity the agent asked for before limits.
	Desired model.Vec2
	// Formation is the separation + cohesion vector.
	Formation model.Vec2
	// TargetID is the hostile claimed this tick, or model.NoTarget.
	TargetID model.AgentID
	// Distance to the claimed hostile when TargetID is set.
	Distance float64
}

// Claimed reports whether the decision locked a hostile.
func (d Decision) Claimed() bool { return d.TargetID != model.NoTarget }

// Steerer runs the per-friendly targeting and steering algorithm.
type Steerer struct {
	params Params
}

// NewSteerer returns a steerer for the given parameters.
func NewSteerer(p Params) *Steerer { return &Steerer{params: p} }

// Decide senses the world around agent and picks its new velocity.
//
// The agent's Velocity is left untouched; the caller applies
// Decision.Velocity once every friendly has decided. TargetID on the agent
// and Claimed on the chosen hostile are written immediately so later
// agents in the same tick see the claim.
func (s *Steerer) Decide(agent *model.Agent, agents []*model.Agent) Decision {
	return s.DecideInView(agent, LocalView(agent, agents, s.params.SenseRadius))
}

// DecideInView is Decide with a precomputed view.
func (s *Steerer) DecideInView(agent *model.Agent, view View) Decision {
	formation := FormationVector(agent, view.Friendlies, s.params)

	agent.TargetID = model.NoTarget
	d := Decision{
		Desired:   formation,
		Formation: formation,
		TargetID:  model.NoTarget,
	}

	if target, dist, ok := s.claimTarget(agent, view); ok {
		d.TargetID = target.ID
		d.Distance = dist
		d.Desired = s.interceptVelocity(agent, target).Add(formation.Scale(pursuitFormationBlend))
	}

	d.Velocity = SteerVelocity(agent.Velocity, d.Desired, s.params)
	return d
}

// claimTarget walks the available hostiles nearest-first and claims the
// first one that is a threat and for which agent is, within ClaimTolerance,
// the closest live friendly it knows about.
func (s *Steerer) claimTarget(agent *model.Agent, view View) (*model.Agent, float64, bool) {
	if len(view.Hostiles) == 0 {
		return nil, 0, false
	}

	available := make([]*model.Agent, 0, len(view.Hostiles))
	for _, h := range view.Hostiles {
		if h.IsLive() && !h.Claimed {
			available = append(available, h)
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		return agent.DistanceTo(available[i]) < agent.DistanceTo(available[j])
	})

	for _, h := range available {
		dist := agent.DistanceTo(h)
		if dist >= s.params.ThreatRadius {
			continue
		}
		closest := nearestFriendlyDistance(h, agent, view.Friendlies)
		if math.Abs(dist-closest) < s.params.ClaimTolerance && !h.Claimed {
			h.Claimed = true
			agent.TargetID = h.ID
			return h, dist, true
		}
	}
	return nil, 0, false
}

// interceptVelocity aims at where the hostile will be after LeadTime if it
// keeps its velocity.
func (s *Steerer) interceptVelocity(agent, hostile *model.Agent) model.Vec2 {
	future := hostile.Position.Add(hostile.Velocity.Scale(s.params.LeadTime.Seconds()))
	dir := future.Sub(agent.Position).Normalize()
	return dir.Scale(s.params.MaxSpeed * pursuitSpeedFraction)
}
