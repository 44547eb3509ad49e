package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/swarm-simulator/model"
)

var (
	ErrDuplicateAgent = errors.New("agent id already used")
	ErrNilAgent       = errors.New("nil agent")
	ErrInvariant      = errors.New("world invariant violated")
)

// World is the arena of agents owned by the engine. Agents keep their
// insertion order, which is also the order in which friendlies resolve
// claims.
//
// World is not safe for concurrent use; observers read snapshots instead.
type World struct {
	agents []*model.Agent
	index  map[model.AgentID]int
	// seen holds every id ever added so a removed id is never re-admitted.
	seen map[model.AgentID]struct{}
}

// NewWorld builds a world from agents in the given order.
func NewWorld(agents ...*model.Agent) (*World, error) {
	w := &World{
		agents: make([]*model.Agent, 0, len(agents)),
		index:  make(map[model.AgentID]int, len(agents)),
		seen:   make(map[model.AgentID]struct{}, len(agents)),
	}
	for _, a := range agents {
		if err := w.Add(a); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Add appends an agent. Ids are unique over the lifetime of the world.
func (w *World) Add(a *model.Agent) error {
	if a == nil {
		return fmt.Errorf("World.Add: %w", ErrNilAgent)
	}
	if _, dup := w.seen[a.ID]; dup {
		return fmt.Errorf("World.Add: %w: %d", ErrDuplicateAgent, a.ID)
	}
	if !a.Position.IsFinite() || !a.Velocity.IsFinite() {
		return fmt.Errorf("World.Add %d: %w", a.ID, model.ErrNonFiniteState)
	}
	w.seen[a.ID] = struct{}{}
	w.index[a.ID] = len(w.agents)
	w.agents = append(w.agents, a)
	return nil
}

// Agents returns the arena slice in processing order. Callers outside the
// engine must treat it as read-only.
func (w *World) Agents() []*model.Agent { return w.agents }

// Agent looks up an agent by id.
func (w *World) Agent(id model.AgentID) (*model.Agent, bool) {
	i, ok := w.index[id]
	if !ok {
		return nil, false
	}
	return w.agents[i], true
}

// Len returns the number of agents in the world, neutralized ones included.
func (w *World) Len() int { return len(w.agents) }

// LiveCount returns how many non-neutralized agents of the faction remain.
func (w *World) LiveCount(f model.Faction) int {
	n := 0
	for _, a := range w.agents {
		if a.Faction == f && a.IsLive() {
			n++
		}
	}
	return n
}

// Snapshot returns value copies of every agent.
func (w *World) Snapshot() []model.Agent {
	out := make([]model.Agent, len(w.agents))
	for i, a := range w.agents {
		out[i] = *a
	}
	return out
}

// removeWhere drops matching agents, preserving the order of the rest, and
// returns the removed ids.
func (w *World) removeWhere(match func(*model.Agent) bool) []model.AgentID {
	var removed []model.AgentID
	kept := w.agents[:0]
	for _, a := range w.agents {
		if match(a) {
			removed = append(removed, a.ID)
			delete(w.index, a.ID)
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(w.agents); i++ {
		w.agents[i] = nil
	}
	w.agents = kept
	if len(removed) > 0 {
		for i, a := range w.agents {
			w.index[a.ID] = i
		}
	}
	return removed
}

// CheckInvariants verifies the state a tick leaves behind. Every hostile is
// claimed by at most one friendly and claim flags only sit on hostiles. A
// friendly target must name a claimed hostile that is live, or one that was
// neutralized by the engagement pass of the same tick (its blink timer has
// not started). All kinematic state must be finite.
func (w *World) CheckInvariants() error {
	claimants := make(map[model.AgentID]model.AgentID)
	for _, a := range w.agents {
		if !a.Position.IsFinite() || !a.Velocity.IsFinite() {
			return fmt.Errorf("%w: agent %d has non-finite state", ErrInvariant, a.ID)
		}
		if a.IsFriendly() && a.Claimed {
			return fmt.Errorf("%w: friendly %d carries a claim flag", ErrInvariant, a.ID)
		}
		if !a.IsFriendly() || a.TargetID == model.NoTarget {
			continue
		}
		target, ok := w.Agent(a.TargetID)
		if !ok {
			return fmt.Errorf("%w: friendly %d targets missing agent %d", ErrInvariant, a.ID, a.TargetID)
		}
		if !target.IsHostile() || !target.Claimed {
			return fmt.Errorf("%w: friendly %d targets unclaimed or non-hostile agent %d", ErrInvariant, a.ID, a.TargetID)
		}
		if target.Neutralized && target.BlinkTimer > 0 {
			return fmt.Errorf("%w: friendly %d still targets hostile %d neutralized %v ago", ErrInvariant, a.ID, a.TargetID, target.BlinkTimer)
		}
		if other, dup := claimants[a.TargetID]; dup {
			return fmt.Errorf("%w: hostile %d claimed by both %d and %d", ErrInvariant, a.TargetID, other, a.ID)
		}
		claimants[a.TargetID] = a.ID
	}
	return nil
}
