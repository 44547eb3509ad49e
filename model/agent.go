package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Faction separates the two sides of an engagement.
type Faction int

const (
	FactionFriendly Faction = iota + 1
	FactionHostile
)

// String returns the scenario spelling of the faction.
func (f Faction) String() string {
	switch f {
	case FactionFriendly:
		return "FRIENDLY"
	case FactionHostile:
		return "HOSTILE"
	default:
		return fmt.Sprintf("Faction(%d)", int(f))
	}
}

// ErrUnknownFaction is returned by ParseFaction for unrecognised input.
var ErrUnknownFaction = errors.New("unknown faction")

// ParseFaction maps "FRIENDLY"/"HOSTILE" (any case) to a Faction.
func ParseFaction(s string) (Faction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FRIENDLY":
		return FactionFriendly, nil
	case "HOSTILE":
		return FactionHostile, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFaction, s)
	}
}

// AgentID identifies a drone for its whole lifetime.
type AgentID int

// NoTarget marks a friendly that is not attacking anything this tick.
const NoTarget AgentID = -1

// ErrNonFiniteState is returned when an agent would be created with a NaN
// or infinite position or velocity.
var ErrNonFiniteState = errors.New("non-finite agent state")

// Agent holds the kinematic and engagement state of one drone.
//
// Claimed is only meaningful on hostiles and is reset by the engine at the
// start of every tick. BlinkTimer only advances once Neutralized is set.
type Agent struct {
	ID       AgentID
	Position Vec2
	Velocity Vec2
	Faction  Faction

	TargetID    AgentID
	Claimed     bool
	Neutralized bool
	BlinkTimer  time.Duration
}

// NewAgent validates the initial state and returns a live agent with no
// target.
func NewAgent(id AgentID, faction Faction, pos, vel Vec2) (*Agent, error) {
	if faction != FactionFriendly && faction != FactionHostile {
		return nil, fmt.Errorf("NewAgent %d: %w: %d", id, ErrUnknownFaction, int(faction))
	}
	if !pos.IsFinite() || !vel.IsFinite() {
		return nil, fmt.Errorf("NewAgent %d: %w", id, ErrNonFiniteState)
	}
	return &Agent{
		ID:       id,
		Position: pos,
		Velocity: vel,
		Faction:  faction,
		TargetID: NoTarget,
	}, nil
}

// DistanceTo returns the Euclidean distance between the two agents.
func (a *Agent) DistanceTo(other *Agent) float64 {
	return a.Position.DistanceTo(other.Position)
}

// IsHostile reports whether the agent belongs to the hostile faction.
func (a *Agent) IsHostile() bool { return a.Faction == FactionHostile }

// IsFriendly reports whether the agent belongs to the friendly faction.
func (a *Agent) IsFriendly() bool { return a.Faction == FactionFriendly }

// IsLive reports whether the agent still takes part in sensing, targeting
// and steering.
func (a *Agent) IsLive() bool { return !a.Neutralized }

func (a *Agent) String() string {
	return fmt.Sprintf("Agent(id=%d, %s, pos=(%.1f, %.1f))", a.ID, a.Faction, a.Position.X, a.Position.Y)
}
