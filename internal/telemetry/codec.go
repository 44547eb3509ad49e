package telemetry

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/swarm-simulator/kb"
	"github.com/signalsfoundry/swarm-simulator/model"
)

// Wire keys. Durations travel as float seconds, timestamps as RFC 3339.
const (
	keyRunID       = "run_id"
	keyScenario    = "scenario"
	keyTick        = "tick"
	keyElapsed     = "elapsed_seconds"
	keyActive      = "active"
	keyPaused      = "paused"
	keyPublishedAt = "published_at"
	keyAgents      = "agents"
	keyClaims      = "claims"
	keyEngagements = "engagements"

	keyID          = "id"
	keyFaction     = "faction"
	keyX           = "x"
	keyY           = "y"
	keyVX          = "vx"
	keyVY          = "vy"
	keyTargetID    = "target_id"
	keyClaimed     = "claimed"
	keyNeutralized = "neutralized"
	keyBlink       = "blink_seconds"

	keyFriendlyID = "friendly_id"
	keyHostileID  = "hostile_id"
	keyDistance   = "distance"
)

// EncodeSnapshot converts a snapshot to its wire form.
func EncodeSnapshot(s kb.Snapshot) (*structpb.Struct, error) {
	agents := make([]any, 0, len(s.Agents))
	for _, a := range s.Agents {
		agents = append(agents, agentFields(a))
	}
	claims := make([]any, 0, len(s.Claims))
	for _, c := range s.Claims {
		claims = append(claims, map[string]any{
			keyFriendlyID: float64(c.FriendlyID),
			keyHostileID:  float64(c.HostileID),
			keyDistance:   c.Distance,
		})
	}
	engagements := make([]any, 0, len(s.Engagements))
	for _, e := range s.Engagements {
		engagements = append(engagements, map[string]any{
			keyFriendlyID: float64(e.FriendlyID),
			keyHostileID:  float64(e.HostileID),
			keyDistance:   e.Distance,
		})
	}

	fields := map[string]any{
		keyRunID:       s.RunID,
		keyScenario:    s.Scenario,
		keyTick:        float64(s.Tick),
		keyElapsed:     s.Elapsed.Seconds(),
		keyActive:      s.Active,
		keyPaused:      s.Paused,
		keyAgents:      agents,
		keyClaims:      claims,
		keyEngagements: engagements,
	}
	if !s.PublishedAt.IsZero() {
		fields[keyPublishedAt] = s.PublishedAt.UTC().Format(time.RFC3339Nano)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return out, nil
}

// EncodeAgent converts one agent to its wire form.
func EncodeAgent(a model.Agent) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(agentFields(a))
	if err != nil {
		return nil, fmt.Errorf("encode agent %d: %w", a.ID, err)
	}
	return out, nil
}

func agentFields(a model.Agent) map[string]any {
	return map[string]any{
		keyID:          float64(a.ID),
		keyFaction:     a.Faction.String(),
		keyX:           a.Position.X,
		keyY:           a.Position.Y,
		keyVX:          a.Velocity.X,
		keyVY:          a.Velocity.Y,
		keyTargetID:    float64(a.TargetID),
		keyClaimed:     a.Claimed,
		keyNeutralized: a.Neutralized,
		keyBlink:       a.BlinkTimer.Seconds(),
	}
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(st *structpb.Struct) (kb.Snapshot, error) {
	if st == nil {
		return kb.Snapshot{}, fmt.Errorf("decode snapshot: %w", ErrInvalidArgument)
	}
	f := st.GetFields()
	s := kb.Snapshot{
		RunID:    f[keyRunID].GetStringValue(),
		Scenario: f[keyScenario].GetStringValue(),
		Tick:     int(f[keyTick].GetNumberValue()),
		Elapsed:  seconds(f[keyElapsed].GetNumberValue()),
		Active:   f[keyActive].GetBoolValue(),
		Paused:   f[keyPaused].GetBoolValue(),
	}
	if raw := f[keyPublishedAt].GetStringValue(); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return kb.Snapshot{}, fmt.Errorf("decode snapshot published_at %q: %w", raw, ErrInvalidArgument)
		}
		s.PublishedAt = ts
	}

	for _, v := range f[keyAgents].GetListValue().GetValues() {
		a, err := DecodeAgent(v.GetStructValue())
		if err != nil {
			return kb.Snapshot{}, err
		}
		s.Agents = append(s.Agents, a)
	}
	for _, v := range f[keyClaims].GetListValue().GetValues() {
		cf := v.GetStructValue().GetFields()
		s.Claims = append(s.Claims, model.Claim{
			FriendlyID: model.AgentID(cf[keyFriendlyID].GetNumberValue()),
			HostileID:  model.AgentID(cf[keyHostileID].GetNumberValue()),
			Distance:   cf[keyDistance].GetNumberValue(),
		})
	}
	for _, v := range f[keyEngagements].GetListValue().GetValues() {
		ef := v.GetStructValue().GetFields()
		s.Engagements = append(s.Engagements, model.Engagement{
			FriendlyID: model.AgentID(ef[keyFriendlyID].GetNumberValue()),
			HostileID:  model.AgentID(ef[keyHostileID].GetNumberValue()),
			Distance:   ef[keyDistance].GetNumberValue(),
		})
	}
	return s, nil
}

// DecodeAgent is the inverse of EncodeAgent.
func DecodeAgent(st *structpb.Struct) (model.Agent, error) {
	f := st.GetFields()
	if f == nil {
		return model.Agent{}, fmt.Errorf("decode agent: empty message: %w", ErrInvalidArgument)
	}
	faction, err := model.ParseFaction(f[keyFaction].GetStringValue())
	if err != nil {
		return model.Agent{}, fmt.Errorf("decode agent: %v: %w", err, ErrInvalidArgument)
	}
	return model.Agent{
		ID:          model.AgentID(f[keyID].GetNumberValue()),
		Faction:     faction,
		Position:    model.Vec2{X: f[keyX].GetNumberValue(), Y: f[keyY].GetNumberValue()},
		Velocity:    model.Vec2{X: f[keyVX].GetNumberValue(), Y: f[keyVY].GetNumberValue()},
		TargetID:    model.AgentID(f[keyTargetID].GetNumberValue()),
		Claimed:     f[keyClaimed].GetBoolValue(),
		Neutralized: f[keyNeutralized].GetBoolValue(),
		BlinkTimer:  seconds(f[keyBlink].GetNumberValue()),
	}, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// agentIDArg reads a required non-negative integer "id" field.
func agentIDArg(st *structpb.Struct) (model.AgentID, error) {
	v, ok := st.GetFields()[keyID]
	if !ok {
		return 0, fmt.Errorf("missing %q: %w", keyID, ErrInvalidArgument)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue < 0 || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("%q must be a non-negative integer: %w", keyID, ErrInvalidArgument)
	}
	return model.AgentID(n.NumberValue), nil
}

// pausedArg reads a required boolean "paused" field.
func pausedArg(st *structpb.Struct) (bool, error) {
	v, ok := st.GetFields()[keyPaused]
	if !ok {
		return false, fmt.Errorf("missing %q: %w", keyPaused, ErrInvalidArgument)
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%q must be a bool: %w", keyPaused, ErrInvalidArgument)
	}
	return b.BoolValue, nil
}
