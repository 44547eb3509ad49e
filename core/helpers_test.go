package core

import (
	"testing"

	"github.com/signalsfoundry/swarm-simulator/model"
)

func mustAgent(t *testing.T, id int, faction model.Faction, x, y, vx, vy float64) *model.Agent {
	t.Helper()
	a, err := model.NewAgent(model.AgentID(id), faction, model.Vec2{X: x, Y: y}, model.Vec2{X: vx, Y: vy})
	if err != nil {
		t.Fatalf("NewAgent(%d): %v", id, err)
	}
	return a
}

func friendlyAt(t *testing.T, id int, x, y float64) *model.Agent {
	t.Helper()
	return mustAgent(t, id, model.FactionFriendly, x, y, 0, 0)
}

func hostileAt(t *testing.T, id int, x, y, vx, vy float64) *model.Agent {
	t.Helper()
	return mustAgent(t, id, model.FactionHostile, x, y, vx, vy)
}

func mustWorld(t *testing.T, agents ...*model.Agent) *World {
	t.Helper()
	w, err := NewWorld(agents...)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return w
}

func mustEngine(t *testing.T, w *World, opts ...Option) *SimulationEngine {
	t.Helper()
	se, err := NewSimulationEngine(w, DefaultParams(), opts...)
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}
	return se
}

func mustBuiltin(t *testing.T, name string) *World {
	t.Helper()
	sc, err := BuiltinScenario(name)
	if err != nil {
		t.Fatalf("BuiltinScenario(%q): %v", name, err)
	}
	w, err := sc.Build()
	if err != nil {
		t.Fatalf("Build(%q): %v", name, err)
	}
	return w
}

func ids(agents []*model.Agent) map[model.AgentID]bool {
	out := make(map[model.AgentID]bool, len(agents))
	for _, a := range agents {
		out[a.ID] = true
	}
	return out
}

func clearClaims(agents []*model.Agent) {
	for _, a := range agents {
		a.Claimed = false
	}
}
