package core

import (
	"fmt"
	"sort"
	"strings"
)

func friendly(id int, x, y float64) AgentRecord {
	return AgentRecord{ID: id, X: x, Y: y, Faction: "FRIENDLY", Velocity: []float64{0, 0}}
}

func hostile(id int, x, y, vx, vy float64) AgentRecord {
	return AgentRecord{ID: id, X: x, Y: y, Faction: "HOSTILE", Velocity: []float64{vx, vy}}
}

var builtinScenarios = map[string][]AgentRecord{
	// Three friendlies near the centre-left, two hostiles inbound from the
	// right.
	"default": {
		friendly(1, -100, 0),
		friendly(2, -90, 10),
		friendly(3, -90, -10),
		hostile(4, 150, 10, -15, 0),
		hostile(5, 140, -10, -15, 0),
	},
	// Immediate handoff: a fast hostile already inside threat range.
	"a": {
		friendly(1, -5, 0),
		friendly(2, 5, 0),
		hostile(3, 10, 0, -15, 0),
	},
	// Dual threat from two headings.
	"b": {
		friendly(1, 0, 0),
		friendly(2, 10, 10),
		hostile(3, 100, 50, -20, -5),
		hostile(4, 100, -50, -10, 5),
	},
	// Overwhelm: five hostiles against three defenders.
	"c": {
		friendly(1, -5, 0),
		friendly(2, 5, 0),
		friendly(3, 0, 10),
		hostile(4, 150, 0, -18, 0),
		hostile(5, 140, 15, -16, 0),
		hostile(6, 140, -15, -16, 0),
		hostile(7, 130, 30, -14, 0),
		hostile(8, 130, -30, -14, 0),
	},
	// Only the friendly closest to the hostile should claim it.
	"handoff": {
		friendly(1, 10, 0),
		friendly(2, 15, 5),
		friendly(3, 80, 50),
		hostile(4, 40, 0, -10, 0),
	},
}

// BuiltinScenarioNames lists the scenarios available without a file.
func BuiltinScenarioNames() []string {
	names := make([]string, 0, len(builtinScenarios))
	for name := range builtinScenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinScenario returns a copy of a named built-in scenario with default
// parameters.
func BuiltinScenario(name string) (*Scenario, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	records, ok := builtinScenarios[key]
	if !ok {
		return nil, fmt.Errorf("BuiltinScenario: %w: unknown scenario %q (have %s)",
			ErrInvalidScenario, name, strings.Join(BuiltinScenarioNames(), ", "))
	}
	out := make([]AgentRecord, len(records))
	for i, r := range records {
		r.Velocity = append([]float64(nil), r.Velocity...)
		out[i] = r
	}
	return &Scenario{Name: key, Params: DefaultParams(), Records: out}, nil
}

// ResolveScenario returns the built-in scenario called ref, or loads ref as
// a scenario file when no built-in has that name.
func ResolveScenario(ref string) (*Scenario, error) {
	key := strings.ToLower(strings.TrimSpace(ref))
	if key == "" {
		key = "default"
	}
	if _, ok := builtinScenarios[key]; ok {
		return BuiltinScenario(key)
	}
	return LoadScenarioFile(ref)
}
