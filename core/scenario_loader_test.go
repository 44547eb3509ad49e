package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/swarm-simulator/model"
)

func TestLoadScenarioJSONDocument(t *testing.T) {
	const data = `{
	  "name": "pair",
	  "params": {"max_speed": 25, "delta_time": "50ms"},
	  "agents": [
	    {"id": 1, "x": 0, "y": 0, "faction": "FRIENDLY", "velocity": [0, 0]},
	    {"id": 2, "x": 40, "y": 0, "faction": "HOSTILE", "velocity": [-10, 0]}
	  ]
	}`
	sc, err := LoadScenario(strings.NewReader(data), FormatJSON)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.Name != "pair" || len(sc.Records) != 2 {
		t.Fatalf("scenario = %+v", sc)
	}
	if sc.Params.MaxSpeed != 25 || sc.Params.DeltaTime != 50*time.Millisecond {
		t.Fatalf("params overrides not applied: %+v", sc.Params)
	}
	if sc.Params.SenseRadius != DefaultParams().SenseRadius {
		t.Fatalf("unset params should keep defaults, got sense radius %v", sc.Params.SenseRadius)
	}

	w, err := sc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h, ok := w.Agent(2)
	if !ok || !h.IsHostile() || h.Velocity != (model.Vec2{X: -10}) {
		t.Fatalf("hostile 2 = %+v", h)
	}
}

func TestLoadScenarioYAML(t *testing.T) {
	const data = `
name: yaml-pair
params:
  threat_radius: 40
  blink_dwell: 1s
agents:
  - {id: 7, x: 1.5, y: -2, faction: friendly}
  - {id: 8, x: 60, y: 0, faction: HOSTILE, velocity: [-12, 1]}
`
	sc, err := LoadScenario(strings.NewReader(data), FormatYAML)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.Params.ThreatRadius != 40 || sc.Params.BlinkDwell != time.Second {
		t.Fatalf("params = %+v", sc.Params)
	}
	w, err := sc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f, _ := w.Agent(7)
	if f.Velocity != model.Zero || f.Position != (model.Vec2{X: 1.5, Y: -2}) {
		t.Fatalf("friendly 7 = %+v", f)
	}
}

func TestLoadScenarioTupleRecords(t *testing.T) {
	const data = `[
	  [1, -100.0, 0.0, "FRIENDLY", [0.0, 0.0]],
	  [4, 150.0, 10.0, "HOSTILE", [-15.0, 0.0]],
	  [5, 140.0, -10.0, "HOSTILE"]
	]`
	sc, err := LoadScenario(strings.NewReader(data), FormatJSON)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	w, err := sc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if w.Len() != 3 || w.LiveCount(model.FactionHostile) != 2 {
		t.Fatalf("world has %d agents, %d hostiles", w.Len(), w.LiveCount(model.FactionHostile))
	}
	order := w.Agents()
	if order[0].ID != 1 || order[1].ID != 4 || order[2].ID != 5 {
		t.Fatalf("record order not preserved")
	}
}

func TestLoadScenarioValidation(t *testing.T) {
	cases := map[string]string{
		"duplicate id":  `{"agents": [{"id": 1, "faction": "FRIENDLY"}, {"id": 1, "faction": "HOSTILE"}]}`,
		"bad faction":   `{"agents": [{"id": 1, "faction": "NEUTRAL"}]}`,
		"bad velocity":  `{"agents": [{"id": 1, "faction": "HOSTILE", "velocity": [1]}]}`,
		"negative id":   `{"agents": [{"id": -3, "faction": "HOSTILE"}]}`,
		"short tuple":   `[[1, 0, 0]]`,
		"malformed":     `{"agents": [`,
		"bad duration":  `{"params": {"delta_time": "soon"}, "agents": []}`,
		"zero in param": `{"params": {"sense_radius": 0}, "agents": []}`,
	}
	for name, data := range cases {
		_, err := LoadScenario(strings.NewReader(data), FormatJSON)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !errors.Is(err, ErrInvalidScenario) && !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("%s: error %v does not wrap a scenario/params sentinel", name, err)
		}
	}
}

func TestLoadScenarioFileUsesExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skirmish.yml")
	body := "agents:\n  - {id: 1, x: 0, y: 0, faction: FRIENDLY}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sc, err := LoadScenarioFile(path)
	if err != nil {
		t.Fatalf("LoadScenarioFile: %v", err)
	}
	if sc.Name != "skirmish" {
		t.Fatalf("name = %q, want file stem", sc.Name)
	}
	if FormatFromPath("x.JSON") != FormatJSON || FormatFromPath("x.yaml") != FormatYAML {
		t.Fatalf("FormatFromPath misclassified extensions")
	}
}

func TestBuiltinScenarioIsolation(t *testing.T) {
	a, err := BuiltinScenario("C")
	if err != nil {
		t.Fatalf("BuiltinScenario: %v", err)
	}
	a.Records[3].Velocity[0] = 0

	b, err := BuiltinScenario("c")
	if err != nil {
		t.Fatalf("BuiltinScenario: %v", err)
	}
	if b.Records[3].Velocity[0] != -18 {
		t.Fatalf("built-in scenario mutated through a copy")
	}
	if _, err := BuiltinScenario("nope"); !errors.Is(err, ErrInvalidScenario) {
		t.Fatalf("unknown scenario error = %v", err)
	}
}

func TestResolveScenario(t *testing.T) {
	sc, err := ResolveScenario("")
	if err != nil || sc.Name != "default" {
		t.Fatalf("ResolveScenario(\"\") = %v, %v; want default", sc, err)
	}

	path := filepath.Join(t.TempDir(), "pair.yaml")
	doc := "agents:\n  - {id: 1, x: 0, y: 0, faction: FRIENDLY, velocity: [0, 0]}\n  - {id: 2, x: 20, y: 0, faction: HOSTILE, velocity: [-1, 0]}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sc, err = ResolveScenario(path)
	if err != nil {
		t.Fatalf("ResolveScenario(file): %v", err)
	}
	if sc.Name != "pair" || len(sc.Records) != 2 {
		t.Fatalf("file scenario = %q with %d records", sc.Name, len(sc.Records))
	}

	if _, err := ResolveScenario(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file error = %v", err)
	}
}

func TestShippedScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "configs", "scenarios", "*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("no scenario files under configs/scenarios")
	}
	for _, path := range paths {
		sc, err := LoadScenarioFile(path)
		if err != nil {
			t.Fatalf("LoadScenarioFile(%s): %v", path, err)
		}
		w, err := sc.Build()
		if err != nil {
			t.Fatalf("Build(%s): %v", path, err)
		}
		if w.LiveCount(model.FactionFriendly) == 0 || w.LiveCount(model.FactionHostile) == 0 {
			t.Fatalf("%s should field both factions", path)
		}
	}

	records, err := LoadScenarioFile(filepath.Join("..", "configs", "scenarios", "overwhelm_records.json"))
	if err != nil {
		t.Fatalf("LoadScenarioFile: %v", err)
	}
	builtin, _ := BuiltinScenario("c")
	if len(records.Records) != len(builtin.Records) {
		t.Fatalf("record file has %d agents, built-in c has %d", len(records.Records), len(builtin.Records))
	}
	for i := range builtin.Records {
		got, want := records.Records[i], builtin.Records[i]
		if got.ID != want.ID || got.X != want.X || got.Y != want.Y || got.Faction != want.Faction ||
			got.Velocity[0] != want.Velocity[0] || got.Velocity[1] != want.Velocity[1] {
			t.Fatalf("record %d = %+v, want %+v", i, got, want)
		}
	}
}
