package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/swarm-simulator/internal/logging"
	"github.com/signalsfoundry/swarm-simulator/timectrl"
)

func noEnv(string) string { return "" }

func TestParseConfigDefaultsAndEnv(t *testing.T) {
	cfg, err := parseConfig(nil, noEnv)
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.Scenario != "default" || cfg.Mode != timectrl.Accelerated || cfg.MaxTicks != 10000 || !cfg.Index {
		t.Fatalf("defaults = %+v", cfg)
	}

	env := map[string]string{
		"SWARM_SCENARIO":  "c",
		"SWARM_MAX_TICKS": "50",
		"SWARM_TICK":      "50ms",
		"SWARM_MODE":      "realtime",
	}
	cfg, err = parseConfig([]string{"-max-ticks", "70"}, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.Scenario != "c" || cfg.Tick != 50*time.Millisecond || cfg.Mode != timectrl.RealTime {
		t.Fatalf("env config = %+v", cfg)
	}
	if cfg.MaxTicks != 70 {
		t.Fatalf("flag should override env: max ticks = %d", cfg.MaxTicks)
	}

	if _, err := parseConfig([]string{"-mode", "warp"}, noEnv); err == nil {
		t.Fatalf("expected an error for an unknown mode")
	}
	if _, err := parseConfig([]string{"-max-ticks", "-1"}, noEnv); err == nil {
		t.Fatalf("expected an error for negative max ticks")
	}
}

// TestRunBuiltinScenarioToCompletion runs the immediate-handoff scenario
// headless and checks the printed engagement log and summary.
func TestRunBuiltinScenarioToCompletion(t *testing.T) {
	var out bytes.Buffer
	cfg := Config{Scenario: "a", MaxTicks: 2000, Mode: timectrl.Accelerated, Index: true}

	sum, err := run(context.Background(), cfg, logging.Noop(), &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !sum.Finished || sum.HostilesRemaining != 0 {
		t.Fatalf("summary = %+v, want all hostiles neutralized", sum)
	}
	text := out.String()
	if got := strings.Count(text, "engaged hostile"); got != sum.Engagements || got == 0 {
		t.Fatalf("engagement lines = %d, summary engagements = %d\n%s", got, sum.Engagements, text)
	}
	for _, want := range []string{`Starting scenario "a"`, "all hostiles neutralized", "Simulation complete"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunScenarioFileWithTickOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "far.json")
	doc := `{"name": "far", "agents": [
		{"id": 1, "x": 0, "y": 0, "faction": "FRIENDLY", "velocity": [0, 0]},
		{"id": 2, "x": 500, "y": 0, "faction": "HOSTILE", "velocity": [0, 0]}
	]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out bytes.Buffer
	cfg := Config{Scenario: path, Tick: 50 * time.Millisecond, MaxTicks: 4, Mode: timectrl.Accelerated}
	sum, err := run(context.Background(), cfg, logging.Noop(), &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Finished || sum.Ticks != 4 {
		t.Fatalf("summary = %+v, want 4 ticks without finishing", sum)
	}
	if sum.Elapsed != 200*time.Millisecond {
		t.Fatalf("elapsed = %v, want 200ms", sum.Elapsed)
	}
	if !strings.Contains(out.String(), "tick limit reached") {
		t.Fatalf("output missing tick limit outcome:\n%s", out.String())
	}
}

func TestRunUnknownScenario(t *testing.T) {
	cfg := Config{Scenario: filepath.Join(t.TempDir(), "missing.yaml")}
	if _, err := run(context.Background(), cfg, logging.Noop(), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected an error for a missing scenario file")
	}
}
