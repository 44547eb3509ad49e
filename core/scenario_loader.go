// core/scenario_loader.go
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/swarm-simulator/model"
)

// ErrInvalidScenario wraps every structural problem found while loading.
var ErrInvalidScenario = errors.New("invalid scenario")

// Format selects the scenario decoder.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks a format from the file extension, defaulting to
// JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// AgentRecord is one initial agent as it appears in scenario data.
type AgentRecord struct {
	ID       int       `json:"id" yaml:"id"`
	X        float64   `json:"x" yaml:"x"`
	Y        float64   `json:"y" yaml:"y"`
	Faction  string    `json:"faction" yaml:"faction"`
	Velocity []float64 `json:"velocity" yaml:"velocity"`
}

// Scenario is a validated set of initial agents plus the parameters to run
// them with.
type Scenario struct {
	Name    string
	Params  Params
	Records []AgentRecord
}

// internal document shapes; unexported so they can evolve freely.
type scenarioDocument struct {
	Name   string          `json:"name" yaml:"name"`
	Params *paramsDocument `json:"params" yaml:"params"`
	Agents []AgentRecord   `json:"agents" yaml:"agents"`
}

type paramsDocument struct {
	DeltaTime       *string  `json:"delta_time" yaml:"delta_time"`
	MaxSpeed        *float64 `json:"max_speed" yaml:"max_speed"`
	MaxAcceleration *float64 `json:"max_acceleration" yaml:"max_acceleration"`
	SenseRadius     *float64 `json:"sense_radius" yaml:"sense_radius"`
	ThreatRadius    *float64 `json:"threat_radius" yaml:"threat_radius"`
	InterceptRadius *float64 `json:"intercept_radius" yaml:"intercept_radius"`
	SafeSeparation  *float64 `json:"safe_separation" yaml:"safe_separation"`
	ClaimTolerance  *float64 `json:"claim_tolerance" yaml:"claim_tolerance"`
	LeadTime        *string  `json:"lead_time" yaml:"lead_time"`
	BlinkDwell      *string  `json:"blink_dwell" yaml:"blink_dwell"`
}

// LoadScenario decodes a scenario document. JSON input may also be a bare
// array of [id, x, y, "FACTION", [vx, vy]] records.
func LoadScenario(r io.Reader, format Format) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: read failed: %w", err)
	}

	var doc scenarioDocument
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w: yaml: %v", ErrInvalidScenario, err)
		}
	default:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			records, err := decodeTupleRecords(trimmed)
			if err != nil {
				return nil, fmt.Errorf("LoadScenario: %w", err)
			}
			doc.Agents = records
		} else if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w: json: %v", ErrInvalidScenario, err)
		}
	}

	params, err := doc.Params.apply(DefaultParams())
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	sc := &Scenario{Name: doc.Name, Params: params, Records: doc.Agents}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	return sc, nil
}

// LoadScenarioFile opens path and decodes it according to its extension.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadScenarioFile: %w", err)
	}
	defer f.Close()

	sc, err := LoadScenario(f, FormatFromPath(path))
	if err != nil {
		return nil, err
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Validate checks ids, factions and numbers without building agents.
func (sc *Scenario) Validate() error {
	if err := sc.Params.Validate(); err != nil {
		return err
	}
	seen := make(map[int]struct{}, len(sc.Records))
	for i, rec := range sc.Records {
		if _, dup := seen[rec.ID]; dup {
			return fmt.Errorf("%w: record %d: duplicate id %d", ErrInvalidScenario, i, rec.ID)
		}
		seen[rec.ID] = struct{}{}
		if rec.ID < 0 {
			return fmt.Errorf("%w: record %d: negative id %d", ErrInvalidScenario, i, rec.ID)
		}
		if _, err := model.ParseFaction(rec.Faction); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrInvalidScenario, i, err)
		}
		if rec.Velocity != nil && len(rec.Velocity) != 2 {
			return fmt.Errorf("%w: record %d: velocity must have 2 components, got %d", ErrInvalidScenario, i, len(rec.Velocity))
		}
		for _, v := range append([]float64{rec.X, rec.Y}, rec.Velocity...) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: record %d: non-finite value", ErrInvalidScenario, i)
			}
		}
	}
	return nil
}

// Build creates the initial world in record order.
func (sc *Scenario) Build() (*World, error) {
	agents := make([]*model.Agent, 0, len(sc.Records))
	for _, rec := range sc.Records {
		faction, err := model.ParseFaction(rec.Faction)
		if err != nil {
			return nil, fmt.Errorf("Scenario.Build: %w: %v", ErrInvalidScenario, err)
		}
		var vel model.Vec2
		if len(rec.Velocity) == 2 {
			vel = model.Vec2{X: rec.Velocity[0], Y: rec.Velocity[1]}
		}
		a, err := model.NewAgent(model.AgentID(rec.ID), faction, model.Vec2{X: rec.X, Y: rec.Y}, vel)
		if err != nil {
			return nil, fmt.Errorf("Scenario.Build: %w", err)
		}
		agents = append(agents, a)
	}
	w, err := NewWorld(agents...)
	if err != nil {
		return nil, fmt.Errorf("Scenario.Build: %w", err)
	}
	return w, nil
}

func (pd *paramsDocument) apply(p Params) (Params, error) {
	if pd == nil {
		return p, nil
	}
	floats := []struct {
		src *float64
		dst *float64
	}{
		{pd.MaxSpeed, &p.MaxSpeed},
		{pd.MaxAcceleration, &p.MaxAcceleration},
		{pd.SenseRadius, &p.SenseRadius},
		{pd.ThreatRadius, &p.ThreatRadius},
		{pd.InterceptRadius, &p.InterceptRadius},
		{pd.SafeSeparation, &p.SafeSeparation},
		{pd.ClaimTolerance, &p.ClaimTolerance},
	}
	for _, f := range floats {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"delta_time", pd.DeltaTime, &p.DeltaTime},
		{"lead_time", pd.LeadTime, &p.LeadTime},
		{"blink_dwell", pd.BlinkDwell, &p.BlinkDwell},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return p, fmt.Errorf("%w: params.%s: %v", ErrInvalidParams, d.name, err)
		}
		*d.dst = v
	}
	return p, nil
}

// decodeTupleRecords reads the compact record form
// [[id, x, y, "FACTION", [vx, vy]], ...].
func decodeTupleRecords(data []byte) ([]AgentRecord, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrInvalidScenario, err)
	}
	records := make([]AgentRecord, 0, len(raw))
	for i, fields := range raw {
		if len(fields) != 4 && len(fields) != 5 {
			return nil, fmt.Errorf("%w: record %d: want 4 or 5 fields, got %d", ErrInvalidScenario, i, len(fields))
		}
		var rec AgentRecord
		targets := []any{&rec.ID, &rec.X, &rec.Y, &rec.Faction}
		if len(fields) == 5 {
			targets = append(targets, &rec.Velocity)
		}
		for j, dst := range targets {
			if err := json.Unmarshal(fields[j], dst); err != nil {
				return nil, fmt.Errorf("%w: record %d field %d: %v", ErrInvalidScenario, i, j, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
