package model

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizeZeroVector(t *testing.T) {
	got := Zero.Normalize()
	if got != Zero {
		t.Fatalf("Normalize(0) = %+v, want zero vector", got)
	}
	if !got.IsFinite() {
		t.Fatalf("Normalize(0) produced non-finite vector %+v", got)
	}
}

func TestNormalizeUnitLength(t *testing.T) {
	got := Vec2{X: 3, Y: 4}.Normalize()
	if math.Abs(got.Norm()-1) > 1e-12 {
		t.Fatalf("|Normalize(3,4)| = %v, want 1", got.Norm())
	}
	if math.Abs(got.X-0.6) > 1e-12 || math.Abs(got.Y-0.8) > 1e-12 {
		t.Fatalf("Normalize(3,4) = %+v, want (0.6, 0.8)", got)
	}
}

func TestClampMagnitude(t *testing.T) {
	cases := []struct {
		name string
		in   Vec2
		max  float64
		want float64
	}{
		{"below", Vec2{X: 1, Y: 1}, 10, math.Sqrt2},
		{"above", Vec2{X: 30, Y: 40}, 10, 10},
		{"zero", Zero, 10, 0},
	}
	for _, tc := range cases {
		got := tc.in.ClampMagnitude(tc.max).Norm()
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: |clamp| = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAgentDistanceTo(t *testing.T) {
	a, err := NewAgent(1, FactionFriendly, Vec2{X: 0, Y: 0}, Zero)
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	b, err := NewAgent(2, FactionHostile, Vec2{X: 3, Y: 4}, Vec2{X: -1, Y: 0})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	if d := a.DistanceTo(b); d != 5 {
		t.Fatalf("DistanceTo = %v, want 5", d)
	}
	if a.IsHostile() || !b.IsHostile() {
		t.Fatalf("faction predicates wrong: a.IsHostile=%v b.IsHostile=%v", a.IsHostile(), b.IsHostile())
	}
	if a.TargetID != NoTarget {
		t.Fatalf("new agent TargetID = %d, want NoTarget", a.TargetID)
	}
}

func TestNewAgentRejectsNonFinite(t *testing.T) {
	_, err := NewAgent(1, FactionFriendly, Vec2{X: math.NaN()}, Zero)
	if !errors.Is(err, ErrNonFiniteState) {
		t.Fatalf("NewAgent(NaN) error = %v, want ErrNonFiniteState", err)
	}
	_, err = NewAgent(2, FactionHostile, Zero, Vec2{Y: math.Inf(1)})
	if !errors.Is(err, ErrNonFiniteState) {
		t.Fatalf("NewAgent(Inf velocity) error = %v, want ErrNonFiniteState", err)
	}
}

func TestParseFaction(t *testing.T) {
	for in, want := range map[string]Faction{
		"FRIENDLY":  FactionFriendly,
		"hostile":   FactionHostile,
		" Hostile ": FactionHostile,
	} {
		got, err := ParseFaction(in)
		if err != nil {
			t.Fatalf("ParseFaction(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseFaction(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseFaction("NEUTRAL"); !errors.Is(err, ErrUnknownFaction) {
		t.Fatalf("ParseFaction(NEUTRAL) error = %v, want ErrUnknownFaction", err)
	}
	if FactionHostile.String() != "HOSTILE" {
		t.Fatalf("FactionHostile.String() = %q", FactionHostile.String())
	}
}

func TestFactionPredicates(t *testing.T) {
	f, err := NewAgent(1, FactionFriendly, Vec2{}, Vec2{})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	h, err := NewAgent(2, FactionHostile, Vec2{}, Vec2{})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	if !f.IsFriendly() || f.IsHostile() {
		t.Fatalf("friendly predicates = %v/%v", f.IsFriendly(), f.IsHostile())
	}
	if !h.IsHostile() || h.IsFriendly() {
		t.Fatalf("hostile predicates = %v/%v", h.IsHostile(), h.IsFriendly())
	}
}
