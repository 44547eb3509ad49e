package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Params holds the physical constants of a run. They are fixed once the
// engine is constructed.
type Params struct {
	DeltaTime       time.Duration // tick duration
	MaxSpeed        float64       // units/s
	MaxAcceleration float64       // units/s²
	SenseRadius     float64       // sensor range
	ThreatRadius    float64       // hostiles closer than this trigger an attack
	InterceptRadius float64       // proximity fuse
	SafeSeparation  float64       // minimum spacing between friendlies

	// ClaimTolerance is the band, in distance units, within which a friendly
	// counts as "closest" to a hostile.
	ClaimTolerance float64
	// LeadTime is how far ahead a hostile's position is extrapolated when
	// computing the intercept vector.
	LeadTime time.Duration
	// BlinkDwell is how long a neutralized hostile stays in the world.
	BlinkDwell time.Duration
}

// DefaultParams returns the reference tuning.
func DefaultParams() Params {
	return Params{
		DeltaTime:       100 * time.Millisecond,
		MaxSpeed:        30.0,
		MaxAcceleration: 10.0,
		SenseRadius:     100.0,
		ThreatRadius:    30.0,
		InterceptRadius: 5.0,
		SafeSeparation:  10.0,
		ClaimTolerance:  1.0,
		LeadTime:        time.Second,
		BlinkDwell:      500 * time.Millisecond,
	}
}

// Validate checks that every parameter is strictly positive.
func (p Params) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"delta_time", p.DeltaTime > 0},
		{"max_speed", p.MaxSpeed > 0},
		{"max_acceleration", p.MaxAcceleration > 0},
		{"sense_radius", p.SenseRadius > 0},
		{"threat_radius", p.ThreatRadius > 0},
		{"intercept_radius", p.InterceptRadius > 0},
		{"safe_separation", p.SafeSeparation > 0},
		{"claim_tolerance", p.ClaimTolerance > 0},
		{"lead_time", p.LeadTime > 0},
		{"blink_dwell", p.BlinkDwell > 0},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidParams, c.name)
		}
	}
	return nil
}

// dt returns the tick duration in seconds.
func (p Params) dt() float64 { return p.DeltaTime.Seconds() }
