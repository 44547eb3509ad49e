package core

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/swarm-simulator/internal/logging"
	"github.com/signalsfoundry/swarm-simulator/model"
)

// TickReport summarises what happened in one call to Step.
type TickReport struct {
	Tick    int
	Elapsed time.Duration
	// Active is false once no live hostile remains; nothing else in the
	// report is populated on that tick.
	Active bool
	// Settled marks a tick taken by Settle after the run went inactive.
	Settled bool

	Claims      []model.Claim
	Engagements []model.Engagement
	Removed     []model.AgentID

	LiveFriendlies int
	LiveHostiles   int
}

// TickRecorder receives a report after every tick, e.g. to export metrics.
type TickRecorder interface {
	ObserveTick(report TickReport, took time.Duration)
}

// Option configures a SimulationEngine.
type Option func(*SimulationEngine)

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option {
	return func(se *SimulationEngine) {
		if l != nil {
			se.log = l
		}
	}
}

// WithTickRecorder attaches a recorder invoked after each tick.
func WithTickRecorder(r TickRecorder) Option {
	return func(se *SimulationEngine) { se.recorder = r }
}

// WithSpatialIndex makes the decision pass sense through an R-tree rebuilt
// every tick instead of scanning all agents per friendly.
func WithSpatialIndex(enabled bool) Option {
	return func(se *SimulationEngine) { se.useIndex = enabled }
}

// SimulationEngine owns the world and advances it one tick at a time. It is
// single-threaded: Step must not be called concurrently.
type SimulationEngine struct {
	World  *World
	Params Params

	steerer  *Steerer
	log      logging.Logger
	recorder TickRecorder
	useIndex bool

	tick    int
	elapsed time.Duration
	active  bool

	tickListeners []func(TickReport)
}

// NewSimulationEngine validates params and wraps the world.
func NewSimulationEngine(world *World, params Params, opts ...Option) (*SimulationEngine, error) {
	if world == nil {
		return nil, fmt.Errorf("NewSimulationEngine: world is nil")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("NewSimulationEngine: %w", err)
	}
	se := &SimulationEngine{
		World:   world,
		Params:  params,
		steerer: NewSteerer(params),
		log:     logging.Noop(),
		active:  true,
	}
	for _, opt := range opts {
		opt(se)
	}
	return se, nil
}

// RegisterTickListener adds a callback run after every tick.
func (se *SimulationEngine) RegisterTickListener(fn func(TickReport)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Active reports whether hostiles remained at the last evaluation.
func (se *SimulationEngine) Active() bool { return se.active }

// Tick returns the number of ticks simulated so far.
func (se *SimulationEngine) Tick() int { return se.tick }

// Elapsed returns the simulated time so far.
func (se *SimulationEngine) Elapsed() time.Duration { return se.elapsed }

type velocityUpdate struct {
	slot     int
	velocity model.Vec2
}

// Step advances the simulation by one tick:
//
//  1. clear claim flags on live hostiles
//  2. stop if no live hostile remains
//  3. decide a velocity for every live friendly, hostiles keep theirs
//  4. apply all collected velocities
//  5. integrate positions and blink timers
//  6. resolve engagements
//  7. remove friendlies lost in engagements
//  8. remove hostiles whose blink dwell has elapsed
func (se *SimulationEngine) Step(ctx context.Context) TickReport {
	if !se.active {
		return se.report(false)
	}
	started := time.Now()
	agents := se.World.Agents()

	for _, a := range agents {
		if a.IsHostile() && a.IsLive() {
			a.Claimed = false
		}
	}

	if se.World.LiveCount(model.FactionHostile) == 0 {
		se.active = false
		for _, a := range agents {
			if a.IsFriendly() {
				a.TargetID = model.NoTarget
			}
		}
		se.log.Info(ctx, "all hostiles neutralized; simulation finished",
			logging.Int("tick", se.tick),
			logging.Duration("elapsed", se.elapsed),
			logging.Int("friendlies_remaining", se.World.LiveCount(model.FactionFriendly)),
		)
		rep := se.report(false)
		se.notify(rep, time.Since(started))
		return rep
	}

	updates, claims := se.decide(ctx, agents)

	for _, u := range updates {
		agents[u.slot].Velocity = u.velocity
	}

	integrate(agents, se.Params.DeltaTime)

	engagements, lost := resolveEngagements(agents, se.Params.InterceptRadius)
	for _, e := range engagements {
		se.log.Info(ctx, "engagement: hostile neutralized, friendly lost",
			logging.Int("hostile_id", int(e.HostileID)),
			logging.Int("friendly_id", int(e.FriendlyID)),
			logging.Float64("distance", e.Distance),
		)
	}

	removed := se.World.removeWhere(func(a *model.Agent) bool {
		_, gone := lost[a.ID]
		return gone
	})
	removed = append(removed, se.removeExpired()...)

	se.tick++
	se.elapsed += se.Params.DeltaTime

	rep := se.report(true)
	rep.Claims = claims
	rep.Engagements = engagements
	rep.Removed = removed
	se.notify(rep, time.Since(started))
	return rep
}

// PendingDwell returns how much simulated time must pass before every
// neutralized hostile still in the world has finished blinking. It is zero
// when none remain.
func (se *SimulationEngine) PendingDwell() time.Duration {
	var wait time.Duration
	for _, a := range se.World.Agents() {
		if !a.IsHostile() || !a.Neutralized {
			continue
		}
		if left := se.Params.BlinkDwell - a.BlinkTimer; left > wait {
			wait = left
		}
	}
	return wait
}

// Settle advances a finished engine by one tick without any decisions or
// engagements. Agents hold position while neutralized hostiles keep
// blinking until their dwell expires. It does nothing while the engine is
// still active.
func (se *SimulationEngine) Settle(ctx context.Context) TickReport {
	if se.active {
		return se.report(true)
	}
	started := time.Now()
	for _, a := range se.World.Agents() {
		if a.Neutralized {
			a.BlinkTimer += se.Params.DeltaTime
		}
	}
	removed := se.removeExpired()
	se.tick++
	se.elapsed += se.Params.DeltaTime
	if len(removed) > 0 {
		se.log.Debug(ctx, "neutralized hostiles cleared", logging.Int("count", len(removed)))
	}

	rep := se.report(false)
	rep.Settled = true
	rep.Removed = removed
	se.notify(rep, time.Since(started))
	return rep
}

func (se *SimulationEngine) removeExpired() []model.AgentID {
	dwell := se.Params.BlinkDwell
	return se.World.removeWhere(func(a *model.Agent) bool {
		return a.IsHostile() && a.Neutralized && a.BlinkTimer >= dwell
	})
}

// decide runs the decision pass. Velocities are collected, not applied, so
// every friendly steers from last tick's physical state; claims are shared
// live so earlier agents win contested hostiles.
func (se *SimulationEngine) decide(ctx context.Context, agents []*model.Agent) ([]velocityUpdate, []model.Claim) {
	var index *SpatialIndex
	if se.useIndex {
		index = NewSpatialIndex(agents)
	}

	updates := make([]velocityUpdate, 0, len(agents))
	var claims []model.Claim
	for slot, a := range agents {
		switch a.Faction {
		case model.FactionHostile:
			// Ballistic: hostiles hold their velocity.
			continue
		case model.FactionFriendly:
			if !a.IsLive() {
				continue
			}
		}

		var d Decision
		if index != nil {
			d = se.steerer.DecideInView(a, index.LocalView(a, se.Params.SenseRadius))
		} else {
			d = se.steerer.Decide(a, agents)
		}
		updates = append(updates, velocityUpdate{slot: slot, velocity: d.Velocity})

		if d.Claimed() {
			claims = append(claims, model.Claim{FriendlyID: a.ID, HostileID: d.TargetID, Distance: d.Distance})
			se.log.Debug(ctx, "target claimed",
				logging.Int("friendly_id", int(a.ID)),
				logging.Int("hostile_id", int(d.TargetID)),
				logging.Float64("distance", d.Distance),
			)
		}
	}
	return updates, claims
}

// Run steps until the engagement ends, maxTicks ticks have run (0 means no
// limit) or ctx is cancelled. It returns the last report.
func (se *SimulationEngine) Run(ctx context.Context, maxTicks int) (TickReport, error) {
	var last TickReport
	for n := 0; maxTicks <= 0 || n < maxTicks; n++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		last = se.Step(ctx)
		if !last.Active {
			break
		}
	}
	return last, nil
}

func (se *SimulationEngine) report(active bool) TickReport {
	return TickReport{
		Tick:           se.tick,
		Elapsed:        se.elapsed,
		Active:         active,
		LiveFriendlies: se.World.LiveCount(model.FactionFriendly),
		LiveHostiles:   se.World.LiveCount(model.FactionHostile),
	}
}

func (se *SimulationEngine) notify(rep TickReport, took time.Duration) {
	if se.recorder != nil {
		se.recorder.ObserveTick(rep, took)
	}
	for _, fn := range se.tickListeners {
		fn(rep)
	}
}
