// Package sim drives a scenario to completion: it owns the engine, steps it
// from a time controller, and publishes snapshots for readers.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/swarm-simulator/core"
	"github.com/signalsfoundry/swarm-simulator/internal/logging"
	"github.com/signalsfoundry/swarm-simulator/internal/observability"
	"github.com/signalsfoundry/swarm-simulator/kb"
	"github.com/signalsfoundry/swarm-simulator/model"
	"github.com/signalsfoundry/swarm-simulator/timectrl"
)

const tracerName = "github.com/signalsfoundry/swarm-simulator/internal/sim"

// ErrAlreadyStarted is returned when Run is called twice.
var ErrAlreadyStarted = errors.New("runner already started")

// Summary describes a finished (or interrupted) run.
type Summary struct {
	RunID    string
	Scenario string

	Ticks   int
	Elapsed time.Duration
	// Finished is true when the run ended because no live hostile remained.
	Finished bool

	FriendliesRemaining int
	HostilesRemaining   int
	Engagements         int
	Claims              int

	WallTime time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner and engine logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics exports per-tick metrics through c.
func WithMetrics(c *observability.SimCollector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithMaxTicks stops the run after n active ticks; 0 means no limit.
func WithMaxTicks(n int) Option {
	return func(r *Runner) { r.maxTicks = n }
}

// WithMode selects wall-clock pacing or as-fast-as-possible stepping.
func WithMode(m timectrl.Mode) Option {
	return func(r *Runner) { r.mode = m }
}

// WithStore publishes snapshots into an existing store.
func WithStore(s *kb.SnapshotStore) Option {
	return func(r *Runner) {
		if s != nil {
			r.store = s
		}
	}
}

// WithTracer overrides the tracer used for run and tick spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithSpatialIndex makes the engine sense through an R-tree.
func WithSpatialIndex(enabled bool) Option {
	return func(r *Runner) { r.useIndex = enabled }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// Runner executes one scenario. Pause, Resume and the read accessors are
// safe for concurrent use; Run may be called once.
type Runner struct {
	runID    string
	scenario string

	engine *core.SimulationEngine
	clock  *timectrl.TimeController
	store  *kb.SnapshotStore

	log      logging.Logger
	metrics  *observability.SimCollector
	tracer   trace.Tracer
	maxTicks int
	mode     timectrl.Mode
	useIndex bool

	started atomic.Bool
	// dwellDue is armed on the simulation clock when the last hostile is
	// neutralized; until it fires the run settles instead of stepping.
	dwellDue <-chan time.Time

	mu      sync.Mutex
	summary Summary
}

// NewRunner builds the world for sc and prepares an engine for it.
func NewRunner(sc *core.Scenario, opts ...Option) (*Runner, error) {
	if sc == nil {
		return nil, fmt.Errorf("NewRunner: scenario is nil")
	}
	r := &Runner{
		runID:    logging.NewID(),
		scenario: sc.Name,
		log:      logging.Noop(),
		mode:     timectrl.Accelerated,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = kb.NewSnapshotStore()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	r.log = r.log.With(logging.String("scenario", r.scenario))

	world, err := sc.Build()
	if err != nil {
		return nil, fmt.Errorf("NewRunner: %w", err)
	}
	engineOpts := []core.Option{
		core.WithLogger(r.log),
		core.WithSpatialIndex(r.useIndex),
	}
	if r.metrics != nil {
		engineOpts = append(engineOpts, core.WithTickRecorder(r.metrics))
	}
	r.engine, err = core.NewSimulationEngine(world, sc.Params, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("NewRunner: %w", err)
	}

	r.clock = timectrl.NewTimeController(time.Unix(0, 0).UTC(), sc.Params.DeltaTime, r.mode)
	r.summary = Summary{RunID: r.runID, Scenario: r.scenario}
	return r, nil
}

// RunID returns the identifier stamped on every snapshot of this run.
func (r *Runner) RunID() string { return r.runID }

// Store returns the snapshot store the runner publishes into.
func (r *Runner) Store() *kb.SnapshotStore { return r.store }

// Params returns the physical constants of the run.
func (r *Runner) Params() core.Params { return r.engine.Params }

// Run publishes the initial snapshot and steps the engine until no live
// hostile remains, the tick limit is reached, or ctx is cancelled. A
// cancelled run returns its partial summary together with ctx's error.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if !r.started.CompareAndSwap(false, true) {
		return r.Summary(), ErrAlreadyStarted
	}
	ctx = logging.ContextWithRunID(ctx, r.runID)
	ctx, span := r.tracer.Start(ctx, observability.SpanRun, trace.WithAttributes(
		observability.AttrRunID.String(r.runID),
		observability.AttrScenario.String(r.scenario),
		attribute.Int("swarm.agents", r.engine.World.Len()),
	))
	defer span.End()

	started := time.Now()
	r.log.Info(ctx, "simulation starting",
		logging.String("mode", r.mode.String()),
		logging.Int("friendlies", r.engine.World.LiveCount(model.FactionFriendly)),
		logging.Int("hostiles", r.engine.World.LiveCount(model.FactionHostile)),
		logging.Int("max_ticks", r.maxTicks),
	)

	r.publish(ctx, core.TickReport{
		Active:         r.engine.World.LiveCount(model.FactionHostile) > 0,
		LiveFriendlies: r.engine.World.LiveCount(model.FactionFriendly),
		LiveHostiles:   r.engine.World.LiveCount(model.FactionHostile),
	})

	r.clock.AddListener(func(time.Time) {
		if !r.step(ctx) {
			r.clock.Stop()
		}
	})
	<-r.clock.Start(ctx, 0)

	r.mu.Lock()
	r.summary.WallTime = time.Since(started)
	sum := r.summary
	r.mu.Unlock()

	span.SetAttributes(
		attribute.Int("swarm.ticks", sum.Ticks),
		attribute.Bool("swarm.finished", sum.Finished),
		attribute.Int("swarm.engagements", sum.Engagements),
	)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.log.Warn(ctx, "simulation interrupted", logging.Int("tick", sum.Ticks), logging.Err(err))
		return sum, err
	}

	r.log.Info(ctx, "simulation finished",
		logging.Int("ticks", sum.Ticks),
		logging.Duration("elapsed", sum.Elapsed),
		logging.Bool("all_hostiles_neutralized", sum.Finished),
		logging.Int("friendlies_remaining", sum.FriendliesRemaining),
		logging.Int("engagements", sum.Engagements),
		logging.Duration("wall_time", sum.WallTime),
	)
	return sum, nil
}

// step runs one engine tick under a span and reports whether the run
// should continue.
func (r *Runner) step(ctx context.Context) bool {
	ctx, span := r.tracer.Start(ctx, observability.SpanTick,
		trace.WithAttributes(observability.AttrTick.Int(r.engine.Tick()+1)))
	defer span.End()

	var rep core.TickReport
	if r.dwellDue == nil {
		rep = r.engine.Step(ctx)
		if !rep.Active {
			if wait := r.engine.PendingDwell(); wait > 0 {
				r.dwellDue = r.clock.After(wait)
				r.log.Debug(ctx, "waiting for neutralized hostiles to clear", logging.Duration("dwell", wait))
			}
		}
	} else {
		rep = r.engine.Settle(ctx)
	}
	settling := false
	if r.dwellDue != nil {
		select {
		case <-r.dwellDue:
		default:
			settling = true
		}
	}

	span.SetAttributes(
		observability.AttrTick.Int(rep.Tick),
		attribute.Bool("swarm.active", rep.Active),
		attribute.Int("swarm.live_friendlies", rep.LiveFriendlies),
		attribute.Int("swarm.live_hostiles", rep.LiveHostiles),
		attribute.Int("swarm.claims", len(rep.Claims)),
	)
	for _, e := range rep.Engagements {
		span.AddEvent("engagement", trace.WithAttributes(
			attribute.Int("swarm.hostile_id", int(e.HostileID)),
			attribute.Int("swarm.friendly_id", int(e.FriendlyID)),
			attribute.Float64("swarm.distance", e.Distance),
		))
	}

	r.mu.Lock()
	r.summary.Ticks = rep.Tick
	r.summary.Elapsed = rep.Elapsed
	r.summary.Finished = !rep.Active
	r.summary.FriendliesRemaining = rep.LiveFriendlies
	r.summary.HostilesRemaining = rep.LiveHostiles
	r.summary.Engagements += len(rep.Engagements)
	r.summary.Claims += len(rep.Claims)
	r.mu.Unlock()

	// Snapshots stay active until the last blinking hostile is gone.
	rep.Active = rep.Active || settling
	r.publish(ctx, rep)

	if !rep.Active {
		return false
	}
	if settling {
		return true
	}
	if r.maxTicks > 0 && rep.Tick >= r.maxTicks {
		r.log.Info(ctx, "tick limit reached", logging.Int("max_ticks", r.maxTicks))
		return false
	}
	return true
}

func (r *Runner) publish(ctx context.Context, rep core.TickReport) {
	snap := kb.Snapshot{
		RunID:       r.runID,
		Scenario:    r.scenario,
		Tick:        rep.Tick,
		Elapsed:     rep.Elapsed,
		Active:      rep.Active,
		Paused:      r.clock.Paused(),
		Agents:      r.engine.World.Snapshot(),
		Claims:      rep.Claims,
		Engagements: rep.Engagements,
	}
	if err := r.store.Publish(snap); err != nil {
		r.log.Warn(ctx, "snapshot publish failed", logging.Int("tick", rep.Tick), logging.Err(err))
	}
}

// Pause stops the simulation clock. The latest snapshot is republished with
// Paused set so watchers see the change immediately.
func (r *Runner) Pause() { r.setPaused(true) }

// Resume continues a paused run.
func (r *Runner) Resume() { r.setPaused(false) }

// TogglePause flips the pause state and returns the new one.
func (r *Runner) TogglePause() bool {
	paused := !r.clock.Paused()
	r.setPaused(paused)
	return paused
}

// Paused reports whether the run is paused.
func (r *Runner) Paused() bool { return r.clock.Paused() }

func (r *Runner) setPaused(paused bool) {
	if paused == r.clock.Paused() {
		return
	}
	if paused {
		r.clock.Pause()
	} else {
		r.clock.Resume()
	}
	ctx := logging.ContextWithRunID(context.Background(), r.runID)
	r.log.Info(ctx, "pause state changed", logging.Bool("paused", paused))

	snap, ok := r.store.Latest()
	if !ok || snap.RunID != r.runID {
		return
	}
	snap.Paused = paused
	snap.PublishedAt = time.Time{}
	snap.Claims = nil
	snap.Engagements = nil
	if err := r.store.Publish(snap); err != nil && !errors.Is(err, kb.ErrOutOfOrder) {
		r.log.Warn(ctx, "pause snapshot publish failed", logging.Err(err))
	}
}

// Summary returns the run summary so far.
func (r *Runner) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}
