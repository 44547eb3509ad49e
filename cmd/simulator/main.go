package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/swarm-simulator/core"
	"github.com/signalsfoundry/swarm-simulator/internal/logging"
	"github.com/signalsfoundry/swarm-simulator/internal/sim"
	"github.com/signalsfoundry/swarm-simulator/kb"
	"github.com/signalsfoundry/swarm-simulator/timectrl"
)

// Config holds the headless run settings.
type Config struct {
	Scenario string
	Tick     time.Duration
	MaxTicks int
	Mode     timectrl.Mode
	Index    bool
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := run(ctx, cfg, log, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

func parseConfig(args []string, getenv func(string) string) (Config, error) {
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	scenario := fs.String("scenario", envOr(getenv, "SWARM_SCENARIO", "default"),
		"built-in scenario name ("+strings.Join(core.BuiltinScenarioNames(), ", ")+") or path to a .json/.yaml file")
	tick := fs.Duration("tick", envDuration(getenv, "SWARM_TICK", 0),
		"simulated time per tick; 0 keeps the scenario's delta_time")
	maxTicks := fs.Int("max-ticks", envInt(getenv, "SWARM_MAX_TICKS", 10000),
		"stop after this many ticks (0 = until no hostile remains)")
	mode := fs.String("mode", envOr(getenv, "SWARM_MODE", "accelerated"), "realtime or accelerated")
	index := fs.Bool("spatial-index", true, "use the R-tree for neighbour queries")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	m, ok := timectrl.ParseMode(*mode)
	if !ok {
		return Config{}, fmt.Errorf("unknown mode %q", *mode)
	}
	if *maxTicks < 0 {
		return Config{}, fmt.Errorf("max-ticks must not be negative, got %d", *maxTicks)
	}
	return Config{
		Scenario: *scenario,
		Tick:     *tick,
		MaxTicks: *maxTicks,
		Mode:     m,
		Index:    *index,
	}, nil
}

// run executes one scenario, logging each engagement as it happens, and
// writes the final summary to out.
func run(ctx context.Context, cfg Config, log logging.Logger, out io.Writer) (sim.Summary, error) {
	sc, err := core.ResolveScenario(cfg.Scenario)
	if err != nil {
		return sim.Summary{}, err
	}
	if cfg.Tick > 0 {
		sc.Params.DeltaTime = cfg.Tick
		if err := sc.Params.Validate(); err != nil {
			return sim.Summary{}, err
		}
	}

	store := kb.NewSnapshotStore()
	unsubscribe := store.Subscribe(func(ev kb.Event) {
		switch ev.Type {
		case kb.EventEngagement:
			fmt.Fprintf(out, "[t=%6.1fs] friendly %d engaged hostile %d\n",
				ev.Snapshot.Elapsed.Seconds(), ev.Engagement.FriendlyID, ev.Engagement.HostileID)
		case kb.EventTerminated:
			fmt.Fprintf(out, "[t=%6.1fs] all hostiles neutralized\n", ev.Snapshot.Elapsed.Seconds())
		}
	})
	defer unsubscribe()

	runner, err := sim.NewRunner(sc,
		sim.WithLogger(log),
		sim.WithStore(store),
		sim.WithMaxTicks(cfg.MaxTicks),
		sim.WithMode(cfg.Mode),
		sim.WithSpatialIndex(cfg.Index),
	)
	if err != nil {
		return sim.Summary{}, err
	}

	fmt.Fprintf(out, "Starting scenario %q: %d agents, dt=%s, mode=%s\n",
		sc.Name, len(sc.Records), sc.Params.DeltaTime, cfg.Mode)
	sum, err := runner.Run(ctx)
	printSummary(out, sum)
	return sum, err
}

func printSummary(out io.Writer, sum sim.Summary) {
	outcome := "tick limit reached"
	if sum.Finished {
		outcome = "all hostiles neutralized"
	}
	fmt.Fprintf(out, "Simulation complete (%s).\n", outcome)
	fmt.Fprintf(out, "  run:         %s\n", sum.RunID)
	fmt.Fprintf(out, "  ticks:       %d (%.1fs simulated, %s wall)\n", sum.Ticks, sum.Elapsed.Seconds(), sum.WallTime.Round(time.Millisecond))
	fmt.Fprintf(out, "  engagements: %d\n", sum.Engagements)
	fmt.Fprintf(out, "  friendlies:  %d remaining\n", sum.FriendliesRemaining)
	fmt.Fprintf(out, "  hostiles:    %d remaining\n", sum.HostilesRemaining)
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(getenv func(string) string, key string, def int) int {
	if n, err := strconv.Atoi(getenv(key)); err == nil {
		return n
	}
	return def
}

func envDuration(getenv func(string) string, key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(getenv(key)); err == nil {
		return d
	}
	return def
}
