package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gdamore/tcell/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/swarm-simulator/core"
	"github.com/signalsfoundry/swarm-simulator/internal/logging"
	"github.com/signalsfoundry/swarm-simulator/internal/render"
	"github.com/signalsfoundry/swarm-simulator/internal/sim"
	"github.com/signalsfoundry/swarm-simulator/internal/telemetry"
	"github.com/signalsfoundry/swarm-simulator/kb"
	"github.com/signalsfoundry/swarm-simulator/timectrl"
)

// Config holds the viewer settings. With Remote set the viewer follows a
// swarm-server instead of running the scenario itself.
type Config struct {
	Scenario string
	Tick     time.Duration
	Mode     timectrl.Mode
	Remote   string
	LogFile  string
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, closeLog, err := openLog(cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Remote != "" {
		err = runRemote(ctx, cfg, screen, log)
		screen.Fini()
	} else {
		var sum sim.Summary
		sum, err = runLocal(ctx, cfg, screen, log)
		screen.Fini()
		fmt.Printf("%s: %d ticks, %.1fs simulated, %d engagements, %d friendlies and %d hostiles remaining\n",
			sum.Scenario, sum.Ticks, sum.Elapsed.Seconds(), sum.Engagements, sum.FriendliesRemaining, sum.HostilesRemaining)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseConfig(args []string, getenv func(string) string) (Config, error) {
	fs := flag.NewFlagSet("swarm-viz", flag.ContinueOnError)
	scenario := fs.String("scenario", envOr(getenv, "SWARM_SCENARIO", "default"), "built-in scenario name or path to a .json/.yaml file")
	tick := fs.Duration("tick", 0, "simulated time per tick; 0 keeps the scenario's delta_time")
	mode := fs.String("mode", "realtime", "realtime or accelerated")
	remote := fs.String("remote", "", "swarm-server address to follow instead of running locally")
	logFile := fs.String("log-file", getenv("SWARM_LOG_FILE"), "write logs to this file (the terminal is taken by the viewer)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	m, ok := timectrl.ParseMode(*mode)
	if !ok {
		return Config{}, fmt.Errorf("unknown mode %q", *mode)
	}
	return Config{Scenario: *scenario, Tick: *tick, Mode: m, Remote: *remote, LogFile: *logFile}, nil
}

func openLog(path string) (logging.Logger, func(), error) {
	if path == "" {
		return logging.Noop(), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log := logging.New(logging.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: "json",
		Output: f,
	})
	return log, func() { _ = f.Close() }, nil
}

// runLocal runs the scenario in-process and shows it until the user quits.
// Quitting before the run ends interrupts it.
func runLocal(ctx context.Context, cfg Config, screen tcell.Screen, log logging.Logger) (sim.Summary, error) {
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

	runner, err := sim.NewRunner(sc, sim.WithLogger(log), sim.WithMode(cfg.Mode))
	if err != nil {
		return sim.Summary{}, err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_, _ = runner.Run(runCtx)
	}()

	viewErr := render.NewViewer(screen, runner.Store(), runner, log).Run(ctx)
	cancelRun()
	<-runDone
	return runner.Summary(), viewErr
}

// runRemote mirrors a swarm-server's snapshots into a local store and
// forwards pause toggles to it.
func runRemote(ctx context.Context, cfg Config, screen tcell.Screen, log logging.Logger) error {
	conn, err := grpc.NewClient(cfg.Remote,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(telemetry.RequestIDUnaryClientInterceptor()),
	)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Remote, err)
	}
	defer conn.Close()

	client := telemetry.NewClient(conn)
	store := kb.NewSnapshotStore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		err := client.Watch(ctx, store.Publish)
		if err != nil && ctx.Err() == nil {
			log.Warn(ctx, "remote watch ended", logging.String("remote", cfg.Remote), logging.Err(err))
		}
	}()

	return render.NewViewer(screen, store, &remoteControl{ctx: ctx, client: client, store: store, log: log}, log).Run(ctx)
}

type remoteControl struct {
	ctx    context.Context
	client *telemetry.Client
	store  *kb.SnapshotStore
	log    logging.Logger
}

func (c *remoteControl) TogglePause() bool {
	want := true
	if snap, ok := c.store.Latest(); ok {
		want = !snap.Paused
	}
	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()
	paused, err := c.client.SetPaused(ctx, want)
	if err != nil {
		c.log.Warn(ctx, "remote pause failed", logging.Err(err))
		return !want
	}
	return paused
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}
