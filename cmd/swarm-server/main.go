package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/swarm-simulator/core"
	"github.com/signalsfoundry/swarm-simulator/internal/logging"
	"github.com/signalsfoundry/swarm-simulator/internal/observability"
	"github.com/signalsfoundry/swarm-simulator/internal/sim"
	"github.com/signalsfoundry/swarm-simulator/internal/telemetry"
	"github.com/signalsfoundry/swarm-simulator/kb"
	"github.com/signalsfoundry/swarm-simulator/timectrl"
)

// Config holds the server settings.
type Config struct {
	ListenAddress  string
	MetricsAddress string

	Scenario    string
	Tick        time.Duration
	MaxTicks    int
	Mode        timectrl.Mode
	StartPaused bool
	// ExitOnFinish stops the server once the run ends instead of serving
	// the final snapshot until interrupted.
	ExitOnFinish bool
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

	tracingCfg := observability.TracingConfigFromEnv(os.Getenv)
	tracingCfg.Scenario = cfg.Scenario
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

func parseConfig(args []string, getenv func(string) string) (Config, error) {
	fs := flag.NewFlagSet("swarm-server", flag.ContinueOnError)
	grpcAddr := fs.String("grpc-addr", envOr(getenv, "SWARM_GRPC_ADDR", ":50051"), "TCP address the telemetry gRPC server listens on")
	metricsAddr := fs.String("metrics-addr", envOr(getenv, "SWARM_METRICS_ADDR", ":9090"), "HTTP address for Prometheus /metrics (empty disables)")
	scenario := fs.String("scenario", envOr(getenv, "SWARM_SCENARIO", "default"), "built-in scenario name or path to a .json/.yaml file")
	tick := fs.Duration("tick", envDuration(getenv, "SWARM_TICK", 0), "simulated time per tick; 0 keeps the scenario's delta_time")
	maxTicks := fs.Int("max-ticks", envInt(getenv, "SWARM_MAX_TICKS", 0), "stop after this many ticks (0 = until no hostile remains)")
	mode := fs.String("mode", envOr(getenv, "SWARM_MODE", "realtime"), "realtime or accelerated")
	paused := fs.Bool("paused", false, "start with the clock paused; resume over gRPC")
	exitOnFinish := fs.Bool("exit-on-finish", false, "stop serving once the run ends")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	m, ok := timectrl.ParseMode(*mode)
	if !ok {
		return Config{}, fmt.Errorf("unknown mode %q", *mode)
	}
	return Config{
		ListenAddress:  *grpcAddr,
		MetricsAddress: *metricsAddr,
		Scenario:       *scenario,
		Tick:           *tick,
		MaxTicks:       *maxTicks,
		Mode:           m,
		StartPaused:    *paused,
		ExitOnFinish:   *exitOnFinish,
	}, nil
}

// run serves telemetry on lis while the scenario executes. It returns nil
// when ctx ends, or when the run finishes and ExitOnFinish is set.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	sc, err := core.ResolveScenario(cfg.Scenario)
	if err != nil {
		return err
	}
	if cfg.Tick > 0 {
		sc.Params.DeltaTime = cfg.Tick
		if err := sc.Params.Validate(); err != nil {
			return err
		}
	}

	collector, err := observability.NewSimCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("metrics collector: %w", err)
	}
	store := kb.NewSnapshotStore(kb.WithSubscriberHook(collector.SetSubscribers))
	runner, err := sim.NewRunner(sc,
		sim.WithLogger(log),
		sim.WithMetrics(collector),
		sim.WithStore(store),
		sim.WithMaxTicks(cfg.MaxTicks),
		sim.WithMode(cfg.Mode),
		sim.WithTracer(observability.Tracer("github.com/signalsfoundry/swarm-simulator/internal/sim")),
	)
	if err != nil {
		return err
	}
	if cfg.StartPaused {
		runner.Pause()
	}
	metricsSrv := serveMetrics(cfg.MetricsAddress, collector, log)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			telemetry.RequestIDUnaryServerInterceptor(log),
			telemetry.TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			telemetry.RequestIDStreamServerInterceptor(log),
			collector.StreamServerInterceptor(),
		),
	)
	telemetry.RegisterSwarmServiceServer(server, telemetry.NewService(store, runner, log))

	serveErr := make(chan error, 1)
	log.Info(ctx, "starting swarm telemetry server",
		logging.String("addr", lis.Addr().String()),
		logging.String("run_id", runner.RunID()),
	)
	go func() {
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}
		close(serveErr)
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if _, err := runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn(ctx, "simulation run ended with error", logging.Err(err))
		}
	}()

	var finished <-chan struct{}
	if cfg.ExitOnFinish {
		finished = runDone
	}

	var result error
	select {
	case <-ctx.Done():
	case <-finished:
		log.Info(ctx, "run finished, stopping server")
	case err, ok := <-serveErr:
		if ok {
			result = err
		}
	}

	log.Info(ctx, "shutting down swarm telemetry server")
	cancelRun()
	<-runDone
	stopGracefully(server, 5*time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return result
}

// stopGracefully drains in-flight RPCs and falls back to Stop after timeout.
func stopGracefully(server *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		server.Stop()
	}
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
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
