package main

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/swarm-simulator/internal/logging"
	"github.com/signalsfoundry/swarm-simulator/internal/telemetry"
	"github.com/signalsfoundry/swarm-simulator/kb"
	"github.com/signalsfoundry/swarm-simulator/timectrl"
)

func startServer(t *testing.T, ctx context.Context, cfg Config) (*telemetry.Client, <-chan error) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	cfg.ListenAddress = lis.Addr().String()

	log := logging.New(logging.Config{Level: "warn", Format: "text"})
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	conn, err := grpc.NewClient(cfg.ListenAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(telemetry.RequestIDUnaryClientInterceptor()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return telemetry.NewClient(conn), errCh
}

func waitSnapshot(t *testing.T, ctx context.Context, client *telemetry.Client) kb.Snapshot {
	t.Helper()
	for {
		snap, err := client.Snapshot(ctx)
		if err == nil {
			return snap
		}
		select {
		case <-ctx.Done():
			t.Fatalf("no snapshot before deadline: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSwarmServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := Config{
		Scenario:    "a",
		Mode:        timectrl.Accelerated,
		StartPaused: true,
	}
	client, errCh := startServer(t, ctx, cfg)

	snap := waitSnapshot(t, ctx, client)
	if snap.Tick != 0 || !snap.Paused || !snap.Active {
		t.Fatalf("initial snapshot tick=%d paused=%v active=%v, want tick 0 paused and active", snap.Tick, snap.Paused, snap.Active)
	}
	if _, err := client.Agent(ctx, snap.Agents[0].ID); err != nil {
		t.Fatalf("Agent(%d): %v", snap.Agents[0].ID, err)
	}

	paused, err := client.SetPaused(ctx, false)
	if err != nil || paused {
		t.Fatalf("SetPaused(false) = %v, %v", paused, err)
	}

	var last kb.Snapshot
	if err := client.Watch(ctx, func(s kb.Snapshot) error {
		last = s
		return nil
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if last.Active || last.Tick == 0 {
		t.Fatalf("watch ended on tick=%d active=%v, want the terminal snapshot", last.Tick, last.Active)
	}

	// The final snapshot stays available after the run ends.
	final, err := client.Snapshot(ctx)
	if err != nil || final.Active {
		t.Fatalf("Snapshot after finish = active %v, %v", final.Active, err)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}

func TestSwarmServerExitOnFinish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, errCh := startServer(t, ctx, Config{
		Scenario:     "a",
		Mode:         timectrl.Accelerated,
		ExitOnFinish: true,
	})
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("server returned error: %v", err)
		}
	case <-ctx.Done():
		t.Fatalf("server did not stop after the run finished")
	}
}

func TestSwarmServerRejectsUnknownScenario(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()
	if err := run(context.Background(), Config{Scenario: "no-such-scenario.yaml"}, logging.Noop(), lis); err == nil {
		t.Fatalf("expected an error for an unknown scenario")
	}
}

func TestParseConfig(t *testing.T) {
	env := map[string]string{"SWARM_SCENARIO": "b", "SWARM_GRPC_ADDR": "127.0.0.1:6000"}
	cfg, err := parseConfig([]string{"-paused", "-mode", "accelerated"}, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.Scenario != "b" || cfg.ListenAddress != "127.0.0.1:6000" || !cfg.StartPaused || cfg.Mode != timectrl.Accelerated {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.MetricsAddress != ":9090" || cfg.Tick != 0 {
		t.Fatalf("defaults = %+v", cfg)
	}
}
