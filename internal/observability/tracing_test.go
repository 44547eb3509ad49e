package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestTracingConfigFromEnv(t *testing.T) {
	env := map[string]string{
		"SWARM_TRACING_ENABLED":      "TRUE",
		"SWARM_TRACING_EXPORTER":     "OTLP",
		"SWARM_TRACING_SAMPLE_RATIO": "0.25",
		"SWARM_TRACING_TICK_EVERY":   "10",
		"SWARM_OTLP_ENDPOINT":        "collector:4317",
	}
	getenv := func(k string) string { return env[k] }

	cfg := TracingConfigFromEnv(getenv)
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.Endpoint != "collector:4317" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.ServiceName != "swarm-simulator" {
		t.Fatalf("service name = %q, want default", cfg.ServiceName)
	}
	if cfg.SampleRatio != 0.25 || cfg.TickEvery != 10 {
		t.Fatalf("sampling = %v every %d, want 0.25 every 10", cfg.SampleRatio, cfg.TickEvery)
	}

	env["SWARM_TRACING_SAMPLE_RATIO"] = "7"
	env["SWARM_TRACING_TICK_EVERY"] = "-2"
	cfg = TracingConfigFromEnv(getenv)
	if cfg.SampleRatio != 1 || cfg.TickEvery != 1 {
		t.Fatalf("out-of-range sampling = %v every %d, want fallback 1 every 1", cfg.SampleRatio, cfg.TickEvery)
	}
}

func TestTickSamplerKeepsEveryNthTick(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(NewTickSampler(1, 5)),
		sdktrace.WithSpanProcessor(recorder),
	)
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	ctx, run := tracer.Start(context.Background(), SpanRun)
	for tick := 1; tick <= 12; tick++ {
		_, span := tracer.Start(ctx, SpanTick, trace.WithAttributes(AttrTick.Int(tick)))
		span.End()
	}
	run.End()

	var ticks []int64
	runs := 0
	for _, s := range recorder.Ended() {
		switch s.Name() {
		case SpanRun:
			runs++
		case SpanTick:
			for _, kv := range s.Attributes() {
				if kv.Key == AttrTick {
					ticks = append(ticks, kv.Value.AsInt64())
				}
			}
		}
	}
	if runs != 1 || len(ticks) != 2 || ticks[0] != 5 || ticks[1] != 10 {
		t.Fatalf("kept %d runs and ticks %v, want 1 run and ticks [5 10]", runs, ticks)
	}
}

func TestTickSamplerFollowsUnsampledRun(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(NewTickSampler(0, 1)),
		sdktrace.WithSpanProcessor(recorder),
	)
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	ctx, run := tracer.Start(context.Background(), SpanRun)
	_, span := tracer.Start(ctx, SpanTick, trace.WithAttributes(AttrTick.Int(1)))
	span.End()
	run.End()

	if n := len(recorder.Ended()); n != 0 {
		t.Fatalf("recorded %d spans for an unsampled run", n)
	}
}

func TestInitTracingDisabledInstallsNoop(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(noop.TracerProvider); !ok {
		t.Fatalf("tracer provider = %T, want noop", otel.GetTracerProvider())
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	cfg := TracingConfig{
		Enabled:     true,
		ServiceName: "swarm-test",
		Exporter:    "stdout",
		Scenario:    "pincer",
		SampleRatio: 1,
		Output:      &buf,
	}
	shutdown, err := InitTracing(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := Tracer("swarm-test").Start(context.Background(), SpanTick, trace.WithAttributes(AttrTick.Int(1)))
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	out := buf.String()
	if !strings.Contains(out, `"swarm.tick"`) || !strings.Contains(out, "swarm-test") {
		t.Fatalf("exported spans missing name or service:\n%s", out)
	}
	if !strings.Contains(out, `"swarm.scenario"`) || !strings.Contains(out, `"pincer"`) {
		t.Fatalf("exported resource missing scenario:\n%s", out)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "carrier-pigeon", SampleRatio: 1}, nil)
	if err == nil || !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Fatalf("error = %v, want unsupported exporter", err)
	}
}
