package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/swarm-simulator/internal/logging"
)

// Span and attribute names shared by the runner and the tick sampler.
const (
	SpanRun      = "swarm.run"
	SpanTick     = "swarm.tick"
	AttrTick     = attribute.Key("swarm.tick")
	AttrRunID    = attribute.Key("swarm.run_id")
	AttrScenario = attribute.Key("swarm.scenario")
)

// TracingConfig selects the span exporter and how densely a run is traced.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // otlp collector address

	// SampleRatio applies to root spans: runs and incoming RPCs.
	SampleRatio float64
	// TickEvery keeps one swarm.tick span in every TickEvery ticks of a
	// sampled run. Values below 1 keep them all.
	TickEvery int

	// Scenario is recorded on the tracer resource when set.
	Scenario string

	Output io.Writer // stdout exporter destination, defaults to stderr
}

// TracingConfigFromEnv reads the SWARM_TRACING_* variables through getenv.
func TracingConfigFromEnv(getenv func(string) string) TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(getenv("SWARM_TRACING_ENABLED"), "true"),
		ServiceName: getenv("SWARM_TRACING_SERVICE_NAME"),
		Exporter:    strings.ToLower(getenv("SWARM_TRACING_EXPORTER")),
		Endpoint:    getenv("SWARM_OTLP_ENDPOINT"),
		SampleRatio: 1,
		TickEvery:   1,
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "swarm-simulator"
	}
	if cfg.Exporter == "" {
		cfg.Exporter = "stdout"
	}
	if r, err := strconv.ParseFloat(getenv("SWARM_TRACING_SAMPLE_RATIO"), 64); err == nil && r >= 0 && r <= 1 {
		cfg.SampleRatio = r
	}
	if n, err := strconv.Atoi(getenv("SWARM_TRACING_TICK_EVERY")); err == nil && n > 0 {
		cfg.TickEvery = n
	}
	return cfg
}

// tickSampler thins out per-tick spans of a sampled run and hands every
// other span to the ratio sampler.
type tickSampler struct {
	every int
	roots sdktrace.Sampler
}

// NewTickSampler keeps every n-th swarm.tick span, judged by the tick number
// the span starts with, and samples other spans by ratio.
func NewTickSampler(ratio float64, every int) sdktrace.Sampler {
	if every < 1 {
		every = 1
	}
	return tickSampler{every: every, roots: sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))}
}

func (s tickSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if p.Name != SpanTick {
		return s.roots.ShouldSample(p)
	}
	parent := trace.SpanContextFromContext(p.ParentContext)
	drop := sdktrace.SamplingResult{Decision: sdktrace.Drop, Tracestate: parent.TraceState()}
	if parent.IsValid() && !parent.IsSampled() {
		return drop
	}
	for _, kv := range p.Attributes {
		if kv.Key == AttrTick && kv.Value.AsInt64()%int64(s.every) != 0 {
			return drop
		}
	}
	return sdktrace.SamplingResult{Decision: sdktrace.RecordAndSample, Tracestate: parent.TraceState()}
}

func (s tickSampler) Description() string {
	return fmt.Sprintf("SwarmTickSampler{every=%d,%s}", s.every, s.roots.Description())
}

// InitTracing installs the global tracer provider and propagators. With
// tracing disabled a noop provider is installed. The returned function
// flushes and stops the exporter.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "swarm"),
	}
	if cfg.Scenario != "" {
		attrs = append(attrs, AttrScenario.String(cfg.Scenario))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	sampler := NewTickSampler(cfg.SampleRatio, cfg.TickEvery)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.String("sampler", sampler.Description()),
	)
	return tp.Shutdown, nil
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "", "stdout":
		w := cfg.Output
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint(), stdouttrace.WithoutTimestamps())
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	}
	return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
}

// ShutdownWithTimeout flushes spans for at most five seconds and logs, but
// does not return, a failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
