package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/swarm-simulator/core"
	"github.com/signalsfoundry/swarm-simulator/model"
)

// SimCollector bundles Prometheus metrics for a simulation run and the
// telemetry RPC surface. It satisfies core.TickRecorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks          prometheus.Counter
	TickDurations  prometheus.Histogram
	LiveAgents     *prometheus.GaugeVec
	Engagements    prometheus.Counter
	Claims         prometheus.Counter
	RemovedAgents  *prometheus.CounterVec
	Active         prometheus.Gauge
	Subscribers    prometheus.Gauge
	SimulatedClock prometheus.Gauge

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

var _ core.TickRecorder = (*SimCollector)(nil)

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry returns the existing
// collectors.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &SimCollector{gatherer: gatherer}
	var err error

	if c.Ticks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swarm_ticks_total",
		Help: "Number of active simulation ticks executed.",
	}), "swarm_ticks_total"); err != nil {
		return nil, err
	}
	if c.TickDurations, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swarm_tick_duration_seconds",
		Help:    "Wall-clock time spent computing one simulation tick.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "swarm_tick_duration_seconds"); err != nil {
		return nil, err
	}
	if c.LiveAgents, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swarm_live_agents",
		Help: "Current number of live agents, labeled by faction.",
	}, []string{"faction"}), "swarm_live_agents"); err != nil {
		return nil, err
	}
	if c.Engagements, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swarm_engagements_total",
		Help: "Engagements resolved: each neutralizes one hostile and loses one friendly.",
	}), "swarm_engagements_total"); err != nil {
		return nil, err
	}
	if c.Claims, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swarm_claims_total",
		Help: "Target claims made by friendlies, counted per tick.",
	}), "swarm_claims_total"); err != nil {
		return nil, err
	}
	if c.RemovedAgents, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_removed_agents_total",
		Help: "Agents removed from the arena, labeled by faction.",
	}, []string{"faction"}), "swarm_removed_agents_total"); err != nil {
		return nil, err
	}
	if c.Active, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swarm_simulation_active",
		Help: "1 while at least one live hostile remains, 0 once the run has finished.",
	}), "swarm_simulation_active"); err != nil {
		return nil, err
	}
	if c.Subscribers, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swarm_snapshot_subscribers",
		Help: "Current number of snapshot stream subscribers.",
	}), "swarm_snapshot_subscribers"); err != nil {
		return nil, err
	}
	if c.SimulatedClock, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swarm_simulated_seconds",
		Help: "Simulated time elapsed in the current run.",
	}), "swarm_simulated_seconds"); err != nil {
		return nil, err
	}
	if c.RPCRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_rpc_requests_total",
		Help: "Total number of handled telemetry RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "swarm_rpc_requests_total"); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swarm_rpc_duration_seconds",
		Help:    "Telemetry RPC latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service", "method"}), "swarm_rpc_duration_seconds"); err != nil {
		return nil, err
	}

	c.Active.Set(1)
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one engine tick.
func (c *SimCollector) ObserveTick(rep core.TickReport, took time.Duration) {
	if c == nil {
		return
	}
	c.LiveAgents.WithLabelValues(model.FactionFriendly.String()).Set(float64(rep.LiveFriendlies))
	c.LiveAgents.WithLabelValues(model.FactionHostile.String()).Set(float64(rep.LiveHostiles))

	if !rep.Active {
		c.Active.Set(0)
		if !rep.Settled {
			return
		}
	} else {
		c.Active.Set(1)
	}
	c.Ticks.Inc()
	c.TickDurations.Observe(took.Seconds())
	c.SimulatedClock.Set(rep.Elapsed.Seconds())
	c.Claims.Add(float64(len(rep.Claims)))
	c.Engagements.Add(float64(len(rep.Engagements)))

	// Every engagement costs exactly one friendly; the rest of the removals
	// are hostiles whose blink dwell ran out.
	friendlies := len(rep.Engagements)
	if hostiles := len(rep.Removed) - friendlies; hostiles > 0 {
		c.RemovedAgents.WithLabelValues(model.FactionHostile.String()).Add(float64(hostiles))
	}
	if friendlies > 0 {
		c.RemovedAgents.WithLabelValues(model.FactionFriendly.String()).Add(float64(friendlies))
	}
}

// SetSubscribers updates the snapshot subscriber gauge.
func (c *SimCollector) SetSubscribers(n int) {
	if c == nil || c.Subscribers == nil {
		return
	}
	c.Subscribers.Set(float64(n))
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *SimCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		c.observeRPC(fullMethod, err, time.Since(start))
		return resp, err
	}
}

// StreamServerInterceptor records counts and total stream lifetimes for
// streaming RPCs.
func (c *SimCollector) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		c.observeRPC(fullMethod, err, time.Since(start))
		return err
	}
}

func (c *SimCollector) observeRPC(fullMethod string, err error, took time.Duration) {
	if c == nil {
		return
	}
	service, method := SplitMethod(fullMethod)
	if c.RPCRequests != nil {
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
	}
	if c.RPCDurations != nil {
		c.RPCDurations.WithLabelValues(service, method).Observe(took.Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}
