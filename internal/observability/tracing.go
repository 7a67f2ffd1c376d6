package observability

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/signalsfoundry/airspace-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultOTLPEndpoint = "localhost:4317"

// TracingConfig selects the span exporter and sampler for a simulation run.
// It is produced by the config package; there is no separate env loader.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // otlp only
	SampleRatio float64

	Run RunAttributes
}

// RunAttributes describe the simulation that produced a trace. They are
// attached to the tracer provider's resource so every step span carries them.
type RunAttributes struct {
	RunID    string
	Scenario string // scenario file path, empty for a prompted setup
	Pilot    string
	Capacity int
	Aircraft int
	Steps    int
}

func (r RunAttributes) keyValues() []attribute.KeyValue {
	scenario := r.Scenario
	if scenario == "" {
		scenario = "prompted"
	}
	kvs := []attribute.KeyValue{
		attribute.String("sim.scenario", scenario),
		attribute.Int("sim.capacity", r.Capacity),
		attribute.Int("sim.aircraft", r.Aircraft),
		attribute.Int("sim.steps", r.Steps),
	}
	if r.Pilot != "" {
		kvs = append(kvs, attribute.String("sim.pilot", r.Pilot))
	}
	if r.RunID != "" {
		kvs = append(kvs, attribute.String("sim.run_id", r.RunID))
	}
	return kvs
}

// InitTracing installs the global tracer provider used by the simulation
// engine and returns the function that flushes pending spans. With tracing
// disabled a noop provider is installed and the shutdown does nothing.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tp, err := newProvider(ctx, cfg, exp)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.String("sampler", stepSampler(cfg.SampleRatio).Description()),
	)
	return tp.Shutdown, nil
}

func newProvider(ctx context.Context, cfg TracingConfig, exp sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	service := cfg.ServiceName
	if service == "" {
		service = "airspace-simulator"
	}
	res, err := resource.New(ctx, resource.WithAttributes(append([]attribute.KeyValue{
		attribute.String("service.name", service),
		attribute.String("service.namespace", "airspace"),
	}, cfg.Run.keyValues()...)...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(stepSampler(cfg.SampleRatio)),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

// stepSampler samples whole steps: a RunStep span decides for the spans
// started beneath it.
func stepSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		// stdout carries the event report.
		return stdouttrace.New(
			stdouttrace.WithWriter(os.Stderr),
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout flushes spans within five seconds. Failures are logged,
// not returned, since the run result is already decided.
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
