package tracing

import (
	"context"
	"fmt"

	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "warden"

// tracer is looked up on every call since the global provider is only set
// by Init.
func tracer() trace.Tracer {
	return otel.Tracer(serviceName)
}

// Options configures the exporter of Init.
type Options struct {
	// Endpoint is the OTLP/HTTP collector as host:port.
	Endpoint string

	// SampleRatio is the share of root spans kept, in (0, 1]. Child spans
	// follow their parent.
	SampleRatio float64
}

func (o Options) sampler() sdktrace.Sampler {
	if o.SampleRatio <= 0 || o.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))
}

// Init registers a global tracer provider exporting pipeline, reconciliation
// and command spans over OTLP/HTTP. The caller shuts the provider down to
// flush pending spans.
func Init(ctx context.Context, opts Options) (*sdktrace.TracerProvider, error) {
	otel.SetLogger(zerologr.New(&log.Logger))

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(opts.sampler()),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp, nil
}

// StageSpan starts a span for one step of the moderation pipeline or of
// audit log reconciliation.
func StageSpan(ctx context.Context, name, action string) (context.Context, trace.Span) {
	return tracer().Start(ctx, name,
		trace.WithAttributes(
			attribute.String("moderation.action", action),
		),
	)
}

// CommandSpan starts a span for a slash command or autocomplete interaction.
func CommandSpan(ctx context.Context, command, guildID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "command."+command,
		trace.WithAttributes(
			attribute.String("discord.command", command),
			attribute.String("discord.guild_id", guildID),
		),
	)
}

// EndWithError marks span as failed with err. A nil err leaves it alone.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
