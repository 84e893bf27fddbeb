package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSampler(t *testing.T) {
	assert.Contains(t, Options{}.sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, Options{SampleRatio: 1}.sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, Options{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}

func TestStageSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StageSpan(context.Background(), "pipeline.enact", "ban")
	EndWithError(span, errors.New("Missing Permissions"))
	span.End()

	_, cmd := CommandSpan(context.Background(), "reason", "100")
	EndWithError(cmd, nil)
	cmd.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "pipeline.enact", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("moderation.action", "ban"))
	assert.Len(t, ended[0].Events(), 1, "error recorded as span event")

	assert.Equal(t, "command.reason", ended[1].Name())
	assert.Equal(t, codes.Unset, ended[1].Status().Code)
	assert.Contains(t, ended[1].Attributes(), attribute.String("discord.guild_id", "100"))
}
