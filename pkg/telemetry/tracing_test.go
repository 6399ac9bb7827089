package telemetry

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

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestGetSampler(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "always", cfg: Config{SamplerType: "always"}, want: "AlwaysOnSampler"},
		{name: "never", cfg: Config{SamplerType: "never"}, want: "AlwaysOffSampler"},
		{name: "ratio", cfg: Config{SamplerType: "ratio", SamplerRatio: 0.5}, want: "ParentBased{root:TraceIDRatioBased{0.5}"},
		{name: "ratio above one samples everything", cfg: Config{SamplerType: "ratio", SamplerRatio: 2}, want: "ParentBased{root:AlwaysOnSampler"},
		{name: "negative ratio samples nothing", cfg: Config{SamplerType: "ratio", SamplerRatio: -1}, want: "ParentBased{root:TraceIDRatioBased{0}"},
		{name: "unknown falls back to always", cfg: Config{SamplerType: "sometimes"}, want: "AlwaysOnSampler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, getSampler(tt.cfg).Description(), tt.want)
		})
	}
}

func TestWithSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(previous)

	err := WithSpan(context.Background(), "upload.commit", func(context.Context) error {
		return errors.New("github unavailable")
	}, attribute.Int("files", 3))
	require.Error(t, err)

	require.NoError(t, WithSpan(context.Background(), "upload.persist", func(context.Context) error {
		return nil
	}))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "upload.commit", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("files", 3))

	assert.Equal(t, "upload.persist", spans[1].Name())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}
