package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/authresolve/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.ObservabilityConfig{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan_RecordsErrorsAndEvents(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), TracerIdentity, "identity.Test",
		attribute.String(AttrTier, "snapshot"),
	)
	AddEvent(span, "tier.skipped")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "identity.Test", ended[0].Name())
	assert.Len(t, ended[0].Events(), 2) // tier.skipped + exception
	assert.Equal(t, "boom", ended[0].Status().Description)
}

func TestResolutionMetrics_NilSafe(t *testing.T) {
	var m *ResolutionMetrics
	ctx := context.Background()
	m.RecordResolution(ctx, "snapshot")
	m.RecordSafetyNet(ctx)
	m.RecordGrantSourceError(ctx, "relational")

	m, err := NewResolutionMetrics()
	require.NoError(t, err)
	m.RecordResolution(ctx, "")
}
