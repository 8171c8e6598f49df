package observability

import (
	"bytes"
	"context"
	"encoding/json"
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

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, NopLogger())

	assert.NoError(t, err)
	assert.Nil(t, providers)
}

func TestShutdownOTel(t *testing.T) {
	t.Run("nil providers", func(t *testing.T) {
		assert.NoError(t, ShutdownOTel(context.Background(), nil, NopLogger()))
	})

	t.Run("tracer provider only", func(t *testing.T) {
		providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}
		assert.NoError(t, ShutdownOTel(context.Background(), providers, NopLogger()))
	})
}

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSpan(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartSpan(context.Background(), "rbac.check", attribute.String("resource", "exercise"))
	EndSpan(span, nil)

	_, failed := StartSpan(context.Background(), "status.create")
	EndSpan(failed, errors.New("conflict"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "rbac.check", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("resource", "exercise"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "status.create", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "conflict", spans[1].Status().Description)
}

func TestUpdateLoggerWithTraceContext(t *testing.T) {
	installRecorder(t)

	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("no span leaves logger unchanged", func(t *testing.T) {
		assert.Same(t, logger, UpdateLoggerWithTraceContext(context.Background(), logger))
	})

	t.Run("span adds trace and span ids", func(t *testing.T) {
		ctx, span := StartSpan(context.Background(), "request")
		defer span.End()

		buf.Reset()
		UpdateLoggerWithTraceContext(ctx, logger).Info("traced")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
	})
}
