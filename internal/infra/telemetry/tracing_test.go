package telemetry

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/abelngansop-dot/studio-sub000/internal/infra/config"
)

func TestDisabledTracerProvider(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{Enabled: false}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTracerProvider returned error: %v", err)
	}

	_, span := tp.Tracer(TracerName).Start(context.Background(), "write")
	if span.SpanContext().IsSampled() {
		t.Fatalf("disabled tracing must not sample spans")
	}
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}
