package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/ghuser/agritrack/pkg/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		ServiceName:      "test-service",
		ServiceVersion:   "test",
		Environment:      "testing",
		StoreDriver:      config.DriverMemory,
		TraceSampleRatio: 1,
	}
}

func TestSetup_NoOtelEndpoint(t *testing.T) {
	shutdown, handler, err := Setup(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown")
	}
	if handler == nil {
		t.Fatal("expected non-nil metrics handler")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_MetricsHandlerServesPrometheusFormat(t *testing.T) {
	_, handler, err := Setup(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.Contains(ct, "text/plain") {
		t.Errorf("expected text/plain content-type, got %q", ct)
	}
}

func TestSetupSentry_EmptyDSNIsNoop(t *testing.T) {
	if err := SetupSentry(baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Without an initialised client the capture is dropped silently.
	CaptureError(context.Background(), errors.New("boom"), "batch_id", "BTC01ARZ3NDEKTSV4RRFFQ69G5FAV", "dangling")
}

func TestSetup_InstallsTraceContextPropagator(t *testing.T) {
	shutdown, _, err := Setup(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer shutdown(context.Background()) //nolint:errcheck

	fields := otel.GetTextMapPropagator().Fields()
	if !slices.Contains(fields, "traceparent") {
		t.Fatalf("propagator fields %v missing traceparent", fields)
	}
}

func TestSetup_SampleRatio(t *testing.T) {
	tests := []struct {
		name    string
		ratio   float64
		sampled bool
	}{
		{"always", 1, true},
		{"never", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.TraceSampleRatio = tt.ratio
			shutdown, _, err := Setup(context.Background(), cfg)
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
			defer shutdown(context.Background()) //nolint:errcheck

			_, span := otel.Tracer("test").Start(context.Background(), "resolve batch")
			defer span.End()
			if got := span.SpanContext().IsSampled(); got != tt.sampled {
				t.Fatalf("sampled = %v, want %v", got, tt.sampled)
			}
		})
	}
}
