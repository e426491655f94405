package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/opensource-food/mizan/internal/domain"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), domain.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown failed: %v", err)
	}
}

func TestExporterName(t *testing.T) {
	tests := []struct {
		cfg  domain.TracingConfig
		want string
	}{
		{domain.TracingConfig{}, "none"},
		{domain.TracingConfig{ExporterType: "none"}, "none"},
		{domain.TracingConfig{Endpoint: "collector:4318"}, "otlp"},
		{domain.TracingConfig{ExporterType: "stdout"}, "stdout"},
		{domain.TracingConfig{ExporterType: "otlp"}, "otlp"},
	}

	for _, tt := range tests {
		if got := exporterName(tt.cfg); got != tt.want {
			t.Errorf("exporterName(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}

func TestStdoutProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	tp, err := NewProvider(ctx, domain.TracingConfig{
		Enabled:      true,
		ServiceName:  "mizan-test",
		ExporterType: "stdout",
		SampleRatio:  1,
	}, "test-v1", &buf)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	_, span := tp.Tracer("test").Start(ctx, "engine.Analyze")
	span.End()

	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "engine.Analyze") || !strings.Contains(out, "mizan-test") {
		t.Errorf("expected exported span with service name, got %s", out)
	}
}

func TestZeroSampleRatioDropsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	tp, err := NewProvider(ctx, domain.TracingConfig{ExporterType: "stdout", SampleRatio: 0}, "test", &buf)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	_, span := tp.Tracer("test").Start(ctx, "dropped")
	if span.SpanContext().IsSampled() {
		t.Error("span should not be sampled")
	}
	span.End()
	tp.Shutdown(ctx)

	if strings.Contains(buf.String(), "dropped") {
		t.Error("unsampled span was exported")
	}
}
