package exporters

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewSpanExporter(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	tests := []struct {
		name    string
		wantNil bool
		wantErr bool
	}{
		{name: "stdout"},
		{name: "none", wantNil: true},
		{name: "", wantNil: true},
		{name: "otlp", wantNil: true, wantErr: true},
		{name: "jaeger", wantNil: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := NewSpanExporter(context.Background(), Options{Name: tt.name, Writer: &bytes.Buffer{}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSpanExporter(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if (exp == nil) != tt.wantNil {
				t.Errorf("NewSpanExporter(%q) exporter nil = %v, want %v", tt.name, exp == nil, tt.wantNil)
			}
		})
	}
}

func TestNewSpanExporter_OTLPMissingEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	_, err := NewSpanExporter(context.Background(), Options{Name: "otlp"})
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("error = %v, want ErrEndpointNotConfigured", err)
	}
}

func TestNewSpanExporter_OTLPWithEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4317")

	exp, err := NewSpanExporter(context.Background(), Options{Name: "otlp"})
	if err != nil {
		t.Fatalf("NewSpanExporter(otlp) error = %v", err)
	}
	_ = exp.Shutdown(context.Background())
}

func TestNewMetricReader(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	tests := []struct {
		name    string
		wantNil bool
		wantErr string
	}{
		{name: "stdout"},
		{name: "prometheus"},
		{name: "none", wantNil: true},
		{name: "otlp", wantNil: true, wantErr: "endpoint"},
		{name: "bogus", wantNil: true, wantErr: "unknown metrics exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewMetricReader(context.Background(), Options{Name: tt.name, Writer: &bytes.Buffer{}})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("NewMetricReader(%q) error = %v", tt.name, err)
			}
			if (reader == nil) != tt.wantNil {
				t.Errorf("reader nil = %v, want %v", reader == nil, tt.wantNil)
			}
		})
	}
}
