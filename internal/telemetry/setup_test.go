package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseSinks(t *testing.T) {
	sinks, err := ParseSinks([]string{" Console", "file", "", "console", "REMOTE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Sink{SinkConsole, SinkFile, SinkRemote}
	if len(sinks) != len(want) {
		t.Fatalf("expected %v, got %v", want, sinks)
	}
	for i := range want {
		if sinks[i] != want[i] {
			t.Errorf("sink %d: expected %s, got %s", i, want[i], sinks[i])
		}
	}

	if _, err := ParseSinks([]string{"syslog"}); !errors.Is(err, ErrUnknownSink) {
		t.Errorf("expected ErrUnknownSink, got %v", err)
	}
}

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    Protocol
		wantErr bool
	}{
		{"", ProtocolHTTP, false},
		{"http", ProtocolHTTP, false},
		{"http/protobuf", ProtocolHTTP, false},
		{"GRPC", ProtocolGRPC, false},
		{"thrift", "", true},
	}

	for _, tt := range tests {
		got, err := ParseProtocol(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownProtocol) {
				t.Errorf("ParseProtocol(%q): expected ErrUnknownProtocol, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseProtocol(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestSignalEndpoint(t *testing.T) {
	httpOpts := Options{Protocol: ProtocolHTTP, Endpoint: "http://collector:4318/"}
	if got := signalEndpoint(httpOpts, "", "traces"); got != "http://collector:4318/v1/traces" {
		t.Errorf("unexpected http endpoint: %s", got)
	}
	if got := signalEndpoint(httpOpts, "http://other:4318/custom", "traces"); got != "http://other:4318/custom" {
		t.Errorf("override should be used as is, got %s", got)
	}

	grpcOpts := Options{Protocol: ProtocolGRPC, Endpoint: "http://collector:4317"}
	if got := signalEndpoint(grpcOpts, "", "logs"); got != "http://collector:4317" {
		t.Errorf("unexpected grpc endpoint: %s", got)
	}
}

func TestSetup_ConsoleSink(t *testing.T) {
	var stdout bytes.Buffer
	m := NewMetrics()

	tel, err := Setup(context.Background(), Options{
		ServiceName:    "storefront-test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
		Sinks:          []Sink{SinkConsole},
		LogLevel:       "info",
		Stdout:         &stdout,
	}, m.Registry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, span := StartSpan(context.Background(), tel.Tracer(), "homepage-load")
	span.End()
	tel.Logger.Info("hello")

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("expected log record on console, got %q", out)
	}
	if !strings.Contains(out, "homepage-load") {
		t.Errorf("expected span on console, got %q", out)
	}

	// Повторный Shutdown безопасен
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("second shutdown should be a no-op: %v", err)
	}
}

func TestSetup_NoSinks(t *testing.T) {
	tel, err := Setup(context.Background(), Options{ServiceName: "quiet"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, span := StartSpan(context.Background(), tel.Tracer(), "noop")
	span.End()
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
