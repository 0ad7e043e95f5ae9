package observability

import (
	"context"
	"testing"
	"time"
)

func TestOtelRecorderNilSafe(t *testing.T) {
	ctx := context.Background()
	var r *OtelRecorder

	r.RecordUpstreamCall(ctx, "openrouter", "openai/gpt-4o", 100*time.Millisecond, 150, 50, nil)
	r.RecordHTTPRequest(ctx, "POST", "/v1/messages", 200, 50*time.Millisecond, 1024)

	t.Log("nil *OtelRecorder did not panic")
}

func TestNoopMetrics(t *testing.T) {
	var metrics Recorder = NoopMetrics{}

	metrics.RecordUpstreamCall("openrouter", "openai/gpt-4o", 300*time.Millisecond)
	metrics.RecordUpstreamRetry("openrouter", "5xx")
	metrics.RecordTokens("openai/gpt-4o", 10, 5)
	metrics.RecordRateLimitRejected("default", "minute")
	metrics.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 0, 32)

	t.Log("noop metrics handled correctly")
}

func TestNoopTracer(t *testing.T) {
	var tracer Tracer = NoopTracer{}

	ctx := context.Background()
	_, span := tracer.Start(ctx, "test_span")
	defer span.End()

	t.Log("noop tracer works correctly")
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics

	m.RecordRouted("default", "gpt4", "openai/gpt-4o")
	m.RecordUpstreamCall("openrouter", "openai/gpt-4o", time.Millisecond)
	m.RecordUpstreamRetry("openrouter", "connection")
	m.RecordUpstreamError("openrouter", "openai/gpt-4o", "timeout")
	m.RecordTokens("openai/gpt-4o", 1, 1)
	m.RecordRateLimitRejected("default", "minute")
	m.RecordHTTPRequest("POST", "/v1/messages", 200, time.Millisecond, 10, 10)
}

func TestNewMetricsDisabled(t *testing.T) {
	m, err := NewMetrics(nil)
	if err != nil {
		t.Fatalf("NewMetrics(nil) returned error: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil Metrics when config is nil")
	}

	m2, err := NewMetrics(&MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics(disabled) returned error: %v", err)
	}
	if m2 != nil {
		t.Fatal("expected nil Metrics when disabled")
	}
}

func TestNewMetricsEnabled(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewMetrics(enabled) returned error: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Metrics when enabled")
	}

	m.RecordRouted("default", "gpt4", "openai/gpt-4o")
	m.RecordUpstreamCall("openrouter", "openai/gpt-4o", 10*time.Millisecond)

	if m.Handler() == nil {
		t.Error("expected non-nil metrics handler")
	}
}

func TestGlobalRecorder(t *testing.T) {
	ctx := context.Background()

	// Default, before any SetGlobalRecorder call, must not panic.
	GetGlobalRecorder().RecordUpstreamCall(ctx, "openrouter", "openai/gpt-4o", time.Millisecond, 1, 1, nil)

	SetGlobalRecorder(noopGlobalRecorder{})
	retrieved := GetGlobalRecorder()
	if retrieved == nil {
		t.Error("expected non-nil recorder after SetGlobalRecorder")
	}
	retrieved.RecordHTTPRequest(ctx, "GET", "/health", 200, time.Millisecond, 32)
}
