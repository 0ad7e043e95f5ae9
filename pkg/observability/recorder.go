package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalRecorder GlobalRecorder
	recorderMu     sync.RWMutex
)

// GlobalRecorder is a process-wide metrics sink reachable from packages that
// would otherwise need a *Metrics threaded through every call site (the
// upstream executor, provider clients invoked deep in the request pipeline).
type GlobalRecorder interface {
	RecordUpstreamCall(ctx context.Context, provider, wireModel string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, responseSize int)
}

// OtelRecorder implements GlobalRecorder on top of the go.opentelemetry.io/otel/metric API,
// as an alternative instrument source to the Prometheus-client-backed Metrics in metrics.go
// (useful when metrics are shipped via an OTLP metric exporter rather than scraped).
type OtelRecorder struct {
	upstreamDuration     metric.Float64Histogram
	upstreamCallsTotal   metric.Int64Counter
	upstreamErrorsTotal  metric.Int64Counter
	upstreamInputTokens  metric.Int64Counter
	upstreamOutputTokens metric.Int64Counter

	httpRequestsTotal metric.Int64Counter
	httpDuration      metric.Float64Histogram
	httpResponseSize  metric.Int64Histogram
}

func NewOtelRecorder(meter metric.Meter) (*OtelRecorder, error) {
	upstreamDuration, err := meter.Float64Histogram("proxy.upstream.duration", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	upstreamCallsTotal, err := meter.Int64Counter("proxy.upstream.calls")
	if err != nil {
		return nil, err
	}
	upstreamErrorsTotal, err := meter.Int64Counter("proxy.upstream.errors")
	if err != nil {
		return nil, err
	}
	upstreamInputTokens, err := meter.Int64Counter("proxy.upstream.tokens.input")
	if err != nil {
		return nil, err
	}
	upstreamOutputTokens, err := meter.Int64Counter("proxy.upstream.tokens.output")
	if err != nil {
		return nil, err
	}
	httpRequestsTotal, err := meter.Int64Counter("proxy.http.requests")
	if err != nil {
		return nil, err
	}
	httpDuration, err := meter.Float64Histogram("proxy.http.duration", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	httpResponseSize, err := meter.Int64Histogram("proxy.http.response_size")
	if err != nil {
		return nil, err
	}

	return &OtelRecorder{
		upstreamDuration:     upstreamDuration,
		upstreamCallsTotal:   upstreamCallsTotal,
		upstreamErrorsTotal:  upstreamErrorsTotal,
		upstreamInputTokens:  upstreamInputTokens,
		upstreamOutputTokens: upstreamOutputTokens,
		httpRequestsTotal:    httpRequestsTotal,
		httpDuration:         httpDuration,
		httpResponseSize:     httpResponseSize,
	}, nil
}

func (r *OtelRecorder) RecordUpstreamCall(ctx context.Context, provider, wireModel string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if r == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("wire_model", wireModel),
	}

	r.upstreamDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	r.upstreamCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if inputTokens > 0 {
		r.upstreamInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	}
	if outputTokens > 0 {
		r.upstreamOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))
	}
	if err != nil {
		r.upstreamErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (r *OtelRecorder) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, responseSize int) {
	if r == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}

	r.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	r.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if responseSize > 0 {
		r.httpResponseSize.Record(ctx, int64(responseSize), metric.WithAttributes(attrs...))
	}
}

// noopGlobalRecorder is installed until SetGlobalRecorder is called.
type noopGlobalRecorder struct{}

func (noopGlobalRecorder) RecordUpstreamCall(context.Context, string, string, time.Duration, int, int, error) {
}
func (noopGlobalRecorder) RecordHTTPRequest(context.Context, string, string, int, time.Duration, int) {
}

func SetGlobalRecorder(r GlobalRecorder) {
	recorderMu.Lock()
	defer recorderMu.Unlock()
	globalRecorder = r
}

func GetGlobalRecorder() GlobalRecorder {
	recorderMu.RLock()
	defer recorderMu.RUnlock()
	if globalRecorder == nil {
		return noopGlobalRecorder{}
	}
	return globalRecorder
}
