// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Tracer records spans for the proxy's request/upstream pipeline. Both the
// OTel-backed OtelTracer and NoopTracer satisfy it, so callers never branch
// on whether tracing is enabled.
type Tracer interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
	StartRequest(ctx context.Context, profile, model string, stream bool) (context.Context, trace.Span)
	StartUpstreamCall(ctx context.Context, provider, wireModel string, attempt int) (context.Context, trace.Span)
	AddUsage(span trace.Span, inputTokens, outputTokens int)
	AddStopReason(span trace.Span, reason string)
	AddPayload(span trace.Span, request, response string)
	AddStreamChunk(span trace.Span, index int)
	RecordError(span trace.Span, err error)
	DebugExporter() *DebugExporter
	Shutdown(ctx context.Context) error
}

// OtelTracer wraps an OpenTelemetry tracer with proxy-specific span helpers.
type OtelTracer struct {
	provider       *sdktrace.TracerProvider
	tracer         trace.Tracer
	debugExporter  *DebugExporter
	capturePayload bool
	serviceName    string
}

var _ Tracer = (*OtelTracer)(nil)

// TracerOption configures an OtelTracer.
type TracerOption func(*OtelTracer)

// WithDebugExporter attaches an in-memory span exporter for inspection.
func WithDebugExporter(exporter *DebugExporter) TracerOption {
	return func(t *OtelTracer) {
		t.debugExporter = exporter
	}
}

// WithCapturePayloads enables capturing full request/response bodies in spans.
func WithCapturePayloads(capture bool) TracerOption {
	return func(t *OtelTracer) {
		t.capturePayload = capture
	}
}

// NewTracer creates a Tracer from configuration. It returns (nil, nil) when
// tracing is disabled, matching the nil-safe pattern used throughout this
// package.
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SamplingRate)

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &OtelTracer{
		provider:    provider,
		tracer:      provider.Tracer(cfg.ServiceName),
		serviceName: cfg.ServiceName,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.debugExporter != nil {
		provider.RegisterSpanProcessor(sdktrace.NewSimpleSpanProcessor(t.debugExporter))
	}

	return t, nil
}

func createExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		return createOTLPExporter(ctx, cfg)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "jaeger", "zipkin":
		return createOTLPExporter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

func createOTLPExporter(ctx context.Context, cfg *TracingConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}

	if cfg.IsInsecure() {
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	return otlptracegrpc.New(ctx, opts...)
}

// Start begins a new span with the given name.
func (t *OtelTracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, noopSpan()
	}
	return t.tracer.Start(ctx, spanName, opts...)
}

// StartRequest begins the top-level span for one frontend request.
func (t *OtelTracer) StartRequest(ctx context.Context, profile, model string, stream bool) (context.Context, trace.Span) {
	return t.Start(ctx, SpanRequest,
		trace.WithAttributes(
			attribute.String(AttrProfile, profile),
			attribute.String(AttrLogicalModel, model),
			attribute.Bool(AttrStream, stream),
		),
	)
}

// StartUpstreamCall begins a span for a single dispatch attempt to the
// upstream provider (one per retry).
func (t *OtelTracer) StartUpstreamCall(ctx context.Context, provider, wireModel string, attempt int) (context.Context, trace.Span) {
	return t.Start(ctx, SpanUpstreamCall,
		trace.WithAttributes(
			attribute.String(AttrProvider, provider),
			attribute.String(AttrWireModel, wireModel),
			attribute.Int(AttrAttempt, attempt),
		),
	)
}

// AddUsage records token usage on a span.
func (t *OtelTracer) AddUsage(span trace.Span, inputTokens, outputTokens int) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int(AttrTokensInput, inputTokens),
		attribute.Int(AttrTokensOutput, outputTokens),
	)
}

// AddStopReason records the translated stop reason on a span.
func (t *OtelTracer) AddStopReason(span trace.Span, reason string) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String(AttrStopReason, reason))
}

// AddPayload attaches the serialized request/response bodies to a span, if
// payload capture is enabled. The request journal (pkg/journal) is the
// durable record of payloads; this is only for live trace inspection.
func (t *OtelTracer) AddPayload(span trace.Span, request, response string) {
	if span == nil || t == nil || !t.capturePayload {
		return
	}
	if request != "" {
		span.SetAttributes(attribute.String(AttrPayloadRequest, request))
	}
	if response != "" {
		span.SetAttributes(attribute.String(AttrPayloadResponse, response))
	}
}

// AddStreamChunk records an SSE chunk event on the upstream call span.
func (t *OtelTracer) AddStreamChunk(span trace.Span, index int) {
	if span == nil {
		return
	}
	span.AddEvent("stream.chunk", trace.WithAttributes(attribute.Int("stream.chunk.index", index)))
}

// RecordError records an error on a span.
func (t *OtelTracer) RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(
		attribute.String(AttrErrorType, fmt.Sprintf("%T", err)),
		attribute.String(AttrErrorMessage, err.Error()),
	)
}

// DebugExporter returns the configured debug exporter, or nil.
func (t *OtelTracer) DebugExporter() *DebugExporter {
	if t == nil {
		return nil
	}
	return t.debugExporter
}

// Shutdown gracefully shuts down the tracer provider.
func (t *OtelTracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTracer returns a tracer registered under the global TracerProvider.
// Useful for ad-hoc spans outside the Manager-managed request/upstream path.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// noopSpan returns a no-op span satisfying trace.Span.
func noopSpan() trace.Span {
	_, span := trace.NewNoopTracerProvider().Tracer("noop").Start(context.Background(), "noop")
	return span
}
