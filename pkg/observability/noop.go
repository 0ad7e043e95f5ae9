// SPDX-License-Identifier: AGPL-3.0
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// No-op Manager
// =============================================================================

// NoopManager returns a no-operation Manager that does nothing.
// Use this when observability is completely disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// =============================================================================
// No-op Tracer
// =============================================================================

// NoopTracer returns a no-operation Tracer.
type NoopTracer struct{}

// Start returns a no-op span.
func (NoopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// StartRequest returns a no-op span.
func (NoopTracer) StartRequest(ctx context.Context, _, _ string, _ bool) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// StartUpstreamCall returns a no-op span.
func (NoopTracer) StartUpstreamCall(ctx context.Context, _, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// AddUsage is a no-op.
func (NoopTracer) AddUsage(_ trace.Span, _, _ int) {}

// AddStopReason is a no-op.
func (NoopTracer) AddStopReason(_ trace.Span, _ string) {}

// AddPayload is a no-op.
func (NoopTracer) AddPayload(_ trace.Span, _, _ string) {}

// AddStreamChunk is a no-op.
func (NoopTracer) AddStreamChunk(_ trace.Span, _ int) {}

// RecordError is a no-op.
func (NoopTracer) RecordError(_ trace.Span, _ error) {}

// DebugExporter returns nil.
func (NoopTracer) DebugExporter() *DebugExporter { return nil }

// Shutdown is a no-op.
func (NoopTracer) Shutdown(_ context.Context) error { return nil }

// =============================================================================
// No-op Metrics
// =============================================================================

// NoopMetrics is a metrics implementation that does nothing.
type NoopMetrics struct{}

// Routing metrics - no-op
func (NoopMetrics) RecordRouted(_, _, _ string) {}

// Upstream metrics - no-op
func (NoopMetrics) RecordUpstreamCall(_, _ string, _ time.Duration) {}
func (NoopMetrics) RecordUpstreamRetry(_, _ string)                 {}
func (NoopMetrics) RecordUpstreamError(_, _, _ string)              {}

// Token metrics - no-op
func (NoopMetrics) RecordTokens(_ string, _, _ int) {}

// Rate limit metrics - no-op
func (NoopMetrics) RecordRateLimitRejected(_, _ string) {}

// HTTP metrics - no-op
func (NoopMetrics) RecordHTTPRequest(_, _ string, _ int, _ time.Duration, _, _ int64) {}

// Handler returns a handler that returns 503 Service Unavailable.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

// =============================================================================
// Recorder Interface
// =============================================================================

// Recorder defines the interface for recording metrics.
// This allows for dependency injection and easier testing.
type Recorder interface {
	// Routing metrics
	RecordRouted(profile, logicalModel, wireModel string)

	// Upstream metrics
	RecordUpstreamCall(provider, wireModel string, duration time.Duration)
	RecordUpstreamRetry(provider, reason string)
	RecordUpstreamError(provider, wireModel, errorType string)

	// Token metrics
	RecordTokens(wireModel string, inputTokens, outputTokens int)

	// Rate limit metrics
	RecordRateLimitRejected(profile, window string)

	// HTTP metrics
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64)
}

// Ensure implementations satisfy the interface.
var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopMetrics{}
)
