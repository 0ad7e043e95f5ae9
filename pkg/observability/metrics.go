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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the proxy.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// HTTP metrics
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpRequestSize  *prometheus.HistogramVec
	httpResponseSize *prometheus.HistogramVec

	// Routing metrics
	routedRequests *prometheus.CounterVec

	// Upstream metrics
	upstreamCalls        *prometheus.CounterVec
	upstreamCallDuration *prometheus.HistogramVec
	upstreamRetries      *prometheus.CounterVec
	upstreamErrors       *prometheus.CounterVec

	// Token usage metrics
	tokensInput  *prometheus.CounterVec
	tokensOutput *prometheus.CounterVec

	// Rate limit metrics
	rateLimitRejected *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance from configuration.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.initHTTPMetrics()
	m.initRoutingMetrics()
	m.initUpstreamMetrics()
	m.initTokenMetrics()
	m.initRateLimitMetrics()

	return m, nil
}

func (m *Metrics) initHTTPMetrics() {
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	m.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.httpRequestSize, m.httpResponseSize)
}

func (m *Metrics) initRoutingMetrics() {
	m.routedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "router",
			Name:      "resolved_total",
			Help:      "Total number of requests resolved to a wire model, by profile and logical model",
		},
		[]string{"profile", "logical_model", "wire_model"},
	)

	m.registry.MustRegister(m.routedRequests)
}

func (m *Metrics) initUpstreamMetrics() {
	m.upstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Total number of upstream API calls",
		},
		[]string{"provider", "wire_model"},
	)

	m.upstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Upstream API call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"provider", "wire_model"},
	)

	m.upstreamRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Total number of upstream retry attempts, by reason",
		},
		[]string{"provider", "reason"},
	)

	m.upstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Total number of upstream call errors",
		},
		[]string{"provider", "wire_model", "error_type"},
	)

	m.registry.MustRegister(m.upstreamCalls, m.upstreamCallDuration, m.upstreamRetries, m.upstreamErrors)
}

func (m *Metrics) initTokenMetrics() {
	m.tokensInput = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "tokens",
			Name:      "input_total",
			Help:      "Total number of input tokens, estimated where upstream usage is absent",
		},
		[]string{"wire_model"},
	)

	m.tokensOutput = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "tokens",
			Name:      "output_total",
			Help:      "Total number of output tokens, estimated where upstream usage is absent",
		},
		[]string{"wire_model"},
	)

	m.registry.MustRegister(m.tokensInput, m.tokensOutput)
}

func (m *Metrics) initRateLimitMetrics() {
	m.rateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "ratelimit",
			Name:      "rejected_total",
			Help:      "Total number of requests rejected by the upstream rate limiter",
		},
		[]string{"profile", "window"},
	)

	m.registry.MustRegister(m.rateLimitRejected)
}

// =============================================================================
// HTTP Metrics
// =============================================================================

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	status := statusCodeLabel(statusCode)
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if reqSize > 0 {
		m.httpRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	}
	if respSize > 0 {
		m.httpResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
	}
}

// statusCodeLabel converts a status code to a label string.
func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// =============================================================================
// Routing Metrics
// =============================================================================

// RecordRouted records a request's routing resolution.
func (m *Metrics) RecordRouted(profile, logicalModel, wireModel string) {
	if m == nil {
		return
	}
	m.routedRequests.WithLabelValues(profile, logicalModel, wireModel).Inc()
}

// =============================================================================
// Upstream Metrics
// =============================================================================

// RecordUpstreamCall records a single upstream dispatch attempt.
func (m *Metrics) RecordUpstreamCall(provider, wireModel string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamCalls.WithLabelValues(provider, wireModel).Inc()
	m.upstreamCallDuration.WithLabelValues(provider, wireModel).Observe(duration.Seconds())
}

// RecordUpstreamRetry records a retry attempt and its triggering reason
// ("5xx", "connection", or "context_length").
func (m *Metrics) RecordUpstreamRetry(provider, reason string) {
	if m == nil {
		return
	}
	m.upstreamRetries.WithLabelValues(provider, reason).Inc()
}

// RecordUpstreamError records a terminal upstream error.
func (m *Metrics) RecordUpstreamError(provider, wireModel, errorType string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(provider, wireModel, errorType).Inc()
}

// =============================================================================
// Token Metrics
// =============================================================================

// RecordTokens records input/output token usage for a completed exchange.
func (m *Metrics) RecordTokens(wireModel string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.tokensInput.WithLabelValues(wireModel).Add(float64(inputTokens))
	m.tokensOutput.WithLabelValues(wireModel).Add(float64(outputTokens))
}

// =============================================================================
// Rate Limit Metrics
// =============================================================================

// RecordRateLimitRejected records an admission rejected by the upstream rate limiter.
func (m *Metrics) RecordRateLimitRejected(profile, window string) {
	if m == nil {
		return
	}
	m.rateLimitRejected.WithLabelValues(profile, window).Inc()
}

// =============================================================================
// HTTP Handler
// =============================================================================

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
