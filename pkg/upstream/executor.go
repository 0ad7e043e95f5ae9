package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/httpclient"
	"github.com/kir-gadjello/ant-router/pkg/observability"
)

const (
	connectTimeout     = 30 * time.Second
	defaultReadTimeout = 300 * time.Second
)

// Executor dispatches translated requests to upstream providers. One
// Executor is built at process startup and shared by every request
// goroutine: it owns the single *http.Client mandated by §5's resource
// policy, so connections are pooled across the whole process rather than
// per-call.
type Executor struct {
	httpClient *http.Client
	tracer     observability.Tracer
	metrics    observability.Recorder
}

// New builds an Executor with the shared connect/read-timeout transport
// from §5 (30s connect, 300s to receive response headers - bounding time
// to first byte without capping a long-lived SSE stream's total duration).
// Callers pass observability.NoopTracer{}/observability.NoopMetrics{} when
// observability is disabled rather than nil, per those types' own contract.
func New(tracer observability.Tracer, metrics observability.Recorder) *Executor {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: defaultReadTimeout,
	}
	return &Executor{
		httpClient: &http.Client{Transport: transport},
		tracer:     tracer,
		metrics:    metrics,
	}
}

// Execute POSTs body to the model's resolved provider, retrying on 5xx and
// connection errors and adapting once on a context-length overflow (§4.7).
// The returned CancelFunc bounds the per-call context.WithTimeout derived
// from the model's api_params.timeout (or defaultReadTimeout); the caller
// must invoke it once the response body (including any SSE stream) has been
// fully consumed - not before, since cancelling aborts an in-flight stream.
func (e *Executor) Execute(ctx context.Context, cfg *config.Config, model *config.ModelConfig, wireModel string, body []byte) (*http.Response, context.CancelFunc, error) {
	providerName, provider := resolveProvider(cfg, model)
	baseURL, authHeader, authPrefix, apiKeyEnvVar, headers := resolveDestination(cfg, provider, model)
	apiKey := config.ResolveAPIKey(apiKeyEnvVar, cfg.Upstream.APIKeyEnvVar)

	timeout := defaultReadTimeout
	if model != nil && model.APIParams != nil && model.APIParams.Timeout != "" {
		if d, err := time.ParseDuration(model.APIParams.Timeout); err == nil {
			timeout = d
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)

	url := strings.TrimRight(baseURL, "/") + "/v1/chat/completions"
	maxRetries, backoffMs := retryPolicy(model)
	clientOpts := []httpclient.Option{
		httpclient.WithHTTPClient(e.httpClient),
		httpclient.WithMaxRetries(maxRetries),
		httpclient.WithBaseDelay(time.Duration(backoffMs)*time.Millisecond),
		httpclient.WithRetryStrategy(retryStrategy),
	}
	if provider != nil && provider.TLS != nil {
		// A custom CA or insecure-skip-verify applies to this provider only,
		// so it gets a dedicated *http.Client rather than mutating the
		// process-wide shared one e.httpClient points at.
		clientOpts = append(clientOpts, httpclient.WithHTTPClient(nil), httpclient.WithTLSConfig(provider.TLS))
	}
	client := httpclient.New(clientOpts...)

	spanCtx, span := e.tracer.StartUpstreamCall(callCtx, providerName, wireModel, 1)
	defer span.End()
	start := time.Now()

	resp, err := doRequest(client, spanCtx, url, body, authHeader, authPrefix, apiKey, headers)
	// pkg/httpclient's Do pairs a non-nil err with a non-nil resp for any
	// NoRetry-classified non-2xx status (including an exhausted 5xx retry
	// loop, which still carries the last real response) - only a nil resp
	// means the call never got a response at all (connection failure,
	// possibly after exhausting connection-error retries).
	if resp == nil {
		e.tracer.RecordError(span, err)
		e.metrics.RecordUpstreamRetry(providerName, "exhausted")
		e.metrics.RecordUpstreamError(providerName, wireModel, errorType(err))
		cancel()
		return nil, nil, err
	}

	if resp.StatusCode == http.StatusBadRequest {
		resp = e.tryAdaptContextLength(spanCtx, client, url, authHeader, authPrefix, apiKey, headers, body, resp)
	}

	e.metrics.RecordUpstreamCall(providerName, wireModel, time.Since(start))
	if resp.StatusCode >= 400 {
		e.metrics.RecordUpstreamError(providerName, wireModel, fmt.Sprintf("http_%d", resp.StatusCode))
	}
	return resp, cancel, nil
}

// tryAdaptContextLength implements the one-shot adaptive retry: on a 400
// whose body matches the context-length-overflow pattern, it lowers
// max_tokens and retries once. Any failure along the way falls back to
// returning the original 400 response with its body restored for the
// caller to surface as-is.
func (e *Executor) tryAdaptContextLength(ctx context.Context, client *httpclient.Client, url, authHeader, authPrefix, apiKey string, headers map[string]string, originalBody []byte, resp *http.Response) *http.Response {
	errBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		resp.Body = io.NopCloser(bytes.NewReader(nil))
		return resp
	}

	adapted, ok := adaptMaxTokens(errBody, originalBody)
	if !ok {
		resp.Body = io.NopCloser(bytes.NewReader(errBody))
		return resp
	}

	retried, err := doRequest(client, ctx, url, adapted, authHeader, authPrefix, apiKey, headers)
	if err != nil {
		resp.Body = io.NopCloser(bytes.NewReader(errBody))
		return resp
	}
	return retried
}

func doRequest(client *httpclient.Client, ctx context.Context, url string, body []byte, authHeader, authPrefix, apiKey string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(authHeader, authPrefix+apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return client.Do(req)
}

// retryStrategy classifies connection errors (status 0, injected by
// pkg/httpclient's Do on a transport failure) alongside 5xx responses as
// retryable, per §4.7's "5xx and connection errors".
func retryStrategy(statusCode int) httpclient.RetryStrategy {
	if statusCode == 0 || statusCode >= 500 {
		return httpclient.SmartRetry
	}
	return httpclient.NoRetry
}

func retryPolicy(model *config.ModelConfig) (maxRetries, backoffMs int) {
	backoffMs = 500
	if model == nil || model.APIParams == nil || model.APIParams.Retry == nil {
		return 0, backoffMs
	}
	maxRetries = model.APIParams.Retry.MaxRetries
	if model.APIParams.Retry.BackoffMs > 0 {
		backoffMs = model.APIParams.Retry.BackoffMs
	}
	return maxRetries, backoffMs
}

func resolveProvider(cfg *config.Config, model *config.ModelConfig) (name string, provider *config.ProviderConfig) {
	if model == nil || model.Provider == "" {
		return "", nil
	}
	return model.Provider, cfg.Providers[model.Provider]
}

func resolveDestination(cfg *config.Config, provider *config.ProviderConfig, model *config.ModelConfig) (baseURL, authHeader, authPrefix, apiKeyEnvVar string, headers map[string]string) {
	baseURL = cfg.Upstream.BaseURL
	authHeader, authPrefix = "Authorization", "Bearer "
	apiKeyEnvVar = cfg.Upstream.APIKeyEnvVar
	headers = map[string]string{}

	if provider != nil {
		if provider.BaseURL != "" {
			baseURL = provider.BaseURL
		}
		if provider.AuthHeader != "" {
			authHeader = provider.AuthHeader
		}
		if provider.AuthPrefix != "" {
			authPrefix = provider.AuthPrefix
		}
		if provider.APIKeyEnvVar != "" {
			apiKeyEnvVar = provider.APIKeyEnvVar
		}
		for k, v := range provider.Headers {
			headers[k] = v
		}
	}

	if model != nil && model.APIParams != nil {
		for k, v := range model.APIParams.Headers {
			headers[k] = v
		}
	}

	return baseURL, authHeader, authPrefix, apiKeyEnvVar, headers
}

func errorType(err error) string {
	if _, ok := err.(*httpclient.RetryableError); ok {
		return "retries_exhausted"
	}
	return "connection_error"
}
