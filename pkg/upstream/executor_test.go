package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/observability"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{BaseURL: baseURL},
		Models:   map[string]*config.ModelConfig{},
	}
}

func TestExecuteSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want Bearer secret", got)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	t.Setenv("TEST_API_KEY", "secret")
	cfg := testConfig(ts.URL)
	cfg.Upstream.APIKeyEnvVar = "TEST_API_KEY"
	model := &config.ModelConfig{}

	e := New(observability.NoopTracer{}, observability.NoopMetrics{})
	resp, cancel, err := e.Execute(context.Background(), cfg, model, "wire-model", []byte(`{"model":"wire-model"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"ok":true}` {
		t.Fatalf("body = %s", body)
	}
}

func TestExecuteRetriesServerErrors(t *testing.T) {
	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	model := &config.ModelConfig{
		APIParams: &config.APIParamsConfig{
			Retry: &config.RetryConfig{MaxRetries: 3, BackoffMs: 1},
		},
	}

	e := New(observability.NoopTracer{}, observability.NoopMetrics{})
	resp, cancel, err := e.Execute(context.Background(), cfg, model, "wire-model", []byte(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 after retries", resp.StatusCode)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

// TestExecuteExhaustsRetriesSurfacesLastResponse mirrors
// original_source/src/handlers.rs's behavior: once a 5xx response itself
// (not a connection failure) survives every retry, it is passed through to
// the caller as a normal response rather than synthesized into a Go error -
// the caller relays its status/body to the client verbatim.
func TestExecuteExhaustsRetriesSurfacesLastResponse(t *testing.T) {
	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	model := &config.ModelConfig{
		APIParams: &config.APIParamsConfig{
			Retry: &config.RetryConfig{MaxRetries: 1, BackoffMs: 1},
		},
	}

	e := New(observability.NoopTracer{}, observability.NoopMetrics{})
	resp, cancel, err := e.Execute(context.Background(), cfg, model, "wire-model", []byte(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil (a received 5xx is not a dispatch failure)", err)
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("attempts = %d, want 2 (initial + 1 retry)", attempts)
	}
}

// TestExecuteConnectionFailureReturnsError covers the genuinely fatal path:
// no response was ever received, so Execute must return a Go error for the
// caller to synthesize a 502.
func TestExecuteConnectionFailureReturnsError(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	model := &config.ModelConfig{
		APIParams: &config.APIParamsConfig{
			Retry: &config.RetryConfig{MaxRetries: 1, BackoffMs: 1},
		},
	}

	e := New(observability.NoopTracer{}, observability.NoopMetrics{})
	_, _, err := e.Execute(context.Background(), cfg, model, "wire-model", []byte(`{}`))
	if err == nil {
		t.Fatal("want error when the upstream is unreachable")
	}
}

func TestExecuteAdaptsContextLength(t *testing.T) {
	var attempts int32
	var secondBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"This model's maximum context length is 8000 tokens. ` +
				`However, you requested about 6500 tokens (6000 in the messages, 500 in the output)."}}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &secondBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	model := &config.ModelConfig{}

	e := New(observability.NoopTracer{}, observability.NoopMetrics{})
	resp, cancel, err := e.Execute(context.Background(), cfg, model, "wire-model", []byte(`{"model":"wire-model","max_tokens":100}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 after adaptive retry", resp.StatusCode)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	// input = 6500-500 = 6000; available = 8000-6000-100 = 1900.
	if secondBody["max_tokens"].(float64) != 1900 {
		t.Fatalf("second request max_tokens = %v, want 1900", secondBody["max_tokens"])
	}
}

func TestExecuteSurfaces400Unmatched(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"not a context length problem"}`))
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	model := &config.ModelConfig{}

	e := New(observability.NoopTracer{}, observability.NoopMetrics{})
	resp, cancel, err := e.Execute(context.Background(), cfg, model, "wire-model", []byte(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "not a context length problem") {
		t.Fatalf("body not restored: %s", body)
	}
}

func TestAdaptMaxTokensNegativeBudgetRejected(t *testing.T) {
	errBody := []byte(`maximum context length is 8000 tokens. You requested about 8500 tokens ` +
		`(8000 in the messages, 500 in the output).`)
	reqBody := []byte(`{"model":"x","max_tokens":500}`)

	// input = 8500-500 = 8000; available = 8000-8000-100 = -100 <= 0 -> not ok.
	if _, ok := adaptMaxTokens(errBody, reqBody); ok {
		t.Fatal("want ok=false for a non-positive budget")
	}
}

func TestAdaptMaxTokensPositiveBudget(t *testing.T) {
	errBody := []byte(`maximum context length is 8000 tokens. You requested about 6500 tokens ` +
		`(6000 in the messages, 500 in the output).`)
	reqBody := []byte(`{"model":"x","max_tokens":500}`)

	adapted, ok := adaptMaxTokens(errBody, reqBody)
	if !ok {
		t.Fatal("want ok=true")
	}
	var parsed map[string]any
	if err := json.Unmarshal(adapted, &parsed); err != nil {
		t.Fatal(err)
	}
	// input = 6500-500 = 6000; available = 8000-6000-100 = 1900.
	if parsed["max_tokens"].(float64) != 1900 {
		t.Fatalf("max_tokens = %v, want 1900", parsed["max_tokens"])
	}
}

func TestAdaptMaxTokensNoMatch(t *testing.T) {
	_, ok := adaptMaxTokens([]byte("some unrelated error"), []byte(`{}`))
	if ok {
		t.Fatal("want ok=false for non-matching body")
	}
}
