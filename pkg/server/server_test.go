package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/dialect"
	"github.com/kir-gadjello/ant-router/pkg/journal"
	"github.com/kir-gadjello/ant-router/pkg/observability"
	"github.com/kir-gadjello/ant-router/pkg/upstream"
)

// newTestServer builds a Server wired against an upstream test double
// (ts) that answers OpenAI-wire POST /v1/chat/completions, mirroring the
// real Executor's resolveDestination contract (baseURL + "/v1/chat/completions").
func newTestServer(t *testing.T, ts *httptest.Server) *Server {
	t.Helper()

	cfg := &config.Config{
		Server:         config.ServerConfig{Host: "127.0.0.1", Port: 0},
		CurrentProfile: "default",
		Profiles: map[string]*config.ProfileConfig{
			"default": {
				Rules: []config.RuleConfig{{Pattern: "*", Target: "m1"}},
			},
		},
		Providers: map[string]*config.ProviderConfig{
			"test": {BaseURL: ts.URL},
		},
		Models: map[string]*config.ModelConfig{
			"m1": {Provider: "test", APIModelID: "upstream-model"},
		},
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("cfg.Validate() error = %v", err)
	}

	obs, err := observability.NewManager(context.Background(), &observability.Config{})
	if err != nil {
		t.Fatalf("observability.NewManager() error = %v", err)
	}

	executor := upstream.New(observability.NoopTracer{}, observability.NoopMetrics{})
	jrnl := journal.New(t.TempDir()+"/log.jsonl", "", false, "test")

	return New(cfg, obs, executor, nil, jrnl, "test")
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, httptest.NewServer(http.NotFoundHandler()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Fatalf("body = %s, want healthy", rec.Body.String())
	}
}

func TestHandleMessagesBadJSON(t *testing.T) {
	srv := newTestServer(t, httptest.NewServer(http.NotFoundHandler()))

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleMessagesNonStreaming(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req dialect.OpenAIChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "upstream-model" {
			http.Error(w, "unexpected model "+req.Model, http.StatusBadRequest)
			return
		}
		content := "hello there"
		resp := dialect.OpenAIChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: req.Model,
			Choices: []dialect.OpenAIChoice{{
				Index:   0,
				Message: dialect.OpenAIResponseMessage{Role: "assistant", Content: &content},
			}},
			Usage: &dialect.OpenAIUsage{PromptTokens: 3, CompletionTokens: 2},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	srv := newTestServer(t, ts)

	body := `{"model":"claude-3-5-sonnet","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}

	var anthResp dialect.AnthropicResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &anthResp); err != nil {
		t.Fatalf("response did not decode as AnthropicResponse: %v", err)
	}
	if anthResp.Model != "claude-3-5-sonnet" {
		t.Errorf("Model = %q, want echoed request model", anthResp.Model)
	}
	if anthResp.Usage.InputTokens != 3 || anthResp.Usage.OutputTokens != 2 {
		t.Errorf("Usage = %+v, want {3 2}", anthResp.Usage)
	}
}

func TestHandleChatCompletionsPassThrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		_ = json.NewDecoder(r.Body).Decode(&raw)
		if raw["model"] != "upstream-model" {
			http.Error(w, "unexpected model", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-2","object":"chat.completion","model":"upstream-model"}`))
	}))
	defer ts.Close()

	srv := newTestServer(t, ts)

	body := `{"model":"claude-3-5-sonnet","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"chatcmpl-2"`) {
		t.Fatalf("body = %s, want upstream payload forwarded verbatim", rec.Body.String())
	}
}

func TestHandleMessagesUnknownProfile(t *testing.T) {
	// An unknown CurrentProfile on the Config makes the router return
	// ErrUnknownProfile, which the handler answers with 400.
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	srv := newTestServer(t, ts)
	srv.cfg.CurrentProfile = "does-not-exist"

	body := `{"model":"claude-3-5-sonnet","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}
