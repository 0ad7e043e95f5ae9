package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kir-gadjello/ant-router/pkg/apierr"
	"github.com/kir-gadjello/ant-router/pkg/dialect"
	"github.com/kir-gadjello/ant-router/pkg/journal"
	"github.com/kir-gadjello/ant-router/pkg/middleware"
	"github.com/kir-gadjello/ant-router/pkg/observability"
	"github.com/kir-gadjello/ant-router/pkg/ratelimit"
	"github.com/kir-gadjello/ant-router/pkg/router"
	"github.com/kir-gadjello/ant-router/pkg/stream"
	"github.com/kir-gadjello/ant-router/pkg/translate"
)

// tracer returns the configured Tracer, or a no-op one: Manager.Tracer() can
// return a nil interface when tracing is disabled, and calling a method on
// a nil Tracer interface panics (unlike *observability.Metrics, whose
// methods are nil-receiver safe).
func (s *Server) tracer() observability.Tracer {
	if t := s.obs.Tracer(); t != nil {
		return t
	}
	return observability.NoopTracer{}
}

// handleMessages implements C10's core pipeline for POST /v1/messages: the
// full Anthropic-dialect request/response/stream translation described by
// §4.1-§4.7, wired through routing (C2), the optional rate limiter (C14),
// the profile's middleware chain (C7), and the shared upstream executor (C8).
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := requestIDFrom(ctx)
	logger := loggerFrom(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.BadRequest("read request body: %v", err))
		return
	}

	var req dialect.AnthropicRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, apierr.BadRequest("decode request: %v", err))
		return
	}

	s.journal.LogRequest(&req)
	s.journal.Trace(journal.FrontendRequest, reqID, &req)

	tr := s.tracer()
	ctx, span := tr.StartRequest(ctx, s.cfg.CurrentProfile, req.Model, req.Stream)
	defer span.End()

	features := router.DeriveFeatures(&req)
	resolution, err := router.Route(s.cfg, s.cfg.CurrentProfile, req.Model, features)
	if err != nil {
		tr.RecordError(span, err)
		switch {
		case errors.Is(err, router.ErrForbidden):
			writeError(w, apierr.Forbidden(err.Error()))
		case errors.Is(err, router.ErrUnknownProfile):
			writeError(w, apierr.BadRequest("%v", err))
		default:
			writeError(w, apierr.BadRequest("%v", err))
		}
		return
	}
	s.obs.Metrics().RecordRouted(resolution.Profile, resolution.LogicalModelID, resolution.WireModel)

	if rejected := s.checkRateLimit(ctx, w, resolution, body); rejected {
		return
	}

	profileCfg := s.cfg.Profiles[resolution.Profile]
	var chain middleware.Chain
	if profileCfg != nil {
		chain, err = middleware.Build(profileCfg.Middleware)
		if err != nil {
			tr.RecordError(span, err)
			writeError(w, apierr.Internal(err))
			return
		}
	}

	if err := chain.OnRequest(&req); err != nil {
		tr.RecordError(span, err)
		writeError(w, apierr.BadRequest("%v", err))
		return
	}

	outReq, err := translate.Request(&req, resolution.WireModel, resolution.Model, resolution.Preprocess)
	if err != nil {
		tr.RecordError(span, err)
		writeError(w, apierr.Internal(err))
		return
	}
	outBody, err := json.Marshal(outReq)
	if err != nil {
		tr.RecordError(span, err)
		writeError(w, apierr.Internal(err))
		return
	}
	if resolution.Model != nil && resolution.Model.APIParams != nil && len(resolution.Model.APIParams.ExtraBody) > 0 {
		outBody, err = translate.MergeExtraBody(outBody, resolution.Model.APIParams.ExtraBody)
		if err != nil {
			tr.RecordError(span, err)
			writeError(w, apierr.Internal(err))
			return
		}
	}

	s.journal.Trace(journal.UpstreamRequest, reqID, json.RawMessage(outBody))

	resp, cancel, err := s.executor.Execute(ctx, s.cfg, resolution.Model, resolution.WireModel, outBody)
	if err != nil {
		tr.RecordError(span, err)
		writeError(w, apierr.BadGateway(err))
		return
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		writeError(w, apierr.UpstreamStatus(resp.StatusCode, errBody))
		return
	}

	if req.Stream {
		s.streamMessages(ctx, w, reqID, &req, resolution, chain, resp)
		return
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tr.RecordError(span, err)
		writeError(w, apierr.BadGateway(err))
		return
	}

	var upstreamResp dialect.OpenAIChatCompletionResponse
	if err := json.Unmarshal(respBody, &upstreamResp); err != nil {
		tr.RecordError(span, err)
		writeError(w, apierr.Internal(err))
		return
	}

	s.journal.Trace(journal.UpstreamResponse, reqID, &upstreamResp)

	anthResp, err := translate.Response(&upstreamResp, resolution.Preprocess)
	if err != nil {
		tr.RecordError(span, err)
		writeError(w, apierr.Internal(err))
		return
	}
	anthResp.Model = req.Model

	if err := chain.OnResponse(anthResp); err != nil {
		tr.RecordError(span, err)
		writeError(w, apierr.Internal(err))
		return
	}

	s.obs.Metrics().RecordTokens(resolution.WireModel, anthResp.Usage.InputTokens, anthResp.Usage.OutputTokens)
	s.journal.RecordInteraction(&req, anthResp)
	s.journal.Trace(journal.FrontendResponse, reqID, anthResp)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(anthResp)
	logger.Debug("messages: completed", "profile", resolution.Profile, "wire_model", resolution.WireModel)
}

// streamMessages translates the upstream OpenAI-dialect SSE stream into an
// Anthropic-dialect SSE stream, per §4.5/§6's event-name set and §5's
// disconnect-propagation requirement.
func (s *Server) streamMessages(ctx context.Context, w http.ResponseWriter, reqID string, req *dialect.AnthropicRequest, resolution *router.Resolution, chain middleware.Chain, resp *http.Response) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apierr.Internal(fmt.Errorf("server: response writer does not support flushing")))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writer := stream.NewClientWriter(w)
	reader := stream.NewUpstreamReader(resp.Body)
	translator := stream.New()

	emit := func(events []dialect.StreamEvent) bool {
		events = chain.TransformStream(events)
		for _, e := range events {
			if err := writer.Write(e); err != nil {
				return false
			}
		}
		flusher.Flush()
		return true
	}

	var lastChunk *dialect.OpenAIChatCompletionChunk
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			emit(translator.Abort(err))
			return
		}
		if stream.IsDone(ev.Data) {
			break
		}
		if ev.Data == "" {
			continue
		}

		var chunk dialect.OpenAIChatCompletionChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			emit(translator.Abort(err))
			return
		}
		lastChunk = &chunk

		if !emit(translator.Chunk(&chunk)) {
			return
		}
	}

	if !emit(translator.Finish()) {
		return
	}

	if lastChunk != nil && lastChunk.Usage != nil {
		s.obs.Metrics().RecordTokens(resolution.WireModel, lastChunk.Usage.PromptTokens, lastChunk.Usage.CompletionTokens)
	}
	s.journal.Trace(journal.FrontendResponse, reqID, map[string]any{"stream": true})
}

// checkRateLimit performs C14's admission check between routing and
// translation, estimating tokens from the raw inbound body via a whitespace
// count (§4.14) - never the client-visible tiktoken estimate used for
// metrics. Returns true (and writes the 429 response) when the request was
// rejected.
func (s *Server) checkRateLimit(ctx context.Context, w http.ResponseWriter, resolution *router.Resolution, body []byte) bool {
	if s.rateLimiter == nil {
		return false
	}
	scope := ratelimit.ScopeFromConfig(s.cfg.RateLimiting)
	identifier := resolution.Profile
	if scope == ratelimit.ScopeGlobal {
		identifier = "global"
	}

	tokenEstimate := int64(len(strings.Fields(string(body))))
	result, err := s.rateLimiter.CheckAndRecord(ctx, scope, identifier, tokenEstimate, 1)
	if err != nil {
		writeError(w, apierr.Internal(err))
		return true
	}
	if !result.Allowed {
		s.obs.Metrics().RecordRateLimitRejected(resolution.Profile, "")
		retryAfter := 60 * time.Second
		if result.RetryAfter != nil {
			retryAfter = *result.RetryAfter
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
		body, _ := json.Marshal(map[string]any{
			"error": map[string]any{"type": "rate_limit_error", "message": result.Reason},
		})
		writeError(w, apierr.UpstreamStatus(http.StatusTooManyRequests, body))
		return true
	}
	return false
}

// handleChatCompletions implements §4.9's OpenAI-wire pass-through proxy:
// the same routing and rate-limit stages as /v1/messages, but the outgoing
// request and returned bytes stay in OpenAI wire form - no dialect
// translation, only the resolved wire model is substituted before dispatch.
// The profile's middleware chain (C7) is not applied on this path.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := requestIDFrom(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.BadRequest("read request body: %v", err))
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, apierr.BadRequest("decode request: %v", err))
		return
	}
	modelAlias, _ := raw["model"].(string)
	streamReq, _ := raw["stream"].(bool)

	tr := s.tracer()
	ctx, span := tr.StartRequest(ctx, s.cfg.CurrentProfile, modelAlias, streamReq)
	defer span.End()

	resolution, err := router.Route(s.cfg, s.cfg.CurrentProfile, modelAlias, router.FeatureSet{})
	if err != nil {
		tr.RecordError(span, err)
		switch {
		case errors.Is(err, router.ErrForbidden):
			writeError(w, apierr.Forbidden(err.Error()))
		default:
			writeError(w, apierr.BadRequest("%v", err))
		}
		return
	}
	s.obs.Metrics().RecordRouted(resolution.Profile, resolution.LogicalModelID, resolution.WireModel)

	if rejected := s.checkRateLimit(ctx, w, resolution, body); rejected {
		return
	}

	raw["model"] = resolution.WireModel
	outBody, err := json.Marshal(raw)
	if err != nil {
		tr.RecordError(span, err)
		writeError(w, apierr.Internal(err))
		return
	}

	s.journal.Trace(journal.UpstreamRequest, reqID, json.RawMessage(outBody))

	resp, cancel, err := s.executor.Execute(ctx, s.cfg, resolution.Model, resolution.WireModel, outBody)
	if err != nil {
		tr.RecordError(span, err)
		writeError(w, apierr.BadGateway(err))
		return
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		writeError(w, apierr.UpstreamStatus(resp.StatusCode, errBody))
		return
	}

	for k, v := range resp.Header {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		for _, vv := range v {
			w.Header().Add(k, vv)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if streamReq {
		flusher, ok := w.(http.Flusher)
		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return
				}
				if ok {
					flusher.Flush()
				}
			}
			if err != nil {
				break
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
		s.journal.Trace(journal.FrontendResponse, reqID, map[string]any{"stream": true})
		return
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	_, _ = w.Write(respBody)
	s.journal.Trace(journal.FrontendResponse, reqID, json.RawMessage(respBody))
}
