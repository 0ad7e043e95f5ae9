// Package server implements C10: the chi-based HTTP chassis that mounts
// the proxy's endpoints (GET /health, GET /metrics when metrics are
// enabled, POST /v1/messages, POST /v1/chat/completions) and wires the chassis-level
// middleware stack (panic recovery, request-scoped logging, CORS,
// observability) around them.
//
// Grounded on the pack's HTTP-gateway shape: _examples/kadirpekel-hector's
// pkg/transport/rest_gateway.go (mux-based routing, the
// cors-then-logging middleware wrapping order, and the graceful
// httpServer.Shutdown(ctx) idiom) and pkg/server/http.go (the
// ListenAndServe-in-a-goroutine + errCh + ctx.Done() race, and the
// explicit caution against wrapping http.ResponseWriter in a way that
// breaks http.Flusher for SSE). The teacher's own route handlers are A2A/
// gRPC-gateway specific and are not reused; only the chassis idiom is.
package server
