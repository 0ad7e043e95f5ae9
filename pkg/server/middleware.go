package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/kir-gadjello/ant-router/pkg/apierr"
)

type requestIDKey struct{}
type loggerKey struct{}

// requestIDFrom returns the per-request correlation id injected by
// requestLoggerMiddleware, used to tag journal Trace entries and span
// attributes for one inbound request (§4.11/§4.13's "request_id").
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// loggerFrom returns the request-scoped slog.Logger injected by
// requestLoggerMiddleware, falling back to the process default.
func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// requestLoggerMiddleware assigns a correlation id to every inbound request
// and injects a *slog.Logger carrying it, per §4.9/§4.11.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		logger := slog.Default().With("request_id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = context.WithValue(ctx, loggerKey{}, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoverMiddleware turns a panic anywhere downstream into a KindInternal
// response instead of crashing the process, logging the stack trace per
// §7's recovery policy.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				loggerFrom(r.Context()).Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				apierr.Internal(nil).WriteJSON(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// writeError maps any error to a §7 client-facing response. A *ProxyError
// is written as-is; anything else is wrapped as KindInternal.
func writeError(w http.ResponseWriter, err error) {
	if pe, ok := apierr.As(err); ok {
		pe.WriteJSON(w)
		return
	}
	apierr.Internal(err).WriteJSON(w)
}
