package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind names one of §7's fixed client-facing error kinds.
type Kind string

const (
	KindBadRequest     Kind = "bad_request"
	KindForbidden      Kind = "forbidden"
	KindBadGateway     Kind = "bad_gateway"
	KindUpstreamStatus Kind = "upstream_status"
	KindInternal       Kind = "internal_error"
)

// ProxyError is the one error type chassis code ever needs to branch on: it
// carries the HTTP status to send, a client-visible message, and optionally
// the upstream's raw response body (for KindUpstreamStatus, forwarded
// verbatim) or a wrapped cause (for logging, never sent to the client).
type ProxyError struct {
	Kind    Kind
	Status  int
	Message string
	Body    []byte // raw upstream body to forward verbatim, KindUpstreamStatus only
	Err     error
}

func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProxyError) Unwrap() error { return e.Err }

// BadRequest builds a KindBadRequest error (inbound JSON didn't parse, the
// sanitizer produced no valid messages, or an override hatch named an
// unknown profile).
func BadRequest(format string, args ...any) *ProxyError {
	return &ProxyError{Kind: KindBadRequest, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a KindForbidden error (the no_ant guard tripped).
func Forbidden(message string) *ProxyError {
	return &ProxyError{Kind: KindForbidden, Status: http.StatusForbidden, Message: message}
}

// BadGateway builds a KindBadGateway error (upstream connection failure
// after retries were exhausted).
func BadGateway(err error) *ProxyError {
	return &ProxyError{Kind: KindBadGateway, Status: http.StatusBadGateway, Message: "upstream connection failed", Err: err}
}

// UpstreamStatus builds a KindUpstreamStatus error carrying the upstream's
// own status and raw body, forwarded to the client verbatim. Also used by
// the rate limiter (C14) with status 429.
func UpstreamStatus(status int, body []byte) *ProxyError {
	return &ProxyError{Kind: KindUpstreamStatus, Status: status, Message: "upstream returned a non-success status", Body: body}
}

// Internal builds a KindInternal error (response body fails to parse as the
// expected dialect, response conversion fails, or a middleware hook errors).
func Internal(err error) *ProxyError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ProxyError{Kind: KindInternal, Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// As reports whether err is (or wraps) a *ProxyError, returning it.
func As(err error) (*ProxyError, bool) {
	var pe *ProxyError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// WriteJSON writes e to w as a JSON error body, per §7: a well-formed
// upstream body (KindUpstreamStatus) is forwarded verbatim; everything else
// is wrapped as {"error": {"type": kind, "message": message}}. A
// non-JSON upstream body falls back to {"error": "<raw>"}.
func (e *ProxyError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)

	if e.Kind == KindUpstreamStatus && len(e.Body) > 0 {
		if json.Valid(e.Body) {
			_, _ = w.Write(e.Body)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": string(e.Body)})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"type":    string(e.Kind),
			"message": e.Message,
		},
	})
}
