package observability

const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
	AttrProfile        = "proxy.profile"
	AttrLogicalModel   = "proxy.logical_model"
	AttrWireModel      = "proxy.wire_model"
	AttrProvider       = "proxy.provider"
	AttrStream         = "proxy.stream"
	AttrAttempt        = "proxy.attempt"
	AttrTokensInput    = "proxy.tokens.input"
	AttrTokensOutput   = "proxy.tokens.output"
	AttrStopReason     = "proxy.stop_reason"
	AttrErrorType      = "error.type"
	AttrErrorMessage   = "error.message"
	AttrStatusCode     = "http.status_code"

	// AttrRequestID correlates every span, log line, and journal entry
	// produced while handling one frontend request.
	AttrRequestID = "proxy.request_id"

	// AttrPayloadRequest/AttrPayloadResponse hold serialized request/response
	// bodies when TracingConfig.CapturePayloads is set. Large and sensitive;
	// never enabled by default.
	AttrPayloadRequest  = "proxy.payload.request"
	AttrPayloadResponse = "proxy.payload.response"

	SpanRequest      = "proxy.request"
	SpanUpstreamCall = "proxy.upstream"
	SpanHTTPRequest  = "http.request"

	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"

	DefaultServiceName  = "ant-router"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
