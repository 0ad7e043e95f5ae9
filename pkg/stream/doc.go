// Package stream implements C6: the stateful translator that turns a
// sequence of upstream OpenAI-dialect SSE chunks into the sequence of
// Anthropic-dialect SSE events returned to the client, plus the SSE
// encode/decode helpers used to carry both wire forms over HTTP.
//
// The state machine is grounded on original_source/src/transformer/response.rs's
// convert_stream/StreamState (block-index bookkeeping, content-type
// switching, OpenAI-tool-index-to-Anthropic-block-index mapping); the SSE
// reader/writer shape is grounded on
// _examples/digitallysavvy-go-ai/pkg/providerutils/streaming/sse.go.
package stream
