// Package upstream dispatches a translated chat-completions request to a
// provider and returns its raw *http.Response, retrying on 5xx/connection
// failures and adapting once to a context-length overflow (§4.7).
//
// Grounded on pkg/httpclient's retryable-client idiom (functional-option
// Client, pluggable StrategyFunc, RetryableError) for the retry/backoff
// machinery, and on original_source/src/handlers.rs's request-dispatch loop
// (lines ~140-230) for the exact retry/backoff/context-length semantics:
// max_retries/backoff_ms from the resolved model's api_params.retry,
// exponential backoff_ms*2^(attempt-1) on 5xx or a transport error, and a
// single adaptive retry on a 400 matching the regex
// `(?s)maximum context length is (\d+).*?requested about (\d+).*?(\d+) in the output`.
package upstream
