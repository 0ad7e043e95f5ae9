// Package tokencount estimates prompt/completion token counts for the
// Prometheus counter and trace attributes described in SPEC_FULL.md
// §4.12.1. This is additive instrumentation only: its estimate must never
// feed back into a client-visible response field (those stay the plain
// whitespace-word-count fallback mandated by §4.4 and implemented in
// pkg/translate).
//
// Grounded on pkg/utils/tokens.go's TokenCounter (tiktoken-go, per-model
// encoding cache), trimmed to the single Count operation this package's
// callers need.
package tokencount
