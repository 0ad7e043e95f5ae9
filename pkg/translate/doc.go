// Package translate implements C4 (request translator) and C5 (response
// translator): converting between the Anthropic and OpenAI dialects defined
// in pkg/dialect, applying the preprocessing and reasoning-mapping rules of
// SPEC_FULL.md §4.3/§4.4.
//
// Grounded on original_source/src/transformer/{request,response}.rs, the
// Rust implementation this spec was distilled from; ported to Go's
// explicit-error-return idiom rather than Result<T, E>.
package translate
