// Package apierr defines the proxy's client-facing error kinds: a single
// concrete *ProxyError type carrying an HTTP status, so chassis code maps
// errors to responses with one type switch instead of string-sniffing
// (SPEC_FULL.md §7).
//
// Grounded on pkg/ratelimit/errors.go's typed-error idiom (a concrete struct
// with a Message field, an Unwrap to a sentinel, and errors.As-friendly
// helpers), generalized from ratelimit's single error kind to the fixed set
// of kinds §7 names.
package apierr
