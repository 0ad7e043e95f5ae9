// Package journal implements C13: the request journal, the optional
// recorded-interaction log, and the optional pipeline trace file described
// in SPEC_FULL.md §4.13.
//
// Grounded directly on original_source/src/logging.rs: the same
// open-append-write-close-per-line idiom (one os.OpenFile with O_APPEND per
// write rather than a held file handle, matching §5's "file handles for
// logs/traces are opened per write" resource policy), the same
// {_metadata:{timestamp,version}, ...request} journal shape, the same
// {timestamp, request, response} recorded-interaction shape, and the same
// four-kind {event, data} trace record. Ported to Go's explicit-error-return
// and slog idiom rather than Rust's lazy_static!/Mutex global and
// anyhow::Result.
package journal
