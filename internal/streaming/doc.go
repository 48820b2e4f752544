// Package streaming implements the Streaming Pipeline (C4) and the
// Shared-Stream Fan-out (C5): fetching bytes from a provider upstream,
// reconnecting across transient failures, and fanning a single upstream
// fetch out to every client attached to the same logical stream.
//
// Grounded on the teacher's internal/materializer (single-flight fetch
// pattern in cache.go) and internal/httpclient/retry.go (retry/backoff
// idiom), and on original_source's
// backend/src/api/model/streams/provider_stream_factory.rs — the
// header-preparation rules, byte-range tracking split between Live and
// VOD, the request-flow status-code table, and the reconnect-wrapper
// semantics (AtomicOnceFlag → onceFlag) all port that file's behavior.
package streaming
