package streaming

import (
	"net/http"
	"sync/atomic"

	"github.com/ipxyd/ipxyd/internal/model"
)

// rangeTracker tracks bytes already sent to the client so a reconnect can
// resume the upstream fetch at the right offset. Per spec §4.4 "Per-kind
// byte-range tracking": Live streams don't track unless the original
// request itself carried a Range header; VOD always tracks, starting
// from the requested offset (or 0).
type rangeTracker struct {
	enabled bool
	sent    atomic.Int64
}

func newRangeTracker(kind model.ItemKind, requestedStart int64, rangeRequested bool) *rangeTracker {
	rt := &rangeTracker{}
	switch model.ClusterOf(kind) {
	case model.ClusterLive:
		rt.enabled = rangeRequested
	default:
		rt.enabled = true
	}
	if rt.enabled {
		rt.sent.Store(requestedStart)
	}
	return rt
}

func (rt *rangeTracker) add(n int64) {
	if rt == nil || !rt.enabled {
		return
	}
	rt.sent.Add(n)
}

// snapshot reports bytes sent so far and whether tracking is active at all.
func (rt *rangeTracker) snapshot() (int64, bool) {
	if rt == nil || !rt.enabled {
		return 0, false
	}
	return rt.sent.Load(), true
}

// onceFlag is a single-fire signal: active until Notify is called, after
// which it stays inactive forever. Ports the Rust AtomicOnceFlag used to
// gate the reconnect wrapper and to propagate client-disconnect.
type onceFlag struct {
	active atomic.Bool
}

func newOnceFlag() *onceFlag {
	f := &onceFlag{}
	f.active.Store(true)
	return f
}

func (f *onceFlag) IsActive() bool { return f.active.Load() }
func (f *onceFlag) Notify()        { f.active.Store(false) }

// StreamOptions is the per-request configuration the pipeline contract
// names in spec §4.4: client_addr, item_kind, upstream_url,
// request_headers, buffer_config, share_stream, reconnect_enabled,
// requested_byte_range.
type StreamOptions struct {
	ClientAddr       string
	Kind             model.ItemKind
	UpstreamURL      string
	ReconnectEnabled bool
	BufferEnabled    bool
	BufferSize       int
	ShareStream      bool
	PipeStream       bool

	baseHeaders    http.Header
	rangeRequested bool
	tracker        *rangeTracker
	reconnect      *onceFlag
}

// NewStreamOptions builds the per-request pipeline options. reqHeaders is
// the inbound client request's headers; inputHeaders are the per-input
// configured headers to merge in (spec §4.4 "merge configured per-input
// headers").
func NewStreamOptions(clientAddr string, kind model.ItemKind, upstreamURL string, reqHeaders http.Header, inputHeaders map[string]string, reconnectEnabled, bufferEnabled bool, bufferSize int, shareStream, pipeStream bool) *StreamOptions {
	start, rangeRequested := requestRangeStart(reqHeaders)
	base := FilterRequestHeaders(reqHeaders)
	for k, v := range inputHeaders {
		base.Set(k, v)
	}
	return &StreamOptions{
		ClientAddr:       clientAddr,
		Kind:             kind,
		UpstreamURL:      upstreamURL,
		ReconnectEnabled: reconnectEnabled,
		BufferEnabled:    bufferEnabled,
		BufferSize:       bufferSize,
		ShareStream:      shareStream,
		PipeStream:       pipeStream,
		baseHeaders:      base,
		rangeRequested:   rangeRequested,
		tracker:          newRangeTracker(kind, start, rangeRequested),
		reconnect:        newOnceFlag(),
	}
}

// requestHeaders renders the header set for the next fetch attempt,
// reflecting however many bytes have been sent so far.
func (o *StreamOptions) requestHeaders() http.Header {
	sent, tracked := o.tracker.snapshot()
	return buildUpstreamHeaders(o.baseHeaders, sent, tracked, o.rangeRequested)
}

// BytesSent reports the byte offset reached so far, if this stream
// tracks bytes at all.
func (o *StreamOptions) BytesSent() (int64, bool) { return o.tracker.snapshot() }

// ShouldContinue reports whether the reconnect flag is still active.
func (o *StreamOptions) ShouldContinue() bool { return o.reconnect.IsActive() }

// CancelReconnect fires the single-shot reconnect flag (spec §4.4
// "client disconnect sets it to cancel reconnection").
func (o *StreamOptions) CancelReconnect() { o.reconnect.Notify() }
