package streaming

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// DefaultUserAgent is applied when neither the request nor the configured
// input headers supply one (spec §4.4 "ensure a default User-Agent").
const DefaultUserAgent = "VLC/3.0.18 LibVLC/3.0.18"

// hopByHopHeaders are dropped from the inbound request before it is
// forwarded upstream: standard hop-by-hop headers (RFC 7230 §6.1) plus
// the per-request headers spec §4.4 calls out as handled separately
// (Host, Content-Length, Range — Range is re-synthesized from the byte
// tracker, not copied verbatim).
var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"host":                true,
	"content-length":      true,
	"range":               true,
}

func isHopByHop(name string) bool {
	return hopByHopHeaders[strings.ToLower(name)]
}

// FilterRequestHeaders copies h, dropping hop-by-hop and per-request
// headers that the pipeline manages itself.
func FilterRequestHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if isHopByHop(k) {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}

// requestRangeStart parses a "bytes=<n>-..." Range header, returning the
// requested start offset and whether a Range header was present at all.
func requestRangeStart(h http.Header) (int64, bool) {
	v := h.Get("Range")
	if v == "" {
		return 0, false
	}
	const prefix = "bytes="
	if !strings.HasPrefix(v, prefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(v, prefix)
	idx := strings.IndexByte(rest, '-')
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(rest[:idx], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// buildUpstreamHeaders renders the final header set sent to the provider
// for one fetch attempt: base (already filtered + merged with per-input
// headers) plus the forced Connection: close, a default User-Agent, and
// — when sentBytes > 0 or the stream was originally a ranged request —
// a synthesized Range header starting at sentBytes (spec §4.4).
func buildUpstreamHeaders(base http.Header, sentBytes int64, rangeTracked, rangeRequested bool) http.Header {
	h := base.Clone()
	h.Set("Connection", "close")
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", DefaultUserAgent)
	}
	if rangeTracked && (sentBytes > 0 || rangeRequested) {
		h.Set("Range", fmt.Sprintf("bytes=%d-", sentBytes))
	}
	return h
}
