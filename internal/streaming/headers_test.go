package streaming

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterRequestHeadersDropsHopByHop(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "keep-alive")
	h.Set("Host", "example.com")
	h.Set("Range", "bytes=0-")
	h.Set("X-Custom", "keep-me")
	h.Set("Accept", "*/*")

	out := FilterRequestHeaders(h)
	require.Empty(t, out.Get("Connection"))
	require.Empty(t, out.Get("Host"))
	require.Empty(t, out.Get("Range"))
	require.Equal(t, "keep-me", out.Get("X-Custom"))
	require.Equal(t, "*/*", out.Get("Accept"))
}

func TestRequestRangeStartParsesBytesPrefix(t *testing.T) {
	h := http.Header{}
	h.Set("Range", "bytes=1234-")
	start, ok := requestRangeStart(h)
	require.True(t, ok)
	require.Equal(t, int64(1234), start)
}

func TestRequestRangeStartAbsentWithoutHeader(t *testing.T) {
	_, ok := requestRangeStart(http.Header{})
	require.False(t, ok)
}

func TestBuildUpstreamHeadersForcesConnectionCloseAndUserAgent(t *testing.T) {
	base := http.Header{}
	h := buildUpstreamHeaders(base, 0, false, false)
	require.Equal(t, "close", h.Get("Connection"))
	require.Equal(t, DefaultUserAgent, h.Get("User-Agent"))
	require.Empty(t, h.Get("Range"))
}

func TestBuildUpstreamHeadersPreservesConfiguredUserAgent(t *testing.T) {
	base := http.Header{}
	base.Set("User-Agent", "CustomAgent/1.0")
	h := buildUpstreamHeaders(base, 0, false, false)
	require.Equal(t, "CustomAgent/1.0", h.Get("User-Agent"))
}

func TestBuildUpstreamHeadersSynthesizesRangeWhenBytesSent(t *testing.T) {
	base := http.Header{}
	h := buildUpstreamHeaders(base, 4096, true, false)
	require.Equal(t, "bytes=4096-", h.Get("Range"))
}

func TestBuildUpstreamHeadersSynthesizesRangeWhenOriginallyRequested(t *testing.T) {
	base := http.Header{}
	h := buildUpstreamHeaders(base, 0, true, true)
	require.Equal(t, "bytes=0-", h.Get("Range"))
}

func TestBuildUpstreamHeadersOmitsRangeWhenTrackingDisabled(t *testing.T) {
	base := http.Header{}
	h := buildUpstreamHeaders(base, 0, false, true)
	require.Empty(t, h.Get("Range"))
}
