package streaming

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipxyd/ipxyd/internal/model"
)

func TestNewStreamOptionsLiveWithoutRangeDoesNotTrack(t *testing.T) {
	opts := NewStreamOptions("1.2.3.4:5", model.KindLive, "http://up/stream", http.Header{}, nil, true, false, 0, false, false)
	_, tracked := opts.BytesSent()
	require.False(t, tracked)
}

func TestNewStreamOptionsLiveWithRangeTracks(t *testing.T) {
	h := http.Header{}
	h.Set("Range", "bytes=500-")
	opts := NewStreamOptions("1.2.3.4:5", model.KindLive, "http://up/stream", h, nil, true, false, 0, false, false)
	sent, tracked := opts.BytesSent()
	require.True(t, tracked)
	require.Equal(t, int64(500), sent)
}

func TestNewStreamOptionsVODAlwaysTracks(t *testing.T) {
	opts := NewStreamOptions("1.2.3.4:5", model.KindVideo, "http://up/movie.mp4", http.Header{}, nil, true, false, 0, false, false)
	sent, tracked := opts.BytesSent()
	require.True(t, tracked)
	require.Equal(t, int64(0), sent)
}

func TestNewStreamOptionsMergesInputHeaders(t *testing.T) {
	opts := NewStreamOptions("a", model.KindLive, "http://up", http.Header{}, map[string]string{"X-Token": "secret"}, false, false, 0, false, false)
	require.Equal(t, "secret", opts.requestHeaders().Get("X-Token"))
}

func TestOnceFlagFiresOnce(t *testing.T) {
	f := newOnceFlag()
	require.True(t, f.IsActive())
	f.Notify()
	require.False(t, f.IsActive())
	f.Notify()
	require.False(t, f.IsActive())
}

func TestCancelReconnectStopsFetchLoop(t *testing.T) {
	opts := NewStreamOptions("a", model.KindVideo, "http://up", http.Header{}, nil, true, false, 0, false, false)
	require.True(t, opts.ShouldContinue())
	opts.CancelReconnect()
	require.False(t, opts.ShouldContinue())
}
