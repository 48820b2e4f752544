package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ipxyd/ipxyd/internal/model"
)

func newTestFetcher() *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: 5 * time.Second}}
}

func TestFetchSuccessReturnsBodyAndInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello stream"))
	}))
	defer srv.Close()

	opts := NewStreamOptions("addr", model.KindLive, srv.URL, http.Header{}, nil, false, false, 0, false, false)
	body, info, err := newTestFetcher().Fetch(context.Background(), opts, nil)
	require.NoError(t, err)
	defer body.Close()
	require.Equal(t, http.StatusOK, info.Status)
	data, _ := io.ReadAll(body)
	require.Equal(t, "hello stream", string(data))
}

func TestFetchSubstitutesOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var released bool
	opts := NewStreamOptions("addr", model.KindLive, srv.URL, http.Header{}, nil, false, false, 0, false, false)
	_, info, err := newTestFetcher().Fetch(context.Background(), opts, func() { released = true })
	require.Error(t, err)
	var unavailable ChannelUnavailable
	require.True(t, errors.As(err, &unavailable))
	require.Equal(t, http.StatusServiceUnavailable, info.Status)
	require.True(t, released)
}

func TestFetchSubstitutesOnBadGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	opts := NewStreamOptions("addr", model.KindLive, srv.URL, http.Header{}, nil, false, false, 0, false, false)
	_, _, err := newTestFetcher().Fetch(context.Background(), opts, nil)
	var unavailable ChannelUnavailable
	require.True(t, errors.As(err, &unavailable))
}

func TestFetchRetriesTransportErrorsThenGivesUp(t *testing.T) {
	// Port that's (almost certainly) not listening: every attempt is a
	// transport error, so Fetch should exhaust the retry budget and
	// return promptly rather than hang.
	opts := NewStreamOptions("addr", model.KindLive, "http://127.0.0.1:1/nope", http.Header{}, nil, false, false, 0, false, false)
	start := time.Now()
	_, _, err := newTestFetcher().Fetch(context.Background(), opts, nil)
	require.Error(t, err)
	require.Less(t, time.Since(start), 10*time.Second)
	require.False(t, opts.ShouldContinue())
}

func TestFetchForwardsUpstreamHeaders(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		require.Equal(t, "close", r.Header.Get("Connection"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	opts := NewStreamOptions("addr", model.KindVideo, srv.URL, http.Header{}, nil, false, false, 0, false, false)
	opts.tracker.add(2048)
	body, _, err := newTestFetcher().Fetch(context.Background(), opts, nil)
	require.NoError(t, err)
	body.Close()
	require.Equal(t, "bytes=2048-", gotRange)
}

func TestClassifyContentType(t *testing.T) {
	video := http.Header{"Content-Type": {"video/mp2t"}}
	other := http.Header{"Content-Type": {"application/json"}}
	require.Equal(t, MimeVideo, classifyContentType(video))
	require.Equal(t, MimeOther, classifyContentType(other))
}
