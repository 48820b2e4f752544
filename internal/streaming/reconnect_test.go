package streaming

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipxyd/ipxyd/internal/model"
)

func TestReconnectingStreamReconnectsOnEOFForMedia(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "video/mp2t")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("chunk"))
	}))
	defer srv.Close()

	opts := NewStreamOptions("addr", model.KindLive, srv.URL, http.Header{}, nil, true, false, 0, false, false)
	fetcher := newTestFetcher()
	body, info, err := fetcher.Fetch(context.Background(), opts, nil)
	require.NoError(t, err)

	rs := NewReconnectingStream(context.Background(), fetcher, opts, body, info, nil)
	defer rs.Close()

	buf := make([]byte, 64)
	total := 0
	for i := 0; i < 3; i++ {
		n, err := rs.Read(buf)
		total += n
		require.NoError(t, err)
	}
	require.Greater(t, hits, 1)
	require.Greater(t, total, 0)
}

func TestReconnectingStreamDoesNotReconnectForNonMedia(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	opts := NewStreamOptions("addr", model.KindLive, srv.URL, http.Header{}, nil, true, false, 0, false, false)
	fetcher := newTestFetcher()
	body, info, err := fetcher.Fetch(context.Background(), opts, nil)
	require.NoError(t, err)

	rs := NewReconnectingStream(context.Background(), fetcher, opts, body, info, nil)
	defer rs.Close()

	buf := make([]byte, 64)
	io.ReadFull(rs, buf[:2])
	_, err = io.ReadAll(rs)
	require.NoError(t, err)
	require.Equal(t, 1, hits)
}

func TestReconnectingStreamDoesNotReconnectWhenDisabled(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "video/mp2t")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("chunk"))
	}))
	defer srv.Close()

	opts := NewStreamOptions("addr", model.KindLive, srv.URL, http.Header{}, nil, false, false, 0, false, false)
	fetcher := newTestFetcher()
	body, info, err := fetcher.Fetch(context.Background(), opts, nil)
	require.NoError(t, err)

	rs := NewReconnectingStream(context.Background(), fetcher, opts, body, info, nil)
	defer rs.Close()

	_, err = io.ReadAll(rs)
	require.NoError(t, err)
	require.Equal(t, 1, hits)
}

func TestReconnectingStreamCloseCancelsFurtherReconnects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("chunk"))
	}))
	defer srv.Close()

	opts := NewStreamOptions("addr", model.KindLive, srv.URL, http.Header{}, nil, true, false, 0, false, false)
	fetcher := newTestFetcher()
	body, info, err := fetcher.Fetch(context.Background(), opts, nil)
	require.NoError(t, err)

	rs := NewReconnectingStream(context.Background(), fetcher, opts, body, info, nil)
	rs.Close()
	require.False(t, opts.ShouldContinue())
}
