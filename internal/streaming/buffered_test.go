package streaming

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeBody struct {
	chunks [][]byte
	idx    int
	err    error
	block  chan struct{}
}

func (f *fakeBody) Read(p []byte) (int, error) {
	if f.idx < len(f.chunks) {
		n := copy(p, f.chunks[f.idx])
		f.idx++
		return n, nil
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return 0, f.err
	}
	return 0, io.EOF
}

func (f *fakeBody) Close() error { return nil }

func TestBufferedStreamReadsAllWrittenBytes(t *testing.T) {
	body := &fakeBody{chunks: [][]byte{[]byte("hello "), []byte("world")}}
	bs := NewBufferedStream(body, 16, nil)

	data, err := io.ReadAll(bs)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestBufferedStreamWrapsAroundRingBuffer(t *testing.T) {
	// Buffer smaller than the total payload forces multiple wrap-arounds
	// of the ring while the background filler keeps writing.
	chunks := make([][]byte, 0, 50)
	for i := 0; i < 50; i++ {
		chunks = append(chunks, []byte("0123456789"))
	}
	body := &fakeBody{chunks: chunks}
	bs := NewBufferedStream(body, 32, nil)

	data, err := io.ReadAll(bs)
	require.NoError(t, err)
	require.Equal(t, 500, len(data))
}

func TestBufferedStreamPropagatesUpstreamError(t *testing.T) {
	body := &fakeBody{chunks: [][]byte{[]byte("partial")}, err: errors.New("boom")}
	bs := NewBufferedStream(body, 16, nil)

	data, err := io.ReadAll(bs)
	require.Error(t, err)
	require.Equal(t, "partial", string(data))
}

func TestBufferedStreamCloseNotifiesReconnectFlag(t *testing.T) {
	flag := newOnceFlag()
	body := &fakeBody{block: make(chan struct{})}
	bs := NewBufferedStream(body, 16, flag)

	bs.Close()
	require.False(t, flag.IsActive())

	_, err := bs.Read(make([]byte, 8))
	require.Equal(t, io.EOF, err)
}

func TestBufferedStreamFillerStopsWhenReconnectCancelled(t *testing.T) {
	flag := newOnceFlag()
	block := make(chan struct{})
	body := &fakeBody{block: block}
	bs := NewBufferedStream(body, 16, flag)
	flag.Notify()

	require.Eventually(t, func() bool {
		_, err := bs.Read(make([]byte, 1))
		return err == io.EOF
	}, time.Second, 5*time.Millisecond)
	close(block)
}
