package streaming

import (
	"context"
	"io"
)

// ReconnectingStream wraps the initial upstream body and transparently
// re-issues the fetch when the inner stream ends, provided the content
// was classified as video, reconnects are enabled for this item, and the
// reconnect flag is still active (spec §4.4 "Reconnect wrapper").
// Anything else (a non-media response, reconnects disabled, or a client
// disconnect that cancelled the flag) surfaces EOF like a normal reader.
type ReconnectingStream struct {
	ctx     context.Context
	fetcher *Fetcher
	opts    *StreamOptions
	release Release
	isMedia bool

	current io.ReadCloser
	done    bool
}

// NewReconnectingStream wraps initial, the body already returned by the
// first successful fetch, using info to decide media eligibility.
func NewReconnectingStream(ctx context.Context, fetcher *Fetcher, opts *StreamOptions, initial io.ReadCloser, info *ResponseInfo, release Release) *ReconnectingStream {
	return &ReconnectingStream{
		ctx:     ctx,
		fetcher: fetcher,
		opts:    opts,
		release: release,
		isMedia: !opts.PipeStream && classifyContentType(info.Headers) == MimeVideo,
		current: initial,
	}
}

func (s *ReconnectingStream) Read(p []byte) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	n, err := s.current.Read(p)
	if n > 0 {
		s.opts.tracker.add(int64(n))
	}
	if err == nil {
		return n, nil
	}
	if err != io.EOF || !s.canReconnect() {
		s.done = true
		s.current.Close()
		return n, err
	}

	// EOF on a reconnect-eligible media stream: re-fetch from the
	// current offset and splice the new body in place of the old one.
	s.current.Close()
	body, _, fetchErr := s.fetcher.Fetch(s.ctx, s.opts, s.release)
	if fetchErr != nil {
		s.done = true
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	}
	s.current = body
	return n, nil
}

func (s *ReconnectingStream) canReconnect() bool {
	return s.isMedia && s.opts.ReconnectEnabled && s.opts.ShouldContinue()
}

// Close cancels the reconnect flag (spec §4.4 "client disconnect sets it
// to cancel reconnection") and closes the current inner body.
func (s *ReconnectingStream) Close() error {
	s.opts.CancelReconnect()
	if s.current != nil {
		return s.current.Close()
	}
	return nil
}
