package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ipxyd/ipxyd/internal/httpclient"
)

// Retry budget for the request-flow's transport-error path (spec §4.4
// "retry after 50 ms; abort after 5 consecutive errors or after 5
// seconds of cumulative retry time").
const (
	reconnectRetrySleep  = 50 * time.Millisecond
	maxConsecutiveErrors = 5
	maxRetryWindow       = 5 * time.Second
)

// ResponseInfo is the response-info record the pipeline contract
// produces alongside the byte stream (spec §4.4): headers, status,
// effective (possibly redirected) URL, and an optional custom video
// type tag describing substitute content.
type ResponseInfo struct {
	Headers         http.Header
	Status          int
	EffectiveURL    string
	CustomVideoType string
}

// MimeCategory classifies a response's Content-Type for the reconnect
// wrapper's "was this actually a media stream" check.
type MimeCategory int

const (
	MimeOther MimeCategory = iota
	MimeVideo
)

func classifyContentType(h http.Header) MimeCategory {
	ct := strings.ToLower(h.Get("Content-Type"))
	switch {
	case strings.HasPrefix(ct, "video/"), strings.HasPrefix(ct, "audio/"),
		strings.Contains(ct, "mpegurl"), strings.Contains(ct, "octet-stream"):
		return MimeVideo
	default:
		return MimeOther
	}
}

// substituteStatusCodes enumerates the upstream statuses routed to the
// "channel unavailable" substitute rather than surfaced directly (spec
// §4.4's explicit {404,403,401,405,400} ∪ {500,502,503,504}).
var substituteStatusCodes = map[int]bool{
	http.StatusNotFound:            true,
	http.StatusForbidden:           true,
	http.StatusUnauthorized:        true,
	http.StatusMethodNotAllowed:    true,
	http.StatusBadRequest:          true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ChannelUnavailable is returned when the upstream response is routed to
// the channel-unavailable substitute; the caller renders its own 503.
type ChannelUnavailable struct {
	Info ResponseInfo
}

func (ChannelUnavailable) Error() string { return "streaming: channel unavailable" }

// Release gives back a provider connection slot (spec §4.4 "release the
// provider slot"). Supplied by the caller (the C2 allocator) rather than
// imported directly, so this package stays free of a dependency cycle.
type Release func()

// Fetcher issues the upstream HTTP requests for one stream.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher returns a Fetcher using the teacher's no-overall-timeout
// streaming client (internal/httpclient.ForStreaming), so long-lived
// media fetches aren't killed by an idle deadline.
func NewFetcher() *Fetcher {
	return &Fetcher{Client: httpclient.ForStreaming()}
}

// fetchOnce issues a single GET against opts.UpstreamURL with the
// current header set and maps the result onto the request-flow contract:
// 2xx -> body + info; substitute status -> ChannelUnavailable; any other
// non-2xx -> a plain error; transport error is returned as-is so the
// retry loop in Fetch can count it.
func (f *Fetcher) fetchOnce(ctx context.Context, opts *StreamOptions) (io.ReadCloser, *ResponseInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.UpstreamURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header = opts.requestHeaders()

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		effective := opts.UpstreamURL
		if resp.Request != nil && resp.Request.URL != nil {
			effective = resp.Request.URL.String()
		}
		info := &ResponseInfo{Headers: resp.Header.Clone(), Status: resp.StatusCode, EffectiveURL: effective}
		return resp.Body, info, nil
	}

	defer resp.Body.Close()
	if substituteStatusCodes[resp.StatusCode] {
		return nil, nil, ChannelUnavailable{Info: ResponseInfo{Headers: resp.Header.Clone(), Status: http.StatusServiceUnavailable}}
	}
	return nil, nil, fmt.Errorf("streaming: upstream status %d", resp.StatusCode)
}

// Fetch implements the full request flow including the transport-error
// retry budget: on a channel-unavailable verdict it calls release before
// returning; on exhausted retries it cancels the reconnect flag and then
// calls release.
func (f *Fetcher) Fetch(ctx context.Context, opts *StreamOptions, release Release) (io.ReadCloser, *ResponseInfo, error) {
	start := time.Now()
	var consecutiveErrors int
	for opts.ShouldContinue() {
		body, info, err := f.fetchOnce(ctx, opts)
		if err == nil {
			return body, info, nil
		}

		var unavailable ChannelUnavailable
		if errors.As(err, &unavailable) {
			if release != nil {
				release()
			}
			return nil, &unavailable.Info, unavailable
		}

		consecutiveErrors++
		if consecutiveErrors >= maxConsecutiveErrors || time.Since(start) > maxRetryWindow {
			log.Printf("streaming: giving up on %s after %d attempts: %v", opts.UpstreamURL, consecutiveErrors, err)
			break
		}
		if sleepErr := sleepCtx(ctx, reconnectRetrySleep); sleepErr != nil {
			return nil, nil, sleepErr
		}
	}
	opts.CancelReconnect()
	if release != nil {
		release()
	}
	return nil, nil, fmt.Errorf("streaming: %s unavailable after retries", opts.UpstreamURL)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
