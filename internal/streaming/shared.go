package streaming

import (
	"context"
	"io"
	"sync"
)

// sharedChunk is one read from the upstream, fanned out to every
// subscriber attached to the same source.
type sharedChunk struct {
	data []byte
	err  error
}

// sharedSource is the single upstream fetch for one fingerprint (spec
// §4.4 "the first subscriber triggers an upstream fetch; subsequent
// subscribers attach to the same source").
type sharedSource struct {
	mu          sync.Mutex
	subscribers map[string]chan sharedChunk
	catchUp     [][]byte
	catchUpMax  int
	closed      bool
	cancel      context.CancelFunc
}

func (src *sharedSource) broadcast(c sharedChunk) {
	src.mu.Lock()
	defer src.mu.Unlock()
	if c.data != nil && src.catchUpMax > 0 {
		src.catchUp = append(src.catchUp, c.data)
		if len(src.catchUp) > src.catchUpMax {
			src.catchUp = src.catchUp[len(src.catchUp)-src.catchUpMax:]
		}
	}
	for _, ch := range src.subscribers {
		select {
		case ch <- c:
		default:
			// A slow subscriber must never block the shared source for
			// everyone else; it simply misses this chunk.
		}
	}
}

func (src *sharedSource) isEmpty() bool {
	src.mu.Lock()
	defer src.mu.Unlock()
	return len(src.subscribers) == 0
}

// SharedStreamManager fans a single upstream fetch out to every client
// attached to the same (upstream_url, item_identity) fingerprint,
// guaranteeing at most one concurrent upstream fetch per fingerprint
// (spec §4.4, C5).
type SharedStreamManager struct {
	mu      sync.Mutex
	sources map[string]*sharedSource
	fetcher *Fetcher
}

func NewSharedStreamManager(fetcher *Fetcher) *SharedStreamManager {
	if fetcher == nil {
		fetcher = NewFetcher()
	}
	return &SharedStreamManager{sources: make(map[string]*sharedSource), fetcher: fetcher}
}

// Fingerprint derives the fan-out key from the upstream URL and a
// caller-supplied item identity (virtual id or content UUID).
func Fingerprint(upstreamURL, itemIdentity string) string {
	return upstreamURL + "|" + itemIdentity
}

// Subscriber is one client attached to a shared stream.
type Subscriber struct {
	id      string
	ch      chan sharedChunk
	source  *sharedSource
	manager *SharedStreamManager
	key     string
}

// Read drains the subscriber's fanned-out channel, blocking until data,
// an upstream error, or the source closing. Satisfies io.Reader so
// callers can treat a shared subscription like any other stream.
func (s *Subscriber) Read(p []byte) (int, error) {
	chunk, ok := <-s.ch
	if !ok {
		return 0, io.EOF
	}
	if chunk.err != nil {
		return 0, chunk.err
	}
	n := copy(p, chunk.data)
	return n, nil
}

// Detach removes this subscriber from its shared source (spec §4.4
// "drops subscribers whose addr is observed on the close-signal
// channel"), releasing the upstream fetch once it was the last one.
func (s *Subscriber) Detach() {
	s.manager.detach(s.key, s.source, s.id)
}

// Attach joins fingerprint's shared stream, triggering an upstream fetch
// via opts if this is the first subscriber. catchUpChunks bounds how
// many recent chunks a late subscriber replays before live data (the
// "catch-up window").
func (m *SharedStreamManager) Attach(ctx context.Context, fingerprint, subscriberID string, opts *StreamOptions, release Release, catchUpChunks int) *Subscriber {
	m.mu.Lock()
	src, ok := m.sources[fingerprint]
	if !ok {
		src = &sharedSource{subscribers: make(map[string]chan sharedChunk), catchUpMax: catchUpChunks}
		fetchCtx, cancel := context.WithCancel(ctx)
		src.cancel = cancel
		m.sources[fingerprint] = src
		go m.run(fetchCtx, fingerprint, src, opts, release)
	}
	ch := make(chan sharedChunk, 32)
	src.mu.Lock()
	for _, replay := range src.catchUp {
		ch <- sharedChunk{data: replay}
	}
	src.subscribers[subscriberID] = ch
	src.mu.Unlock()
	m.mu.Unlock()
	return &Subscriber{id: subscriberID, ch: ch, source: src, manager: m, key: fingerprint}
}

func (m *SharedStreamManager) run(ctx context.Context, fingerprint string, src *sharedSource, opts *StreamOptions, release Release) {
	body, _, err := m.fetcher.Fetch(ctx, opts, release)
	if err != nil {
		src.broadcast(sharedChunk{err: err})
		m.closeSource(fingerprint, src)
		return
	}
	defer body.Close()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			src.broadcast(sharedChunk{data: append([]byte(nil), buf[:n]...)})
		}
		if readErr != nil {
			if readErr != io.EOF {
				src.broadcast(sharedChunk{err: readErr})
			}
			break
		}
		if src.isEmpty() {
			break // last subscriber departed; release the upstream fetch.
		}
	}
	m.closeSource(fingerprint, src)
}

func (m *SharedStreamManager) detach(fingerprint string, src *sharedSource, subscriberID string) {
	src.mu.Lock()
	if ch, ok := src.subscribers[subscriberID]; ok {
		delete(src.subscribers, subscriberID)
		close(ch)
	}
	empty := len(src.subscribers) == 0
	src.mu.Unlock()

	if empty {
		src.mu.Lock()
		if !src.closed {
			src.closed = true
			src.cancel()
		}
		src.mu.Unlock()
	}
}

func (m *SharedStreamManager) closeSource(fingerprint string, src *sharedSource) {
	m.mu.Lock()
	if m.sources[fingerprint] == src {
		delete(m.sources, fingerprint)
	}
	m.mu.Unlock()

	src.mu.Lock()
	for id, ch := range src.subscribers {
		close(ch)
		delete(src.subscribers, id)
	}
	src.mu.Unlock()
}

// WatchClose detaches sub as soon as addr is observed on closeSignal —
// the users.Manager close-broadcast channel from C3 (spec §4.4 "drops
// subscribers whose addr is observed on the close-signal channel").
// Decoupled from the users package (plain chan string) to avoid an
// import cycle between streaming and users.
func WatchClose(closeSignal <-chan string, addr string, sub *Subscriber) {
	go func() {
		for observed := range closeSignal {
			if observed == addr {
				sub.Detach()
				return
			}
		}
	}()
}
