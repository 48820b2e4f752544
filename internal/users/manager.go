// Package users implements the Active User Manager (spec §4.3):
// per-user connection accounting, grace periods, session tokens, and
// connection-drop broadcast. Grounded on the teacher's
// internal/plex/session_drain.go (addr-keyed cleanup) and the
// active_user_manager.rs this spec was distilled from.
package users

import (
	"sync"
	"time"
)

// Permission mirrors allocator.State for the user-capacity decision.
type Permission int

const (
	Allowed Permission = iota
	GracePeriod
	Exhausted
)

// Stream is a live connection held by a user (spec §3 "StreamInfo").
type Stream struct {
	Addr         string
	ProviderName string
	ChannelID    string
	UserAgent    string
	StartedAt    time.Time
}

// Session is a resumable, token-addressable session (spec §3 "UserSession").
type Session struct {
	Token        string
	VirtualID    uint32
	StreamURL    string
	Addr         string
	LastTouched  time.Time
	Permission   Permission
	ProviderName string
}

// Expired reports whether the session has outlived ttl as of now.
func (s *Session) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.LastTouched) > ttl
}

const maxSessionsPerUser = 32

type userRecord struct {
	maxConnections uint32
	connections    int
	graceGranted   bool
	graceTSUnix    int64
	streams        map[string]*Stream // keyed by addr
	sessions       map[string]*Session // keyed by token
	lastTouched    time.Time
}

// Event is emitted on the manager's change channel whenever a user's
// connection count changes (spec §4.3 "an MPSC channel emits user-count changes").
type Event struct {
	Username    string
	Connections int
	Kind        EventKind
}

type EventKind int

const (
	Connected EventKind = iota
	Disconnected
)

// Manager tracks every active user's connections, sessions, and grace state.
// Locking order is always (user map, addr map) per spec §4.3 "Concurrency".
type Manager struct {
	gracePeriodMillis int64
	graceTimeoutSecs  int64
	sessionTTL        time.Duration

	mu    sync.RWMutex
	users map[string]*userRecord

	addrMu sync.RWMutex
	addrs  map[string]string // client addr -> username

	events         chan Event
	closeListeners *closeRegistry
}

// New builds a Manager. events may be nil if the caller does not want to
// observe connection-count changes; sends are non-blocking (dropped if full).
func New(gracePeriodMillis int64, graceTimeoutSecs int64, sessionTTL time.Duration, events chan Event) *Manager {
	return &Manager{
		gracePeriodMillis: gracePeriodMillis,
		graceTimeoutSecs:  graceTimeoutSecs,
		sessionTTL:        sessionTTL,
		users:             map[string]*userRecord{},
		addrs:             map[string]string{},
		events:            events,
		closeListeners:    &closeRegistry{listeners: map[chan string]struct{}{}},
	}
}

func (m *Manager) recordFor(username string) *userRecord {
	u, ok := m.users[username]
	if !ok {
		u = &userRecord{streams: map[string]*Stream{}, sessions: map[string]*Session{}}
		m.users[username] = u
	}
	return u
}

// ConnectionPermission implements spec §4.3 "connection_permission": decides
// whether a new connection for username is Allowed, granted a one-shot
// GracePeriod, or Exhausted, given max (0 = unlimited).
func (m *Manager) ConnectionPermission(username string, max uint32) Permission {
	return m.connectionPermission(username, max, time.Now())
}

// Unlike the provider allocator's grace (spec §4.2), a user's grace does not
// reopen once its timeout elapses: per the glossary, the timeout only bounds
// how long the over-capacity allowance is honored before subsequent requests
// are refused outright. Only a release (back under max) clears it.
func (m *Manager) connectionPermission(username string, max uint32, now time.Time) Permission {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.recordFor(username)
	u.maxConnections = max

	if max == 0 {
		return Allowed
	}
	if u.connections < int(max) {
		u.graceGranted = false
		return Allowed
	}
	if u.graceGranted {
		return Exhausted
	}
	if m.gracePeriodMillis > 0 && u.connections == int(max) {
		u.graceGranted = true
		u.graceTSUnix = now.Unix()
		return GracePeriod
	}
	return Exhausted
}

// GraceDeadlineExceeded reports whether username's grace-admitted connection
// has outlived grace_period_timeout_secs, for callers that want to force a
// teardown of the over-capacity stream (spec §5 "Grace timeout: configurable").
func (m *Manager) GraceDeadlineExceeded(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok || !u.graceGranted {
		return false
	}
	return time.Now().Unix()-u.graceTSUnix > m.graceTimeoutSecs
}

// AddConnection implements spec §4.3 "add_connection": increments the
// user's connection count, records a Stream, binds addr->username, and
// emits a Connected event.
func (m *Manager) AddConnection(username string, stream Stream) {
	m.mu.Lock()
	u := m.recordFor(username)
	u.connections++
	u.streams[stream.Addr] = &stream
	u.lastTouched = time.Now()
	conns := u.connections
	m.mu.Unlock()

	m.addrMu.Lock()
	m.addrs[stream.Addr] = username
	m.addrMu.Unlock()

	m.emit(Event{Username: username, Connections: conns, Kind: Connected})
}

// RemoveConnection implements spec §4.3 "remove_connection(addr)": looks up
// the owning username, decrements, clears grace if back under max, drops
// the stream record, and emits a Disconnected event. Returns the username
// that owned addr, or "" if addr was not tracked.
func (m *Manager) RemoveConnection(addr string) string {
	m.addrMu.Lock()
	username, ok := m.addrs[addr]
	if ok {
		delete(m.addrs, addr)
	}
	m.addrMu.Unlock()
	if !ok {
		return ""
	}

	m.mu.Lock()
	u, ok := m.users[username]
	if !ok {
		m.mu.Unlock()
		return username
	}
	if u.connections > 0 {
		u.connections--
	}
	delete(u.streams, addr)
	if u.maxConnections == 0 || u.connections < int(u.maxConnections) {
		u.graceGranted = false
	}
	conns := u.connections
	m.mu.Unlock()

	m.broadcastClose(addr)
	m.emit(Event{Username: username, Connections: conns, Kind: Disconnected})
	return username
}

// ConnectionCount returns the user's current live connection count.
func (m *Manager) ConnectionCount(username string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[username]; ok {
		return u.connections
	}
	return 0
}

func (m *Manager) emit(ev Event) {
	if m.events == nil {
		return
	}
	select {
	case m.events <- ev:
	default:
	}
}

// --- close-signal broadcast (spec §5 "Cancellation") ---

// CloseListener receives addrs as connections are torn down. Subscribe via
// Manager.Subscribe; the channel is closed on Unsubscribe.
type CloseListener chan string

type closeRegistry struct {
	mu        sync.Mutex
	listeners map[chan string]struct{}
}

func (m *Manager) broadcastClose(addr string) {
	reg := m.closeListeners
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for ch := range reg.listeners {
		select {
		case ch <- addr:
		default:
		}
	}
}

// Subscribe registers a listener for the close-signal broadcast (spec §4.9
// "Ownership of streams": "a weak close-signal broadcast channel carries
// only the client addr"). Callers must Unsubscribe when done.
func (m *Manager) Subscribe() chan string {
	ch := make(chan string, 8)
	reg := m.closeListeners
	reg.mu.Lock()
	reg.listeners[ch] = struct{}{}
	reg.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (m *Manager) Unsubscribe(ch chan string) {
	reg := m.closeListeners
	reg.mu.Lock()
	if _, ok := reg.listeners[ch]; ok {
		delete(reg.listeners, ch)
		close(ch)
	}
	reg.mu.Unlock()
}
