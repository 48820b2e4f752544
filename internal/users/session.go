package users

import "time"

// CreateOrUpdateSession implements spec §4.3 "Session management": upserts
// a Session by token, bounds total sessions per user at maxSessionsPerUser
// (evicting the least-recently-touched), and opportunistically garbage
// collects sessions older than the manager's session TTL.
func (m *Manager) CreateOrUpdateSession(username, token string, virtualID uint32, providerName, streamURL, addr string, permission Permission) *Session {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.recordFor(username)
	m.gcSessionsLocked(u, now)

	s, ok := u.sessions[token]
	if !ok {
		if len(u.sessions) >= maxSessionsPerUser {
			m.evictOldestLocked(u)
		}
		s = &Session{Token: token}
		u.sessions[token] = s
	}
	s.VirtualID = virtualID
	s.ProviderName = providerName
	s.StreamURL = streamURL
	s.Addr = addr
	s.Permission = permission
	s.LastTouched = now
	cp := *s
	return &cp
}

// Session returns a copy of the session for token, re-evaluating its
// permission lazily if it was previously GracePeriod (spec §4.3 "Re-evaluating
// a session's permission is performed lazily on access").
func (m *Manager) Session(username, token string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return Session{}, false
	}
	s, ok := u.sessions[token]
	if !ok {
		return Session{}, false
	}
	if s.Permission == GracePeriod {
		s.Permission = m.reevaluateLocked(u)
	}
	s.LastTouched = time.Now()
	return *s, true
}

func (m *Manager) reevaluateLocked(u *userRecord) Permission {
	max := u.maxConnections
	if max == 0 {
		return Allowed
	}
	if u.connections < int(max) {
		return Allowed
	}
	return GracePeriod
}

func (m *Manager) evictOldestLocked(u *userRecord) {
	var oldestToken string
	var oldestTime time.Time
	first := true
	for tok, s := range u.sessions {
		if first || s.LastTouched.Before(oldestTime) {
			oldestToken = tok
			oldestTime = s.LastTouched
			first = false
		}
	}
	if oldestToken != "" {
		delete(u.sessions, oldestToken)
	}
}

func (m *Manager) gcSessionsLocked(u *userRecord, now time.Time) {
	for tok, s := range u.sessions {
		if s.Expired(m.sessionTTL, now) {
			delete(u.sessions, tok)
		}
	}
}

// GC sweeps every user's sessions for expiry. Call on a fixed interval
// (spec §5 "Timeouts": "Session TTL: 3 hours, swept every 15 minutes").
func (m *Manager) GC() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		m.gcSessionsLocked(u, now)
	}
}
