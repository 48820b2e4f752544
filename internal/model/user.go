package model

import "time"

// UserStatus is the account lifecycle state (spec §3 "User").
type UserStatus int

const (
	StatusActive UserStatus = iota
	StatusTrial
	StatusExpired
	StatusBanned
)

// ProxyMode controls whether media URLs redirect to the provider or proxy through us.
type ProxyMode int

const (
	ProxyReverse ProxyMode = iota
	ProxyRedirect
)

// User is a subscriber of this proxy's virtualized catalog.
type User struct {
	Username       string
	Password       string
	Status         UserStatus
	ProxyModeLive  ProxyMode
	ProxyModeVOD   ProxyMode
	ProxyModeSerie ProxyMode
	MaxConnections uint32
	ExpDate        int64 // unix seconds, 0 = none
	EPGTimeshift   string
}

// StreamInfo records one of a user's currently-open connections (spec §3 "StreamInfo").
type StreamInfo struct {
	ClientAddr   string
	Username     string
	ProviderName string
	ChannelID    string
	UserAgent    string
	StartTime    time.Time
}

// SessionPermission mirrors the allocator/user-manager decision that created a session.
type SessionPermission int

const (
	PermissionAllowed SessionPermission = iota
	PermissionGrace
	PermissionExhausted
)

// UserSession is a resumable, token-addressable session (spec §3 "UserSession").
type UserSession struct {
	Token        string
	VirtualID    uint32
	StreamURL    string
	ClientAddr   string
	LastTouched  time.Time
	Permission   SessionPermission
	ProviderName string
}

// Expired reports whether the session has been idle longer than ttl.
func (s *UserSession) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.LastTouched) > ttl
}
