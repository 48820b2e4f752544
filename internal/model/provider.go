package model

import "sync/atomic"

// ProviderAccount is a credential pair plus base URL, priority, capacity,
// and runtime connection accounting (spec §3 "Provider Account"). All
// mutable fields are atomics so the allocator's acquire/release path never
// takes a lock per account.
type ProviderAccount struct {
	Name           string
	InputName      string // logical input this account is an alias of
	Username       string
	Password       string
	BaseURL        string
	Priority       int16 // lower = higher priority
	MaxConnections uint16
	ExpDate        int64 // unix seconds, 0 = none

	current       atomic.Int64
	graceGranted  atomic.Bool
	graceTSUnix   atomic.Int64
}

// CurrentConnections returns the live connection counter.
func (p *ProviderAccount) CurrentConnections() int64 { return p.current.Load() }

// SeedConnections sets the live counter to n, used when harvesting counts
// across a lineup reconfiguration (spec §4.2 "Reconfiguration").
func (p *ProviderAccount) SeedConnections(n int64) { p.current.Store(n) }

// TryIncrement performs an atomic compare-and-increment: it loads the
// current count, and if it is still below the ceiling, stores count+1 and
// reports the new value. The ceiling is the caller's choice of comparison
// point (max, or +1 over max for the one-shot grace admission) so this one
// primitive serves both the "Available" and "GracePeriod" admission paths.
func (p *ProviderAccount) TryIncrement(ceiling int64) (newValue int64, ok bool) {
	for {
		cur := p.current.Load()
		if ceiling >= 0 && cur >= ceiling {
			return cur, false
		}
		if p.current.CompareAndSwap(cur, cur+1) {
			return cur + 1, true
		}
	}
}

// Decrement atomically decrements the counter, floored at zero.
func (p *ProviderAccount) Decrement() int64 {
	for {
		cur := p.current.Load()
		if cur <= 0 {
			return 0
		}
		if p.current.CompareAndSwap(cur, cur-1) {
			return cur - 1
		}
	}
}

// GraceGranted reports whether grace is currently flagged on this account.
func (p *ProviderAccount) GraceGranted() bool { return p.graceGranted.Load() }

// GraceTimestamp returns the unix-seconds timestamp grace was last granted at.
func (p *ProviderAccount) GraceTimestamp() int64 { return p.graceTSUnix.Load() }

// GrantGrace flags the account as in its one-shot over-capacity grace window.
func (p *ProviderAccount) GrantGrace(nowUnix int64) {
	p.graceTSUnix.Store(nowUnix)
	p.graceGranted.Store(true)
}

// ClearGrace resets the grace flag, e.g. once the account drops back under
// capacity on release, or once the timeout window has elapsed.
func (p *ProviderAccount) ClearGrace() { p.graceGranted.Store(false) }

// Alias groups additional accounts under one logical input name, forming a
// MultiProviderLineup (spec §3 "Provider Account").
type Alias = ProviderAccount
