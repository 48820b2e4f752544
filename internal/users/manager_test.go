package users

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestScenarioGraceNotRegranted mirrors spec.md §8 end-to-end scenario 3:
// user "u" max 1 already holds one connection. A second request grants
// GracePeriod; a third within timeout is Exhausted; a fourth after the
// timeout elapses is still Exhausted (grace is not regranted); after the
// active connection releases, the next request is Allowed.
func TestScenarioGraceNotRegranted(t *testing.T) {
	m := New(1000, 5, time.Hour, nil)
	t0 := time.Now()

	m.AddConnection("u", Stream{Addr: "1.1.1.1:1", StartedAt: t0})
	require.Equal(t, 1, m.ConnectionCount("u"))

	require.Equal(t, GracePeriod, m.connectionPermission("u", 1, t0))
	require.Equal(t, Exhausted, m.connectionPermission("u", 1, t0))

	later := t0.Add(10 * time.Second) // past the 5s timeout
	require.Equal(t, Exhausted, m.connectionPermission("u", 1, later), "grace not regranted after timeout")

	m.RemoveConnection("1.1.1.1:1")
	require.Equal(t, Allowed, m.connectionPermission("u", 1, later))
}

func TestConnectionPermissionUnlimited(t *testing.T) {
	m := New(1000, 300, time.Hour, nil)
	for i := 0; i < 100; i++ {
		require.Equal(t, Allowed, m.ConnectionPermission("u", 0))
	}
}

func TestConnectionPermissionGraceDisabled(t *testing.T) {
	m := New(0, 300, time.Hour, nil) // grace_period_millis == 0
	now := time.Now()
	m.AddConnection("u", Stream{Addr: "a", StartedAt: now})
	require.Equal(t, Exhausted, m.connectionPermission("u", 1, now))
}

func TestAddRemoveConnectionLifecycle(t *testing.T) {
	events := make(chan Event, 8)
	m := New(1000, 300, time.Hour, events)
	m.AddConnection("u", Stream{Addr: "1.2.3.4:9", ProviderName: "p1", ChannelID: "c1"})
	require.Equal(t, 1, m.ConnectionCount("u"))

	ev := <-events
	require.Equal(t, Connected, ev.Kind)
	require.Equal(t, "u", ev.Username)
	require.Equal(t, 1, ev.Connections)

	owner := m.RemoveConnection("1.2.3.4:9")
	require.Equal(t, "u", owner)
	require.Equal(t, 0, m.ConnectionCount("u"))

	ev2 := <-events
	require.Equal(t, Disconnected, ev2.Kind)

	// Removing an untracked addr is a no-op that returns "".
	require.Equal(t, "", m.RemoveConnection("unknown"))
}

func TestCloseBroadcastOnRemove(t *testing.T) {
	m := New(1000, 300, time.Hour, nil)
	m.AddConnection("u", Stream{Addr: "9.9.9.9:1"})
	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	m.RemoveConnection("9.9.9.9:1")
	select {
	case addr := <-ch:
		require.Equal(t, "9.9.9.9:1", addr)
	case <-time.After(time.Second):
		t.Fatal("expected close broadcast")
	}
}

func TestSessionUpsertAndCap(t *testing.T) {
	m := New(1000, 300, time.Hour, nil)
	for i := 0; i < maxSessionsPerUser+5; i++ {
		tok := "tok-" + strconv.Itoa(i)
		m.CreateOrUpdateSession("u", tok, uint32(i), "p1", "http://x", "addr", Allowed)
	}
	m.mu.RLock()
	n := len(m.users["u"].sessions)
	m.mu.RUnlock()
	require.LessOrEqual(t, n, maxSessionsPerUser)
}

func TestSessionLazyReevaluation(t *testing.T) {
	m := New(1000, 300, time.Hour, nil)
	m.AddConnection("u", Stream{Addr: "a"})
	m.connectionPermission("u", 1, time.Now()) // grants GracePeriod
	s := m.CreateOrUpdateSession("u", "tok", 1, "p1", "http://x", "a", GracePeriod)
	require.Equal(t, GracePeriod, s.Permission)

	m.RemoveConnection("a") // back under max
	got, ok := m.Session("u", "tok")
	require.True(t, ok)
	require.Equal(t, Allowed, got.Permission, "re-evaluated lazily on access")
}

func TestSessionGCExpiresOldSessions(t *testing.T) {
	m := New(1000, 300, time.Millisecond, nil)
	m.CreateOrUpdateSession("u", "tok", 1, "p1", "http://x", "a", Allowed)
	time.Sleep(5 * time.Millisecond)
	m.GC()
	_, ok := m.Session("u", "tok")
	require.False(t, ok)
}
