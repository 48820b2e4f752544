package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ipxyd/ipxyd/internal/model"
)

const userStoreFixture = `
inputs:
  - name: main
    type: m3u
    m3u_url: http://provider.example/get.php
targets:
  - name: living-room
    input: main
users:
  - username: alice
    password: hunter2
    status: trial
    max_connections: 2
    exp_date: 1893456000
  - username: bob
    password: secret
    max_connections: 1
`

func openUserStoreFixture(t *testing.T) *SourcesStore {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "source.yml")
	if err := os.WriteFile(path, []byte(userStoreFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := OpenSourcesStore(path)
	if err != nil {
		t.Fatalf("OpenSourcesStore: %v", err)
	}
	return store
}

func TestUserStore_Authenticate(t *testing.T) {
	us := NewUserStore(openUserStoreFixture(t))

	user, ok := us.Authenticate("alice", "hunter2")
	if !ok {
		t.Fatal("expected alice to authenticate")
	}
	if user.Status != model.StatusTrial || user.MaxConnections != 2 || user.ExpDate != 1893456000 {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, ok := us.Authenticate("alice", "wrong"); ok {
		t.Fatal("wrong password must not authenticate")
	}
	if _, ok := us.Authenticate("nobody", "x"); ok {
		t.Fatal("unknown username must not authenticate")
	}

	bob, ok := us.Authenticate("bob", "secret")
	if !ok {
		t.Fatal("expected bob to authenticate")
	}
	if bob.Status != model.StatusActive {
		t.Fatalf("bob with no status string should default to active, got %v", bob.Status)
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]model.UserStatus{
		"trial":   model.StatusTrial,
		"Expired": model.StatusExpired,
		"BANNED":  model.StatusBanned,
		"":        model.StatusActive,
		"active":  model.StatusActive,
		"bogus":   model.StatusActive,
	}
	for in, want := range cases {
		if got := parseStatus(in); got != want {
			t.Errorf("parseStatus(%q) = %v, want %v", in, got, want)
		}
	}
}
