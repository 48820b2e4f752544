package dispatch

import (
	"github.com/ipxyd/ipxyd/internal/bouquet"
	"github.com/ipxyd/ipxyd/internal/model"
)

// UserStore resolves the username/password pair on every Xtream and M3U
// request against the configured subscriber list (spec §3 "User").
// Concrete lookup (env/YAML/DB backed) lives outside this package;
// dispatch only needs the read.
type UserStore interface {
	Authenticate(username, password string) (*model.User, bool)
}

// AuthResult is the outcome of resolving a request's credentials.
type AuthResult struct {
	User   *model.User
	Denied bool
	Reason string
}

// authenticate runs the credential check and the account-status gate
// (expired or banned accounts are denied before any connection counting
// happens, matching the order the teacher's server checks status before
// counting connections).
func (s *Service) authenticate(username, password string) AuthResult {
	user, ok := s.UserStore.Authenticate(username, password)
	if !ok {
		return AuthResult{Denied: true, Reason: "invalid credentials"}
	}
	switch user.Status {
	case model.StatusExpired:
		return AuthResult{Denied: true, Reason: "account expired"}
	case model.StatusBanned:
		return AuthResult{Denied: true, Reason: "account banned"}
	}
	return AuthResult{User: user}
}

// loadBouquet resolves a user's category whitelist. A missing bouquet
// store (no configured directory) means unrestricted, same as a missing
// per-cluster file.
func (s *Service) loadBouquet(username string) (*bouquet.Bouquet, error) {
	if s.BouquetDir == "" {
		return &bouquet.Bouquet{}, nil
	}
	return bouquet.Load(s.BouquetDir, username)
}
