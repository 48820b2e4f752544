package config

import (
	"strings"

	"github.com/ipxyd/ipxyd/internal/model"
)

// UserStore adapts a SourcesStore's live UserSource list into
// dispatch.UserStore, so a reload swaps in new/changed subscribers
// without the HTTP layer holding its own copy.
type UserStore struct {
	sources *SourcesStore
}

// NewUserStore wraps sources for subscriber authentication.
func NewUserStore(sources *SourcesStore) *UserStore {
	return &UserStore{sources: sources}
}

func parseStatus(s string) model.UserStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trial":
		return model.StatusTrial
	case "expired":
		return model.StatusExpired
	case "banned":
		return model.StatusBanned
	default:
		return model.StatusActive
	}
}

// Authenticate implements dispatch.UserStore.
func (u *UserStore) Authenticate(username, password string) (*model.User, bool) {
	cfg := u.sources.Current()
	if cfg == nil {
		return nil, false
	}
	for _, us := range cfg.Users {
		if us.Username == username && us.Password == password {
			return &model.User{
				Username:       us.Username,
				Password:       us.Password,
				Status:         parseStatus(us.Status),
				MaxConnections: us.MaxConnections,
				ExpDate:        us.ExpDate,
				EPGTimeshift:   us.EPGTimeshift,
			}, true
		}
	}
	return nil, false
}
