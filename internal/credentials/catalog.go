package credentials

import (
	"sort"
	"sync"
	"time"

	"github.com/ipxyd/ipxyd/internal/model"
)

// InputLineup groups one logical input's main account and its aliases
// (spec §3 "all aliases of one input form a MultiProviderLineup").
type InputLineup struct {
	InputName string
	InputType string // "xtream" | "m3u"
	BatchURL  string // non-empty when the input's aliases live in a batch CSV

	Main    *model.ProviderAccount
	Aliases []*model.ProviderAccount
}

// Accounts returns the main account (if set) followed by every alias.
func (l *InputLineup) Accounts() []*model.ProviderAccount {
	out := make([]*model.ProviderAccount, 0, len(l.Aliases)+1)
	if l.Main != nil {
		out = append(out, l.Main)
	}
	out = append(out, l.Aliases...)
	return out
}

// IsBatch reports whether this input's aliases are stored in a batch CSV
// rather than inline in source.yml.
func (l *InputLineup) IsBatch() bool { return l.BatchURL != "" }

// Catalog is the full in-memory credential catalog, keyed by input name.
// Safe for concurrent reads; Set/Remove take a write lock.
type Catalog struct {
	mu      sync.RWMutex
	lineups map[string]*InputLineup
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{lineups: make(map[string]*InputLineup)}
}

// Set replaces (or adds) the lineup for one input. Called once per input
// during a catalog (re)build, e.g. after a sources reload.
func (c *Catalog) Set(lineup *InputLineup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lineups[lineup.InputName] = lineup
}

// Remove drops an input's lineup entirely, e.g. when it's removed from
// source.yml on reload.
func (c *Catalog) Remove(inputName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lineups, inputName)
}

// Lineup returns the lineup for inputName, or nil if unknown.
func (c *Catalog) Lineup(inputName string) *InputLineup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lineups[inputName]
}

// AccountByName resolves one account within an input's lineup by its
// account name (the main account's InputName or one of its aliases),
// used by the dispatcher to turn an allocator.Account.Name back into
// the credentials it needs to build an upstream URL.
func (c *Catalog) AccountByName(inputName, accountName string) (*model.ProviderAccount, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.lineups[inputName]
	if !ok {
		return nil, false
	}
	for _, acct := range l.Accounts() {
		if acct.Name == accountName {
			return acct, true
		}
	}
	return nil, false
}

// InputNames returns every known input name, sorted.
func (c *Catalog) InputNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.lineups))
	for name := range c.lineups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllAccounts returns every account across every input, main accounts
// included.
func (c *Catalog) AllAccounts() []*model.ProviderAccount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*model.ProviderAccount
	for _, l := range c.lineups {
		out = append(out, l.Accounts()...)
	}
	return out
}

// ExpiringAccount pairs an account with the input it belongs to, for
// callers that need both (e.g. the panel-API provisioner).
type ExpiringAccount struct {
	InputName string
	Account   *model.ProviderAccount
}

// ExpiredAccounts returns every account with a non-zero exp_date at or
// before now, across all inputs, soonest-expiring first. An account with
// ExpDate == 0 (no expiry configured) never appears.
func (c *Catalog) ExpiredAccounts(now time.Time) []ExpiringAccount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ExpiringAccount
	nowUnix := now.Unix()
	for name, l := range c.lineups {
		for _, acct := range l.Accounts() {
			if acct.ExpDate != 0 && acct.ExpDate <= nowUnix {
				out = append(out, ExpiringAccount{InputName: name, Account: acct})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Account.ExpDate < out[j].Account.ExpDate
	})
	return out
}

// ExpiringWithin returns every account whose exp_date falls within window
// of now (but hasn't passed yet), soonest first. Useful for an operator-
// facing "expiring soon" view distinct from the hard ExpiredAccounts cutoff
// the provisioner acts on.
func (c *Catalog) ExpiringWithin(window time.Duration, now time.Time) []ExpiringAccount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ExpiringAccount
	nowUnix := now.Unix()
	cutoff := now.Add(window).Unix()
	for name, l := range c.lineups {
		for _, acct := range l.Accounts() {
			if acct.ExpDate > nowUnix && acct.ExpDate <= cutoff {
				out = append(out, ExpiringAccount{InputName: name, Account: acct})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Account.ExpDate < out[j].Account.ExpDate
	})
	return out
}
