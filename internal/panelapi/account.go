package panelapi

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Account is one credential pair under an input: the main account or one
// of its aliases (spec §4.9 "For every expired account under the input
// (main + aliases)").
type Account struct {
	Name     string
	Username string
	Password string
	ExpDate  int64 // unix seconds, 0 = no expiry known
}

// Input is the subset of a provider input's config the provisioner needs:
// its own credentials, its panel_api block, and its existing aliases.
type Input struct {
	Name     string
	URL      string
	Username string
	Password string
	ExpDate  int64

	// InputType selects the batch CSV column layout when BatchURL is set
	// ("xtream" vs. m3u; spec §4.9 "the input's batch CSV").
	InputType string
	BatchURL  string // non-empty => this input was declared via a batch CSV, not source.yml

	PanelAPI *Config
	Aliases  []Account
}

// IsBatch reports whether persistence should target the batch CSV rather
// than source.yml.
func (in Input) IsBatch() bool { return strings.TrimSpace(in.BatchURL) != "" }

func isExpired(expDate int64, now time.Time) bool {
	return expDate != 0 && expDate <= now.Unix()
}

// mainAccount returns the input's own credentials as an Account, or false
// if neither explicit username/password nor a parsable embedded-in-url
// pair is available.
func (in Input) mainAccount() (Account, bool) {
	if strings.TrimSpace(in.Username) != "" && strings.TrimSpace(in.Password) != "" {
		return Account{Name: in.Name, Username: in.Username, Password: in.Password, ExpDate: in.ExpDate}, true
	}
	if u, p, ok := extractUsernamePasswordFromURL(in.URL); ok {
		return Account{Name: in.Name, Username: u, Password: p, ExpDate: in.ExpDate}, true
	}
	return Account{}, false
}

// allAccounts returns the main account (if resolvable) followed by every
// alias with both credentials set.
func (in Input) allAccounts() []Account {
	out := make([]Account, 0, len(in.Aliases)+1)
	if acct, ok := in.mainAccount(); ok {
		out = append(out, acct)
	}
	for _, a := range in.Aliases {
		if strings.TrimSpace(a.Username) != "" && strings.TrimSpace(a.Password) != "" {
			out = append(out, a)
		}
	}
	return out
}

// collectExpiredAccounts returns every expired account under in, ordered
// soonest-would-have-expired first; accounts with no known exp_date sort
// last (spec §4.9 step 3).
func collectExpiredAccounts(in Input, now time.Time) []Account {
	var out []Account
	for _, acct := range in.allAccounts() {
		if isExpired(acct.ExpDate, now) {
			out = append(out, acct)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := out[i].ExpDate, out[j].ExpDate
		if ei == 0 {
			ei = math.MaxInt64
		}
		if ej == 0 {
			ej = math.MaxInt64
		}
		return ei < ej
	})
	return out
}

// deriveUniqueAliasName picks "<inputName>-<username>", or that with a
// numeric suffix, whichever isn't already in existing (spec §4.9 step 4).
func deriveUniqueAliasName(existing []string, inputName, username string) string {
	base := inputName + "-" + username
	taken := make(map[string]bool, len(existing))
	for _, n := range existing {
		taken[n] = true
	}
	if !taken[base] {
		return base
	}
	for i := 2; i < 1000; i++ {
		cand := base + "-" + strconv.Itoa(i)
		if !taken[cand] {
			return cand
		}
	}
	return base
}
