package credentials

import (
	"context"
	"net/http"

	"github.com/ipxyd/ipxyd/internal/model"
	"github.com/ipxyd/ipxyd/internal/provider"
)

// ProbeAccount checks whether an account's credentials still authenticate
// against its base URL, using the teacher's player_api.php probe (spec §3
// "Provider Account" carries no liveness field, but the panel-API loop
// and operators both need to tell a dead account from a merely-unused
// one before spending a renew/create call on it).
func ProbeAccount(ctx context.Context, acct *model.ProviderAccount, client *http.Client) provider.Result {
	return provider.ProbePlayerAPI(ctx, acct.BaseURL, acct.Username, acct.Password, client)
}

// ProbeLineup probes every account in a lineup and reports which ones are
// currently reachable and authenticating.
func ProbeLineup(ctx context.Context, lineup *InputLineup, client *http.Client) map[string]provider.Result {
	out := make(map[string]provider.Result, len(lineup.Aliases)+1)
	for _, acct := range lineup.Accounts() {
		out[acct.Name] = ProbeAccount(ctx, acct, client)
	}
	return out
}
