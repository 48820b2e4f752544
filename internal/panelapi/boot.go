package panelapi

import "context"

// SyncExpDatesOnBoot calls client_info for every known account under every
// input with a panel_api block, and persists any exp_date that changed
// since the last recorded value. It reloads sources once at the end if
// anything changed (spec §4.9 "Boot synchronization").
func (p *Provisioner) SyncExpDatesOnBoot(ctx context.Context, inputs []Input) {
	anyChange := false

	for _, input := range inputs {
		if input.PanelAPI == nil || input.PanelAPI.URL == "" {
			continue
		}
		if err := ValidateConfig(*input.PanelAPI); err != nil {
			p.Logger.Debug().Err(err).Str("input", input.Name).Msg("panel_api boot sync skipped")
			continue
		}

		for _, acct := range input.allAccounts() {
			newExp, ok, err := p.Client.ClientInfo(ctx, *input.PanelAPI, acct.Username, acct.Password)
			if err != nil {
				p.Logger.Debug().Err(err).Str("account", acct.Name).Msg("panel_api client_info failed")
				continue
			}
			if !ok || newExp == acct.ExpDate {
				continue
			}

			if err := p.persistExpDate(ctx, input, acct, newExp); err != nil {
				p.Logger.Debug().Err(err).Msg("panel_api boot sync failed to persist exp_date")
				continue
			}
			anyChange = true
		}
	}

	if anyChange {
		p.reload(ctx)
	}
}
