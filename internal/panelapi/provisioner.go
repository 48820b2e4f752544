package panelapi

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ipxyd/ipxyd/internal/metrics"
)

// Provisioner runs the exhausted-input state machine against a panel API
// and persists the result to either a batch CSV or source.yml (spec §4.9).
type Provisioner struct {
	Client      *Client
	Locks       *KeyedLocks
	SourcesPath string // used when an input was declared directly in source.yml
	Logger      zerolog.Logger

	// Snapshot, if non-nil, records every exp_date change to a sqlite
	// audit trail independent of source.yml/the batch CSV (spec §4.9
	// "Boot synchronization" + SPEC_FULL.md's panel-api snapshot db).
	Snapshot *SnapshotStore

	// Reload is invoked after any successful persist, re-reading sources
	// and swapping the live snapshot (spec §4.9 "trigger a sources
	// reload"). Kept as a callback to avoid importing the config/sources
	// package from here.
	Reload func(ctx context.Context) error
}

// NewProvisioner wires a Provisioner around client/locks/sourcesPath, using
// a no-op logger until one is assigned on the returned value.
func NewProvisioner(client *Client, locks *KeyedLocks, sourcesPath string, reload func(ctx context.Context) error) *Provisioner {
	return &Provisioner{Client: client, Locks: locks, SourcesPath: sourcesPath, Reload: reload, Logger: zerolog.Nop()}
}

func (p *Provisioner) reload(ctx context.Context) {
	if p.Reload == nil {
		return
	}
	if err := p.Reload(ctx); err != nil {
		p.Logger.Debug().Err(err).Msg("panel_api reload sources failed")
	}
}

// ProvisionOnExhausted runs the full state machine for one exhausted
// input: acquire the input lock, validate config, try renew, fall back to
// client_new (spec §4.9 steps 1-4). It reports whether an account is now
// available to retry allocation against.
func (p *Provisioner) ProvisionOnExhausted(ctx context.Context, input Input) bool {
	if input.PanelAPI == nil {
		p.Logger.Debug().Str("input", input.Name).Msg("panel_api: skipped (no panel_api config)")
		return false
	}
	if input.PanelAPI.URL == "" {
		p.Logger.Debug().Str("input", input.Name).Msg("panel_api: skipped (panel_api.url empty)")
		return false
	}

	unlock := p.Locks.Lock("panel_api:" + input.Name)
	defer unlock()

	if err := ValidateConfig(*input.PanelAPI); err != nil {
		p.Logger.Debug().Err(err).Msg("panel_api config invalid")
		metrics.PanelAPIProvisionTotal.WithLabelValues(input.Name, "invalid_config").Inc()
		return false
	}

	p.Logger.Debug().Str("input", input.Name).Int("aliases", len(input.Aliases)).Msg("panel_api: exhausted -> provisioning")

	if p.tryRenewExpiredAccount(ctx, input) {
		p.Logger.Debug().Str("input", input.Name).Msg("panel_api: provisioning succeeded via client_renew")
		metrics.PanelAPIProvisionTotal.WithLabelValues(input.Name, "renewed").Inc()
		return true
	}
	created := p.tryCreateNewAccount(ctx, input)
	outcome := "failed"
	if created {
		outcome = "created"
	}
	p.Logger.Debug().Str("input", input.Name).Bool("created", created).Msg("panel_api: provisioning via client_new")
	metrics.PanelAPIProvisionTotal.WithLabelValues(input.Name, outcome).Inc()
	return created
}

// persistExpDate writes newExp to the input's batch CSV or source.yml and
// appends a row to the snapshot audit trail. Returns the persist error (if
// any); a snapshot-recording failure is logged but never fails the call,
// since the config file write is the one that matters for correctness.
func (p *Provisioner) persistExpDate(ctx context.Context, input Input, acct Account, newExp int64) error {
	var err error
	if input.IsBatch() {
		unlock := p.Locks.Lock(input.BatchURL)
		err = PatchBatchCSVUpdateExpDate(input.BatchURL, acct.Name, acct.Username, acct.Password, newExp)
		unlock()
	} else {
		unlock := p.Locks.Lock(p.SourcesPath)
		err = PatchSourceYAMLUpdateExpDate(p.SourcesPath, input.Name, acct.Name, newExp)
		unlock()
	}
	if err != nil {
		return err
	}
	if snapErr := p.Snapshot.RecordExpDateChange(input.Name, acct.Name, acct.ExpDate, newExp, time.Now().Unix()); snapErr != nil {
		p.Logger.Debug().Err(snapErr).Msg("panel_api failed to record exp_date snapshot")
	}
	return nil
}

func (p *Provisioner) tryRenewExpiredAccount(ctx context.Context, input Input) bool {
	for _, acct := range collectExpiredAccounts(input, time.Now()) {
		if err := p.Client.ClientRenew(ctx, *input.PanelAPI, acct.Username, acct.Password); err != nil {
			p.Logger.Debug().Err(err).Str("account", acct.Name).Msg("panel_api client_renew failed")
			continue
		}

		newExp := acct.ExpDate
		if exp, ok, err := p.Client.ClientInfo(ctx, *input.PanelAPI, acct.Username, acct.Password); err == nil && ok {
			newExp = exp
		}
		if newExp != 0 {
			if err := p.persistExpDate(ctx, input, acct, newExp); err != nil {
				p.Logger.Debug().Err(err).Msg("panel_api failed to persist renew exp_date")
			}
		}
		p.reload(ctx)
		return true
	}
	return false
}

func (p *Provisioner) tryCreateNewAccount(ctx context.Context, input Input) bool {
	username, password, baseURLFromResp, err := p.Client.ClientNew(ctx, *input.PanelAPI)
	if err != nil {
		p.Logger.Debug().Err(err).Msg("panel_api client_new failed")
		return false
	}

	baseURL := baseURLFromResp
	if baseURL == "" {
		baseURL = input.URL
	}
	if b, ok := extractBaseURL(baseURL); ok {
		baseURL = b
	}

	existing := make([]string, 0, len(input.Aliases)+1)
	existing = append(existing, input.Name)
	for _, a := range input.Aliases {
		existing = append(existing, a.Name)
	}
	aliasName := deriveUniqueAliasName(existing, input.Name, username)

	var expDate int64
	if exp, ok, err := p.Client.ClientInfo(ctx, *input.PanelAPI, username, password); err == nil && ok {
		expDate = exp
	}

	if input.IsBatch() {
		unlock := p.Locks.Lock(input.BatchURL)
		if err := PatchBatchCSVAppend(input.BatchURL, input.InputType, aliasName, baseURL, username, password, expDate); err != nil {
			unlock()
			p.Logger.Warn().Err(err).Msg("panel_api failed to append new account to csv")
			return false
		}
		unlock()
	} else {
		unlock := p.Locks.Lock(p.SourcesPath)
		err := PatchSourceYAMLAddAlias(p.SourcesPath, input.Name, aliasName, baseURL, username, password, expDate)
		unlock()
		if err != nil {
			p.Logger.Warn().Err(err).Msg("panel_api failed to persist new alias to source.yml")
			return false
		}
	}
	if err := p.Snapshot.RecordExpDateChange(input.Name, aliasName, 0, expDate, time.Now().Unix()); err != nil {
		p.Logger.Debug().Err(err).Msg("panel_api failed to record exp_date snapshot for new account")
	}

	if p.Reload != nil {
		if err := p.Reload(ctx); err != nil {
			p.Logger.Error().Err(err).Msg("panel_api reload sources failed")
			return false
		}
	}
	return true
}
