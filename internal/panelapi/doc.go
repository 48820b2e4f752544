// Package panelapi provisions fresh provider accounts against a reseller
// "panel" JSON API when a provider input is exhausted: renewing an expired
// account, or failing that, creating a new one and persisting it as an
// alias under the input, then triggering a sources reload (spec §4.9).
//
// Grounded on original_source/backend/src/api/panel_api.rs for the whole
// state machine (validation, renew path, new-account path, boot sync,
// config patching) and on internal/gracenote/harvest.go for the shape of
// "call remote API, parse result, persist, trigger downstream refresh" in
// this codebase's own idiom.
package panelapi
