// Package credentials holds the in-memory Input Credential Catalog: every
// provider account and its aliases, grouped by logical input name, with
// expiration tracking (spec §3 "Provider Account" / "Alias"). It is the
// read-side view shared by the allocator (which wants priority/capacity),
// the panel-API provisioner (which wants the soonest-expiring accounts),
// and the dispatchers (which want account metadata for get_account_info).
//
// Grounded on internal/provider/probe.go for credential liveness probing
// and on original_source/backend/src/repository/alias_repository.rs for
// the batch-CSV catalog layout (the same file/header scheme internal/
// panelapi patches in place; this package is the full-catalog read path
// rather than the single-row append/update path).
package credentials
