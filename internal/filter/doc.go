// Package filter implements the target-side Filter/Rewrite pipeline: a
// small boolean DSL over playlist item fields, a named-template registry
// with cycle-checked placeholder resolution, a Filter/Rename/Map
// processing pipe applied in a per-target configured order, and group
// flattening across inputs.
//
// Grounded on original_source/shared/src/foundation/filter.rs (the field
// grammar, the `caption` title-or-name fallback, AND/OR/NOT precedence)
// and original_source/src/foundation/mapper.rs (the counter-mapper and
// alias-item shape), reworked as a hand-written recursive-descent parser
// in place of the Rust side's pest grammar — teacher's
// internal/catalog/vod_taxonomy.go is the nearest teacher analogue for
// "classify/transform a PlaylistItem and return a reordered slice."
package filter
