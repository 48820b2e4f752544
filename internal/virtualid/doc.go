// Package virtualid implements the Virtual-ID Allocator & Target-ID
// Mapping component: assigning stable per-target virtual IDs to
// content-addressed playlist items across reloads, and rewriting
// series-info documents to reference the freshly assigned episode ids.
//
// Stability is grounded on the teacher's inode-assignment pattern in
// internal/vodfs/ino.go (first-seen content key gets the next free
// integer, reused forever after); the on-disk record shape and the
// series-info rewrite rules are a direct port of
// original_source/backend/src/repository/playlist_source.rs and
// shared/src/model/playlist_info_document.rs.
package virtualid
