// Package localvod serves an on-disk media library as LocalVideo and
// LocalSeries catalog items (no LocalSeriesInfo items are produced)
// (spec §4.12 "Local VOD serving"): WalkLibrary produces PlaylistItems
// pointing at a loopback
// HTTP file server so the normal reverse-proxy media path (C4/C5) can
// fetch them like any upstream, and on Linux the same library can also
// be exposed read-only through FUSE for clients that prefer filesystem
// access over HTTP range requests. The FUSE tree is adapted from the
// teacher's own VODFS inode/dirstream scaffolding (internal/vodfs in the
// teacher tree), replacing Plex's Movies/TV split with a passthrough
// view that mirrors the library's own on-disk file and directory names.
package localvod
