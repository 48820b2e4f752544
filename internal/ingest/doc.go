// Package ingest turns upstream M3U playlists and Xtream player_api.php
// responses into model.PlaylistItem rows ready for virtual-id assignment
// and catalog storage (spec §4.1 "Catalog Indexing"). The parsing shape
// (streaming EXTINF scan, title/year/season/episode heuristics, tvg-*
// attribute extraction) is adapted from the teacher's own playlist
// indexer; the output type is this module's PlaylistItem rather than the
// teacher's Movie/Series/LiveChannel split, since every downstream
// component (filter, virtualid, dispatch) speaks PlaylistItem uniformly.
package ingest
