// Package dispatch implements the Request Dispatchers (spec §4.11,
// "Emulated protocols"): the HTTP-facing translation layer that parses
// an Xtream/M3U/XMLTV/HDHomeRun request, resolves (user, target) from
// credentials, enforces permission_denied and the bouquet filter,
// queries the per-target catalog (C1/C8), and — for media requests —
// constructs a StreamOptions, calls the allocator (C2), opens a
// pipeline (C4) or attaches to a shared stream (C5), and registers the
// connection with the user manager (C3).
//
// Grounded on the teacher's internal/tuner/server.go (the existing
// http.ServeMux-based dispatcher wiring, generalized here to a chi
// router per the rest of the pack's HTTP services) and
// internal/tuner/hdhr.go (the HDHomeRun discover/lineup JSON shapes,
// carried over verbatim where the wire format doesn't change), plus
// internal/indexer/player_api.go for the Xtream JSON response field
// names (that file is the client-side consumer of the same API this
// package serves).
package dispatch
