package dispatch

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/ipxyd/ipxyd/internal/bouquet"
	"github.com/ipxyd/ipxyd/internal/epg"
)

// handleXMLTV serves xmltv.php / update/epg.php / epg (spec §6 "Emulated
// XMLTV"): the target's cached upstream XMLTV document, transformed by
// C7 and gzip-compressed.
func (s *Service) handleXMLTV(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	target, ok := s.target(targetName)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown target")
		return
	}
	if target.EPGSourcePath == "" {
		w.Header().Set("Content-Type", "application/xml")
		w.Write(epg.Empty())
		return
	}

	q := r.URL.Query()
	var bq bouquet.Bouquet
	if username := q.Get("username"); username != "" {
		if loaded, err := s.loadBouquet(username); err == nil {
			bq = *loaded
		}
	}

	f, err := os.Open(target.EPGSourcePath)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "epg_unavailable", err.Error())
		return
	}
	defer f.Close()

	src, err := epg.OpenSource(f)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "epg_unavailable", err.Error())
		return
	}

	opts := epg.Options{
		Shift:       target.EPGShift,
		Icons:       target.EPGIcons,
		IconBaseURL: target.EPGIconBase,
	}
	if len(bq.Live) > 0 {
		allowed := make(map[string]bool, len(bq.Live))
		for _, id := range bq.Live {
			allowed[id] = true
		}
		opts.ChannelAllowed = func(id string) bool { return allowed[id] }
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Encoding", "gzip")
	if err := epg.Rewrite(w, src, opts); err != nil {
		s.Logger.Error().Err(err).Str("target", targetName).Msg("dispatch epg rewrite failed")
	}
}

// handleEPGResource serves GET /<EPG_RESOURCE_PATH>/<user>/<pass>/<token>
// (spec §6): the asset an <icon> element originally referenced,
// recovered by decrypting token with the target's obfuscator.
func (s *Service) handleEPGResource(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	target, ok := s.target(targetName)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown target")
		return
	}
	token := chi.URLParam(r, "token")
	deobscurer, ok := target.EPGIcons.(interface {
		Reveal(token string) (string, error)
	})
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "icon obfuscation not configured")
		return
	}
	originalURL, err := deobscurer.Reveal(token)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "invalid token")
		return
	}
	http.Redirect(w, r, originalURL, http.StatusFound)
}
