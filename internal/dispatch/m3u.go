package dispatch

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ipxyd/ipxyd/internal/model"
)

// handleGetM3U serves get.php?username=&password=&type=m3u_plus (spec
// §6 "Emulated M3U"): one #EXTINF per permitted item, URL either
// redirecting to the provider or pointing back at this server depending
// on the user's configured proxy mode for that cluster.
func (s *Service) handleGetM3U(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	target, ok := s.target(targetName)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown target")
		return
	}

	q := r.URL.Query()
	auth := s.authenticate(q.Get("username"), q.Get("password"))
	if auth.Denied {
		writeError(w, http.StatusForbidden, "permission_denied", auth.Reason)
		return
	}
	bq, err := s.loadBouquet(auth.User.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "bouquet_error", err.Error())
		return
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, cluster := range []model.Cluster{model.ClusterLive, model.ClusterVideo, model.ClusterSeries} {
		items, err := target.Catalog.Streams(cluster, "")
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "catalog_error", err.Error())
			return
		}
		proxyMode := proxyModeFor(auth.User, cluster)
		for _, it := range items {
			if !bq.Allows(cluster, it.Group) {
				continue
			}
			writeExtinf(&b, it)
			b.WriteString(s.mediaURL(target.Name, auth.User.Username, auth.User.Password, it, proxyMode))
			b.WriteString("\n")
		}
	}

	w.Header().Set("Content-Type", "application/x-mpegurl")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(b.String()))
}

func proxyModeFor(u *model.User, cluster model.Cluster) model.ProxyMode {
	switch cluster {
	case model.ClusterLive:
		return u.ProxyModeLive
	case model.ClusterVideo:
		return u.ProxyModeVOD
	default:
		return u.ProxyModeSerie
	}
}

func writeExtinf(b *strings.Builder, it model.PlaylistItem) {
	fmt.Fprintf(b, "#EXTINF:-1 tvg-id=\"%s\" group-title=\"%s\",%s\n", it.EPGChannelID, it.Group, it.Name)
}

// mediaURL builds the URL a client dereferences to play an item: the
// upstream URL directly in redirect mode, or this server's own
// /<target>/media/<cluster>/<user>/<pass>/<virtual_id> in reverse
// (proxying) mode.
func (s *Service) mediaURL(targetName, username, password string, it model.PlaylistItem, mode model.ProxyMode) string {
	if mode == model.ProxyRedirect {
		return it.URL
	}
	base := strings.TrimRight(s.BaseURL, "/")
	return fmt.Sprintf("%s/%s/media/%s/%s/%s/%s", base, targetName, it.Cluster, username, password, strconv.FormatUint(uint64(it.VirtualID), 10))
}
