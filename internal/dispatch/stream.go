package dispatch

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ipxyd/ipxyd/internal/allocator"
	"github.com/ipxyd/ipxyd/internal/metrics"
	"github.com/ipxyd/ipxyd/internal/model"
	"github.com/ipxyd/ipxyd/internal/streaming"
	"github.com/ipxyd/ipxyd/internal/users"
)

func clusterFromPath(s string) (model.Cluster, bool) {
	switch s {
	case "live":
		return model.ClusterLive, true
	case "vod":
		return model.ClusterVideo, true
	case "series":
		return model.ClusterSeries, true
	default:
		return 0, false
	}
}

func kindFor(cluster model.Cluster) model.ItemKind {
	switch cluster {
	case model.ClusterLive:
		return model.KindLive
	case model.ClusterVideo:
		return model.KindVideo
	default:
		return model.KindSeries
	}
}

// hdhrMaxConnections is the per-session limit applied to the synthetic
// "hdhr" account that backs unauthenticated HDHomeRun stream requests
// (HDHomeRun devices don't carry subscriber credentials, spec §6
// "optionally HTTP Basic-gated" is a transport-level gate, not a user
// one), kept generous since several tuner clients may poll concurrently.
const hdhrMaxConnections = 32

// handleMedia is the reverse-proxy media endpoint: GET
// /{target}/media/{cluster}/{user}/{pass}/{vid}. It runs, in order: auth
// -> catalog lookup -> bouquet check -> user-manager connection permission
// -> allocator -> pipeline/shared-stream, registering the connection with
// the user manager for as long as the stream is served.
func (s *Service) handleMedia(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	target, ok := s.target(targetName)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown target")
		return
	}
	cluster, ok := clusterFromPath(chi.URLParam(r, "cluster"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown cluster")
		return
	}
	username := chi.URLParam(r, "user")
	password := chi.URLParam(r, "pass")
	vidStr := chi.URLParam(r, "vid")

	auth := s.authenticate(username, password)
	if auth.Denied {
		writeError(w, http.StatusForbidden, "permission_denied", auth.Reason)
		return
	}

	s.serveMedia(w, r, target, cluster, auth.User.Username, auth.User.MaxConnections, vidStr)
}

// handleHDHRStream serves a tuner's lineup.json URL: GET
// /{target}/hdhr-stream/{vid}. HDHomeRun tuners carry no subscriber
// credentials, so this bypasses the Xtream/M3U credential check but
// still runs bouquet, allocator, and connection accounting under a
// fixed synthetic username scoped to the target.
func (s *Service) handleHDHRStream(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	target, ok := s.target(targetName)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown target")
		return
	}
	vidStr := chi.URLParam(r, "vid")
	s.serveMedia(w, r, target, model.ClusterLive, "hdhr:"+targetName, hdhrMaxConnections, vidStr)
}

func (s *Service) serveMedia(w http.ResponseWriter, r *http.Request, target *Target, cluster model.Cluster, username string, maxConnections uint32, vidStr string) {
	vid64, err := strconv.ParseUint(vidStr, 10, 32)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "invalid virtual id")
		return
	}
	vid := uint32(vid64)

	item, found, err := target.Catalog.ItemInfo(cluster, vid)
	if err != nil {
		s.substituteUnavailable(w)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "unknown item")
		return
	}

	bq, err := s.loadBouquet(username)
	if err != nil || !bq.Allows(cluster, item.Group) {
		writeError(w, http.StatusForbidden, "permission_denied", "category not in bouquet")
		return
	}

	perm := s.Users.ConnectionPermission(username, maxConnections)
	if perm == users.Exhausted {
		s.substituteUnavailable(w)
		return
	}

	result := target.Lineup.Acquire(perm == users.GracePeriod)
	if result.State == allocator.Exhausted {
		metrics.AllocatorExhausted.WithLabelValues(target.InputName).Inc()
		s.substituteUnavailable(w)
		return
	}
	accountName := result.Account.Name
	release := func() { target.Lineup.Release(accountName) }

	metrics.ActiveStreams.WithLabelValues(target.Name, cluster.String()).Inc()
	defer metrics.ActiveStreams.WithLabelValues(target.Name, cluster.String()).Dec()

	upstreamURL := item.URL
	if acct, ok := s.Credentials.AccountByName(target.InputName, accountName); ok && acct.BaseURL != "" {
		upstreamURL = acct.BaseURL
	}

	opts := streaming.NewStreamOptions(r.RemoteAddr, kindFor(cluster), upstreamURL, r.Header, nil, true, s.BufferEnabled, s.BufferSize, s.ShareStream, true)

	addr := r.RemoteAddr
	s.Users.AddConnection(username, users.Stream{Addr: addr, ProviderName: accountName, ChannelID: vidStr, UserAgent: r.UserAgent(), StartedAt: time.Now()})
	defer s.Users.RemoveConnection(addr)

	var body io.Reader
	var headers http.Header

	if s.ShareStream && s.Shared != nil {
		fp := streaming.Fingerprint(upstreamURL, item.UUID.String())
		sub := s.Shared.Attach(r.Context(), fp, addr, opts, release, 0)
		closeSignal := s.Users.Subscribe()
		defer s.Users.Unsubscribe(closeSignal)
		streaming.WatchClose(closeSignal, addr, sub)
		defer sub.Detach()
		body = sub
	} else {
		rc, info, ferr := s.Fetcher.Fetch(r.Context(), opts, release)
		if ferr != nil {
			s.substituteUnavailable(w)
			return
		}
		defer rc.Close()
		body = rc
		if info != nil {
			headers = info.Headers
		}
	}

	for k, vv := range headers {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(http.StatusOK)
	buf := make([]byte, 64*1024)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
		if rerr != nil {
			return
		}
	}
}

// substituteUnavailable answers a media request that cannot be served
// with status 503 and Content-Type video/mp2t. The response body is
// empty: no substitute media asset is configured or streamed.
func (s *Service) substituteUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "video/mp2t")
	w.WriteHeader(http.StatusServiceUnavailable)
}
