package dispatch

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/ipxyd/ipxyd/internal/metrics"
)

// mediaRateLimit caps the request rate for catalog/auth endpoints per
// client IP, grounded on the pack's httprate sliding-window middleware
// idiom (media streaming routes are excluded — they hold one long-lived
// connection, not a burst of short requests).
const (
	mediaRateLimitRequests = 120
	mediaRateLimitWindow   = time.Minute
)

func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(mediaRateLimitWindow.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate_limit_exceeded","message":"too many requests"}`))
}

// NewRouter builds the full HTTP surface for every emulated protocol,
// namespaced by target (spec §4.10's one dispatcher per protocol,
// generalized here to one router serving every provisioned target).
func (s *Service) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/{target}", func(tr chi.Router) {
		tr.Group(func(gr chi.Router) {
			gr.Use(middleware.Timeout(60 * time.Second))
			gr.Use(httprate.Limit(mediaRateLimitRequests, mediaRateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(rateLimitExceeded),
			))
			gr.Use(brotliCompress)

			gr.Get("/player_api.php", s.handlePlayerAPI)
			gr.Get("/get.php", s.handleGetM3U)
			gr.Get("/xmltv.php", s.handleXMLTV)
			gr.Get("/update/epg.php", s.handleXMLTV)
			gr.Get("/epg", s.handleXMLTV)
			gr.Get("/epgicon/{user}/{pass}/{token}", s.handleEPGResource)

			gr.Get("/discover.json", s.handleDiscover)
			gr.Get("/device.xml", s.handleDeviceXML)
			gr.Get("/device.json", s.handleDiscover)
			gr.Get("/lineup_status.json", s.handleLineupStatus)
			gr.Post("/lineup.post", s.handleLineupPost)
			gr.Get("/lineup.json", s.handleLineup)
		})

		// Media endpoints carry their own timeout policy (no request
		// timeout — a stream can run for hours) and sit outside the
		// catalog rate limiter; one open connection isn't a burst.
		tr.Get("/media/{cluster}/{user}/{pass}/{vid}", s.handleMedia)
		tr.Get("/hdhr-stream/{vid}", s.handleHDHRStream)
	})

	return r
}
