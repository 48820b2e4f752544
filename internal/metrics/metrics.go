// Package metrics exposes the request, streaming, and provisioning
// counters the ambient stack grounds on github.com/prometheus/client_golang,
// rendered at /metrics for a Prometheus scrape (spec SPEC_FULL.md ambient
// observability).
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts every HTTP request the dispatcher serves,
	// labeled by target and HTTP status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipxyd_http_requests_total",
		Help: "Total HTTP requests served, by target and status code.",
	}, []string{"target", "code"})

	// RequestDuration records handler latency for every route, media
	// streams included (their duration is the whole time the stream was
	// served); ActiveStreams additionally counts open media streams.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ipxyd_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"target", "route"})

	// ActiveStreams tracks concurrently open media connections per target
	// and cluster (spec §8 "active user counts, shared-stream subscriber
	// counts").
	ActiveStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ipxyd_active_streams",
		Help: "Currently open media streams, by target and cluster.",
	}, []string{"target", "cluster"})

	// AllocatorExhausted counts allocator.Exhausted outcomes, one of the
	// triggers for panel-API provisioning (spec §4.9).
	AllocatorExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipxyd_allocator_exhausted_total",
		Help: "Count of allocator acquisitions that returned Exhausted, by input.",
	}, []string{"input"})

	// PanelAPIProvisionTotal counts provisioning attempts and their
	// outcome (renewed, created, failed).
	PanelAPIProvisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipxyd_panel_api_provision_total",
		Help: "Panel API provisioning attempts, by input and outcome.",
	}, []string{"input", "outcome"})
)

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records RequestsTotal/RequestDuration for every request,
// labeled by the {target} URL param and chi's matched route pattern
// (read back out of the request context once the handler chain runs).
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		target := chi.URLParam(r, "target")
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		RequestDuration.WithLabelValues(target, route).Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(target, fmt.Sprintf("%d", sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
