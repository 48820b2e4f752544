package dispatch

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// brotliResponseWriter wraps http.ResponseWriter, transparently
// compressing the body with brotli once a client advertises br support.
// Used only on the catalog/EPG route group — media responses stream raw
// bytes and aren't worth the CPU cost of compressing already-compressed
// video.
type brotliResponseWriter struct {
	http.ResponseWriter
	bw          *brotli.Writer
	wroteHeader bool
}

func (w *brotliResponseWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.Header().Del("Content-Length")
		w.Header().Set("Content-Encoding", "br")
		w.Header().Add("Vary", "Accept-Encoding")
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *brotliResponseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.bw.Write(p)
}

// brotliCompress gzip-style wraps the handler chain, compressing
// responses for clients that send "Accept-Encoding: br".
func brotliCompress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
			next.ServeHTTP(w, r)
			return
		}
		bw := brotli.NewWriter(w)
		defer bw.Close()
		next.ServeHTTP(&brotliResponseWriter{ResponseWriter: w, bw: bw}, r)
	})
}
