package localvod

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Serve starts a loopback-only http.FileServer over rootDir and returns
// its base URL (e.g. "http://127.0.0.1:38213") plus a shutdown func. The
// server is what WalkLibrary's item URLs point at, so C4/C5's reverse
// proxy fetches local files through the same pipeline as any upstream.
func Serve(ctx context.Context, rootDir string) (baseURL string, shutdown func(), err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: http.FileServer(http.Dir(rootDir))}
	go srv.Serve(ln)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return "http://" + ln.Addr().String(), func() { srv.Close() }, nil
}
