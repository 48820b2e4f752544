//go:build !linux

package localvod

import "fmt"

// Mount is unavailable outside Linux; callers fall back to the loopback
// HTTP server (see Serve) which works everywhere.
func Mount(rootDir, mountpoint string) (unmount func() error, err error) {
	return nil, fmt.Errorf("localvod: FUSE mount unsupported on this platform")
}
