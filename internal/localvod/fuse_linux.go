//go:build linux

package localvod

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Mount exposes rootDir read-only at mountpoint using FUSE, so clients
// that prefer filesystem access over HTTP range requests can browse the
// scanned library directly. Adapted from the teacher's VODFS inode tree:
// a single passthrough root node that reads rootDir directly through
// os.ReadDir/os.Open rather than Plex's Movies/TV split, since the local
// catalog here is already flat.
func Mount(rootDir, mountpoint string) (unmount func() error, err error) {
	root := &libraryRoot{dir: rootDir}
	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:     "ipxyd-localvod",
			Name:       "ipxyd-localvod",
			AllowOther: false,
			Debug:      false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("localvod: fuse mount %s: %w", mountpoint, err)
	}
	go server.Wait()
	return func() error {
		return server.Unmount()
	}, nil
}

// libraryRoot is the FUSE root inode; children are lazily materialized
// passthrough nodes mirroring rootDir's on-disk layout one level deep
// (loose files and per-series subdirectories), matching what WalkLibrary
// indexes.
type libraryRoot struct {
	fs.Inode
	dir string

	mu    sync.Mutex
	built bool
}

var _ fs.NodeOnAdder = (*libraryRoot)(nil)

func (r *libraryRoot) OnAdd(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built {
		return
	}
	r.built = true

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		child := &passthroughNode{path: filepath.Join(r.dir, e.Name())}
		mode := uint32(syscall.S_IFREG)
		if e.IsDir() {
			mode = syscall.S_IFDIR
		}
		stable := fs.StableAttr{Mode: mode}
		inode := r.NewPersistentInode(ctx, child, stable)
		r.AddChild(e.Name(), inode, true)
	}
}

// passthroughNode serves either a single file's bytes or, for a
// directory, its own children, entirely from the local filesystem.
type passthroughNode struct {
	fs.Inode
	path string
}

var (
	_ fs.NodeGetattrer = (*passthroughNode)(nil)
	_ fs.NodeOpener    = (*passthroughNode)(nil)
	_ fs.NodeOnAdder   = (*passthroughNode)(nil)
)

func (n *passthroughNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := os.Stat(n.path)
	if err != nil {
		return syscall.ENOENT
	}
	out.Size = uint64(st.Size())
	out.Mode = uint32(st.Mode().Perm())
	if st.IsDir() {
		out.Mode |= syscall.S_IFDIR
	} else {
		out.Mode |= syscall.S_IFREG
	}
	return 0
}

func (n *passthroughNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	f, err := os.Open(n.path)
	if err != nil {
		return nil, 0, syscall.ENOENT
	}
	return &readOnlyFileHandle{f: f}, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *passthroughNode) OnAdd(ctx context.Context) {
	st, err := os.Stat(n.path)
	if err != nil || !st.IsDir() {
		return
	}
	entries, err := os.ReadDir(n.path)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		child := &passthroughNode{path: filepath.Join(n.path, e.Name())}
		inode := n.NewPersistentInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG})
		n.AddChild(e.Name(), inode, true)
	}
}

type readOnlyFileHandle struct {
	f *os.File
}

var (
	_ fs.FileReader   = (*readOnlyFileHandle)(nil)
	_ fs.FileReleaser = (*readOnlyFileHandle)(nil)
)

func (h *readOnlyFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.f.ReadAt(dest, off)
	if err != nil && n == 0 {
		return fuse.ReadResultData(nil), 0
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *readOnlyFileHandle) Release(ctx context.Context) syscall.Errno {
	h.f.Close()
	return 0
}
