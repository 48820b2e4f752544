package localvod

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipxyd/ipxyd/internal/model"
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".m4v":  true,
	".ts":   true,
	".webm": true,
}

// WalkLibrary scans rootDir for video files and returns PlaylistItems
// tagged LocalVideo (loose top-level files) or LocalSeries (files nested
// one directory deep, grouped by directory name). baseURL is the
// loopback file server's address (see Serve); each item's URL is built
// by joining baseURL with the file's path relative to rootDir, so the
// existing reverse-proxy media path fetches local files exactly like any
// upstream stream.
func WalkLibrary(inputName, rootDir, baseURL string) ([]model.PlaylistItem, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, err
	}

	var items []model.PlaylistItem
	var ordinal uint64
	for _, e := range entries {
		if e.IsDir() {
			nested, err := os.ReadDir(filepath.Join(rootDir, e.Name()))
			if err != nil {
				continue
			}
			for _, f := range nested {
				if f.IsDir() || !videoExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
					continue
				}
				rel := filepath.ToSlash(filepath.Join(e.Name(), f.Name()))
				items = append(items, buildItem(inputName, baseURL, rel, e.Name(), f.Name(), model.KindLocalSeries, &ordinal))
			}
			continue
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		items = append(items, buildItem(inputName, baseURL, e.Name(), "Local Videos", name, model.KindLocalVideo, &ordinal))
	}
	return items, nil
}

func buildItem(inputName, baseURL, relPath, group, title string, kind model.ItemKind, ordinal *uint64) model.PlaylistItem {
	streamURL := strings.TrimSuffix(baseURL, "/") + "/" + escapePath(relPath)
	providerID := fnv32(relPath)
	item := model.PlaylistItem{
		ProviderID:    providerID,
		Kind:          kind,
		Cluster:       model.ClusterOf(kind),
		Name:          title,
		Title:         title,
		Group:         group,
		URL:           streamURL,
		InputName:     inputName,
		SourceOrdinal: *ordinal,
	}
	item.UUID = model.ContentUUID(inputName, providerID, kind, relPath)
	*ordinal++
	return item
}

// escapePath percent-encodes each path segment individually so slashes
// stay intact as separators for the loopback file server.
func escapePath(relPath string) string {
	parts := strings.Split(relPath, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func fnv32(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
