// Package model holds the shared catalog, provider, and user types that
// flow through the allocator, user manager, streaming pipeline, and
// storage layers.
package model

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// ItemKind tags the specific shape of a PlaylistItem.
type ItemKind int

const (
	KindLive ItemKind = iota
	KindVideo
	KindSeries
	KindSeriesInfo
	KindLocalVideo
	KindLocalSeries
	KindLocalSeriesInfo
	KindLiveUnknown
)

func (k ItemKind) String() string {
	switch k {
	case KindLive:
		return "live"
	case KindVideo:
		return "video"
	case KindSeries:
		return "series"
	case KindSeriesInfo:
		return "series_info"
	case KindLocalVideo:
		return "local_video"
	case KindLocalSeries:
		return "local_series"
	case KindLocalSeriesInfo:
		return "local_series_info"
	default:
		return "live_unknown"
	}
}

// Cluster partitions the catalog into the three families every target serves.
type Cluster int

const (
	ClusterLive Cluster = iota
	ClusterVideo
	ClusterSeries
)

func (c Cluster) String() string {
	switch c {
	case ClusterLive:
		return "live"
	case ClusterVideo:
		return "vod"
	default:
		return "series"
	}
}

// ClusterOf returns the cluster a kind belongs to. Invariant: cluster matches kind (spec §3).
func ClusterOf(k ItemKind) Cluster {
	switch k {
	case KindLive, KindLiveUnknown:
		return ClusterLive
	case KindVideo, KindLocalVideo:
		return ClusterVideo
	default:
		return ClusterSeries
	}
}

// PlaylistItem is the unit of catalog content (spec §3).
type PlaylistItem struct {
	UUID          uuid.UUID
	VirtualID     uint32
	ProviderID    uint32
	Kind          ItemKind
	Cluster       Cluster
	Name          string
	Title         string
	Group         string
	URL           string
	EPGChannelID  string
	InputName     string
	SourceOrdinal uint64

	// Details is resolved-details (series/vod info) kept separate from the
	// hot catalog path; storage persists it under its own tree entry.
	Details []byte
}

// ContentUUID derives a stable, content-addressed identifier from the
// fields that determine an item's identity: input, provider id, kind,
// and url. Two ingests of the same upstream record always produce the
// same UUID, which is what lets the Virtual-ID Allocator (C8) reuse a
// previously assigned virtual_id across reloads.
func ContentUUID(inputName string, providerID uint32, kind ItemKind, url string) uuid.UUID {
	h := sha1.New()
	h.Write([]byte(strings.ToLower(inputName)))
	h.Write([]byte{0})
	h.Write([]byte(hexUint32(providerID)))
	h.Write([]byte{0})
	h.Write([]byte(kind.String()))
	h.Write([]byte{0})
	h.Write([]byte(url))
	sum := h.Sum(nil)
	return uuid.NewSHA1(uuid.NameSpaceOID, sum)
}

func hexUint32(v uint32) string {
	b := make([]byte, 4)
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
	return hex.EncodeToString(b)
}

// AliasUUID derives a deterministic UUID for a mapper-produced alias item,
// so the same (original UUID, mapping id) pair always yields the same
// alias identity (spec §4.6 "Map … optionally producing a cloned alias item").
func AliasUUID(original uuid.UUID, mappingID string) uuid.UUID {
	h := sha1.New()
	h.Write(original[:])
	h.Write([]byte{0})
	h.Write([]byte(mappingID))
	return uuid.NewSHA1(uuid.NameSpaceOID, h.Sum(nil))
}
