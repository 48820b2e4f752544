package virtualid

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ipxyd/ipxyd/internal/model"
)

// SeriesEpisode mirrors the Xtream series-info episode shape (grounded
// on original_source/shared/src/model/playlist_info_document.rs
// XtreamSeriesEpisodeInfoDoc) — only the fields the rewrite touches are
// typed; everything else round-trips through json.RawMessage untouched.
type SeriesEpisode struct {
	ID                 string          `json:"id"`
	EpisodeNum         uint32          `json:"episode_num"`
	Season             uint32          `json:"season"`
	DirectSource       string          `json:"direct_source"`
	Title              string          `json:"title,omitempty"`
	ContainerExtension string          `json:"container_extension,omitempty"`
	Info               json.RawMessage `json:"info,omitempty"`
	Added              string          `json:"added,omitempty"`
	CustomSID          string          `json:"custom_sid,omitempty"`
}

// RewriteSeriesInfo assigns virtual ids to every episode of a freshly
// fetched series-info document and rewrites the document's episode
// identifiers and category ids to match, per spec §4.8 "Series-info
// rewrite." The rewrite is keyed by the series' parent_code so repeated
// fetches of the same series stay stable; parentVirtualID is the
// already-assigned virtual_id of the owning Series item, persisted on
// each episode's VirtualIdRecord.ParentVirtualID.
//
// Unknown top-level and per-episode fields are preserved verbatim: the
// document is decoded into a generic string-keyed map and only the
// "episodes" and "info" sections are touched, the same partial
// decode/re-encode discipline the config-patching component (C9) uses
// for its YAML/CSV persistence.
func (a *Allocator) RewriteSeriesInfo(inputName, parentCode string, parentVirtualID uint32, raw []byte, nowUnix int64) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("virtualid: decode series-info for %s: %w", parentCode, err)
	}

	if epRaw, ok := doc["episodes"]; ok {
		var episodes map[string][]json.RawMessage
		if err := json.Unmarshal(epRaw, &episodes); err != nil {
			return nil, fmt.Errorf("virtualid: decode episodes for %s: %w", parentCode, err)
		}
		for season, eps := range episodes {
			for i := range eps {
				var ep SeriesEpisode
				var fields map[string]json.RawMessage
				if err := json.Unmarshal(eps[i], &ep); err != nil {
					return nil, fmt.Errorf("virtualid: decode episode for %s: %w", parentCode, err)
				}
				if err := json.Unmarshal(eps[i], &fields); err != nil {
					return nil, fmt.Errorf("virtualid: decode episode for %s: %w", parentCode, err)
				}
				if err := a.rewriteEpisode(inputName, &ep, parentVirtualID, nowUnix); err != nil {
					return nil, err
				}
				fields["id"], _ = json.Marshal(ep.ID)
				encoded, err := json.Marshal(fields)
				if err != nil {
					return nil, fmt.Errorf("virtualid: encode episode for %s: %w", parentCode, err)
				}
				eps[i] = encoded
			}
			episodes[season] = eps
		}
		rewritten, err := json.Marshal(episodes)
		if err != nil {
			return nil, fmt.Errorf("virtualid: encode episodes for %s: %w", parentCode, err)
		}
		doc["episodes"] = rewritten
	}

	if infoRaw, ok := doc["info"]; ok {
		rewritten, err := a.rewriteSeriesInfoMeta(inputName, parentCode, infoRaw, nowUnix)
		if err != nil {
			return nil, err
		}
		doc["info"] = rewritten
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("virtualid: encode series-info for %s: %w", parentCode, err)
	}
	return out, nil
}

func (a *Allocator) rewriteEpisode(inputName string, ep *SeriesEpisode, parentVirtualID uint32, nowUnix int64) error {
	providerID, err := parseProviderID(ep.ID)
	if err != nil {
		return fmt.Errorf("virtualid: episode id %q: %w", ep.ID, err)
	}
	contentUUID := model.ContentUUID(inputName, providerID, model.KindSeriesInfo, ep.DirectSource)
	vid, err := a.AssignVirtualID(contentUUID, providerID, model.KindSeriesInfo, parentVirtualID, nowUnix)
	if err != nil {
		return err
	}
	ep.ID = strconv.FormatUint(uint64(vid), 10)
	return nil
}

// seriesInfoMeta is the subset of the series-info "info" object the
// rewrite cares about (grounded on XtreamSeriesInfoDoc's category_id /
// category_ids fields). category_id travels as a decimal string in the
// upstream wire format (serde's arc_str_serde); category_ids is numeric.
type seriesInfoMeta struct {
	CategoryID string `json:"category_id"`
}

func (a *Allocator) rewriteSeriesInfoMeta(inputName, parentCode string, infoRaw json.RawMessage, nowUnix int64) (json.RawMessage, error) {
	var info map[string]json.RawMessage
	if err := json.Unmarshal(infoRaw, &info); err != nil {
		return nil, fmt.Errorf("virtualid: decode info for %s: %w", parentCode, err)
	}

	catIDRaw, ok := info["category_id"]
	if !ok {
		return infoRaw, nil
	}
	var meta seriesInfoMeta
	if err := json.Unmarshal(append(append([]byte(`{"category_id":`), catIDRaw...), '}'), &meta); err != nil {
		return nil, fmt.Errorf("virtualid: decode category_id for %s: %w", parentCode, err)
	}
	providerCatID, err := parseProviderID(meta.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("virtualid: category_id %q: %w", meta.CategoryID, err)
	}

	// Categories share the UUID namespace with content items but are
	// distinguished by a "category:" url discriminator and parentCode as
	// the stable key, since the upstream only gives us a provider-local
	// category id, not a content url.
	categoryUUID := model.ContentUUID(inputName, providerCatID, model.KindSeriesInfo, "category:"+parentCode)
	vid, err := a.AssignVirtualID(categoryUUID, providerCatID, model.KindSeriesInfo, 0, nowUnix)
	if err != nil {
		return nil, err
	}

	newCatID, err := json.Marshal(strconv.FormatUint(uint64(vid), 10))
	if err != nil {
		return nil, err
	}
	info["category_id"] = newCatID
	newCatIDs, err := json.Marshal([]uint32{vid})
	if err != nil {
		return nil, err
	}
	info["category_ids"] = newCatIDs

	return json.Marshal(info)
}

func parseProviderID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
