package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ipxyd/ipxyd/internal/httpclient"
	"github.com/ipxyd/ipxyd/internal/model"
)

// FetchXtreamCatalog indexes live, VOD, and series listings from an
// upstream Xtream player_api.php (spec §4.1), streaming URLs built the
// same way the emulated API itself builds them: <base>/<kind>/<user>/
// <pass>/<stream_id>.<ext>. If client is nil, httpclient.Default() is used.
func FetchXtreamCatalog(ctx context.Context, apiBase, user, pass, ext, inputName string, client *http.Client) ([]model.PlaylistItem, error) {
	if client == nil {
		client = httpclient.Default()
	}
	apiBase = strings.TrimSuffix(apiBase, "/")

	live, err := fetchXtreamAction(ctx, apiBase, user, pass, "get_live_streams", client)
	if err != nil {
		return nil, err
	}
	vod, err := fetchXtreamAction(ctx, apiBase, user, pass, "get_vod_streams", client)
	if err != nil {
		return nil, err
	}
	series, err := fetchXtreamAction(ctx, apiBase, user, pass, "get_series", client)
	if err != nil {
		return nil, err
	}

	var ordinal uint64
	items := make([]model.PlaylistItem, 0, len(live)+len(vod)+len(series))
	items = appendXtreamRows(items, live, model.KindLive, apiBase, user, pass, "live", ext, inputName, &ordinal)
	items = appendXtreamRows(items, vod, model.KindVideo, apiBase, user, pass, "movie", ext, inputName, &ordinal)
	items = appendXtreamRows(items, series, model.KindSeries, apiBase, user, pass, "series", "", inputName, &ordinal)
	return items, nil
}

type xtreamRow struct {
	StreamID     int    `json:"stream_id"`
	SeriesID     int    `json:"series_id"`
	Name         string `json:"name"`
	CategoryID   string `json:"category_id"`
	EPGChannelID string `json:"epg_channel_id"`
	Container    string `json:"container_extension"`
}

func fetchXtreamAction(ctx context.Context, apiBase, user, pass, action string, client *http.Client) ([]xtreamRow, error) {
	u := apiBase + "/player_api.php?username=" + url.QueryEscape(user) + "&password=" + url.QueryEscape(pass) + "&action=" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ipxyd/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errStatusCode(resp.StatusCode)
	}
	var rows []xtreamRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func appendXtreamRows(items []model.PlaylistItem, rows []xtreamRow, kind model.ItemKind, apiBase, user, pass, pathKind, ext, inputName string, ordinal *uint64) []model.PlaylistItem {
	for _, r := range rows {
		providerID := uint32(r.StreamID)
		if providerID == 0 {
			providerID = uint32(r.SeriesID)
		}
		streamURL := xtreamStreamURL(apiBase, pathKind, user, pass, providerID, ext)
		item := model.PlaylistItem{
			ProviderID:    providerID,
			Kind:          kind,
			Cluster:       model.ClusterOf(kind),
			Name:          r.Name,
			Title:         r.Name,
			Group:         r.CategoryID,
			URL:           streamURL,
			EPGChannelID:  strings.TrimSpace(r.EPGChannelID),
			InputName:     inputName,
			SourceOrdinal: *ordinal,
		}
		item.UUID = model.ContentUUID(inputName, providerID, kind, streamURL)
		items = append(items, item)
		*ordinal++
	}
	return items
}

func xtreamStreamURL(apiBase, pathKind, user, pass string, id uint32, ext string) string {
	if pathKind == "series" {
		return apiBase + "/player_api.php?username=" + url.QueryEscape(user) + "&password=" + url.QueryEscape(pass) + "&action=get_series_info&series_id=" + strconv.Itoa(int(id))
	}
	if ext == "" {
		ext = "ts"
	}
	return apiBase + "/" + pathKind + "/" + user + "/" + pass + "/" + strconv.Itoa(int(id)) + "." + ext
}
