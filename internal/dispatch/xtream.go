package dispatch

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ipxyd/ipxyd/internal/model"
)

// xtreamCategory mirrors the {category_id, category_name, parent_id}
// shape Xtream clients expect from get_*_categories, field names taken
// from the teacher's own player_api.php client (internal/indexer's JSON
// tags for the matching request).
type xtreamCategory struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	ParentID     int    `json:"parent_id"`
}

// xtreamStream is the get_live_streams / get_vod_streams row shape.
type xtreamStream struct {
	Num          int    `json:"num"`
	Name         string `json:"name"`
	StreamID     uint32 `json:"stream_id"`
	StreamIcon   string `json:"stream_icon,omitempty"`
	EPGChannelID string `json:"epg_channel_id,omitempty"`
	CategoryID   string `json:"category_id"`
}

// xtreamSeries is the get_series row shape.
type xtreamSeries struct {
	Num        int    `json:"num"`
	Name       string `json:"name"`
	SeriesID   uint32 `json:"series_id"`
	Cover      string `json:"cover,omitempty"`
	CategoryID string `json:"category_id"`
}

// xtreamAccountInfo is the get_account_info payload.
type xtreamAccountInfo struct {
	UserInfo struct {
		Username       string `json:"username"`
		Status         string `json:"status"`
		ExpDate        string `json:"exp_date"`
		MaxConnections string `json:"max_connections"`
		ActiveCons     string `json:"active_cons"`
	} `json:"user_info"`
}

// handlePlayerAPI is the player_api.php?action=... router (spec §6
// "Emulated Xtream API").
func (s *Service) handlePlayerAPI(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	target, ok := s.target(targetName)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown target")
		return
	}

	q := r.URL.Query()
	auth := s.authenticate(q.Get("username"), q.Get("password"))
	if auth.Denied {
		writeError(w, http.StatusForbidden, "permission_denied", auth.Reason)
		return
	}
	bq, err := s.loadBouquet(auth.User.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "bouquet_error", err.Error())
		return
	}

	action := q.Get("action")
	switch action {
	case "", "get_account_info":
		s.writeAccountInfo(w, auth.User)
	case "get_live_categories":
		s.writeCategories(w, target, model.ClusterLive, bq)
	case "get_vod_categories":
		s.writeCategories(w, target, model.ClusterVideo, bq)
	case "get_series_categories":
		s.writeCategories(w, target, model.ClusterSeries, bq)
	case "get_live_streams":
		s.writeStreams(w, target, model.ClusterLive, bq, q.Get("category_id"))
	case "get_vod_streams":
		s.writeStreams(w, target, model.ClusterVideo, bq, q.Get("category_id"))
	case "get_series":
		s.writeSeriesList(w, target, bq, q.Get("category_id"))
	case "get_live_info":
		s.writeItemInfo(w, target, model.ClusterLive, q.Get("stream_id"))
	case "get_vod_info":
		s.writeItemInfo(w, target, model.ClusterVideo, q.Get("vod_id"))
	case "get_series_info":
		s.writeItemInfo(w, target, model.ClusterSeries, q.Get("series_id"))
	default:
		writeError(w, http.StatusNotFound, "unknown_action", "action not supported: "+action)
	}
}

func (s *Service) writeAccountInfo(w http.ResponseWriter, u *model.User) {
	var resp xtreamAccountInfo
	resp.UserInfo.Username = u.Username
	resp.UserInfo.Status = "Active"
	if u.Status != model.StatusActive {
		resp.UserInfo.Status = "Disabled"
	}
	resp.UserInfo.ExpDate = strconv.FormatInt(u.ExpDate, 10)
	resp.UserInfo.MaxConnections = strconv.FormatUint(uint64(u.MaxConnections), 10)
	resp.UserInfo.ActiveCons = strconv.Itoa(s.Users.ConnectionCount(u.Username))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) writeCategories(w http.ResponseWriter, t *Target, cluster model.Cluster, bq bouquetFilter) {
	cats, err := t.Catalog.Categories(cluster)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_error", err.Error())
		return
	}
	out := make([]xtreamCategory, 0, len(cats))
	for _, c := range cats {
		if !bq.Allows(cluster, c.ID) {
			continue
		}
		out = append(out, xtreamCategory{CategoryID: c.ID, CategoryName: c.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) writeStreams(w http.ResponseWriter, t *Target, cluster model.Cluster, bq bouquetFilter, categoryID string) {
	items, err := t.Catalog.Streams(cluster, categoryID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_error", err.Error())
		return
	}
	out := make([]xtreamStream, 0, len(items))
	for i, it := range items {
		if !bq.Allows(cluster, it.Group) {
			continue
		}
		out = append(out, xtreamStream{
			Num:          i + 1,
			Name:         it.Name,
			StreamID:     it.VirtualID,
			EPGChannelID: it.EPGChannelID,
			CategoryID:   it.Group,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) writeSeriesList(w http.ResponseWriter, t *Target, bq bouquetFilter, categoryID string) {
	items, err := t.Catalog.Streams(model.ClusterSeries, categoryID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_error", err.Error())
		return
	}
	out := make([]xtreamSeries, 0, len(items))
	for i, it := range items {
		if !bq.Allows(model.ClusterSeries, it.Group) {
			continue
		}
		out = append(out, xtreamSeries{
			Num:        i + 1,
			Name:       it.Name,
			SeriesID:   it.VirtualID,
			CategoryID: it.Group,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeItemInfo serves get_live_info/get_vod_info/get_series_info: the
// resolved catalog record, with the catalog-assigned virtual id embedded
// (spec §6: "*_info responses embed the catalog-assigned virtual IDs").
func (s *Service) writeItemInfo(w http.ResponseWriter, t *Target, cluster model.Cluster, idParam string) {
	id, err := strconv.ParseUint(idParam, 10, 32)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "invalid id")
		return
	}
	item, ok, err := t.Catalog.ItemInfo(cluster, uint32(id))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_error", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown item")
		return
	}
	info := map[string]interface{}{
		"virtual_id": item.VirtualID,
		"name":       item.Name,
		"title":      item.Title,
		"category_id": item.Group,
	}
	if len(item.Details) > 0 {
		info["info"] = rawJSON(item.Details)
	}
	writeJSON(w, http.StatusOK, info)
}

// rawJSON lets an already-encoded JSON blob (series/vod details resolved
// and rewritten by C8) pass through writeJSON without re-marshaling.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// bouquetFilter is the narrow Allows-only view auth.go's *bouquet.Bouquet
// satisfies; declared here so xtream.go/m3u.go don't need to import
// bouquet just to name the parameter type.
type bouquetFilter interface {
	Allows(cluster model.Cluster, category string) bool
}
