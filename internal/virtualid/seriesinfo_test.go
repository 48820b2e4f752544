package virtualid

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipxyd/ipxyd/internal/bptree"
)

const sampleSeriesInfo = `{
	"seasons": [{"season_number": 1}],
	"info": {
		"name": "Example Show",
		"category_id": "7",
		"category_ids": [7]
	},
	"episodes": {
		"1": [
			{"id": "501", "episode_num": 1, "season": 1, "direct_source": "http://up/ep1", "title": "Pilot"},
			{"id": "502", "episode_num": 2, "season": 1, "direct_source": "http://up/ep2", "title": "Two"}
		]
	}
}`

func TestRewriteSeriesInfoAssignsEpisodeIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target-ids.bin")
	a, err := Open(path, bptree.Update)
	require.NoError(t, err)
	defer a.Close()

	out, err := a.RewriteSeriesInfo("input1", "series-42", 9, []byte(sampleSeriesInfo), 1000)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &doc))

	var episodes map[string][]SeriesEpisode
	require.NoError(t, json.Unmarshal(doc["episodes"], &episodes))
	require.Len(t, episodes["1"], 2)
	require.NotEqual(t, "501", episodes["1"][0].ID)
	require.NotEqual(t, "502", episodes["1"][1].ID)
	require.NotEqual(t, episodes["1"][0].ID, episodes["1"][1].ID)

	// Unrelated fields (seasons, titles) must survive untouched.
	require.Contains(t, string(out), "Example Show")
	require.Contains(t, string(out), "Pilot")
	require.Contains(t, string(doc["seasons"]), "season_number")
}

func TestRewriteSeriesInfoStableAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target-ids.bin")
	a, err := Open(path, bptree.Update)
	require.NoError(t, err)
	defer a.Close()

	first, err := a.RewriteSeriesInfo("input1", "series-42", 9, []byte(sampleSeriesInfo), 1000)
	require.NoError(t, err)
	second, err := a.RewriteSeriesInfo("input1", "series-42", 9, []byte(sampleSeriesInfo), 2000)
	require.NoError(t, err)

	var firstDoc, secondDoc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(first, &firstDoc))
	require.NoError(t, json.Unmarshal(second, &secondDoc))

	var firstEps, secondEps map[string][]SeriesEpisode
	require.NoError(t, json.Unmarshal(firstDoc["episodes"], &firstEps))
	require.NoError(t, json.Unmarshal(secondDoc["episodes"], &secondEps))
	require.Equal(t, firstEps["1"][0].ID, secondEps["1"][0].ID)
	require.Equal(t, firstEps["1"][1].ID, secondEps["1"][1].ID)
}

func TestRewriteSeriesInfoRewritesCategoryID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target-ids.bin")
	a, err := Open(path, bptree.Update)
	require.NoError(t, err)
	defer a.Close()

	out, err := a.RewriteSeriesInfo("input1", "series-42", 9, []byte(sampleSeriesInfo), 1000)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &doc))
	var info map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["info"], &info))

	var catID string
	require.NoError(t, json.Unmarshal(info["category_id"], &catID))
	require.NotEqual(t, "7", catID)

	var catIDs []uint32
	require.NoError(t, json.Unmarshal(info["category_ids"], &catIDs))
	require.Len(t, catIDs, 1)
}
