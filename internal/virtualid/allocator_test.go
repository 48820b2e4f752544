package virtualid

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ipxyd/ipxyd/internal/bptree"
	"github.com/ipxyd/ipxyd/internal/model"
)

func TestAssignVirtualIDAllocatesMonotonically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target-ids.bin")
	a, err := Open(path, bptree.Update)
	require.NoError(t, err)
	defer a.Close()

	u1 := model.ContentUUID("input1", 100, model.KindLive, "http://a/1")
	u2 := model.ContentUUID("input1", 200, model.KindLive, "http://a/2")

	v1, err := a.AssignVirtualID(u1, 100, model.KindLive, 0, 1000)
	require.NoError(t, err)
	v2, err := a.AssignVirtualID(u2, 200, model.KindLive, 0, 1000)
	require.NoError(t, err)
	require.NotEqual(t, v1, v2)
	require.Equal(t, v1+1, v2)
}

func TestAssignVirtualIDReusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target-ids.bin")
	a, err := Open(path, bptree.Update)
	require.NoError(t, err)
	defer a.Close()

	u := model.ContentUUID("input1", 100, model.KindVideo, "http://a/movie")
	first, err := a.AssignVirtualID(u, 100, model.KindVideo, 0, 1000)
	require.NoError(t, err)

	// Re-ingest of the same upstream item must reuse the id (spec §3
	// invariant: stable across reloads).
	second, err := a.AssignVirtualID(u, 100, model.KindVideo, 0, 2000)
	require.NoError(t, err)
	require.Equal(t, first, second)

	rec, ok, err := a.Lookup(u)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2000), rec.LastUpdated)
}

func TestAssignVirtualIDSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target-ids.bin")
	a, err := Open(path, bptree.Update)
	require.NoError(t, err)

	u := model.ContentUUID("input1", 1, model.KindSeries, "http://a/series")
	vid, err := a.AssignVirtualID(u, 1, model.KindSeries, 0, 1000)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	reopened, err := Open(path, bptree.Update)
	require.NoError(t, err)
	defer reopened.Close()

	rec, ok, err := reopened.Lookup(u)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, vid, rec.VirtualID)

	// A brand-new item allocated after reopen must not collide with the
	// id recovered from the replayed tree.
	u2 := model.ContentUUID("input1", 2, model.KindSeries, "http://a/series2")
	vid2, err := reopened.AssignVirtualID(u2, 2, model.KindSeries, 0, 1000)
	require.NoError(t, err)
	require.NotEqual(t, vid, vid2)
}

func TestAssignVirtualIDRecordsParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target-ids.bin")
	a, err := Open(path, bptree.Update)
	require.NoError(t, err)
	defer a.Close()

	parentU := model.ContentUUID("input1", 1, model.KindSeries, "http://a/series")
	parentVID, err := a.AssignVirtualID(parentU, 1, model.KindSeries, 0, 1000)
	require.NoError(t, err)

	epU := model.ContentUUID("input1", 101, model.KindSeriesInfo, "http://a/series/ep1")
	epVID, err := a.AssignVirtualID(epU, 101, model.KindSeriesInfo, parentVID, 1000)
	require.NoError(t, err)

	rec, ok, err := a.Lookup(epU)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, parentVID, rec.ParentVirtualID)
	require.Equal(t, epVID, rec.VirtualID)
}

func TestLookupMissingReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target-ids.bin")
	a, err := Open(path, bptree.Update)
	require.NoError(t, err)
	defer a.Close()

	_, ok, err := a.Lookup(uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}
