package bptree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

func openTestTree(t *testing.T, path string, mode Mode) *Tree[uint32, record] {
	t.Helper()
	tr, err := Open[uint32, record](path, mode, Uint32KeyCodec{}, JSONValueCodec[record]{})
	require.NoError(t, err)
	return tr
}

func TestUpsertLookupRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.bin")
	tr := openTestTree(t, path, Update)
	defer tr.Close()

	n, err := tr.UpsertBatch([]Entry[uint32, record]{
		{Key: 1, Value: record{Name: "CNN", Group: "News"}},
		{Key: 2, Value: record{Name: "BBC", Group: "News"}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, tr.Len())
	require.False(t, tr.IsEmpty())

	v, ok, err := tr.Lookup(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "CNN", v.Name)

	_, ok, err = tr.Lookup(99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReopenReplaysIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.bin")
	tr := openTestTree(t, path, Update)
	_, err := tr.UpsertBatch([]Entry[uint32, record]{
		{Key: 10, Value: record{Name: "A"}},
		{Key: 5, Value: record{Name: "B"}},
		{Key: 20, Value: record{Name: "C"}},
	})
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	reopened, err := Open[uint32, record](path, Query, Uint32KeyCodec{}, JSONValueCodec[record]{})
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, 3, reopened.Len())

	v, ok, err := reopened.Lookup(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "B", v.Name)
}

func TestIterIsKeyOrdered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.bin")
	tr := openTestTree(t, path, Update)
	defer tr.Close()
	_, err := tr.UpsertBatch([]Entry[uint32, record]{
		{Key: 30, Value: record{Name: "thirty"}},
		{Key: 10, Value: record{Name: "ten"}},
		{Key: 20, Value: record{Name: "twenty"}},
	})
	require.NoError(t, err)

	it := tr.Iter()
	var keys []uint32
	for {
		k, _, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, k)
	}
	require.Equal(t, []uint32{10, 20, 30}, keys)
}

func TestUpsertOverwritesExistingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.bin")
	tr := openTestTree(t, path, Update)
	defer tr.Close()
	_, err := tr.UpsertBatch([]Entry[uint32, record]{{Key: 1, Value: record{Name: "first"}}})
	require.NoError(t, err)
	_, err = tr.UpsertBatch([]Entry[uint32, record]{{Key: 1, Value: record{Name: "second"}}})
	require.NoError(t, err)
	require.Equal(t, 1, tr.Len())

	v, ok, err := tr.Lookup(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", v.Name)
}

func TestUpsertBatchRejectedInQueryMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.bin")
	tr := openTestTree(t, path, Update)
	_, err := tr.UpsertBatch([]Entry[uint32, record]{{Key: 1, Value: record{Name: "x"}}})
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	ro, err := Open[uint32, record](path, Query, Uint32KeyCodec{}, JSONValueCodec[record]{})
	require.NoError(t, err)
	defer ro.Close()
	_, err = ro.UpsertBatch([]Entry[uint32, record]{{Key: 2, Value: record{Name: "y"}}})
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestManyEntriesSpanMultiplePages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.bin")
	tr := openTestTree(t, path, Update)
	defer tr.Close()

	const n = 500
	entries := make([]Entry[uint32, record], n)
	for i := 0; i < n; i++ {
		entries[i] = Entry[uint32, record]{Key: uint32(i), Value: record{Name: "channel", Group: "g"}}
	}
	_, err := tr.UpsertBatch(entries)
	require.NoError(t, err)
	require.Equal(t, n, tr.Len())

	for _, i := range []uint32{0, 1, 250, 499} {
		v, ok, err := tr.Lookup(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "channel", v.Name)
	}
}

func TestBuildAndIterSortedIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.bin")
	idxPath := filepath.Join(t.TempDir(), "tree.idx")
	tr := openTestTree(t, path, Update)
	defer tr.Close()

	_, err := tr.UpsertBatch([]Entry[uint32, record]{
		{Key: 1, Value: record{Name: "CNN", Group: "News"}},
		{Key: 2, Value: record{Name: "BBC", Group: "Arts"}},
		{Key: 3, Value: record{Name: "Fox", Group: "News"}},
	})
	require.NoError(t, err)

	count, err := tr.BuildSortedIndex(idxPath, func(k uint32, v record) ([]byte, error) {
		return []byte(v.Group), nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	it, err := tr.IterSorted(idxPath)
	require.NoError(t, err)
	defer it.Close()

	var names []string
	for {
		_, v, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, v.Name)
	}
	// Sorted by group: Arts < News, News entries keep primary-key order.
	require.Equal(t, []string{"BBC", "CNN", "Fox"}, names)
}

func TestEmptySortedIndexReportsZeroRemaining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.bin")
	idxPath := filepath.Join(t.TempDir(), "tree.idx")
	tr := openTestTree(t, path, Update)
	defer tr.Close()

	count, err := tr.BuildSortedIndex(idxPath, func(k uint32, v record) ([]byte, error) { return nil, nil })
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)

	sidx, err := OpenSortedIndex(idxPath)
	require.NoError(t, err)
	defer sidx.Close()
	require.True(t, sidx.IsEmpty())
	require.Equal(t, uint64(0), sidx.Remaining())
}

func TestInvalidMagicSurfaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a tree file at all, long enough"), 0o644))
	_, err := Open[uint32, record](path, Query, Uint32KeyCodec{}, JSONValueCodec[record]{})
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestUnsupportedVersionSurfaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.bin")
	header := make([]byte, treeHeaderSize)
	copy(header[0:4], treeMagic[:])
	header[4] = 99 // bogus version
	require.NoError(t, os.WriteFile(path, header, 0o644))
	_, err := Open[uint32, record](path, Query, Uint32KeyCodec{}, JSONValueCodec[record]{})
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestOpenMissingFileInQueryModeFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.bin")
	_, err := Open[uint32, record](path, Query, Uint32KeyCodec{}, JSONValueCodec[record]{})
	require.Error(t, err)
}
