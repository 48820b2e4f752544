package bptree

import "sort"

// indexEntry is one primary-key → on-disk location pair held by the
// in-memory index. Values themselves are never cached here (spec §4.1:
// "serves catalogs without loading them into memory") — only their
// location, fetched lazily on Lookup/Iter.
type indexEntry[K any] struct {
	key K
	loc ValueLocation
}

// index is the in-memory primary-key-ordered structure backing a Tree. It
// behaves as a B+Tree's leaf level would (sorted key order, O(log n)
// lookup by binary search, O(n) ordered iteration) without needing
// disk-resident internal nodes, since the whole index is rebuilt from the
// tree file on every Open (see store.go).
type index[K any] struct {
	cmp     func(a, b K) int
	entries []indexEntry[K]
}

func newIndex[K any](cmp func(a, b K) int) *index[K] {
	return &index[K]{cmp: cmp}
}

func (ix *index[K]) search(key K) (int, bool) {
	i := sort.Search(len(ix.entries), func(i int) bool {
		return ix.cmp(ix.entries[i].key, key) >= 0
	})
	if i < len(ix.entries) && ix.cmp(ix.entries[i].key, key) == 0 {
		return i, true
	}
	return i, false
}

func (ix *index[K]) upsert(key K, loc ValueLocation) {
	i, found := ix.search(key)
	if found {
		ix.entries[i].loc = loc
		return
	}
	ix.entries = append(ix.entries, indexEntry[K]{})
	copy(ix.entries[i+1:], ix.entries[i:])
	ix.entries[i] = indexEntry[K]{key: key, loc: loc}
}

func (ix *index[K]) lookup(key K) (ValueLocation, bool) {
	i, found := ix.search(key)
	if !found {
		return ValueLocation{}, false
	}
	return ix.entries[i].loc, true
}

func (ix *index[K]) len() int      { return len(ix.entries) }
func (ix *index[K]) isEmpty() bool { return len(ix.entries) == 0 }
