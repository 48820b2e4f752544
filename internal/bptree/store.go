package bptree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// Mode selects whether a Tree permits mutation (spec §4.1 "open(path) →
// Query|Update").
type Mode int

const (
	Query Mode = iota
	Update
)

var treeMagic = [4]byte{'B', 'P', 'T', 'R'}

const (
	treeVersion    = 1
	treeHeaderSize = 8 // magic(4) + version(4)
)

// KeyCodec converts primary keys to and from their on-disk byte
// representation, and defines their ordering for the in-memory index.
type KeyCodec[K any] interface {
	Encode(K) []byte
	Decode([]byte) (K, error)
	Compare(a, b K) int
}

// ValueCodec converts stored values to and from their on-disk byte
// representation.
type ValueCodec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Entry is one key/value pair for UpsertBatch.
type Entry[K any, V any] struct {
	Key   K
	Value V
}

// Tree is an open Virtual-ID Store file (spec §4.1). Every Open replays
// the whole file to rebuild the in-memory index; values are never cached,
// only their ValueLocation, so catalogs stream without loading into
// memory.
type Tree[K any, V any] struct {
	path     string
	mode     Mode
	keyCodec KeyCodec[K]
	valCodec ValueCodec[V]

	mu    sync.RWMutex
	file  *os.File
	idx   *index[K]
	cache *blockCache
}

// Open opens (or creates, in Update mode) a tree file.
func Open[K any, V any](path string, mode Mode, keyCodec KeyCodec[K], valCodec ValueCodec[V]) (*Tree[K, V], error) {
	flag := os.O_RDONLY
	if mode == Update {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	t := &Tree[K, V]{
		path:     path,
		mode:     mode,
		keyCodec: keyCodec,
		valCodec: valCodec,
		file:     f,
		idx:      newIndex[K](keyCodec.Compare),
		cache:    newBlockCache(8),
	}

	if info.Size() == 0 {
		if mode != Update {
			f.Close()
			return nil, fmt.Errorf("bptree: %s: %w", path, os.ErrNotExist)
		}
		if err := t.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		return t, nil
	}

	if err := t.loadAndValidate(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tree[K, V]) writeHeader() error {
	buf := make([]byte, treeHeaderSize)
	copy(buf[0:4], treeMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], treeVersion)
	_, err := t.file.WriteAt(buf, 0)
	return err
}

func (t *Tree[K, V]) loadAndValidate() error {
	header := make([]byte, treeHeaderSize)
	if _, err := t.file.ReadAt(header, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMagic, err)
	}
	if !bytes.Equal(header[0:4], treeMagic[:]) {
		return ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != treeVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, treeVersion)
	}

	if _, err := t.file.Seek(treeHeaderSize, io.SeekStart); err != nil {
		return err
	}
	entries, err := scanFile(t.file)
	if err != nil {
		return err
	}
	for _, e := range entries {
		key, err := t.keyCodec.Decode(e.key)
		if err != nil {
			return err
		}
		t.idx.upsert(key, e.loc)
	}
	return nil
}

// Len reports the number of distinct keys.
func (t *Tree[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.idx.len()
}

// IsEmpty reports whether the tree holds no keys.
func (t *Tree[K, V]) IsEmpty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.idx.isEmpty()
}

// Lookup performs a random-access read by primary key.
func (t *Tree[K, V]) Lookup(key K) (V, bool, error) {
	var zero V
	t.mu.Lock() // readValueAt mutates the block cache
	defer t.mu.Unlock()
	loc, ok := t.idx.lookup(key)
	if !ok {
		return zero, false, nil
	}
	raw, err := readValueAt(t.file, loc, t.cache)
	if err != nil {
		return zero, false, err
	}
	v, err := t.valCodec.Decode(raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// UpsertBatch appends entries and updates the in-memory index. Values are
// compressed per spec §4.1 "Value compression" before being packed into
// leaf pages. Requires the tree to be open in Update mode.
func (t *Tree[K, V]) UpsertBatch(entries []Entry[K, V]) (int, error) {
	if t.mode != Update {
		return 0, ErrReadOnly
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	end, err := t.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	w := newWriter(t.file, end)
	locs := make([]*ValueLocation, len(entries))
	keys := make([]K, len(entries))
	for i, e := range entries {
		raw, err := t.valCodec.Encode(e.Value)
		if err != nil {
			return i, err
		}
		compressed := compressValue(raw)
		keyBytes := t.keyCodec.Encode(e.Key)
		loc, err := w.put(keyBytes, compressed)
		if err != nil {
			return i, err
		}
		locs[i] = loc
		keys[i] = e.Key
	}
	if err := w.flush(); err != nil {
		return 0, err
	}
	for i, k := range keys {
		t.idx.upsert(k, *locs[i])
	}
	return len(entries), nil
}

// Close releases the underlying file handle.
func (t *Tree[K, V]) Close() error {
	return t.file.Close()
}

// Iterator walks (key, value) pairs in primary-key order.
type Iterator[K any, V any] struct {
	t       *Tree[K, V]
	entries []indexEntry[K]
	pos     int
}

// Iter returns an iterator over the tree in primary-key order (spec §4.1
// "iter() → (key,value)*").
func (t *Tree[K, V]) Iter() *Iterator[K, V] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snapshot := make([]indexEntry[K], len(t.idx.entries))
	copy(snapshot, t.idx.entries)
	return &Iterator[K, V]{t: t, entries: snapshot}
}

// Remaining reports how many entries are left to iterate.
func (it *Iterator[K, V]) Remaining() int { return len(it.entries) - it.pos }

// Next returns the next pair, or ok=false once exhausted.
func (it *Iterator[K, V]) Next() (key K, value V, ok bool, err error) {
	if it.pos >= len(it.entries) {
		return key, value, false, nil
	}
	e := it.entries[it.pos]
	it.pos++

	it.t.mu.Lock()
	raw, rerr := readValueAt(it.t.file, e.loc, it.t.cache)
	it.t.mu.Unlock()
	if rerr != nil {
		return key, value, false, rerr
	}
	v, derr := it.t.valCodec.Decode(raw)
	if derr != nil {
		return key, value, false, derr
	}
	return e.key, v, true, nil
}

// BuildSortedIndex writes a sorted-index file ordered by sortKeyOf(key,
// value), pointing at the same on-disk locations as the primary tree
// (spec §4.1 "build_sorted_index(values_with_locations, out_path)"). The
// whole tree is scanned once to compute sort keys; ties keep primary-key
// order (stable sort).
func (t *Tree[K, V]) BuildSortedIndex(outPath string, sortKeyOf func(K, V) ([]byte, error)) (uint64, error) {
	t.mu.RLock()
	snapshot := make([]indexEntry[K], len(t.idx.entries))
	copy(snapshot, t.idx.entries)
	t.mu.RUnlock()

	type staged struct {
		sortKey    []byte
		primaryKey []byte
		loc        ValueLocation
	}
	items := make([]staged, 0, len(snapshot))
	for _, e := range snapshot {
		t.mu.Lock()
		raw, err := readValueAt(t.file, e.loc, t.cache)
		t.mu.Unlock()
		if err != nil {
			return 0, err
		}
		v, err := t.valCodec.Decode(raw)
		if err != nil {
			return 0, err
		}
		sortKey, err := sortKeyOf(e.key, v)
		if err != nil {
			return 0, err
		}
		items = append(items, staged{
			sortKey:    sortKey,
			primaryKey: t.keyCodec.Encode(e.key),
			loc:        e.loc,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return bytes.Compare(items[i].sortKey, items[j].sortKey) < 0
	})

	w, err := NewSortedIndexWriter(outPath)
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		if err := w.Push(it.sortKey, it.primaryKey, it.loc); err != nil {
			return 0, err
		}
	}
	return w.Finish()
}

// SortedIterator walks (primary key, value) pairs via a pre-built sorted
// index, reading values directly by stored offset — O(1) per item,
// without any tree traversal (spec §4.1 "iter_sorted(index_path)").
type SortedIterator[K any, V any] struct {
	t    *Tree[K, V]
	sidx *SortedIndexReader
}

// IterSorted opens indexPath and returns an iterator over the tree in
// that alternate order.
func (t *Tree[K, V]) IterSorted(indexPath string) (*SortedIterator[K, V], error) {
	sidx, err := OpenSortedIndex(indexPath)
	if err != nil {
		return nil, err
	}
	return &SortedIterator[K, V]{t: t, sidx: sidx}, nil
}

// Remaining reports how many entries are left.
func (it *SortedIterator[K, V]) Remaining() uint64 { return it.sidx.Remaining() }

// Next returns the next (primary key, value) pair in sorted-index order,
// or ok=false once exhausted.
func (it *SortedIterator[K, V]) Next() (key K, value V, ok bool, err error) {
	e, err := it.sidx.Next()
	if err != nil {
		return key, value, false, err
	}
	if e == nil {
		return key, value, false, nil
	}
	k, err := it.t.keyCodec.Decode(e.PrimaryKey)
	if err != nil {
		return key, value, false, err
	}
	it.t.mu.Lock()
	raw, err := readValueAt(it.t.file, e.Location, it.t.cache)
	it.t.mu.Unlock()
	if err != nil {
		return key, value, false, err
	}
	v, err := it.t.valCodec.Decode(raw)
	if err != nil {
		return key, value, false, err
	}
	return k, v, true, nil
}

// Close releases the sorted-index file handle.
func (it *SortedIterator[K, V]) Close() error { return it.sidx.Close() }
