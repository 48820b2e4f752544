package bptree

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Record tags distinguish a packed leaf page from an oversized value that
// could not share a page with others (spec §4.1 describes both shapes as
// a single `value_location` enum; this tag exists only in the tree file's
// own on-disk stream so Open() can replay it without consulting the
// sorted index).
const (
	recordTagPage   byte = 0
	recordTagSingle byte = 1
)

// pageEntry is one packed key/value pair awaiting a flushed page.
type pageEntry struct {
	key   []byte
	value []byte // already compressed (flag-prefixed)
}

func pageEntrySize(e pageEntry) int {
	return 4 + len(e.key) + 4 + len(e.value)
}

// pageBuilder accumulates entries for the page currently being written and
// emits it once full, matching spec §4.1's 4 KiB leaf pages.
type pageBuilder struct {
	entries []pageEntry
	size    int // running body size, header (4 bytes count) included
}

func newPageBuilder() *pageBuilder {
	return &pageBuilder{size: 4}
}

// fits reports whether one more entry fits in the page being built.
func (b *pageBuilder) fits(e pageEntry) bool {
	return b.size+pageEntrySize(e) <= PageSize
}

func (b *pageBuilder) add(e pageEntry) {
	b.entries = append(b.entries, e)
	b.size += pageEntrySize(e)
}

// bytes renders the page body, zero-padded to PageSize.
func (b *pageBuilder) bytes() []byte {
	body := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(body[0:4], uint32(len(b.entries)))
	pos := 4
	for _, e := range b.entries {
		binary.LittleEndian.PutUint32(body[pos:pos+4], uint32(len(e.key)))
		pos += 4
		copy(body[pos:], e.key)
		pos += len(e.key)
		binary.LittleEndian.PutUint32(body[pos:pos+4], uint32(len(e.value)))
		pos += 4
		copy(body[pos:], e.value)
		pos += len(e.value)
	}
	return body
}

// writer appends packed pages and oversized single records to the tree
// file, tracking file offsets for the ValueLocation of each key written.
type writer struct {
	w       *bufio.Writer
	offset  int64
	current *pageBuilder

	// pendingLocations point at ValueLocations for entries already added to
	// current; their BlockOffset is unknown until the page is flushed.
	pendingLocations []*ValueLocation
}

func newWriter(w io.Writer, startOffset int64) *writer {
	return &writer{w: bufio.NewWriter(w), offset: startOffset, current: newPageBuilder()}
}

// put writes key/value (value already compressed) and returns a pointer to
// its ValueLocation. Entries are packed into the current page when they
// fit; otherwise the current page is flushed and, if the entry alone still
// exceeds a page, it is written as a standalone Single record. For packed
// entries the BlockOffset field is only filled in once the page is later
// flushed (see flushPage) — callers must read it after flush(), not at
// call time.
func (tw *writer) put(key, compressed []byte) (*ValueLocation, error) {
	e := pageEntry{key: key, value: compressed}
	if tw.current.fits(e) {
		return tw.pack(e), nil
	}
	if err := tw.flushPage(); err != nil {
		return nil, err
	}
	if pageEntrySize(e) <= PageSize-4 {
		return tw.pack(e), nil
	}
	return tw.putSingle(key, compressed)
}

func (tw *writer) pack(e pageEntry) *ValueLocation {
	loc := &ValueLocation{Mode: ModePacked, Index: uint16(len(tw.current.entries)), Length: uint32(len(e.value))}
	tw.current.add(e)
	tw.pendingLocations = append(tw.pendingLocations, loc)
	return loc
}

func (tw *writer) putSingle(key, compressed []byte) (*ValueLocation, error) {
	if err := tw.w.WriteByte(recordTagSingle); err != nil {
		return nil, err
	}
	tw.offset++
	var klen [4]byte
	binary.LittleEndian.PutUint32(klen[:], uint32(len(key)))
	if _, err := tw.w.Write(klen[:]); err != nil {
		return nil, err
	}
	tw.offset += 4
	if _, err := tw.w.Write(key); err != nil {
		return nil, err
	}
	tw.offset += int64(len(key))
	var vlen [4]byte
	binary.LittleEndian.PutUint32(vlen[:], uint32(len(compressed)))
	if _, err := tw.w.Write(vlen[:]); err != nil {
		return nil, err
	}
	tw.offset += 4
	valueOffset := tw.offset
	if _, err := tw.w.Write(compressed); err != nil {
		return nil, err
	}
	tw.offset += int64(len(compressed))
	return &ValueLocation{Mode: ModeSingle, Offset: uint64(valueOffset), Length: uint32(len(compressed))}, nil
}

// flushPage emits the in-progress packed page, if any, and backfills the
// BlockOffset of every ValueLocation handed out for it.
func (tw *writer) flushPage() error {
	if len(tw.current.entries) == 0 {
		return nil
	}
	if err := tw.w.WriteByte(recordTagPage); err != nil {
		return err
	}
	tw.offset++
	blockOffset := uint64(tw.offset)
	body := tw.current.bytes()
	if _, err := tw.w.Write(body); err != nil {
		return err
	}
	tw.offset += int64(len(body))
	for _, loc := range tw.pendingLocations {
		loc.BlockOffset = blockOffset
	}
	tw.pendingLocations = nil
	tw.current = newPageBuilder()
	return nil
}

func (tw *writer) flush() error {
	if err := tw.flushPage(); err != nil {
		return err
	}
	return tw.w.Flush()
}
