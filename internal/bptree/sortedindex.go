package bptree

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Sorted-index file format (spec §4.1, ported byte-for-byte from
// original_source/backend/src/repository/sorted_index.rs):
//
//	[magic: "SIDX"][version: u32][count: u64]
//	entry*: [sort_key_len:u32][sort_key][primary_key_len:u32][primary_key][value_location]

var sidxMagic = [4]byte{'S', 'I', 'D', 'X'}

const (
	sidxVersion    = 3
	sidxHeaderSize = 16
)

// SortedIndexEntry is one record of a sorted-index file.
type SortedIndexEntry struct {
	SortKey    []byte
	PrimaryKey []byte
	Location   ValueLocation
}

// SortedIndexWriter builds a sorted-index file. Entries must be pushed in
// the caller's desired sort order; the writer does not sort them itself.
type SortedIndexWriter struct {
	f     *os.File
	w     *bufio.Writer
	count uint64
}

// NewSortedIndexWriter creates (truncating) the index file at path.
func NewSortedIndexWriter(path string) (*SortedIndexWriter, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(sidxMagic[:]); err != nil {
		f.Close()
		return nil, err
	}
	var versionBuf [4]byte
	binary.LittleEndian.PutUint32(versionBuf[:], sidxVersion)
	if _, err := w.Write(versionBuf[:]); err != nil {
		f.Close()
		return nil, err
	}
	var countBuf [8]byte // placeholder, patched in Finish
	if _, err := w.Write(countBuf[:]); err != nil {
		f.Close()
		return nil, err
	}
	return &SortedIndexWriter{f: f, w: w}, nil
}

// Push appends one entry.
func (sw *SortedIndexWriter) Push(sortKey, primaryKey []byte, loc ValueLocation) error {
	if err := writeLenPrefixed(sw.w, sortKey); err != nil {
		return err
	}
	if err := writeLenPrefixed(sw.w, primaryKey); err != nil {
		return err
	}
	if _, err := sw.w.Write(loc.encode()); err != nil {
		return err
	}
	sw.count++
	return nil
}

func writeLenPrefixed(w *bufio.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// Finish flushes the writer, patches the header's count field, and
// returns the number of entries written.
func (sw *SortedIndexWriter) Finish() (uint64, error) {
	if err := sw.w.Flush(); err != nil {
		return 0, err
	}
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], sw.count)
	if _, err := sw.f.WriteAt(countBuf[:], 8); err != nil {
		return 0, err
	}
	if err := sw.f.Sync(); err != nil {
		return 0, err
	}
	return sw.count, sw.f.Close()
}

// SortedIndexReader iterates a sorted-index file in entry order.
type SortedIndexReader struct {
	f         *os.File
	r         *bufio.Reader
	remaining uint64
}

// OpenSortedIndex opens an existing index file, validating its header.
func OpenSortedIndex(path string) (*SortedIndexReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	header := make([]byte, sidxHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidMagic, err)
	}
	if string(header[0:4]) != string(sidxMagic[:]) {
		f.Close()
		return nil, ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != sidxVersion {
		f.Close()
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, sidxVersion)
	}
	count := binary.LittleEndian.Uint64(header[8:16])
	return &SortedIndexReader{f: f, r: bufio.NewReader(f), remaining: count}, nil
}

// Remaining returns the number of entries not yet read.
func (sr *SortedIndexReader) Remaining() uint64 { return sr.remaining }

// IsEmpty reports whether the index has zero entries.
func (sr *SortedIndexReader) IsEmpty() bool { return sr.remaining == 0 }

// Next reads the next entry, or returns (nil, nil) once exhausted.
func (sr *SortedIndexReader) Next() (*SortedIndexEntry, error) {
	if sr.remaining == 0 {
		return nil, nil
	}
	sortKey, err := readLenPrefixed(sr.r)
	if err != nil {
		return nil, err
	}
	primaryKey, err := readLenPrefixed(sr.r)
	if err != nil {
		return nil, err
	}
	locBuf := make([]byte, 15)
	if _, err := io.ReadFull(sr.r, locBuf[:1]); err != nil {
		return nil, err
	}
	var rest []byte
	switch ValueLocationMode(locBuf[0]) {
	case ModeSingle:
		rest = make([]byte, 12)
	case ModePacked:
		rest = make([]byte, 14)
	default:
		return nil, fmt.Errorf("%w: mode %d", ErrCorruptBlock, locBuf[0])
	}
	if _, err := io.ReadFull(sr.r, rest); err != nil {
		return nil, err
	}
	loc, _, err := decodeValueLocation(append(locBuf[:1], rest...))
	if err != nil {
		return nil, err
	}
	sr.remaining--
	return &SortedIndexEntry{SortKey: sortKey, PrimaryKey: primaryKey, Location: loc}, nil
}

// Close releases the underlying file handle.
func (sr *SortedIndexReader) Close() error { return sr.f.Close() }

func readLenPrefixed(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
