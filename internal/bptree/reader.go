package bptree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// scanEntry is one key/value pair recovered while replaying the tree file
// from byte zero, used to rebuild the in-memory index on Open.
type scanEntry struct {
	key   []byte
	value []byte // compressed, flag-prefixed
	loc   ValueLocation
}

// scanFile replays every record in the tree file and returns its entries
// in file order.
func scanFile(r io.Reader) ([]scanEntry, error) {
	var out []scanEntry
	var offset int64
	tagBuf := make([]byte, 1)
	for {
		_, err := io.ReadFull(r, tagBuf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		offset++
		switch tagBuf[0] {
		case recordTagPage:
			body := make([]byte, PageSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("%w: truncated page: %v", ErrCorruptBlock, err)
			}
			blockOffset := uint64(offset)
			entries, err := scanPageBody(body, blockOffset)
			if err != nil {
				return nil, err
			}
			out = append(out, entries...)
			offset += int64(len(body))
		case recordTagSingle:
			var lenBuf [4]byte
			if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
				return nil, fmt.Errorf("%w: truncated single key length: %v", ErrCorruptBlock, err)
			}
			offset += 4
			klen := binary.LittleEndian.Uint32(lenBuf[:])
			key := make([]byte, klen)
			if _, err := io.ReadFull(r, key); err != nil {
				return nil, fmt.Errorf("%w: truncated single key: %v", ErrCorruptBlock, err)
			}
			offset += int64(klen)
			if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
				return nil, fmt.Errorf("%w: truncated single value length: %v", ErrCorruptBlock, err)
			}
			offset += 4
			vlen := binary.LittleEndian.Uint32(lenBuf[:])
			valueOffset := offset
			value := make([]byte, vlen)
			if _, err := io.ReadFull(r, value); err != nil {
				return nil, fmt.Errorf("%w: truncated single value: %v", ErrCorruptBlock, err)
			}
			offset += int64(vlen)
			out = append(out, scanEntry{
				key:   key,
				value: value,
				loc:   ValueLocation{Mode: ModeSingle, Offset: uint64(valueOffset), Length: vlen},
			})
		default:
			return nil, fmt.Errorf("%w: unknown record tag %d", ErrCorruptBlock, tagBuf[0])
		}
	}
	return out, nil
}

func scanPageBody(body []byte, blockOffset uint64) ([]scanEntry, error) {
	if len(body) < 4 {
		return nil, ErrCorruptBlock
	}
	count := binary.LittleEndian.Uint32(body[0:4])
	pos := 4
	entries := make([]scanEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos+4 > len(body) {
			return nil, fmt.Errorf("%w: position %d exceeds page size", ErrCorruptBlock, pos)
		}
		klen := int(binary.LittleEndian.Uint32(body[pos : pos+4]))
		pos += 4
		if pos+klen > len(body) {
			return nil, ErrCorruptBlock
		}
		key := append([]byte(nil), body[pos:pos+klen]...)
		pos += klen
		if pos+4 > len(body) {
			return nil, ErrCorruptBlock
		}
		vlen := int(binary.LittleEndian.Uint32(body[pos : pos+4]))
		pos += 4
		if pos+vlen > len(body) {
			return nil, ErrCorruptBlock
		}
		value := append([]byte(nil), body[pos:pos+vlen]...)
		pos += vlen
		entries = append(entries, scanEntry{
			key:   key,
			value: value,
			loc:   ValueLocation{Mode: ModePacked, BlockOffset: blockOffset, Index: uint16(i), Length: uint32(vlen)},
		})
	}
	return entries, nil
}

// readValueAt reads a value given its ValueLocation, using cache for
// packed pages (spec §4.1 "Block cache": an LRU of ≤ 8 packed blocks by
// block_offset).
func readValueAt(f *os.File, loc ValueLocation, cache *blockCache) ([]byte, error) {
	switch loc.Mode {
	case ModeSingle:
		buf := make([]byte, loc.Length)
		if _, err := f.ReadAt(buf, int64(loc.Offset)); err != nil {
			return nil, err
		}
		return decompressValue(buf)
	case ModePacked:
		body, err := cache.get(f, loc.BlockOffset)
		if err != nil {
			return nil, err
		}
		return readPackedEntry(body, loc.Index)
	default:
		return nil, fmt.Errorf("%w: mode %d", ErrCorruptBlock, loc.Mode)
	}
}

func readPackedEntry(body []byte, index uint16) ([]byte, error) {
	if len(body) < 4 {
		return nil, ErrCorruptBlock
	}
	count := binary.LittleEndian.Uint32(body[0:4])
	if uint32(index) >= count {
		return nil, ErrIndexOutOfRange
	}
	pos := 4
	for i := uint32(0); i <= uint32(index); i++ {
		if pos+4 > len(body) {
			return nil, fmt.Errorf("%w: position %d exceeds page size", ErrCorruptBlock, pos)
		}
		klen := int(binary.LittleEndian.Uint32(body[pos : pos+4]))
		pos += 4 + klen
		if pos+4 > len(body) {
			return nil, ErrCorruptBlock
		}
		vlen := int(binary.LittleEndian.Uint32(body[pos : pos+4]))
		pos += 4
		if i == uint32(index) {
			if pos+vlen > len(body) {
				return nil, fmt.Errorf("%w: value length %d at position %d exceeds page size", ErrCorruptBlock, vlen, pos)
			}
			return decompressValue(body[pos : pos+vlen])
		}
		pos += vlen
	}
	return nil, ErrIndexOutOfRange
}

// blockCache is a small LRU of packed page bodies keyed by block offset
// (spec §4.1 "Block cache", capacity 8 — ported from
// original_source/backend/src/repository/sorted_index.rs's IndexMap LRU).
type blockCache struct {
	capacity int
	order    []uint64
	blocks   map[uint64][]byte
}

func newBlockCache(capacity int) *blockCache {
	return &blockCache{capacity: capacity, blocks: map[uint64][]byte{}}
}

func (c *blockCache) get(f *os.File, blockOffset uint64) ([]byte, error) {
	if body, ok := c.blocks[blockOffset]; ok {
		for i, off := range c.order {
			if off == blockOffset {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		c.order = append(c.order, blockOffset)
		return body, nil
	}
	body := make([]byte, PageSize)
	if _, err := f.ReadAt(body, int64(blockOffset)); err != nil {
		return nil, err
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.blocks, oldest)
	}
	c.order = append(c.order, blockOffset)
	c.blocks[blockOffset] = body
	return body, nil
}
