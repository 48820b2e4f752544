package bptree

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// PageSize is the fixed size of a leaf page (spec §4.1 "4 KiB").
const PageSize = 4096

const (
	compressionFlagRaw  byte = 0
	compressionFlagLZ4  byte = 1
	lz4MinSavingsBytes        = 32 // skip compression for tiny values, not worth the per-call overhead
)

// ValueLocationMode tags how a ValueLocation should be interpreted on disk.
type ValueLocationMode uint8

const (
	ModeSingle ValueLocationMode = 0
	ModePacked ValueLocationMode = 1
)

// ValueLocation is either a standalone value at a direct file offset, or a
// value packed inside a page alongside others (spec §4.1 "value_location").
type ValueLocation struct {
	Mode        ValueLocationMode
	Offset      uint64 // Single
	Length      uint32 // both modes
	BlockOffset uint64 // Packed
	Index       uint16 // Packed
}

func (l ValueLocation) encode() []byte {
	switch l.Mode {
	case ModeSingle:
		buf := make([]byte, 1+8+4)
		buf[0] = byte(ModeSingle)
		binary.LittleEndian.PutUint64(buf[1:9], l.Offset)
		binary.LittleEndian.PutUint32(buf[9:13], l.Length)
		return buf
	case ModePacked:
		buf := make([]byte, 1+8+2+4)
		buf[0] = byte(ModePacked)
		binary.LittleEndian.PutUint64(buf[1:9], l.BlockOffset)
		binary.LittleEndian.PutUint16(buf[9:11], l.Index)
		binary.LittleEndian.PutUint32(buf[11:15], l.Length)
		return buf
	default:
		panic("bptree: unknown value location mode")
	}
}

func decodeValueLocation(b []byte) (ValueLocation, int, error) {
	if len(b) < 1 {
		return ValueLocation{}, 0, ErrCorruptBlock
	}
	switch ValueLocationMode(b[0]) {
	case ModeSingle:
		if len(b) < 13 {
			return ValueLocation{}, 0, ErrCorruptBlock
		}
		return ValueLocation{
			Mode:   ModeSingle,
			Offset: binary.LittleEndian.Uint64(b[1:9]),
			Length: binary.LittleEndian.Uint32(b[9:13]),
		}, 13, nil
	case ModePacked:
		if len(b) < 15 {
			return ValueLocation{}, 0, ErrCorruptBlock
		}
		return ValueLocation{
			Mode:        ModePacked,
			BlockOffset: binary.LittleEndian.Uint64(b[1:9]),
			Index:       binary.LittleEndian.Uint16(b[9:11]),
			Length:      binary.LittleEndian.Uint32(b[11:15]),
		}, 15, nil
	default:
		return ValueLocation{}, 0, fmt.Errorf("%w: mode %d", ErrCorruptBlock, b[0])
	}
}

// compressValue prefixes raw with a one-byte compression flag (spec §4.1
// "Value compression"). Values that compress poorly (or are too small to be
// worth it) are stored with the raw flag instead.
func compressValue(raw []byte) []byte {
	if len(raw) < lz4MinSavingsBytes {
		return append([]byte{compressionFlagRaw}, raw...)
	}
	bound := lz4.CompressBlockBound(len(raw))
	dst := make([]byte, bound)
	var c lz4.Compressor
	n, err := c.CompressBlock(raw, dst)
	if err != nil || n == 0 || n+4 >= len(raw) {
		return append([]byte{compressionFlagRaw}, raw...)
	}
	out := make([]byte, 0, 1+4+n)
	out = append(out, compressionFlagLZ4)
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(raw)))
	out = append(out, sizeBuf[:]...)
	out = append(out, dst[:n]...)
	return out
}

// decompressValue reverses compressValue.
func decompressValue(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrCorruptBlock
	}
	flag, payload := data[0], data[1:]
	switch flag {
	case compressionFlagRaw:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case compressionFlagLZ4:
		if len(payload) < 4 {
			return nil, ErrCorruptBlock
		}
		size := binary.LittleEndian.Uint32(payload[:4])
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(payload[4:], dst)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4 decompress: %v", ErrCorruptBlock, err)
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("%w: compression flag %d", ErrCorruptBlock, flag)
	}
}
