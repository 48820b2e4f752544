package bptree

import (
	"encoding/binary"
	"encoding/json"
)

// Uint32KeyCodec orders keys numerically (virtual IDs, provider IDs).
type Uint32KeyCodec struct{}

func (Uint32KeyCodec) Encode(k uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, k) // big-endian so byte-compare order == numeric order
	return buf
}

func (Uint32KeyCodec) Decode(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, ErrCorruptBlock
	}
	return binary.BigEndian.Uint32(b), nil
}

func (Uint32KeyCodec) Compare(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// StringKeyCodec orders keys lexicographically by raw bytes (UUID
// strings, composite keys).
type StringKeyCodec struct{}

func (StringKeyCodec) Encode(k string) []byte { return []byte(k) }

func (StringKeyCodec) Decode(b []byte) (string, error) { return string(b), nil }

func (StringKeyCodec) Compare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// JSONValueCodec round-trips values through encoding/json, the teacher's
// standard serialization for catalog records (internal/catalog/catalog.go).
type JSONValueCodec[V any] struct{}

func (JSONValueCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (JSONValueCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
