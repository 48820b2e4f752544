// Package bptree implements the Virtual-ID Store (spec §4.1): a
// disk-resident key/value tree with compressed leaf pages and an optional
// sorted-index side file for iterating in an alternate key order without
// tree traversal. Grounded on the teacher's binary-protocol style in
// internal/hdhomerun/packet.go (explicit Marshal/Unmarshal over
// encoding/binary, documented wire layout in a header comment) and on
// original_source/backend/src/repository/sorted_index.rs, which this
// package's sorted-index file format is a direct, byte-for-byte port of.
package bptree
