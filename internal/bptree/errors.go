package bptree

import "errors"

// Failure modes (spec §4.1 "Failure modes"): all are surfaced to the
// caller, none are silently swallowed.
var (
	ErrInvalidMagic       = errors.New("bptree: invalid magic")
	ErrUnsupportedVersion = errors.New("bptree: unsupported version")
	ErrCorruptBlock       = errors.New("bptree: corrupt block")
	ErrIndexOutOfRange    = errors.New("bptree: index out of range")
	ErrReadOnly           = errors.New("bptree: tree opened in Query mode")
)
