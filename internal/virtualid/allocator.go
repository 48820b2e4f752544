package virtualid

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ipxyd/ipxyd/internal/bptree"
	"github.com/ipxyd/ipxyd/internal/model"
)

// VirtualIdRecord is the value stored in the per-target Target-ID-Mapping
// tree, keyed by a playlist item's content UUID (spec §3 "VirtualIdRecord").
type VirtualIdRecord struct {
	ProviderID      uint32         `json:"provider_id"`
	VirtualID       uint32         `json:"virtual_id"`
	Kind            model.ItemKind `json:"kind"`
	ParentVirtualID uint32         `json:"parent_virtual_id,omitempty"`
	LastUpdated     int64          `json:"last_updated"`
}

// Allocator assigns stable virtual IDs for one target, backed by a
// UUID-keyed B+Tree (internal/bptree). Once a UUID has been assigned a
// virtual_id, every later call for the same UUID returns the same id —
// the invariant spec §3 calls out explicitly for VirtualIdRecord.
type Allocator struct {
	mu     sync.Mutex
	tree   *bptree.Tree[string, VirtualIdRecord]
	nextID atomic.Uint32
}

// Open loads (or creates, in Update mode) the Target-ID-Mapping tree at
// path and primes the monotonic id counter from the highest virtual_id
// already on record, so freshly allocated ids never collide with ids
// assigned before a restart.
func Open(path string, mode bptree.Mode) (*Allocator, error) {
	tree, err := bptree.Open[string, VirtualIdRecord](path, mode, bptree.StringKeyCodec{}, bptree.JSONValueCodec[VirtualIdRecord]{})
	if err != nil {
		return nil, fmt.Errorf("virtualid: open %s: %w", path, err)
	}
	a := &Allocator{tree: tree}
	it := tree.Iter()
	for {
		_, rec, ok, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("virtualid: replay %s: %w", path, err)
		}
		if !ok {
			break
		}
		if rec.VirtualID >= a.nextID.Load() {
			a.nextID.Store(rec.VirtualID + 1)
		}
	}
	return a, nil
}

func (a *Allocator) Close() error { return a.tree.Close() }

func (a *Allocator) Len() int { return a.tree.Len() }

// Lookup returns the record on file for a content UUID, if any, without
// assigning a new one.
func (a *Allocator) Lookup(contentUUID uuid.UUID) (VirtualIdRecord, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tree.Lookup(contentUUID.String())
}

// AssignVirtualID implements spec §4.8's ingest rule: look up the item's
// content UUID, reuse its virtual_id if present, otherwise allocate the
// next monotonic integer and persist the record. parentVirtualID is 0
// for top-level items and the parent series' virtual_id for episodes
// (spec §4.8 "record parent_virtual_id").
func (a *Allocator) AssignVirtualID(contentUUID uuid.UUID, providerID uint32, kind model.ItemKind, parentVirtualID uint32, nowUnix int64) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := contentUUID.String()
	existing, ok, err := a.tree.Lookup(key)
	if err != nil {
		return 0, fmt.Errorf("virtualid: lookup %s: %w", key, err)
	}

	rec := VirtualIdRecord{
		ProviderID:      providerID,
		Kind:            kind,
		ParentVirtualID: parentVirtualID,
		LastUpdated:     nowUnix,
	}
	if ok {
		rec.VirtualID = existing.VirtualID
	} else {
		rec.VirtualID = a.nextID.Add(1) - 1
	}

	if _, err := a.tree.UpsertBatch([]bptree.Entry[string, VirtualIdRecord]{{Key: key, Value: rec}}); err != nil {
		return 0, fmt.Errorf("virtualid: persist %s: %w", key, err)
	}
	return rec.VirtualID, nil
}
