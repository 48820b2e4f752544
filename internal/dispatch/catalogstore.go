package dispatch

import (
	"fmt"

	"github.com/ipxyd/ipxyd/internal/bptree"
	"github.com/ipxyd/ipxyd/internal/model"
)

// Category is a catalog grouping bucket: the distinct value of a
// PlaylistItem's Group field within one cluster, exposed to Xtream's
// get_*_categories actions.
type Category struct {
	ID   string
	Name string
}

// TargetStore is the per-target catalog query surface: three virtual-ID-
// keyed B+Trees, one per cluster (spec §3 "Storage entities": "Per
// target: three B+Trees (live, vod, series) ... keyed by virtual_id").
type TargetStore struct {
	name  string
	trees map[model.Cluster]*bptree.Tree[uint32, model.PlaylistItem]
}

func clusterFileName(c model.Cluster) string {
	return c.String() + ".db"
}

// OpenTargetStore opens (or creates, in Update mode) the three per-
// cluster trees under dir, matching spec §3's
// "<data>/<target>/<cluster>.db" layout.
func OpenTargetStore(dir, targetName string, mode bptree.Mode) (*TargetStore, error) {
	ts := &TargetStore{name: targetName, trees: make(map[model.Cluster]*bptree.Tree[uint32, model.PlaylistItem], 3)}
	for _, c := range []model.Cluster{model.ClusterLive, model.ClusterVideo, model.ClusterSeries} {
		path := dir + "/" + clusterFileName(c)
		tree, err := bptree.Open[uint32, model.PlaylistItem](path, mode, bptree.Uint32KeyCodec{}, bptree.JSONValueCodec[model.PlaylistItem]{})
		if err != nil {
			ts.Close()
			return nil, fmt.Errorf("dispatch: open target %s cluster %s: %w", targetName, c, err)
		}
		ts.trees[c] = tree
	}
	return ts, nil
}

// Close releases every cluster tree's file handle.
func (ts *TargetStore) Close() error {
	var firstErr error
	for _, tree := range ts.trees {
		if tree == nil {
			continue
		}
		if err := tree.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// UpsertItems writes items into their cluster's tree, keyed by virtual
// ID. Called during catalog build (out of band from request serving).
func (ts *TargetStore) UpsertItems(items []model.PlaylistItem) error {
	byCluster := make(map[model.Cluster][]bptree.Entry[uint32, model.PlaylistItem])
	for _, it := range items {
		byCluster[it.Cluster] = append(byCluster[it.Cluster], bptree.Entry[uint32, model.PlaylistItem]{Key: it.VirtualID, Value: it})
	}
	for cluster, entries := range byCluster {
		tree, ok := ts.trees[cluster]
		if !ok {
			continue
		}
		if _, err := tree.UpsertBatch(entries); err != nil {
			return fmt.Errorf("dispatch: upsert %s cluster %s: %w", ts.name, cluster, err)
		}
	}
	return nil
}

// ItemInfo looks up one item by virtual ID within a cluster.
func (ts *TargetStore) ItemInfo(cluster model.Cluster, virtualID uint32) (model.PlaylistItem, bool, error) {
	tree, ok := ts.trees[cluster]
	if !ok {
		return model.PlaylistItem{}, false, fmt.Errorf("dispatch: no tree for cluster %s", cluster)
	}
	return tree.Lookup(virtualID)
}

// allItems walks a cluster's tree front to back. The catalog streams
// rather than loads into memory (spec §4.1), so callers that need a
// full slice (categories, stream listings) pay the iteration cost at
// request time rather than holding a duplicate in-process cache.
func (ts *TargetStore) allItems(cluster model.Cluster) ([]model.PlaylistItem, error) {
	tree, ok := ts.trees[cluster]
	if !ok {
		return nil, fmt.Errorf("dispatch: no tree for cluster %s", cluster)
	}
	it := tree.Iter()
	out := make([]model.PlaylistItem, 0, it.Remaining())
	for {
		_, item, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

// Categories returns the distinct Group values present in a cluster, in
// first-seen order, each one surfaced as both ID and Name (Xtream
// categories carry no separate stable identifier upstream of the
// group/category name itself in the teacher's own ingestion path).
func (ts *TargetStore) Categories(cluster model.Cluster) ([]Category, error) {
	items, err := ts.allItems(cluster)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []Category
	for _, it := range items {
		group := it.Group
		if group == "" || seen[group] {
			continue
		}
		seen[group] = true
		out = append(out, Category{ID: group, Name: group})
	}
	return out, nil
}

// Streams returns every item in a cluster, optionally filtered to one
// category (Group). An empty categoryID returns the whole cluster.
func (ts *TargetStore) Streams(cluster model.Cluster, categoryID string) ([]model.PlaylistItem, error) {
	items, err := ts.allItems(cluster)
	if err != nil {
		return nil, err
	}
	if categoryID == "" {
		return items, nil
	}
	out := make([]model.PlaylistItem, 0, len(items))
	for _, it := range items {
		if it.Group == categoryID {
			out = append(out, it)
		}
	}
	return out, nil
}
