package filter

import "github.com/ipxyd/ipxyd/internal/model"

// FlattenGroups merges items whose (title, cluster) group-key collides
// across different inputs, preserving first-seen channel order within
// the merged group (spec §4.6 "Group flattening"). Items whose group-key
// has not been seen before open a new group in first-seen order;
// subsequent items sharing that key are appended to it.
func FlattenGroups(items []model.PlaylistItem) []model.PlaylistItem {
	type key struct {
		groupTitle string
		cluster    model.Cluster
	}
	order := make([]key, 0)
	byKey := make(map[key][]model.PlaylistItem)

	for _, it := range items {
		k := key{groupTitle: it.Group, cluster: model.ClusterOf(it.Kind)}
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], it)
	}

	out := make([]model.PlaylistItem, 0, len(items))
	for _, k := range order {
		out = append(out, byKey[k]...)
	}
	return out
}
