package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipxyd/ipxyd/internal/model"
)

func TestFlattenGroupsMergesSameGroupAcrossInputs(t *testing.T) {
	items := []model.PlaylistItem{
		{Name: "BBC One", Group: "UK", Kind: model.KindLive, InputName: "input-a"},
		{Name: "CNN", Group: "US", Kind: model.KindLive, InputName: "input-a"},
		{Name: "BBC Two", Group: "UK", Kind: model.KindLive, InputName: "input-b"},
	}
	out := FlattenGroups(items)
	require.Len(t, out, 3)
	require.Equal(t, "BBC One", out[0].Name)
	require.Equal(t, "BBC Two", out[1].Name) // merged into UK group, first-seen order
	require.Equal(t, "CNN", out[2].Name)
}

func TestFlattenGroupsKeepsDistinctClustersSeparate(t *testing.T) {
	items := []model.PlaylistItem{
		{Name: "Live Sports", Group: "Sports", Kind: model.KindLive},
		{Name: "VOD Sports", Group: "Sports", Kind: model.KindVideo},
	}
	out := FlattenGroups(items)
	require.Len(t, out, 2)
}
