package filter

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ipxyd/ipxyd/internal/model"
)

func makeItems() []model.PlaylistItem {
	return []model.PlaylistItem{
		{UUID: uuid.New(), Name: "BBC One", Title: "BBC One", Group: "UK", Kind: model.KindLive},
		{UUID: uuid.New(), Name: "CNN", Title: "CNN", Group: "US", Kind: model.KindLive},
		{UUID: uuid.New(), Name: "Movie X", Title: "Movie X", Group: "Movies", Kind: model.KindVideo},
	}
}

func TestPipeFilterStageDropsNonMatching(t *testing.T) {
	expr, err := Parse(`type=live`)
	require.NoError(t, err)
	p := &Pipe{Order: Orderings[0], Filter: FilterStage{Expr: expr}}

	out := p.Run(makeItems())
	require.Len(t, out, 2)
	for _, r := range out {
		require.Equal(t, model.ClusterLive, model.ClusterOf(r.Item.Kind))
	}
}

func TestPipeRenameStageRewritesField(t *testing.T) {
	re := regexp.MustCompile(`^BBC`)
	p := &Pipe{Order: Orderings[0], Rename: RenameStage{Field: FieldTitle, Re: re, Repl: "British"}}

	out := p.Run(makeItems())
	require.Equal(t, "British One", out[0].Item.Title)
}

func TestPipeCounterMapperAssignsPaddedIntegers(t *testing.T) {
	p := &Pipe{
		Order: Orderings[0],
		Map:   MapStage{Counter: &CounterMapper{Field: FieldName, Mode: CounterAssign, Start: 1, Padding: 3}},
	}
	out := p.Run(makeItems())
	require.Equal(t, "001", out[0].Item.Name)
	require.Equal(t, "002", out[1].Item.Name)
	require.Equal(t, "003", out[2].Item.Name)
}

func TestPipeCounterMapperPrefixSuffix(t *testing.T) {
	prefix := &Pipe{Order: Orderings[0], Map: MapStage{Counter: &CounterMapper{Field: FieldName, Mode: CounterPrefix, Start: 1, Padding: 2}}}
	out := prefix.Run(makeItems())
	require.Equal(t, "01BBC One", out[0].Item.Name)

	suffix := &Pipe{Order: Orderings[0], Map: MapStage{Counter: &CounterMapper{Field: FieldName, Mode: CounterSuffix, Start: 1, Padding: 2}}}
	out = suffix.Run(makeItems())
	require.Equal(t, "BBC One01", out[0].Item.Name)
}

func TestPipeAliasMapperProducesDeterministicClone(t *testing.T) {
	p := &Pipe{
		Order: Orderings[0],
		Map:   MapStage{Alias: &AliasMapper{MappingID: "backup"}},
	}
	items := makeItems()
	out1 := p.Run(items)
	out2 := p.Run(items)

	require.NotNil(t, out1[0].AliasItem)
	require.Equal(t, out1[0].AliasItem.UUID, out2[0].AliasItem.UUID)
	require.NotEqual(t, items[0].UUID, out1[0].AliasItem.UUID)
}

func TestPipeOrderingAppliesStagesInSequence(t *testing.T) {
	expr, err := Parse(`name ~ "^001"`)
	require.NoError(t, err)
	counterThenFilter := &Pipe{
		Order:  Order{StageMap, StageFilter, StageRename},
		Filter: FilterStage{Expr: expr},
		Map:    MapStage{Counter: &CounterMapper{Field: FieldName, Mode: CounterAssign, Start: 1, Padding: 3}},
	}
	out := counterThenFilter.Run(makeItems())
	require.Len(t, out, 1)
	require.Equal(t, "001", out[0].Item.Name)
}
