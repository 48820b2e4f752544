package filter

import (
	"fmt"
	"regexp"

	"github.com/ipxyd/ipxyd/internal/model"
)

// Stage names one of the three processing-pipe operations (spec §4.6
// "one of six total orderings of {Filter, Rename, Map}").
type Stage int

const (
	StageFilter Stage = iota
	StageRename
	StageMap
)

// Order is a concrete ordering of the three stages; spec §4.6 allows any
// of the 3! = 6 permutations per target.
type Order [3]Stage

var Orderings = [6]Order{
	{StageFilter, StageRename, StageMap},
	{StageFilter, StageMap, StageRename},
	{StageRename, StageFilter, StageMap},
	{StageRename, StageMap, StageFilter},
	{StageMap, StageFilter, StageRename},
	{StageMap, StageRename, StageFilter},
}

// FilterStage drops items the expression doesn't match.
type FilterStage struct {
	Expr Expr
}

// RenameStage applies a regex replace against one field.
type RenameStage struct {
	Field Field
	Re    *regexp.Regexp
	Repl  string
}

// CounterMode names how a CounterMapper writes its running value (spec
// §4.6 "modes {Assign, Prefix, Suffix}").
type CounterMode int

const (
	CounterAssign CounterMode = iota
	CounterPrefix
	CounterSuffix
)

// CounterMapper assigns a zero-padded running integer to a field.
type CounterMapper struct {
	Field   Field
	Mode    CounterMode
	Start   int
	Padding int
	next    int
	started bool
}

func (c *CounterMapper) apply(it *Item) {
	if !c.started {
		c.next = c.Start
		c.started = true
	}
	value := fmt.Sprintf("%0*d", c.Padding, c.next)
	c.next++
	switch c.Mode {
	case CounterAssign:
		it.set(c.Field, value)
	case CounterPrefix:
		it.set(c.Field, value+it.get(c.Field))
	case CounterSuffix:
		it.set(c.Field, it.get(c.Field)+value)
	}
}

// AliasMapper optionally clones the item into a second "alias" item
// under a deterministic UUID derived from the original and MappingID
// (spec §4.6 "Map … optionally producing a cloned alias item whose UUID
// is deterministically derived from the original UUID and the mapping
// id"), via model.AliasUUID.
type AliasMapper struct {
	MappingID string
	Transform func(it Item) Item
}

// MapStage runs one or more mappers against each item; Counter and Alias
// are independent concerns (a target can configure either, both, or
// neither) rather than mutually exclusive stage kinds.
type MapStage struct {
	Counter *CounterMapper
	Alias   *AliasMapper
}

// Pipe is the full per-target processing pipe: a fixed Order plus the
// configured stage bodies.
type Pipe struct {
	Order  Order
	Filter FilterStage
	Rename RenameStage
	Map    MapStage
}

// Result is one output of running a Pipe: the (possibly renamed/mapped)
// original item, plus an alias item when the Map stage's AliasMapper
// fired.
type Result struct {
	Item      model.PlaylistItem
	AliasItem *model.PlaylistItem
}

// Run applies p's stages, in p.Order, to items and returns the surviving
// results. Filter drops items outright; Rename and Map mutate in place
// (and Map may additionally emit an alias).
func (p *Pipe) Run(items []model.PlaylistItem) []Result {
	results := make([]Result, 0, len(items))
	for _, src := range items {
		item := src
		dropped := false
		var alias *model.PlaylistItem

		for _, stage := range p.Order {
			switch stage {
			case StageFilter:
				if p.Filter.Expr != nil && !p.Filter.Expr.Eval(FromPlaylistItem(&item)) {
					dropped = true
				}
			case StageRename:
				if p.Rename.Re != nil {
					it := FromPlaylistItem(&item)
					it.set(p.Rename.Field, p.Rename.Re.ReplaceAllString(it.get(p.Rename.Field), p.Rename.Repl))
					writeBack(&item, it)
				}
			case StageMap:
				if p.Map.Counter != nil {
					it := FromPlaylistItem(&item)
					p.Map.Counter.apply(&it)
					writeBack(&item, it)
				}
				if p.Map.Alias != nil {
					a := item
					a.UUID = model.AliasUUID(item.UUID, p.Map.Alias.MappingID)
					if p.Map.Alias.Transform != nil {
						it := p.Map.Alias.Transform(FromPlaylistItem(&a))
						writeBack(&a, it)
					}
					alias = &a
				}
			}
			if dropped {
				break
			}
		}

		if dropped {
			continue
		}
		results = append(results, Result{Item: item, AliasItem: alias})
	}
	return results
}

func writeBack(p *model.PlaylistItem, it Item) {
	p.Name = it.Name
	p.Title = it.Title
	p.Group = it.Group
	p.URL = it.URL
	p.InputName = it.Input
}
