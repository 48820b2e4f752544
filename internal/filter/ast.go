package filter

import (
	"regexp"

	"github.com/ipxyd/ipxyd/internal/model"
)

// Field names the item attribute a comparison reads or a rename targets.
type Field int

const (
	FieldGroup Field = iota
	FieldTitle
	FieldName
	FieldURL
	FieldInput
	FieldCaption
)

func (f Field) String() string {
	switch f {
	case FieldGroup:
		return "group"
	case FieldTitle:
		return "title"
	case FieldName:
		return "name"
	case FieldURL:
		return "url"
	case FieldInput:
		return "input"
	default:
		return "caption"
	}
}

func parseField(s string) (Field, bool) {
	switch s {
	case "group":
		return FieldGroup, true
	case "title":
		return FieldTitle, true
	case "name":
		return FieldName, true
	case "url":
		return FieldURL, true
	case "input":
		return FieldInput, true
	case "caption":
		return FieldCaption, true
	default:
		return 0, false
	}
}

// Item is the evaluation subject: the parts of a PlaylistItem the DSL can
// read or rewrite. A thin projection rather than model.PlaylistItem
// itself so filter/mapper code never depends on storage-layer fields.
type Item struct {
	Name  string
	Title string
	Group string
	URL   string
	Input string
	Kind  model.ItemKind
}

func FromPlaylistItem(p *model.PlaylistItem) Item {
	return Item{Name: p.Name, Title: p.Title, Group: p.Group, URL: p.URL, Input: p.InputName, Kind: p.Kind}
}

func (it Item) get(f Field) string {
	switch f {
	case FieldGroup:
		return it.Group
	case FieldTitle:
		return it.Title
	case FieldName:
		return it.Name
	case FieldURL:
		return it.URL
	case FieldInput:
		return it.Input
	default:
		if it.Title != "" {
			return it.Title
		}
		return it.Name
	}
}

func (it *Item) set(f Field, value string) {
	switch f {
	case FieldGroup:
		it.Group = value
	case FieldTitle:
		it.Title = value
	case FieldName:
		it.Name = value
	case FieldURL:
		it.URL = value
	case FieldInput:
		it.Input = value
	case FieldCaption:
		it.Title = value
		it.Name = value
	}
}

// typeName maps the DSL's `type=` value vocabulary onto a Cluster, with
// `movie` accepted as a synonym of `vod` per the Rust grammar's
// `type_value` rule.
func typeName(s string) (model.Cluster, bool) {
	switch s {
	case "live":
		return model.ClusterLive, true
	case "vod", "movie":
		return model.ClusterVideo, true
	case "series":
		return model.ClusterSeries, true
	default:
		return 0, false
	}
}

// Expr is a parsed boolean filter expression (spec §4.6).
type Expr interface {
	Eval(it Item) bool
}

type fieldComparison struct {
	field Field
	re    *regexp.Regexp
}

func (e *fieldComparison) Eval(it Item) bool {
	if e.field == FieldCaption {
		if it.Title != "" && e.re.MatchString(it.Title) {
			return true
		}
		return it.Name != "" && e.re.MatchString(it.Name)
	}
	return e.re.MatchString(it.get(e.field))
}

type typeComparison struct {
	cluster model.Cluster
}

func (e *typeComparison) Eval(it Item) bool {
	return model.ClusterOf(it.Kind) == e.cluster
}

type notExpr struct {
	inner Expr
}

func (e *notExpr) Eval(it Item) bool { return !e.inner.Eval(it) }

type binaryExpr struct {
	left, right Expr
	op          binaryOp
}

type binaryOp int

const (
	opAnd binaryOp = iota
	opOr
)

func (e *binaryExpr) Eval(it Item) bool {
	if e.op == opAnd {
		return e.left.Eval(it) && e.right.Eval(it)
	}
	return e.left.Eval(it) || e.right.Eval(it)
}

// groupExpr is a parenthesized sub-expression, kept by the parser as a
// distinct node (rather than collapsed away); it evaluates to its inner
// expression.
type groupExpr struct {
	inner Expr
}

func (e *groupExpr) Eval(it Item) bool { return e.inner.Eval(it) }
