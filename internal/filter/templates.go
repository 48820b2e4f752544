package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Template is a named, possibly multi-valued fragment that filter
// patterns and mapper scripts reference via `!NAME!` placeholders (spec
// §4.6 "Templates"). A template's Values holds one entry for a simple
// string template, or several for a multi-value template that
// cross-products into the patterns that reference it.
type Template struct {
	Name   string
	Values []string
}

var placeholderPattern = regexp.MustCompile(`!([A-Za-z0-9_]+)!`)

// Registry resolves `!NAME!` placeholders against a set of named
// templates, failing closed on reference cycles (spec §9 "Cyclic
// templates").
type Registry struct {
	templates map[string]Template
}

func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

func (r *Registry) Add(t Template) {
	r.templates[t.Name] = t
}

func referencedNames(value string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(value, -1) {
		names = append(names, m[1])
	}
	return names
}

// checkAcyclic builds the placeholder-reference graph across every
// registered template and fails if it contains a cycle — a directed
// graph + topological sort exactly as spec §9 prescribes, implemented
// directly over a plain map rather than importing a generic graph
// library (the pack's only graph-shaped dependency, golang.org/x/exp,
// offers no ready-made cycle-detecting topo-sort, and this traversal is
// a handful of lines).
func (r *Registry) checkAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(r.templates))
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("filter: template cycle detected: %s -> %s", strings.Join(path, " -> "), name)
		}
		color[name] = gray
		t, ok := r.templates[name]
		if ok {
			for _, v := range t.Values {
				for _, ref := range referencedNames(v) {
					if err := visit(ref, append(path, name)); err != nil {
						return err
					}
				}
			}
		}
		color[name] = black
		return nil
	}
	names := make([]string, 0, len(r.templates))
	for n := range r.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := visit(n, nil); err != nil {
			return err
		}
	}
	return nil
}

// Expand resolves every `!NAME!` placeholder in pattern, cross-producting
// across multi-value templates: a pattern referencing two templates with
// 2 and 3 values each expands to 6 results. Returns an error if any
// placeholder names an unknown template or if the registry's reference
// graph has a cycle.
func (r *Registry) Expand(pattern string) ([]string, error) {
	if err := r.checkAcyclic(); err != nil {
		return nil, err
	}
	return r.expand(pattern, nil)
}

func (r *Registry) expand(pattern string, seen []string) ([]string, error) {
	names := referencedNames(pattern)
	if len(names) == 0 {
		return []string{pattern}, nil
	}
	name := names[0]
	for _, s := range seen {
		if s == name {
			return nil, fmt.Errorf("filter: template cycle detected at %q", name)
		}
	}
	t, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("filter: unknown template %q", name)
	}
	placeholder := "!" + name + "!"
	var out []string
	for _, value := range t.Values {
		resolvedValues, err := r.expand(value, append(append([]string{}, seen...), name))
		if err != nil {
			return nil, err
		}
		for _, rv := range resolvedValues {
			replaced := strings.Replace(pattern, placeholder, rv, 1)
			rest, err := r.expand(replaced, seen)
			if err != nil {
				return nil, err
			}
			out = append(out, rest...)
		}
	}
	return out, nil
}

// ParseAll resolves every placeholder in pattern and parses each
// resulting concrete pattern into an Expr, joined with OR — the "cross-
// products into filter patterns" behavior spec §4.6/§9 describes for a
// filter that references a multi-value template.
func (r *Registry) ParseAll(pattern string) (Expr, error) {
	expanded, err := r.Expand(pattern)
	if err != nil {
		return nil, err
	}
	var combined Expr
	for _, p := range expanded {
		e, err := Parse(p)
		if err != nil {
			return nil, err
		}
		if combined == nil {
			combined = e
		} else {
			combined = &binaryExpr{left: combined, right: e, op: opOr}
		}
	}
	return combined, nil
}
