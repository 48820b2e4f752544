package panelapi

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// source.yml is edited as a yaml.Node tree rather than unmarshaled into a
// Go struct and re-marshaled, so that comments and key order elsewhere in
// the document survive the patch untouched (spec §4.9 "Config patching
// preserves ... YAML structure").

func loadYAMLDoc(path string) (*yaml.Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("panel_api: failed to read source file: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("panel_api: failed to parse source file yaml: %w", err)
	}
	return &doc, nil
}

func writeYAMLDoc(path string, doc *yaml.Node) error {
	flowStyleQueryParameterSequences(doc)
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("panel_api: failed to serialize source.yml: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// flowStyleQueryParameterSequences renders every client_new/client_renew/
// client_info list under a query_parameter block in flow style ("[{key:
// ..., value: ...}, ...]") rather than block style, for readability (spec
// §4.9 "query-parameter sequences in YAML are serialized in flow style").
func flowStyleQueryParameterSequences(n *yaml.Node) {
	if n == nil {
		return
	}
	if n.Kind == yaml.MappingNode {
		if qp := mapGet(n, "query_parameter"); qp != nil && qp.Kind == yaml.MappingNode {
			for _, key := range []string{"client_new", "client_renew", "client_info"} {
				if seq := mapGet(qp, key); seq != nil && seq.Kind == yaml.SequenceNode {
					seq.Style = yaml.FlowStyle
					for _, item := range seq.Content {
						if item.Kind == yaml.MappingNode {
							item.Style = yaml.FlowStyle
						}
					}
				}
			}
		}
	}
	for _, c := range n.Content {
		flowStyleQueryParameterSequences(c)
	}
}

// mappingRoot returns the top-level mapping node of a parsed document
// (yaml.Unmarshal into a *yaml.Node wraps it in a DocumentNode).
func mappingRoot(doc *yaml.Node) (*yaml.Node, bool) {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, false
	}
	return doc, true
}

// mapGet returns the value node for key within a MappingNode, or nil.
func mapGet(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// mapSet inserts or replaces key's value within a MappingNode.
func mapSet(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, scalarKey(key), value)
}

func scalarKey(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func scalarString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func scalarInt(n int64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprintf("%d", n)}
}

func scalarBool(b bool) *yaml.Node {
	v := "false"
	if b {
		v = "true"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v}
}

func findInputMapping(root *yaml.Node, inputName string) *yaml.Node {
	sources := mapGet(root, "sources")
	if sources == nil || sources.Kind != yaml.SequenceNode {
		return nil
	}
	for _, src := range sources.Content {
		if src.Kind != yaml.MappingNode {
			continue
		}
		inputs := mapGet(src, "inputs")
		if inputs == nil || inputs.Kind != yaml.SequenceNode {
			continue
		}
		for _, inp := range inputs.Content {
			if inp.Kind != yaml.MappingNode {
				continue
			}
			if name := mapGet(inp, "name"); name != nil && name.Value == inputName {
				return inp
			}
		}
	}
	return nil
}

// PatchSourceYAMLAddAlias appends a new alias entry under inputName's
// "aliases" list in the source.yml at path (spec §4.9 step 4).
func PatchSourceYAMLAddAlias(path, inputName, aliasName, baseURL, username, password string, expDate int64) error {
	doc, err := loadYAMLDoc(path)
	if err != nil {
		return err
	}
	root, ok := mappingRoot(doc)
	if !ok {
		return fmt.Errorf("panel_api: source.yml root is not a mapping")
	}
	inp := findInputMapping(root, inputName)
	if inp == nil {
		return fmt.Errorf("panel_api: could not find input '%s' in source.yml", inputName)
	}

	aliases := mapGet(inp, "aliases")
	if aliases == nil || aliases.Kind != yaml.SequenceNode {
		aliases = &yaml.Node{Kind: yaml.SequenceNode}
		mapSet(inp, "aliases", aliases)
	}

	alias := &yaml.Node{Kind: yaml.MappingNode}
	mapSet(alias, "name", scalarString(aliasName))
	mapSet(alias, "url", scalarString(baseURL))
	mapSet(alias, "username", scalarString(username))
	mapSet(alias, "password", scalarString(password))
	mapSet(alias, "max_connections", scalarInt(1))
	if expDate != 0 {
		mapSet(alias, "exp_date", scalarInt(expDate))
	}
	aliases.Content = append(aliases.Content, alias)

	return writeYAMLDoc(path, doc)
}

// PatchSourceYAMLUpdateExpDate rewrites accountName's exp_date under
// inputName: on the input itself when accountName == inputName (also
// re-enabling it), otherwise inside its aliases list (spec §4.9 step 3).
func PatchSourceYAMLUpdateExpDate(path, inputName, accountName string, expDate int64) error {
	doc, err := loadYAMLDoc(path)
	if err != nil {
		return err
	}
	root, ok := mappingRoot(doc)
	if !ok {
		return fmt.Errorf("panel_api: source.yml root is not a mapping")
	}
	inp := findInputMapping(root, inputName)
	if inp == nil {
		return fmt.Errorf("panel_api: could not find input '%s' in source.yml", inputName)
	}

	if accountName == inputName {
		mapSet(inp, "exp_date", scalarInt(expDate))
		mapSet(inp, "enabled", scalarBool(true))
		return writeYAMLDoc(path, doc)
	}

	aliases := mapGet(inp, "aliases")
	if aliases != nil && aliases.Kind == yaml.SequenceNode {
		for _, a := range aliases.Content {
			if a.Kind != yaml.MappingNode {
				continue
			}
			if name := mapGet(a, "name"); name != nil && name.Value == accountName {
				mapSet(a, "exp_date", scalarInt(expDate))
				return writeYAMLDoc(path, doc)
			}
		}
	}
	return fmt.Errorf("panel_api: could not find account '%s' under input '%s' in source.yml", accountName, inputName)
}
