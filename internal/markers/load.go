package markers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/irscan/internal/safe"
	"github.com/coral-mesh/irscan/internal/template"
)

// Load reads a marker set from a YAML file.
func Load(path string) (*Set, error) {
	data, err := safe.ReadFile(path, &safe.ReadOptions{AllowSymlinks: true})
	if err != nil {
		return nil, fmt.Errorf("read marker set: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse decodes a marker set document.
func Parse(data []byte) (*Set, error) {
	set := &Set{}
	if err := yaml.Unmarshal(data, set); err != nil {
		return nil, err
	}
	return set, nil
}

// Save writes the marker set to path.
func Save(path string, set *Set) error {
	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode marker set: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write marker set: %w", err)
	}
	return nil
}

// UnmarshalYAML decodes the document node by node to keep key order.
func (s *Set) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.DocumentNode && len(value.Content) > 0 {
		value = value.Content[0]
	}
	if isNull(value) {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: marker set must be a mapping", value.Line)
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		switch key.Value {
		case "markers":
			markers, err := decodeMarkers(val)
			if err != nil {
				return err
			}
			s.Markers = markers
		case "chains":
			chains, err := decodeChains(val)
			if err != nil {
				return err
			}
			s.Chains = chains
		default:
			return fmt.Errorf("line %d: unknown key %q", key.Line, key.Value)
		}
	}
	return nil
}

func decodeMarkers(node *yaml.Node) ([]Marker, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: markers must be a mapping", node.Line)
	}

	seen := make(map[string]bool)
	var markers []Marker
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return nil, fmt.Errorf("line %d: duplicate marker %q", key.Line, key.Value)
		}
		seen[key.Value] = true

		targets, err := decodeTargets(val)
		if err != nil {
			return nil, fmt.Errorf("marker %q: %w", key.Value, err)
		}
		markers = append(markers, Marker{Name: key.Value, Targets: targets})
	}
	return markers, nil
}

func decodeChains(node *yaml.Node) ([]Chain, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: chains must be a mapping", node.Line)
	}

	seen := make(map[string]bool)
	var chains []Chain
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return nil, fmt.Errorf("line %d: duplicate chain %q", key.Line, key.Value)
		}
		seen[key.Value] = true

		targets, err := decodeTargets(val)
		if err != nil {
			return nil, fmt.Errorf("chain %q: %w", key.Value, err)
		}
		chains = append(chains, Chain{Target: key.Value, Targets: targets})
	}
	return chains, nil
}

func decodeTargets(node *yaml.Node) ([]template.Target, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: targets must be a mapping", node.Line)
	}

	seen := make(map[string]bool)
	var targets []template.Target
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return nil, fmt.Errorf("line %d: duplicate target %q", key.Line, key.Value)
		}
		seen[key.Value] = true

		var patterns []string
		switch val.Kind {
		case yaml.ScalarNode:
			if !isNull(val) {
				patterns = []string{val.Value}
			}
		case yaml.SequenceNode:
			for _, item := range val.Content {
				if item.Kind != yaml.ScalarNode {
					return nil, fmt.Errorf("line %d: target %q: patterns must be strings", item.Line, key.Value)
				}
				patterns = append(patterns, item.Value)
			}
		default:
			return nil, fmt.Errorf("line %d: target %q: patterns must be a list of strings", val.Line, key.Value)
		}
		targets = append(targets, template.Target{Name: key.Value, Patterns: patterns})
	}
	return targets, nil
}

func isNull(node *yaml.Node) bool {
	return node == nil || node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}

// MarshalYAML encodes the set with its order intact.
func (s *Set) MarshalYAML() (interface{}, error) {
	root := mappingNode()

	markers := mappingNode()
	for _, m := range s.Markers {
		markers.Content = append(markers.Content, scalarNode(m.Name), targetsNode(m.Targets))
	}
	root.Content = append(root.Content, scalarNode("markers"), markers)

	if len(s.Chains) > 0 {
		chains := mappingNode()
		for _, c := range s.Chains {
			chains.Content = append(chains.Content, scalarNode(c.Target), targetsNode(c.Targets))
		}
		root.Content = append(root.Content, scalarNode("chains"), chains)
	}

	return root, nil
}

func targetsNode(targets []template.Target) *yaml.Node {
	node := mappingNode()
	if len(targets) == 0 {
		node.Style = yaml.FlowStyle
	}
	for _, t := range targets {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, p := range t.Patterns {
			seq.Content = append(seq.Content, &yaml.Node{
				Kind:  yaml.ScalarNode,
				Tag:   "!!str",
				Value: p,
				Style: yaml.DoubleQuotedStyle,
			})
		}
		node.Content = append(node.Content, scalarNode(t.Name), seq)
	}
	return node
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
