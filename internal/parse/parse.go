// Package parse decodes hand-written input documents. Bundles and home
// metadata may be written as JSON or YAML; YAML is converted to JSON with
// mapping order preserved so ordered fields such as specs survive.
package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents supported input formats
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat attempts to determine the format of the input data
// Returns an error if the format cannot be reliably determined
func DetectFormat(data []byte) (Format, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", fmt.Errorf("input is empty")
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if json.Valid([]byte(trimmed)) {
			return FormatJSON, nil
		}
		// flow-style YAML also starts with a brace
		if _, err := yamlRoot(data); err == nil {
			return FormatYAML, nil
		}
		return "", fmt.Errorf("input appears to be JSON but is invalid")
	}

	root, err := yamlRoot(data)
	if err != nil {
		return "", fmt.Errorf("input is neither JSON nor YAML: %w", err)
	}
	// plain text is valid YAML; only structured documents count
	if root.Kind != yaml.MappingNode && root.Kind != yaml.SequenceNode {
		return "", fmt.Errorf("input is not a JSON or YAML document")
	}
	return FormatYAML, nil
}

// ToJSON returns data as JSON. If format is empty, auto-detects the format.
func ToJSON(data []byte, format string) ([]byte, error) {
	f := Format(strings.ToLower(format))
	if f == "" {
		var err error
		if f, err = DetectFormat(data); err != nil {
			return nil, err
		}
	}

	switch f {
	case FormatJSON:
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return data, nil
	case FormatYAML, "yml":
		root, err := yamlRoot(data)
		if err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		var buf bytes.Buffer
		if err := writeNode(&buf, root); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func yamlRoot(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	return doc.Content[0], nil
}

func writeNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.AliasNode:
		return writeNode(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			if key.Tag == "!!merge" {
				return fmt.Errorf("line %d: merge keys are not supported", key.Line)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(key.Value)
			buf.Write(k)
			buf.WriteByte(':')
			if err := writeNode(buf, value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(data)
	default:
		return fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
	return nil
}
