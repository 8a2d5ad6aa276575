package validate

import "gopkg.in/yaml.v3"

// position is a 1-based line/column pair in the source file.
type position struct {
	line   int
	column int
}

// buildLineIndex maps dotted field paths ("extractors.alert_id") to the
// position of their key in the YAML source, so later phases can point
// findings at the offending line.
func buildLineIndex(root *yaml.Node) map[string]position {
	idx := make(map[string]position)
	var walk func(node *yaml.Node, prefix string)
	walk = func(node *yaml.Node, prefix string) {
		if node.Kind != yaml.MappingNode {
			return
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			path := key.Value
			if prefix != "" {
				path = prefix + "." + key.Value
			}
			idx[path] = position{line: key.Line, column: key.Column}
			walk(value, path)
		}
	}
	walk(root, "")
	return idx
}
