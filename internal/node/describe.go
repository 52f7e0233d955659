package node

import (
	"fmt"
	"io"
	"strings"
)

// Describe writes an indented, human-readable outline of nodes to w.
func Describe(w io.Writer, nodes []Node) error {
	return describe(w, nodes, 0)
}

func describe(w io.Writer, nodes []Node, depth int) error {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		var line string
		switch v := n.(type) {
		case *Attribute:
			if v.Source == v.Output {
				line = fmt.Sprintf("attribute %s", v.Source)
			} else {
				line = fmt.Sprintf("attribute %s => %s", v.Source, v.Output)
			}
		case *Code:
			name := v.Name
			if v.Merge {
				name = "<merge>"
			}
			line = fmt.Sprintf("node %s", name)
			if v.Condition != nil {
				line += " (conditional)"
			}
		case *Condition:
			line = "condition"
		case *Child:
			if v.Glue {
				line = fmt.Sprintf("glue %s", v.Data)
			} else {
				line = fmt.Sprintf("child %s as %s", v.Data, v.Name)
			}
		default:
			line = fmt.Sprintf("%T", n)
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", indent, line); err != nil {
			return err
		}

		var nested []Node
		switch v := n.(type) {
		case *Condition:
			nested = v.Nodes
		case *Child:
			nested = v.Nodes
		}
		if err := describe(w, nested, depth+1); err != nil {
			return err
		}
	}
	return nil
}
