// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package template defines the compiled artifact of a template source and
// the error taxonomy shared by the compiler, the library and the renderer.
//
// A Template is built once by the compiler, which appends nodes to it as it
// walks the DSL. The only other mutation is the append performed by
// `extends`, which also happens during compilation. After Compile returns,
// a Template is read-only and may be rendered concurrently.
package template

import (
	"github.com/vk/jsonshape/internal/node"
)

// CacheKey describes the `cache` directive. Key is nil for the default key,
// which is derived from the root object alone: renders that share a root
// object but differ in scope variables (`var.*`, `child "@x"`) share one
// cached result. Templates reading scope variables should name them in key.
type CacheKey struct {
	Enabled bool
	Key     node.Func
}

// Template is a compiled template.
type Template struct {
	// Identifier is the library name the template was compiled from, if any.
	Identifier string
	// Data is where the root object comes from.
	Data node.DataRef
	// Collection records that the data was declared with `collection`.
	Collection bool
	// Root is the key the formatter wraps the output under.
	Root node.Name
	// ObjectRoot is the key each collection element is wrapped under when
	// child roots are enabled.
	ObjectRoot node.Name
	// Cache is disabled unless the template uses `cache`.
	Cache CacheKey

	nodes []node.Node
}

// New returns an empty template.
func New(identifier string) *Template {
	return &Template{Identifier: identifier}
}

// AddNode appends n to the node list.
func (t *Template) AddNode(n node.Node) {
	t.nodes = append(t.nodes, n)
}

// AddNodes appends nodes after the existing ones, preserving their order.
func (t *Template) AddNodes(nodes ...node.Node) {
	t.nodes = append(t.nodes, nodes...)
}

// Nodes returns the node list. Callers must not modify it.
func (t *Template) Nodes() []node.Node {
	return t.nodes
}

// Find returns the last top-level node producing the output key name.
func (t *Template) Find(name string) (node.Node, bool) {
	for i := len(t.nodes) - 1; i >= 0; i-- {
		switch n := t.nodes[i].(type) {
		case *node.Attribute:
			if n.Output == name {
				return n, true
			}
		case *node.Code:
			if !n.Merge && n.Name == name {
				return n, true
			}
		case *node.Child:
			if !n.Glue && n.Name.IsSet() && n.Name.Value == name {
				return n, true
			}
		}
	}
	return nil, false
}
