// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the four node kinds. Every kind is a plain struct and
// nodes are never mutated after the compiler returns them, so a single tree
// can serve any number of concurrent renders.
package node

import (
	"context"
)

// Kind discriminates the concrete node types.
type Kind int

const (
	// KindAttribute copies a property of the current object to the output.
	KindAttribute Kind = iota
	// KindCode evaluates a block and stores or merges its result.
	KindCode
	// KindCondition renders nested nodes only when its predicate holds.
	KindCondition
	// KindChild renders an associated object, nested or glued.
	KindChild
)

func (k Kind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindCode:
		return "code"
	case KindCondition:
		return "condition"
	case KindChild:
		return "child"
	default:
		return "unknown"
	}
}

// Node is a single compiled directive.
type Node interface {
	Kind() Kind
}

// Func is a compiled value block.
type Func func(ctx context.Context, env *Env) (any, error)

// Predicate is a compiled boolean block.
type Predicate func(ctx context.Context, env *Env) (bool, error)

// Attribute maps Output (the key written to the result) to Source (the
// property read from the object).
type Attribute struct {
	Source string
	Output string
}

// Kind implements Node.
func (*Attribute) Kind() Kind { return KindAttribute }

// Code stores the result of Block under Name, or merges it into the parent
// mapping when Merge is set. Condition is optional.
type Code struct {
	Name      string
	Merge     bool
	Block     Func
	Condition Predicate
}

// Kind implements Node.
func (*Code) Kind() Kind { return KindCode }

// Condition renders Nodes into the parent mapping when Predicate holds. It
// never introduces a nesting level of its own.
type Condition struct {
	Predicate Predicate
	Nodes     []Node
}

// Kind implements Node.
func (*Condition) Kind() Kind { return KindCondition }

// Child renders the object referenced by Data with its own node list. Glue
// children merge their keys into the parent mapping and carry no Name.
type Child struct {
	Name  Name
	Data  DataRef
	Glue  bool
	Nodes []Node
}

// Kind implements Node.
func (*Child) Kind() Kind { return KindChild }
