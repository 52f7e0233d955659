// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines data references and output names, and the single rule
// that derives one from the other.
package node

import (
	"fmt"
	"strings"
)

// InstancePrefix marks a reference that resolves against the render scope.
const InstancePrefix = "@"

// DataKind says how a DataRef is resolved at render time.
type DataKind int

const (
	// DataNone means no data source was declared.
	DataNone DataKind = iota
	// DataFalse is an explicit `object = false`.
	DataFalse
	// DataInstance is looked up in the render scope.
	DataInstance
	// DataMethod is invoked on the current object (or the scope at the root).
	DataMethod
	// DataExpr is computed by Eval.
	DataExpr
)

// DataRef describes where the object to render comes from.
type DataRef struct {
	Kind DataKind
	Name string
	Eval Func
}

func (d DataRef) String() string {
	switch d.Kind {
	case DataFalse:
		return "false"
	case DataInstance:
		return InstancePrefix + d.Name
	case DataMethod:
		return d.Name
	case DataExpr:
		return "<expr>"
	default:
		return "<none>"
	}
}

// NameKind is the state of a Name.
type NameKind int

const (
	// NameUnset means nothing has set the name yet.
	NameUnset NameKind = iota
	// NameDisabled is an explicit `root = false`.
	NameDisabled
	// NameSet carries a Value.
	NameSet
)

// Name is an output or root key.
//
// Symbol is true when the name was taken verbatim from a plain reference or
// an alias, and false when it was derived by stripping the instance prefix.
type Name struct {
	Kind   NameKind
	Value  string
	Symbol bool
}

// Named returns a set name.
func Named(value string, symbol bool) Name {
	return Name{Kind: NameSet, Value: value, Symbol: symbol}
}

// Disabled returns the explicit `false` name.
func Disabled() Name {
	return Name{Kind: NameDisabled}
}

// IsSet reports whether the name carries a value.
func (n Name) IsSet() bool { return n.Kind == NameSet }

func (n Name) String() string {
	switch n.Kind {
	case NameDisabled:
		return "false"
	case NameSet:
		if n.Symbol {
			return ":" + n.Value
		}
		return fmt.Sprintf("%q", n.Value)
	default:
		return "<unset>"
	}
}

// ExtractDataAndName resolves a reference string into its data source and
// default output name. An instance reference ("@users") yields the stripped
// string name; a plain reference ("users") yields itself as a symbol. A
// non-empty alias always wins and is used verbatim.
func ExtractDataAndName(ref, alias string) (DataRef, Name, error) {
	var data DataRef
	var name Name

	switch {
	case strings.HasPrefix(ref, InstancePrefix):
		stripped := strings.TrimPrefix(ref, InstancePrefix)
		if stripped == "" {
			return DataRef{}, Name{}, fmt.Errorf("instance reference %q has no name", ref)
		}
		data = DataRef{Kind: DataInstance, Name: stripped}
		name = Named(stripped, false)
	case ref == "":
		return DataRef{}, Name{}, fmt.Errorf("empty reference")
	default:
		data = DataRef{Kind: DataMethod, Name: ref}
		name = Named(ref, true)
	}

	if alias != "" {
		name = Named(alias, true)
	}
	return data, name, nil
}
