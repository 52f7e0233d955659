package scope

import (
	"errors"
	"fmt"
	"maps"

	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// ErrNoMethod is returned by Method when the scope has no such method.
var ErrNoMethod = errors.New("scope has no such method")

// Scope is the capability set the compiler and renderer consume.
type Scope interface {
	// Instance returns an instance-scoped value.
	Instance(name string) (any, bool)
	// Method invokes a named method on the scope. Implementations return an
	// error wrapping ErrNoMethod when the method does not exist.
	Method(name string) (any, error)
	// Functions returns the helper functions callable from expressions.
	Functions() map[string]function.Function
}

// Map is a Scope backed by plain maps. The zero value is an empty scope with
// the standard function set.
type Map struct {
	Vars    map[string]any
	Methods map[string]func() (any, error)
	Funcs   map[string]function.Function
}

// New returns a Map scope holding vars.
func New(vars map[string]any) *Map {
	return &Map{Vars: vars}
}

// Instance implements Scope.
func (m *Map) Instance(name string) (any, bool) {
	v, ok := m.Vars[name]
	return v, ok
}

// Method implements Scope.
func (m *Map) Method(name string) (any, error) {
	fn, ok := m.Methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoMethod, name)
	}
	return fn()
}

// Functions implements Scope. Scope functions shadow standard ones.
func (m *Map) Functions() map[string]function.Function {
	funcs := StandardFunctions()
	maps.Copy(funcs, m.Funcs)
	return funcs
}

// WithVar returns a copy of m with name bound to v.
func (m *Map) WithVar(name string, v any) *Map {
	vars := make(map[string]any, len(m.Vars)+1)
	maps.Copy(vars, m.Vars)
	vars[name] = v
	return &Map{Vars: vars, Methods: m.Methods, Funcs: m.Funcs}
}

// StandardFunctions returns a fresh copy of the functions available to every
// template expression.
func StandardFunctions() map[string]function.Function {
	return map[string]function.Function{
		"upper":      stdlib.UpperFunc,
		"lower":      stdlib.LowerFunc,
		"join":       stdlib.JoinFunc,
		"format":     stdlib.FormatFunc,
		"length":     stdlib.LengthFunc,
		"coalesce":   stdlib.CoalesceFunc,
		"concat":     stdlib.ConcatFunc,
		"keys":       stdlib.KeysFunc,
		"values":     stdlib.ValuesFunc,
		"merge":      stdlib.MergeFunc,
		"max":        stdlib.MaxFunc,
		"min":        stdlib.MinFunc,
		"trimspace":  stdlib.TrimSpaceFunc,
		"split":      stdlib.SplitFunc,
		"replace":    stdlib.ReplaceFunc,
		"lookup":     stdlib.LookupFunc,
		"substr":     stdlib.SubstrFunc,
		"element":    stdlib.ElementFunc,
		"jsonencode": stdlib.JSONEncodeFunc,
	}
}
