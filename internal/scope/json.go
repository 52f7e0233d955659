package scope

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// FromJSON builds a Map scope from a JSON document. Every top-level key of
// the document becomes an instance-scoped value.
func FromJSON(data []byte) (*Map, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scope document: %w", err)
	}
	vars, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("scope document must be a JSON object, got %T", doc)
	}
	return New(vars), nil
}

// Select evaluates a JSONPath expression against the scope's variables.
// Paths that can match several values (wildcards, descents, filters, unions
// and slices) always yield a []any, possibly empty. Other paths yield the
// single value they match and fail when it is absent.
func Select(m *Map, path string) (any, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", path, err)
	}
	results := x.Get(m.Vars)
	if multiValued(x) {
		if results == nil {
			results = []any{}
		}
		return results, nil
	}
	switch len(results) {
	case 0:
		return nil, fmt.Errorf("jsonpath '%s' matched nothing", path)
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func multiValued(x jp.Expr) bool {
	for _, frag := range x {
		switch frag.(type) {
		case jp.Wildcard, jp.Descent, *jp.Filter, jp.Union, jp.Slice:
			return true
		}
	}
	return false
}
