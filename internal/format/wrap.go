// Package format turns rendered value trees into wire output: it applies
// the root wrapping policy and encodes the result as JSON, YAML or
// MessagePack, keeping the key order the renderer produced.
package format

import (
	"strings"

	"github.com/vk/jsonshape/internal/node"
	"github.com/vk/jsonshape/internal/render"
	"github.com/vk/jsonshape/internal/template"
)

// Options control root wrapping.
type Options struct {
	// IncludeRoot wraps the output under the template's root name.
	IncludeRoot bool
	// IncludeChildRoot wraps every element of a collection under the
	// template's object root.
	IncludeChildRoot bool
}

// Wrap applies the root wrapping policy to a rendered value. Disabled or
// unset root names leave the value unwrapped.
func Wrap(v any, tmpl *template.Template, opts Options) any {
	if list, ok := v.([]any); ok && opts.IncludeChildRoot {
		if name, ok := ObjectRootName(tmpl); ok {
			wrapped := make([]any, len(list))
			for i, item := range list {
				wrapped[i] = single(name, item)
			}
			v = wrapped
		}
	}
	if opts.IncludeRoot && tmpl.Root.IsSet() {
		return single(tmpl.Root.Value, v)
	}
	return v
}

// ObjectRootName returns the key collection elements are wrapped under: the
// explicit object_root, or the singular form of the root name.
func ObjectRootName(tmpl *template.Template) (string, bool) {
	switch tmpl.ObjectRoot.Kind {
	case node.NameSet:
		return tmpl.ObjectRoot.Value, true
	case node.NameDisabled:
		return "", false
	}
	if !tmpl.Root.IsSet() {
		return "", false
	}
	return Singular(tmpl.Root.Value), true
}

// Singular strips a plural suffix from an English noun. It covers the
// regular forms used for collection names and leaves everything else alone.
func Singular(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "sses"), strings.HasSuffix(s, "xes"), strings.HasSuffix(s, "ches"), strings.HasSuffix(s, "shes"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "ss"), strings.HasSuffix(s, "us"):
		return s
	case strings.HasSuffix(s, "s") && len(s) > 1:
		return s[:len(s)-1]
	}
	return s
}

func single(key string, v any) *render.Mapping {
	m := render.NewMapping()
	m.Set(key, v)
	return m
}
