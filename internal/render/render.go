// Package render evaluates compiled templates against live objects and
// produces a value tree of ordered mappings, slices and scalars.
package render

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"

	"github.com/vk/jsonshape/internal/access"
	"github.com/vk/jsonshape/internal/ctxlog"
	"github.com/vk/jsonshape/internal/node"
	"github.com/vk/jsonshape/internal/scope"
	"github.com/vk/jsonshape/internal/template"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Mapping is an insertion-ordered output object. Setting an existing key
// replaces its value in place.
type Mapping = orderedmap.OrderedMap[string, any]

// NewMapping returns an empty Mapping.
func NewMapping() *Mapping {
	return orderedmap.New[string, any]()
}

// Renderer renders templates. It holds no per-render state and is safe for
// concurrent use; templates are only read.
type Renderer struct{}

// New returns a Renderer.
func New() *Renderer {
	return &Renderer{}
}

// state is the per-render context threaded through the node walk.
type state struct {
	ctx   context.Context
	scope scope.Scope
	path  []string
}

func (st *state) at(key string) *state {
	return &state{ctx: st.ctx, scope: st.scope, path: append(slices.Clip(st.path), key)}
}

func (st *state) typeError(msg string, err error) error {
	return &template.RenderTypeError{Path: slices.Clone(st.path), Msg: msg, Err: err}
}

// annotate adds the current path to RenderTypeErrors raised by compiled
// expressions, which do not know where they run.
func (st *state) annotate(err error) error {
	var typeErr *template.RenderTypeError
	if errors.As(err, &typeErr) && typeErr.Path == nil {
		typeErr.Path = slices.Clone(st.path)
	}
	return err
}

// Render resolves the template's root object from s and renders it. The
// result is a *Mapping for a single object, a []any of *Mapping for a
// collection, or nil when the resolved object is nil. Templates without an
// object, or with `object = false`, render their nodes against a nil object.
func (r *Renderer) Render(ctx context.Context, tmpl *template.Template, s scope.Scope) (any, error) {
	obj, err := r.Root(ctx, tmpl, s)
	if err != nil {
		return nil, err
	}
	return r.RenderObject(ctx, tmpl, obj, s)
}

// Root resolves the template's root object from s. It returns nil for
// templates without an object and for `object = false`.
func (r *Renderer) Root(ctx context.Context, tmpl *template.Template, s scope.Scope) (any, error) {
	if s == nil {
		s = &scope.Map{}
	}
	ctxlog.FromContext(ctx).Debug("Resolving root object.", "template", tmpl.Identifier, "data", tmpl.Data.String())
	return r.resolve(&state{ctx: ctx, scope: s}, tmpl.Data, nil)
}

// RenderObject renders tmpl against obj, bypassing the template's own data
// reference. A nil obj renders to nil, except for templates without an
// object, whose nodes are rendered against nil. A collection template
// requires a collection object.
func (r *Renderer) RenderObject(ctx context.Context, tmpl *template.Template, obj any, s scope.Scope) (any, error) {
	if s == nil {
		s = &scope.Map{}
	}
	st := &state{ctx: ctx, scope: s}
	if isNil(obj) {
		switch tmpl.Data.Kind {
		case node.DataNone, node.DataFalse:
			return r.renderResource(st, nil, tmpl.Nodes())
		}
		return nil, nil
	}
	if access.IsCollection(obj) {
		return r.renderCollection(st, obj, tmpl.Nodes())
	}
	if tmpl.Collection {
		return nil, st.typeError(fmt.Sprintf("collection template got non-collection %T", obj), nil)
	}
	return r.renderResource(st, obj, tmpl.Nodes())
}

// RenderNodes renders nodes against a single object.
func (r *Renderer) RenderNodes(ctx context.Context, nodes []node.Node, obj any, s scope.Scope) (*Mapping, error) {
	if s == nil {
		s = &scope.Map{}
	}
	return r.renderResource(&state{ctx: ctx, scope: s}, obj, nodes)
}

func (r *Renderer) renderCollection(st *state, obj any, nodes []node.Node) ([]any, error) {
	items, err := access.Items(obj)
	if err != nil {
		return nil, st.typeError("cannot iterate", err)
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		m, err := r.renderResource(st.at(strconv.Itoa(i)), item, nodes)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Renderer) renderResource(st *state, obj any, nodes []node.Node) (*Mapping, error) {
	out := NewMapping()
	env := node.NewEnv(obj, st.scope)
	if err := r.renderInto(st, out, env, nodes); err != nil {
		return nil, err
	}
	return out, nil
}

// renderInto folds nodes into out. Condition nodes recurse into the same
// mapping and environment.
func (r *Renderer) renderInto(st *state, out *Mapping, env *node.Env, nodes []node.Node) error {
	for _, n := range nodes {
		var err error
		switch v := n.(type) {
		case *node.Attribute:
			err = r.renderAttribute(st, out, env, v)
		case *node.Code:
			err = r.renderCode(st, out, env, v)
		case *node.Condition:
			err = r.renderCondition(st, out, env, v)
		case *node.Child:
			err = r.renderChild(st, out, env, v)
		default:
			err = st.typeError(fmt.Sprintf("unsupported node %T", n), nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderAttribute(st *state, out *Mapping, env *node.Env, a *node.Attribute) error {
	v, err := access.Get(env.Object, a.Source)
	if err != nil {
		if isAccessError(err) {
			return st.at(a.Output).typeError(fmt.Sprintf("cannot read attribute %q", a.Source), err)
		}
		return err
	}
	out.Set(a.Output, v)
	return nil
}

func (r *Renderer) renderCode(st *state, out *Mapping, env *node.Env, c *node.Code) error {
	if c.Condition != nil {
		ok, err := c.Condition(st.ctx, env)
		if err != nil {
			return st.annotate(err)
		}
		if !ok {
			return nil
		}
	}

	key := c.Name
	if c.Merge {
		key = "<merge>"
	}
	v, err := c.Block(st.ctx, env)
	if err != nil {
		return st.at(key).annotate(err)
	}

	if !c.Merge {
		out.Set(c.Name, v)
		return nil
	}
	return mergeValue(st, out, v)
}

func (r *Renderer) renderCondition(st *state, out *Mapping, env *node.Env, c *node.Condition) error {
	ok, err := c.Predicate(st.ctx, env)
	if err != nil {
		return st.annotate(err)
	}
	if !ok {
		return nil
	}
	return r.renderInto(st, out, env, c.Nodes)
}

func (r *Renderer) renderChild(st *state, out *Mapping, env *node.Env, c *node.Child) error {
	childSt := st
	if !c.Glue {
		childSt = st.at(c.Name.Value)
	}

	assoc, err := r.resolve(childSt, c.Data, env)
	if err != nil {
		return err
	}
	if isNil(assoc) {
		return nil
	}

	if c.Glue {
		if access.IsCollection(assoc) {
			return st.typeError(fmt.Sprintf("glue %s resolved to a collection", c.Data), nil)
		}
		m, err := r.renderResource(st, assoc, c.Nodes)
		if err != nil {
			return err
		}
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			out.Set(pair.Key, pair.Value)
		}
		return nil
	}

	var v any
	if access.IsCollection(assoc) {
		v, err = r.renderCollection(childSt, assoc, c.Nodes)
	} else {
		v, err = r.renderResource(childSt, assoc, c.Nodes)
	}
	if err != nil {
		return err
	}
	out.Set(c.Name.Value, v)
	return nil
}

// resolve loads the object a data reference points at. env is the current
// object's environment, nil at the template root.
func (r *Renderer) resolve(st *state, ref node.DataRef, env *node.Env) (any, error) {
	switch ref.Kind {
	case node.DataInstance:
		v, _ := st.scope.Instance(ref.Name)
		return v, nil

	case node.DataMethod:
		if env == nil {
			return st.scope.Method(ref.Name)
		}
		v, err := access.Get(env.Object, ref.Name)
		if err != nil {
			if isAccessError(err) {
				return nil, st.typeError(fmt.Sprintf("cannot read %q", ref.Name), err)
			}
			return nil, err
		}
		return v, nil

	case node.DataExpr:
		if env == nil {
			env = node.NewEnv(nil, st.scope)
		}
		v, err := ref.Eval(st.ctx, env)
		if err != nil {
			return nil, st.annotate(err)
		}
		return v, nil

	default:
		return nil, nil
	}
}

// mergeValue merges the keys of a mapping-like value into out. A *Mapping
// keeps its order. Go maps, which include every HCL object value, have none,
// so their keys are merged in sorted order.
func mergeValue(st *state, out *Mapping, v any) error {
	switch m := v.(type) {
	case nil:
		return nil
	case *Mapping:
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			out.Set(pair.Key, pair.Value)
		}
		return nil
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out.Set(k, m[k])
		}
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			out.Set(k.String(), rv.MapIndex(k).Interface())
		}
		return nil
	}
	return st.typeError(fmt.Sprintf("merge value must be a mapping, got %T", v), nil)
}

func isAccessError(err error) bool {
	return errors.Is(err, access.ErrNilObject) || errors.Is(err, access.ErrNoProperty)
}

// isNil reports nil interfaces, pointers and maps. A nil slice is an empty
// collection, not a missing object.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
