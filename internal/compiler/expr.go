package compiler

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/jsonshape/internal/convert"
	"github.com/vk/jsonshape/internal/hclutil"
	"github.com/vk/jsonshape/internal/node"
	"github.com/vk/jsonshape/internal/template"
	"github.com/zclconf/go-cty/cty"
	ctyconvert "github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

const objectMemoKey = "cty:object"

// exprPlan is what an expression needs from its environment, computed once
// at compile time.
type exprPlan struct {
	expr       hcl.Expression
	funcs      map[string]function.Function
	usesObject bool
	vars       []string
}

// plan registers expr for validation and records the variables it reads.
func (comp *compilation) plan(expr hcl.Expression) *exprPlan {
	comp.exprs.Add(expr)
	p := &exprPlan{expr: expr, funcs: comp.funcs}

	seen := make(map[string]bool)
	for _, trav := range expr.Variables() {
		switch trav.RootName() {
		case "object":
			p.usesObject = true
		case "var":
			name, ok := hclutil.AttrStep(trav, 1)
			if !ok {
				comp.errorf(trav.SourceRange(), "Invalid variable reference",
					`Scope variables must be read by name, as in var.user or var["user"].`)
				continue
			}
			if !seen[name] {
				seen[name] = true
				p.vars = append(p.vars, name)
			}
		}
	}
	return p
}

// evaluate runs the expression against env. The converted object and scope
// variables are memoized on env so sibling expressions share them.
func (p *exprPlan) evaluate(env *node.Env) (cty.Value, error) {
	evalCtx := &hcl.EvalContext{
		Variables: make(map[string]cty.Value, 2),
		Functions: p.funcs,
	}

	if p.usesObject {
		v, err := env.Memo(objectMemoKey, func() (any, error) {
			return convert.ToCty(env.Object)
		})
		if err != nil {
			return cty.NilVal, fmt.Errorf("converting object: %w", err)
		}
		evalCtx.Variables["object"] = v.(cty.Value)
	}

	if len(p.vars) > 0 {
		vars := make(map[string]cty.Value, len(p.vars))
		for _, name := range p.vars {
			v, err := env.Memo("cty:var:"+name, func() (any, error) {
				if env.Scope == nil {
					return cty.NullVal(cty.DynamicPseudoType), nil
				}
				raw, ok := env.Scope.Instance(name)
				if !ok {
					return cty.NullVal(cty.DynamicPseudoType), nil
				}
				return convert.ToCty(raw)
			})
			if err != nil {
				return cty.NilVal, fmt.Errorf("converting var.%s: %w", name, err)
			}
			vars[name] = v.(cty.Value)
		}
		evalCtx.Variables["var"] = cty.ObjectVal(vars)
	}

	val, diags := p.expr.Value(evalCtx)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return val, nil
}

// valueFunc compiles expr into a block returning a native Go value.
func (comp *compilation) valueFunc(expr hcl.Expression) node.Func {
	p := comp.plan(expr)
	return func(_ context.Context, env *node.Env) (any, error) {
		val, err := p.evaluate(env)
		if err != nil {
			return nil, err
		}
		return convert.ToNative(val)
	}
}

// predicate compiles expr into a condition. Null counts as false; anything
// that cannot be converted to a bool is a RenderTypeError.
func (comp *compilation) predicate(expr hcl.Expression, negate bool) node.Predicate {
	p := comp.plan(expr)
	return func(_ context.Context, env *node.Env) (bool, error) {
		val, err := p.evaluate(env)
		if err != nil {
			return false, err
		}
		if val.IsNull() {
			return negate, nil
		}
		if !val.IsKnown() {
			return false, &template.RenderTypeError{Msg: "condition value is unknown"}
		}
		b, err := ctyconvert.Convert(val, cty.Bool)
		if err != nil {
			return false, &template.RenderTypeError{
				Msg: fmt.Sprintf("condition must be a bool, got %s", val.Type().FriendlyName()),
				Err: err,
			}
		}
		if b.IsNull() {
			return negate, nil
		}
		return b.True() != negate, nil
	}
}
