package hclutil

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// StaticValue evaluates expr without any variables or functions. Directive
// arguments such as names and aliases must be static.
func StaticValue(expr hcl.Expression, what string) (cty.Value, hcl.Diagnostics) {
	if vars := expr.Variables(); len(vars) > 0 {
		return cty.NilVal, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Non-static " + what,
			Detail:   fmt.Sprintf("The %s must be a literal value; it cannot refer to %s.", what, TraversalKey(vars[0])),
			Subject:  expr.Range().Ptr(),
		}}
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return val, nil
}

// StaticStringOrFalse evaluates a static expression that must be either a
// string or the literal false. It returns the string and whether false was
// given.
func StaticStringOrFalse(expr hcl.Expression, what string) (string, bool, hcl.Diagnostics) {
	val, diags := StaticValue(expr, what)
	if diags.HasErrors() {
		return "", false, diags
	}
	switch {
	case val.IsNull():
	case val.Type() == cty.Bool && val.False():
		return "", true, nil
	case val.Type() == cty.String:
		if s := val.AsString(); s != "" {
			return s, false, nil
		}
	}
	return "", false, hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Invalid " + what,
		Detail:   fmt.Sprintf("The %s must be a non-empty string or false.", what),
		Subject:  expr.Range().Ptr(),
	}}
}

// StaticString evaluates a static expression that must be a non-empty string.
func StaticString(expr hcl.Expression, what string) (string, hcl.Diagnostics) {
	s, isFalse, diags := StaticStringOrFalse(expr, what)
	if diags.HasErrors() {
		return "", diags
	}
	if isFalse {
		return "", hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid " + what,
			Detail:   fmt.Sprintf("The %s must be a non-empty string.", what),
			Subject:  expr.Range().Ptr(),
		}}
	}
	return s, nil
}
