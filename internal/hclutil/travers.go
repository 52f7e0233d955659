package hclutil

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// TraversalKey renders a traversal back to source form, e.g. var.user["id"].
// Equal traversals yield equal keys, so it doubles as a map key.
func TraversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// AttrStep returns the name selected by step i of t when that step is an
// attribute (var.user) or a string index (var["user"]).
func AttrStep(t hcl.Traversal, i int) (string, bool) {
	if i < 0 || i >= len(t) {
		return "", false
	}
	switch step := t[i].(type) {
	case hcl.TraverseAttr:
		return step.Name, true
	case hcl.TraverseIndex:
		if step.Key.Type() == cty.String && step.Key.IsKnown() && !step.Key.IsNull() {
			return step.Key.AsString(), true
		}
	}
	return "", false
}
