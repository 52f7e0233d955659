package compiler

import (
	"context"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/jsonshape/internal/template"
)

type chainKey struct{}

// withParent records identifier as being compiled in ctx.
func withParent(ctx context.Context, identifier string) context.Context {
	if identifier == "" {
		return ctx
	}
	chain, _ := ctx.Value(chainKey{}).([]string)
	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)
	return context.WithValue(ctx, chainKey{}, append(next, identifier))
}

// InProgress reports whether identifier is an ancestor in the current
// compilation chain. Libraries call it before compiling to break cycles
// introduced by extends or partials.
func InProgress(ctx context.Context, identifier string) bool {
	chain, _ := ctx.Value(chainKey{}).([]string)
	return slices.Contains(chain, identifier)
}

// Chain returns the identifiers being compiled in ctx, outermost first.
func Chain(ctx context.Context) []string {
	chain, _ := ctx.Value(chainKey{}).([]string)
	return slices.Clone(chain)
}

// CycleError reports that compiling the last template of chain needs a
// template that already appears in cycle, which lists the identifiers from
// the first repeated one back to itself.
func CycleError(chain, cycle []string, subject *hcl.Range) *template.CompileError {
	current := ""
	if len(chain) > 0 {
		current = chain[len(chain)-1]
	}
	return &template.CompileError{Identifier: current, Diags: hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Template inheritance cycle",
		Detail:   "Template " + cycle[0] + " is already being compiled: " + strings.Join(cycle, " -> ") + ".",
		Subject:  subject,
	}}}
}
