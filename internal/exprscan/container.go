// Package exprscan collects the HCL expressions of a template and reports
// which variables and functions they use, so unknown names are rejected at
// compile time instead of failing during a render.
package exprscan

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/hcl/v2"
)

// Container is a thread-safe helper that gathers HCL expressions and provides
// analysis results, such as variable references and function calls.
type Container struct {
	// analyzeOnce ensures the extraction logic runs exactly once.
	analyzeOnce sync.Once

	mu          sync.RWMutex
	expressions []hcl.Expression

	references      []hcl.Traversal
	calledFunctions []string
}

// NewContainer creates a new, empty expression container.
func NewContainer() *Container {
	return &Container{}
}

// Add adds one or more expressions to the container for analysis.
// It safely ignores any nil expressions.
func (c *Container) Add(exprs ...hcl.Expression) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// NOTE: Add must not race with the getters; the compiler adds everything
	// before it validates.
	c.analyzeOnce = sync.Once{}

	for _, expr := range exprs {
		if expr != nil {
			c.expressions = append(c.expressions, expr)
		}
	}
}

func (c *Container) analyze() {
	c.analyzeOnce.Do(func() {
		c.mu.RLock()
		refs, funcs := extractReferencesAndFunctions(c.expressions...)
		c.mu.RUnlock()

		c.mu.Lock()
		c.references = refs
		c.calledFunctions = funcs
		c.mu.Unlock()
	})
}

// References returns all unique variable traversals found in the expressions.
func (c *Container) References() []hcl.Traversal {
	c.analyze()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.references
}

// CalledFunctions returns all unique function calls found in the expressions.
func (c *Container) CalledFunctions() []string {
	c.analyze()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calledFunctions
}

// Validate reports every reference whose root is not in roots and every
// called function missing from funcs. Diagnostics point at the first
// expression using the offending name.
func (c *Container) Validate(roots []string, funcs map[string]bool) hcl.Diagnostics {
	allowed := make(map[string]bool, len(roots))
	for _, r := range roots {
		allowed[r] = true
	}

	var diags hcl.Diagnostics
	for _, ref := range c.References() {
		if allowed[ref.RootName()] {
			continue
		}
		rootNames := append([]string(nil), roots...)
		sort.Strings(rootNames)
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unknown variable",
			Detail:   fmt.Sprintf("There is no variable named %q; expressions may refer to %v.", ref.RootName(), rootNames),
			Subject:  ref.SourceRange().Ptr(),
		})
	}
	for _, fn := range c.CalledFunctions() {
		if funcs[fn] {
			continue
		}
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Call to unknown function",
			Detail:   fmt.Sprintf("There is no function named %q in the template scope.", fn),
			Subject:  c.callRange(fn),
		})
	}
	return diags
}

func (c *Container) callRange(name string) *hcl.Range {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, expr := range c.expressions {
		if rng, ok := findCall(expr, name); ok {
			return rng.Ptr()
		}
	}
	return nil
}
