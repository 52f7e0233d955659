package compiler

import (
	"context"
	"errors"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/jsonshape/internal/ctxlog"
	"github.com/vk/jsonshape/internal/exprscan"
	"github.com/vk/jsonshape/internal/hclutil"
	"github.com/vk/jsonshape/internal/scope"
	"github.com/vk/jsonshape/internal/template"
	"github.com/zclconf/go-cty/cty/function"
)

// Library resolves template identifiers used by `extends` and `partial`.
// Implementations are expected to cache compiled results.
type Library interface {
	Fetch(ctx context.Context, identifier string, s scope.Scope) (*template.Template, error)
}

// Compiler compiles DSL source. It is stateless apart from its Library and
// is safe for concurrent use.
type Compiler struct {
	library Library
}

// New returns a compiler resolving extends and partials through lib. A nil
// lib makes every extends or partial a MissingTemplateError.
func New(lib Library) *Compiler {
	return &Compiler{library: lib}
}

// compilation is the explicit state of one Compile call. It is threaded
// through every directive handler.
type compilation struct {
	ctx          context.Context
	identifier   string
	scope        scope.Scope
	funcs        map[string]function.Function
	exprs        *exprscan.Container
	diags        hcl.Diagnostics
	rootExplicit bool
}

func (comp *compilation) errorf(subject hcl.Range, summary, detail string) {
	comp.diags = append(comp.diags, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  subject.Ptr(),
	})
}

// Compile parses src and compiles it. identifier names the template for
// error messages and extends-cycle detection; it may be empty for inline
// sources.
func (c *Compiler) Compile(ctx context.Context, identifier string, src []byte, s scope.Scope) (*template.Template, error) {
	filename := "<inline>"
	if identifier != "" {
		filename = identifier + ".hcl"
	}
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, &template.CompileError{Identifier: identifier, Diags: diags}
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, &template.CompileError{Identifier: identifier, Diags: hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unsupported template body",
			Detail:   "Templates must be written in native HCL syntax.",
		}}}
	}
	return c.CompileBody(ctx, identifier, body, s)
}

// CompileBody compiles an already parsed template body.
func (c *Compiler) CompileBody(ctx context.Context, identifier string, body *hclsyntax.Body, s scope.Scope) (*template.Template, error) {
	logger := ctxlog.FromContext(ctx).With("template", identifier)
	logger.Debug("Compiling template.")

	if s == nil {
		s = &scope.Map{}
	}
	comp := &compilation{
		ctx:        withParent(ctx, identifier),
		identifier: identifier,
		scope:      s,
		funcs:      s.Functions(),
		exprs:      exprscan.NewContainer(),
	}

	_, diags := hclutil.FindUniqueBlock(body.Blocks, "cache")
	comp.diags = append(comp.diags, diags...)

	tmpl := template.New(identifier)
	if err := c.compileBody(comp, tmpl, body, true, nil); err != nil {
		return nil, err
	}

	funcNames := make(map[string]bool, len(comp.funcs))
	for name := range comp.funcs {
		funcNames[name] = true
	}
	comp.diags = append(comp.diags, comp.exprs.Validate([]string{"object", "var"}, funcNames)...)

	if comp.diags.HasErrors() {
		return nil, &template.CompileError{Identifier: identifier, Diags: comp.diags}
	}

	logger.Debug("Template compiled.", "nodes", len(tmpl.Nodes()), "data", tmpl.Data.String(), "root", tmpl.Root.String())
	return tmpl, nil
}

// fetch resolves another template for extends or partial.
func (c *Compiler) fetch(comp *compilation, identifier string, subject hcl.Range) (*template.Template, error) {
	if c.library == nil {
		return nil, &template.MissingTemplateError{Identifier: identifier, Err: errors.New("no template library configured")}
	}
	if chain := Chain(comp.ctx); slices.Contains(chain, identifier) {
		cycle := append(chain[slices.Index(chain, identifier):], identifier)
		return nil, CycleError(chain, cycle, subject.Ptr())
	}
	ctxlog.FromContext(comp.ctx).Debug("Fetching referenced template.", "template", comp.identifier, "referenced", identifier)
	return c.library.Fetch(comp.ctx, identifier, comp.scope)
}
