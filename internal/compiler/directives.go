package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/jsonshape/internal/hclutil"
	"github.com/vk/jsonshape/internal/node"
	"github.com/vk/jsonshape/internal/template"
)

// Option attribute names per directive. Attributes with these names inside
// a directive block configure the directive instead of being compiled as
// nested directives.
var (
	dataOptions      = []string{"as", "root", "object_root"}
	childOptions     = []string{"as", "root", "partial", "data"}
	glueOptions      = []string{"partial", "data"}
	codeOptions      = []string{"value", "if", "unless"}
	conditionOptions = []string{"if", "unless"}
	cacheOptions     = []string{"key"}
)

// compileBody compiles every directive of body into tmpl. Attributes named
// in options are skipped; the caller has already read them.
func (c *Compiler) compileBody(comp *compilation, tmpl *template.Template, body *hclsyntax.Body, top bool, options []string) error {
	for _, item := range hclutil.OrderedItems(body) {
		if item.Attribute != nil && contains(options, item.Attribute.Name) {
			continue
		}
		if err := c.compileDirective(comp, tmpl, item, top); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileDirective(comp *compilation, tmpl *template.Template, item hclutil.Item, top bool) error {
	name := item.Name()
	switch name {
	case "object", "collection", "root", "cache":
		if !top {
			comp.errorf(item.Range(), "Misplaced directive",
				fmt.Sprintf("The %q directive is only valid at the top level of a template.", name))
			return nil
		}
	}

	switch name {
	case "object", "collection":
		comp.dataDirective(tmpl, item, name == "collection")
	case "root":
		comp.rootDirective(tmpl, item)
	case "cache":
		comp.cacheDirective(tmpl, item)
	case "attribute", "attributes":
		comp.attributeDirective(tmpl, item)
	case "child", "glue":
		return c.childDirective(comp, tmpl, item, name == "glue")
	case "node", "merge":
		comp.codeDirective(tmpl, item, name == "merge")
	case "condition":
		return c.conditionDirective(comp, tmpl, item)
	case "extends":
		return c.extendsDirective(comp, tmpl, item)
	default:
		comp.errorf(item.Range(), "Unknown directive",
			fmt.Sprintf("%q is not a template directive.", name))
	}
	return nil
}

// dataDirective handles object and collection.
func (comp *compilation) dataDirective(tmpl *template.Template, item hclutil.Item, collection bool) {
	var ref, alias string
	var rootOpt, objectRootOpt *hclsyntax.Attribute

	if item.Attribute != nil {
		s, isFalse, diags := hclutil.StaticStringOrFalse(item.Attribute.Expr, item.Name()+" reference")
		comp.diags = append(comp.diags, diags...)
		if diags.HasErrors() {
			return
		}
		if isFalse {
			tmpl.Data = node.DataRef{Kind: node.DataFalse}
			tmpl.Collection = collection
			if !comp.rootExplicit {
				tmpl.Root = node.Disabled()
			}
			return
		}
		ref = s
	} else {
		block := item.Block
		if !comp.exactLabels(block, 1, "a reference such as \"@user\"") {
			return
		}
		opts := comp.options(block, dataOptions, false)
		ref = block.Labels[0]
		if a, ok := opts["as"]; ok {
			alias = comp.staticString(a.Expr, "alias")
		}
		rootOpt = opts["root"]
		objectRootOpt = opts["object_root"]
		if objectRootOpt != nil && !collection {
			comp.errorf(objectRootOpt.SrcRange, "Unsupported argument", "object_root is only valid on collection.")
			objectRootOpt = nil
		}
	}

	data, name, err := node.ExtractDataAndName(ref, alias)
	if err != nil {
		comp.errorf(item.Range(), "Invalid reference", err.Error())
		return
	}

	// Last object or collection wins.
	tmpl.Data = data
	tmpl.Collection = collection

	if rootOpt != nil {
		s, isFalse, diags := hclutil.StaticStringOrFalse(rootOpt.Expr, "root")
		comp.diags = append(comp.diags, diags...)
		if diags.HasErrors() {
			return
		}
		if isFalse {
			name = node.Disabled()
		} else {
			name = node.Named(s, false)
		}
	}
	if !comp.rootExplicit {
		tmpl.Root = name
	}

	if objectRootOpt != nil {
		s, isFalse, diags := hclutil.StaticStringOrFalse(objectRootOpt.Expr, "object_root")
		comp.diags = append(comp.diags, diags...)
		switch {
		case diags.HasErrors():
		case isFalse:
			tmpl.ObjectRoot = node.Disabled()
		default:
			tmpl.ObjectRoot = node.Named(s, false)
		}
	}
}

// rootDirective overrides the root name regardless of object or collection.
func (comp *compilation) rootDirective(tmpl *template.Template, item hclutil.Item) {
	if item.Attribute == nil {
		comp.errorf(item.Range(), "Invalid root directive", `Use the attribute form: root = "name" or root = false.`)
		return
	}
	s, isFalse, diags := hclutil.StaticStringOrFalse(item.Attribute.Expr, "root")
	comp.diags = append(comp.diags, diags...)
	if diags.HasErrors() {
		return
	}
	comp.rootExplicit = true
	if isFalse {
		tmpl.Root = node.Disabled()
		return
	}
	tmpl.Root = node.Named(s, false)
}

func (comp *compilation) cacheDirective(tmpl *template.Template, item hclutil.Item) {
	if item.Block == nil {
		comp.errorf(item.Range(), "Invalid cache directive", "Use the block form: cache {} or cache { key = ... }.")
		return
	}
	if !comp.exactLabels(item.Block, 0, "no labels") {
		return
	}
	opts := comp.options(item.Block, cacheOptions, false)
	tmpl.Cache = template.CacheKey{Enabled: true}
	if key, ok := opts["key"]; ok {
		tmpl.Cache.Key = comp.valueFunc(key.Expr)
	}
}

// attributeDirective appends one Attribute node per name, in order.
func (comp *compilation) attributeDirective(tmpl *template.Template, item hclutil.Item) {
	if item.Attribute != nil {
		for _, a := range comp.attributePairs(item.Attribute.Expr) {
			tmpl.AddNode(a)
		}
		return
	}

	block := item.Block
	if len(block.Body.Blocks) > 0 {
		comp.errorf(block.Body.Blocks[0].DefRange(), "Unexpected block",
			fmt.Sprintf("The %q directive does not accept nested blocks.", block.Type))
		return
	}

	if len(block.Labels) == 0 {
		// attributes { source = "alias" }
		if len(block.Body.Attributes) == 0 {
			comp.errorf(block.DefRange(), "Missing attribute name",
				fmt.Sprintf("The %q directive needs at least one attribute name.", block.Type))
			return
		}
		for _, a := range sortedAttributes(block.Body) {
			alias := comp.staticString(a.Expr, "alias for "+a.Name)
			if alias == "" {
				continue
			}
			tmpl.AddNode(&node.Attribute{Source: a.Name, Output: alias})
		}
		return
	}

	opts := comp.options(block, []string{"as"}, false)
	alias := ""
	if a, ok := opts["as"]; ok {
		if len(block.Labels) > 1 {
			comp.errorf(a.SrcRange, "Ambiguous alias", "The as option is only valid with a single attribute name.")
			return
		}
		alias = comp.staticString(a.Expr, "alias")
		if alias == "" {
			return
		}
	}
	for _, label := range block.Labels {
		if label == "" {
			comp.errorf(block.DefRange(), "Missing attribute name", "Attribute names cannot be empty.")
			continue
		}
		out := label
		if alias != "" {
			out = alias
		}
		tmpl.AddNode(&node.Attribute{Source: label, Output: out})
	}
}

// attributePairs reads the attribute form: a name, a list of names, or an
// object of source = "alias" pairs in source order.
func (comp *compilation) attributePairs(expr hcl.Expression) []*node.Attribute {
	var attrs []*node.Attribute
	switch e := expr.(type) {
	case *hclsyntax.TupleConsExpr:
		for _, elem := range e.Exprs {
			if s := comp.staticString(elem, "attribute name"); s != "" {
				attrs = append(attrs, &node.Attribute{Source: s, Output: s})
			}
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			source := comp.staticString(item.KeyExpr, "attribute name")
			alias := comp.staticString(item.ValueExpr, "alias")
			if source != "" && alias != "" {
				attrs = append(attrs, &node.Attribute{Source: source, Output: alias})
			}
		}
	default:
		if s := comp.staticString(expr, "attribute name"); s != "" {
			attrs = append(attrs, &node.Attribute{Source: s, Output: s})
		}
	}
	return attrs
}

// childDirective handles child and glue.
func (c *Compiler) childDirective(comp *compilation, tmpl *template.Template, item hclutil.Item, glue bool) error {
	if item.Block == nil {
		comp.errorf(item.Range(), "Invalid "+item.Name()+" directive", "This directive requires a block.")
		return nil
	}
	block := item.Block
	if len(block.Labels) > 1 {
		comp.errorf(block.DefRange(), "Too many labels", fmt.Sprintf("The %q directive takes at most one reference.", block.Type))
		return nil
	}

	allowed := childOptions
	if glue {
		allowed = glueOptions
	}
	opts := comp.options(block, allowed, true)

	child := &node.Child{Glue: glue}

	alias := ""
	if a, ok := opts["as"]; ok {
		if alias = comp.staticString(a.Expr, "alias"); alias == "" {
			return nil
		}
	}

	dataAttr, hasData := opts["data"]
	switch {
	case len(block.Labels) == 1 && hasData:
		comp.errorf(dataAttr.SrcRange, "Conflicting data source", "Give either a reference label or a data expression, not both.")
		return nil
	case len(block.Labels) == 1:
		data, name, err := node.ExtractDataAndName(block.Labels[0], alias)
		if err != nil {
			comp.errorf(block.DefRange(), "Invalid reference", err.Error())
			return nil
		}
		child.Data = data
		if !glue {
			child.Name = name
		}
	case hasData:
		child.Data = node.DataRef{Kind: node.DataExpr, Eval: comp.valueFunc(dataAttr.Expr)}
		if alias != "" {
			child.Name = node.Named(alias, true)
		}
	default:
		comp.errorf(block.DefRange(), "Missing data source",
			fmt.Sprintf("The %q directive needs a reference label or a data expression.", block.Type))
		return nil
	}

	if r, ok := opts["root"]; ok {
		if s := comp.staticString(r.Expr, "root"); s != "" {
			child.Name = node.Named(s, false)
		}
	}
	if !glue && !child.Name.IsSet() {
		comp.errorf(block.DefRange(), "Missing child name", "A child with a data expression needs an as or root option.")
		return nil
	}

	if p, ok := opts["partial"]; ok {
		identifier := comp.staticString(p.Expr, "partial")
		if identifier == "" {
			return nil
		}
		if hasDirectives(block.Body, allowed) {
			comp.errorf(block.DefRange(), "Conflicting child body", "A child rendered from a partial cannot also declare nested directives.")
			return nil
		}
		partial, err := c.fetch(comp, identifier, p.SrcRange)
		if err != nil {
			return err
		}
		child.Nodes = partial.Nodes()
		tmpl.AddNode(child)
		return nil
	}

	nested := template.New("")
	if err := c.compileBody(comp, nested, block.Body, false, allowed); err != nil {
		return err
	}
	child.Nodes = nested.Nodes()
	tmpl.AddNode(child)
	return nil
}

// codeDirective handles node and merge.
func (comp *compilation) codeDirective(tmpl *template.Template, item hclutil.Item, merge bool) {
	if item.Block == nil {
		comp.errorf(item.Range(), "Invalid "+item.Name()+" directive", "This directive requires a block with a value.")
		return
	}
	block := item.Block
	maxLabels := 1
	if merge {
		maxLabels = 0
	}
	if len(block.Labels) > maxLabels {
		comp.errorf(block.DefRange(), "Too many labels", fmt.Sprintf("The %q directive takes at most %d label(s).", block.Type, maxLabels))
		return
	}

	opts := comp.options(block, codeOptions, false)
	value, ok := opts["value"]
	if !ok {
		comp.errorf(block.DefRange(), "Missing value", fmt.Sprintf("The %q directive requires a value expression.", block.Type))
		return
	}

	code := &node.Code{Block: comp.valueFunc(value.Expr)}
	if len(block.Labels) == 1 {
		if block.Labels[0] == "" {
			comp.errorf(block.DefRange(), "Missing node name", "Node names cannot be empty.")
			return
		}
		code.Name = block.Labels[0]
	} else {
		code.Merge = true
	}
	code.Condition = comp.guard(block, opts, false)
	tmpl.AddNode(code)
}

func (c *Compiler) conditionDirective(comp *compilation, tmpl *template.Template, item hclutil.Item) error {
	if item.Block == nil {
		comp.errorf(item.Range(), "Invalid condition directive", "This directive requires a block.")
		return nil
	}
	block := item.Block
	if !comp.exactLabels(block, 0, "no labels") {
		return nil
	}
	opts := comp.options(block, conditionOptions, true)
	pred := comp.guard(block, opts, true)
	if pred == nil {
		return nil
	}

	nested := template.New("")
	if err := c.compileBody(comp, nested, block.Body, false, conditionOptions); err != nil {
		return err
	}
	tmpl.AddNode(&node.Condition{Predicate: pred, Nodes: nested.Nodes()})
	return nil
}

// extendsDirective appends every node of another template.
func (c *Compiler) extendsDirective(comp *compilation, tmpl *template.Template, item hclutil.Item) error {
	var identifier string
	if item.Attribute != nil {
		identifier = comp.staticString(item.Attribute.Expr, "extends target")
	} else {
		if !comp.exactLabels(item.Block, 1, "a template name") {
			return nil
		}
		comp.options(item.Block, nil, false)
		identifier = item.Block.Labels[0]
	}
	if identifier == "" {
		return nil
	}

	parent, err := c.fetch(comp, identifier, item.Range())
	if err != nil {
		return err
	}
	tmpl.AddNodes(parent.Nodes()...)
	return nil
}

// guard compiles the if/unless options into a predicate. With required set,
// exactly one of them must be present.
func (comp *compilation) guard(block *hclsyntax.Block, opts map[string]*hclsyntax.Attribute, required bool) node.Predicate {
	ifAttr, hasIf := opts["if"]
	unlessAttr, hasUnless := opts["unless"]
	switch {
	case hasIf && hasUnless:
		comp.errorf(unlessAttr.SrcRange, "Conflicting conditions", "Use either if or unless, not both.")
		return nil
	case hasIf:
		return comp.predicate(ifAttr.Expr, false)
	case hasUnless:
		return comp.predicate(unlessAttr.Expr, true)
	case required:
		comp.errorf(block.DefRange(), "Missing predicate", fmt.Sprintf("The %q directive requires an if or unless expression.", block.Type))
	}
	return nil
}

// options collects the attributes of block named in allowed. Unless nested
// is set, any other attribute or block is reported as unsupported.
func (comp *compilation) options(block *hclsyntax.Block, allowed []string, nested bool) map[string]*hclsyntax.Attribute {
	opts := make(map[string]*hclsyntax.Attribute)
	for name, attr := range block.Body.Attributes {
		if contains(allowed, name) {
			opts[name] = attr
			continue
		}
		if !nested {
			comp.errorf(attr.SrcRange, "Unsupported argument",
				fmt.Sprintf("An argument named %q is not expected in a %q block; expected one of [%s].", name, block.Type, strings.Join(allowed, ", ")))
		}
	}
	if !nested {
		for _, b := range block.Body.Blocks {
			comp.errorf(b.DefRange(), "Unexpected block", fmt.Sprintf("A %q block cannot contain %q blocks.", block.Type, b.Type))
		}
	}
	return opts
}

func (comp *compilation) exactLabels(block *hclsyntax.Block, n int, what string) bool {
	if len(block.Labels) == n {
		return true
	}
	comp.errorf(block.DefRange(), "Wrong number of labels",
		fmt.Sprintf("The %q directive takes %s.", block.Type, what))
	return false
}

// staticString evaluates a literal string, recording a diagnostic and
// returning "" when it is not one.
func (comp *compilation) staticString(expr hcl.Expression, what string) string {
	if key, ok := expr.(*hclsyntax.ObjectConsKeyExpr); ok {
		if kw := hcl.ExprAsKeyword(key.Wrapped); kw != "" && !key.ForceNonLiteral {
			return kw
		}
	}
	s, diags := hclutil.StaticString(expr, what)
	comp.diags = append(comp.diags, diags...)
	return s
}

// sortedAttributes returns the attributes of body in source order.
func sortedAttributes(body *hclsyntax.Body) []*hclsyntax.Attribute {
	attrs := make([]*hclsyntax.Attribute, 0, len(body.Attributes))
	for _, a := range body.Attributes {
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].SrcRange.Start.Byte < attrs[j].SrcRange.Start.Byte
	})
	return attrs
}

// hasDirectives reports whether body contains anything beyond options.
func hasDirectives(body *hclsyntax.Body, options []string) bool {
	if len(body.Blocks) > 0 {
		return true
	}
	for name := range body.Attributes {
		if !contains(options, name) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
