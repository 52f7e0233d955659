// Package hclutil holds small helpers over hashicorp/hcl/v2 syntax trees
// that the template compiler needs: ordered directive iteration, unique
// block lookup and static (variable-free) value extraction.
package hclutil

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// Item is either an attribute or a block of a syntax body.
type Item struct {
	Attribute *hclsyntax.Attribute
	Block     *hclsyntax.Block
}

// Name returns the attribute name or block type.
func (i Item) Name() string {
	if i.Block != nil {
		return i.Block.Type
	}
	return i.Attribute.Name
}

// Range returns the source range of the whole item.
func (i Item) Range() hcl.Range {
	if i.Block != nil {
		return i.Block.Range()
	}
	return i.Attribute.SrcRange
}

// OrderedItems returns every attribute and block of body in source order.
// HCL keeps attributes in a map, so their order is recovered from their
// byte offsets.
func OrderedItems(body *hclsyntax.Body) []Item {
	items := make([]Item, 0, len(body.Attributes)+len(body.Blocks))
	for _, attr := range body.Attributes {
		items = append(items, Item{Attribute: attr})
	}
	for _, block := range body.Blocks {
		items = append(items, Item{Block: block})
	}
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Range().Start.Byte < items[b].Range().Start.Byte
	})
	return items
}

// FindUniqueBlock searches a slice of blocks for all blocks of a given name.
// It returns a diagnostic error if more than one block of that name is found.
// If no block is found, it returns nil.
func FindUniqueBlock(blocks hclsyntax.Blocks, name string) (*hclsyntax.Block, hcl.Diagnostics) {
	var found *hclsyntax.Block
	var diags hcl.Diagnostics

	for _, block := range blocks {
		if block.Type == name {
			if found != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate \"" + name + "\" block",
					Detail:   "Only one \"" + name + "\" block is allowed.",
					Subject:  block.DefRange().Ptr(),
				})
			}
			found = block
		}
	}

	return found, diags
}
