// Package scope defines the ambient context a template is compiled and
// rendered in: instance-scoped values (referenced as "@name" in directives
// and var.name in expressions), methods callable by plain root references,
// and helper functions callable from expressions.
package scope
