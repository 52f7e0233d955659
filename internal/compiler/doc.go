// Package compiler turns template source written in the HCL-based DSL into
// a template.Template.
//
// A template body is a sequence of directives. Blocks and attributes are
// both directives and are processed strictly in source order:
//
//	object "@user" {}
//	attributes "id" "email" {}
//	attribute "name" { as = "full_name" }
//	node "initials" { value = substr(object.name, 0, 1) }
//	child "posts" {
//	  attributes "id" "title" {}
//	}
//	condition {
//	  if = var.current_user.admin
//	  attributes "secret" {}
//	}
//	extends "users/base" {}
//
// Expressions in `value`, `if`, `unless`, `data` and cache `key` are compiled
// into closures evaluated by the renderer. They may refer to `object` (the
// current render object) and `var.<name>` (instance-scoped values) and may
// call the functions of the compile scope. Unknown names are compile errors.
//
// `extends` and `partial` fetch other templates through the Library passed to
// New; the compiler itself never touches the file system.
package compiler
