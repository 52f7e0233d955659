package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// ErrMissingTemplate is matched by every MissingTemplateError.
var ErrMissingTemplate = errors.New("template not found")

// CompileError reports a template that cannot be compiled.
type CompileError struct {
	Identifier string
	Diags      hcl.Diagnostics
}

func (e *CompileError) Error() string {
	name := e.Identifier
	if name == "" {
		name = "<inline>"
	}
	return fmt.Sprintf("failed to compile template %s: %s", name, e.Diags.Error())
}

// Unwrap exposes the diagnostics as an error.
func (e *CompileError) Unwrap() error {
	return e.Diags
}

// MissingTemplateError reports an extends, partial or library lookup that
// could not be resolved.
type MissingTemplateError struct {
	Identifier string
	Err        error
}

func (e *MissingTemplateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("template %q not found: %v", e.Identifier, e.Err)
	}
	return fmt.Sprintf("template %q not found", e.Identifier)
}

// Unwrap returns the underlying cause.
func (e *MissingTemplateError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMissingTemplate}
	}
	return []error{ErrMissingTemplate, e.Err}
}

// RenderTypeError reports an object that lacks a capability the template
// needs, such as attribute access on nil.
type RenderTypeError struct {
	// Path is the chain of output keys leading to the failure.
	Path []string
	Msg  string
	Err  error
}

func (e *RenderTypeError) Error() string {
	var b strings.Builder
	b.WriteString("render")
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *RenderTypeError) Unwrap() error {
	return e.Err
}
