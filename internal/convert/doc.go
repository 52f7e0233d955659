// Package convert moves values between the Go world of render objects and
// the cty world of template expressions. ToCty is used to expose the current
// object to expressions; ToNative turns expression results back into plain
// Go values for the output tree.
package convert
