package compiler

import (
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

func scopeFuncs() map[string]function.Function {
	return map[string]function.Function{
		"shout": function.New(&function.Spec{
			Params: []function.Parameter{{Name: "s", Type: cty.String}},
			Type:   function.StaticReturnType(cty.String),
			Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
				return cty.StringVal(strings.ToUpper(args[0].AsString()) + "!"), nil
			},
		}),
	}
}
