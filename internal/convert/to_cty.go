package convert

import (
	"encoding"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/vk/jsonshape/internal/access"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	ctyValueType     = reflect.TypeOf(cty.Value{})
	timeType         = reflect.TypeOf(time.Time{})
	textMarshalerTyp = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	bigFloatPtrType  = reflect.TypeOf((*big.Float)(nil))
)

// ToCty converts an arbitrary Go value into a cty.Value. Maps with string
// keys and structs become objects, slices and arrays become tuples. Struct
// fields are exposed under access.FieldName. Values already seen on the
// current path (reference cycles) and NaN floats become null.
func ToCty(v any) (cty.Value, error) {
	return toCty(reflect.ValueOf(v), make(map[uintptr]bool))
}

func toCty(rv reflect.Value, seen map[uintptr]bool) (cty.Value, error) {
	if !rv.IsValid() {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	if rv.Type() == ctyValueType {
		return rv.Interface().(cty.Value), nil
	}
	if rv.Type() == bigFloatPtrType && !rv.IsNil() {
		return cty.NumberVal(rv.Interface().(*big.Float)), nil
	}
	if rv.Type() == timeType {
		return cty.StringVal(rv.Interface().(time.Time).Format(time.RFC3339Nano)), nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		if rv.Kind() == reflect.Pointer {
			ptr := rv.Pointer()
			if seen[ptr] {
				return cty.NullVal(cty.DynamicPseudoType), nil
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		return toCty(rv.Elem(), seen)

	case reflect.Bool:
		return cty.BoolVal(rv.Bool()), nil

	case reflect.String:
		return cty.StringVal(rv.String()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cty.NumberIntVal(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cty.NumberUIntVal(rv.Uint()), nil

	case reflect.Float32, reflect.Float64:
		// cty numbers are big.Float, which has no NaN.
		if f := rv.Float(); !math.IsNaN(f) {
			return cty.NumberFloatVal(f), nil
		}
		return cty.NullVal(cty.Number), nil

	case reflect.Map:
		if rv.IsNil() {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		if rv.Type().Key().Kind() != reflect.String {
			return cty.NilVal, fmt.Errorf("cannot convert map with %s keys", rv.Type().Key())
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		seen[ptr] = true
		defer delete(seen, ptr)

		attrs := make(map[string]cty.Value, rv.Len())
		it := rv.MapRange()
		for it.Next() {
			key := it.Key().String()
			val, err := toCty(it.Value(), seen)
			if err != nil {
				return cty.NilVal, fmt.Errorf("in key '%s': %w", key, err)
			}
			attrs[key] = val
		}
		return cty.ObjectVal(attrs), nil

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return cty.EmptyTupleVal, nil
		}
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return cty.StringVal(string(rv.Bytes())), nil
		}
		elems := make([]cty.Value, rv.Len())
		for i := range elems {
			val, err := toCty(rv.Index(i), seen)
			if err != nil {
				return cty.NilVal, fmt.Errorf("in element %d: %w", i, err)
			}
			elems[i] = val
		}
		return cty.TupleVal(elems), nil

	case reflect.Struct:
		if rv.Type().Implements(textMarshalerTyp) {
			text, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
			if err != nil {
				return cty.NilVal, err
			}
			return cty.StringVal(string(text)), nil
		}
		attrs := make(map[string]cty.Value)
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			name := access.FieldName(rt.Field(i))
			if name == "" {
				continue
			}
			val, err := toCty(rv.Field(i), seen)
			if err != nil {
				return cty.NilVal, fmt.Errorf("in field '%s': %w", name, err)
			}
			attrs[name] = val
		}
		return cty.ObjectVal(attrs), nil

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return cty.NullVal(cty.DynamicPseudoType), nil

	default:
		ty, err := gocty.ImpliedType(rv.Interface())
		if err != nil {
			return cty.NilVal, fmt.Errorf("unable to infer cty.Type for %s: %w", rv.Type(), err)
		}
		return gocty.ToCtyValue(rv.Interface(), ty)
	}
}
