// Package access reads named properties from arbitrary Go values and decides
// whether a value is a collection. It is the renderer's only way of looking
// inside user objects.
package access

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrNilObject is returned when a property is read from a nil value.
	ErrNilObject = errors.New("object is nil")
	// ErrNoProperty is returned when a value has no property of the given name.
	ErrNoProperty = errors.New("object has no such property")
)

// Attributer lets a type answer property reads itself.
type Attributer interface {
	Attribute(name string) (any, bool)
}

// Sequence lets a non-slice type present itself as a collection.
type Sequence interface {
	Items() []any
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Get reads the property name from obj. Lookup order: Attributer, map key,
// struct field (Go name, json tag or snake_case form), zero-argument method.
// A missing map key yields nil; a missing struct member is ErrNoProperty.
func Get(obj any, name string) (any, error) {
	if obj == nil {
		return nil, ErrNilObject
	}
	if a, ok := obj.(Attributer); ok {
		v, found := a.Attribute(name)
		if !found {
			return nil, fmt.Errorf("%w: %q on %T", ErrNoProperty, name, obj)
		}
		return v, nil
	}

	rv := reflect.ValueOf(obj)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, ErrNilObject
	}

	// Methods are looked up before dereferencing so pointer receivers work.
	if m, ok := findMethod(rv, name); ok {
		return callMethod(m, name)
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, ErrNilObject
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: %q on map with %s keys", ErrNoProperty, name, rv.Type().Key())
		}
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Struct:
		if f, ok := findField(rv, name); ok {
			return f.Interface(), nil
		}
		if m, ok := findMethod(rv, name); ok {
			return callMethod(m, name)
		}
	}
	return nil, fmt.Errorf("%w: %q on %T", ErrNoProperty, name, obj)
}

// IsCollection reports whether obj should be rendered as a sequence. Slices
// and arrays (except byte slices) and Sequence implementations qualify; maps
// and structs never do.
func IsCollection(obj any) bool {
	if obj == nil {
		return false
	}
	if _, ok := obj.(Sequence); ok {
		return true
	}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

// Items returns the elements of a collection in order.
func Items(obj any) ([]any, error) {
	if s, ok := obj.(Sequence); ok {
		return s.Items(), nil
	}
	if !IsCollection(obj) {
		return nil, fmt.Errorf("%T is not a collection", obj)
	}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

// FieldName returns the property name a struct field is exposed under: its
// json tag name when present, otherwise its snake_case Go name. It returns
// "" for fields that must be hidden.
func FieldName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	if tag, ok := f.Tag.Lookup("json"); ok {
		tagName := strings.Split(tag, ",")[0]
		if tagName == "-" {
			return ""
		}
		if tagName != "" {
			return tagName
		}
	}
	return SnakeCase(f.Name)
}

// SnakeCase converts a Go identifier to snake_case, keeping initialisms
// together ("UserID" becomes "user_id").
func SnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z' || runes[i-1] >= '0' && runes[i-1] <= '9'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower && runes[i-1] >= 'A' && runes[i-1] <= 'Z' {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// normalize folds a property name for case- and underscore-insensitive matching.
func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

func findField(rv reflect.Value, name string) (reflect.Value, bool) {
	rt := rv.Type()
	want := normalize(name)
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		exposed := FieldName(f)
		if exposed == "" {
			continue
		}
		if exposed == name || normalize(f.Name) == want {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func findMethod(rv reflect.Value, name string) (reflect.Value, bool) {
	if !rv.IsValid() {
		return reflect.Value{}, false
	}
	rt := rv.Type()
	want := normalize(name)
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		if normalize(m.Name) != want {
			continue
		}
		mt := m.Type
		// Receiver counts as the first input.
		if mt.NumIn() != 1 {
			continue
		}
		switch {
		case mt.NumOut() == 1:
		case mt.NumOut() == 2 && mt.Out(1).Implements(errorType):
		default:
			continue
		}
		return rv.Method(i), true
	}
	return reflect.Value{}, false
}

func callMethod(m reflect.Value, name string) (any, error) {
	out := m.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, fmt.Errorf("method %q: %w", name, out[1].Interface().(error))
	}
	return out[0].Interface(), nil
}
