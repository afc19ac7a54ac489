// Package fields maps struct fields to storage columns through `db` tags.
package fields

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

type field struct {
	column string
	index  []int
}

type layout struct {
	fields []field
	byName map[string]field
}

var layouts sync.Map // reflect.Type -> *layout

func structType(t reflect.Type) (reflect.Type, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("fields: %v is not a struct", t)
	}
	return t, nil
}

func layoutOf(t reflect.Type) (*layout, error) {
	st, err := structType(t)
	if err != nil {
		return nil, err
	}
	if l, ok := layouts.Load(st); ok {
		return l.(*layout), nil
	}
	l := &layout{byName: make(map[string]field)}
	collect(st, nil, l)
	actual, _ := layouts.LoadOrStore(st, l)
	return actual.(*layout), nil
}

func collect(t reflect.Type, prefix []int, l *layout) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		tag, hasTag := sf.Tag.Lookup("db")
		if sf.Anonymous && !hasTag && sf.Type.Kind() == reflect.Struct {
			collect(sf.Type, index, l)
			continue
		}
		if !sf.IsExported() || !hasTag {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		if _, dup := l.byName[name]; dup {
			continue
		}
		f := field{column: name, index: index}
		l.fields = append(l.fields, f)
		l.byName[name] = f
	}
}

// Columns lists the columns of a struct type in declaration order.
func Columns(t reflect.Type) ([]string, error) {
	l, err := layoutOf(t)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(l.fields))
	for i, f := range l.fields {
		cols[i] = f.column
	}
	return cols, nil
}

// Has reports whether the struct type has the column.
func Has(t reflect.Type, column string) bool {
	l, err := layoutOf(t)
	if err != nil {
		return false
	}
	_, ok := l.byName[column]
	return ok
}

// Values returns the column values of v, keyed by column. v must be a non-nil
// struct pointer or a struct.
func Values(v any) (map[string]any, error) {
	rv, err := structValue(v)
	if err != nil {
		return nil, err
	}
	l, err := layoutOf(rv.Type())
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(l.fields))
	for _, f := range l.fields {
		out[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return out, nil
}

// Lookup returns the value of one column of v.
func Lookup(v any, column string) (any, bool) {
	rv, err := structValue(v)
	if err != nil {
		return nil, false
	}
	l, err := layoutOf(rv.Type())
	if err != nil {
		return nil, false
	}
	f, ok := l.byName[column]
	if !ok {
		return nil, false
	}
	return rv.FieldByIndex(f.index).Interface(), true
}

// Intersect returns the columns of t that also appear in allowed, in t's order.
func Intersect(t reflect.Type, allowed []string) ([]string, error) {
	cols, err := Columns(t)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(allowed))
	for _, c := range allowed {
		set[c] = struct{}{}
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, ok := set[c]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func structValue(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("fields: nil %v", rv.Type())
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("fields: %T is not a struct", v)
	}
	return rv, nil
}

// IsNil reports whether v is nil or a nil pointer, map, slice, func, chan or interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
