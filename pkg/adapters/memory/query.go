package memory

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/furrow/internal/fields"
	"github.com/aretw0/furrow/pkg/core"
)

// filter evaluates spec over rows of the given entity type.
func filter(entity reflect.Type, rows []any, spec core.Spec) ([]any, error) {
	for _, c := range spec.Where {
		if !fields.Has(entity, c.Field) {
			return nil, fmt.Errorf("%q: %w", c.Field, core.ErrUnknownColumn)
		}
	}
	for _, o := range spec.OrderBy {
		if !fields.Has(entity, o.Field) {
			return nil, fmt.Errorf("%q: %w", o.Field, core.ErrUnknownColumn)
		}
	}

	out := make([]any, 0, len(rows))
	for _, row := range rows {
		ok, err := matches(row, spec.Where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}

	if len(spec.OrderBy) > 0 {
		var sortErr error
		slices.SortStableFunc(out, func(a, b any) int {
			for _, o := range spec.OrderBy {
				av, _ := fields.Lookup(a, o.Field)
				bv, _ := fields.Lookup(b, o.Field)
				c, err := compare(av, bv)
				if err != nil && sortErr == nil {
					sortErr = err
				}
				if c != 0 {
					if o.Desc {
						return -c
					}
					return c
				}
			}
			return 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
	}

	if spec.Skip > 0 {
		if spec.Skip >= len(out) {
			return out[:0], nil
		}
		out = out[spec.Skip:]
	}
	if spec.Take > 0 && spec.Take < len(out) {
		out = out[:spec.Take]
	}
	return out, nil
}

func matches(row any, conds []core.Cond) (bool, error) {
	for _, c := range conds {
		v, _ := fields.Lookup(row, c.Field)
		ok, err := eval(v, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func eval(v any, c core.Cond) (bool, error) {
	switch c.Op {
	case core.OpEq, "":
		return equal(v, c.Value), nil
	case core.OpNe:
		return !equal(v, c.Value), nil
	case core.OpIn:
		rv := reflect.ValueOf(c.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false, fmt.Errorf("IN on %q expects a slice, got %T", c.Field, c.Value)
		}
		for i := 0; i < rv.Len(); i++ {
			if equal(v, rv.Index(i).Interface()) {
				return true, nil
			}
		}
		return false, nil
	case core.OpLike:
		s, ok1 := v.(string)
		p, ok2 := c.Value.(string)
		if !ok1 || !ok2 {
			return false, fmt.Errorf("LIKE on %q expects strings", c.Field)
		}
		return like(strings.ToLower(s), strings.ToLower(p)), nil
	case core.OpGt, core.OpGte, core.OpLt, core.OpLte:
		n, err := compare(v, c.Value)
		if err != nil {
			return false, fmt.Errorf("%s on %q: %w", c.Op, c.Field, err)
		}
		switch c.Op {
		case core.OpGt:
			return n > 0, nil
		case core.OpGte:
			return n >= 0, nil
		case core.OpLt:
			return n < 0, nil
		default:
			return n <= 0, nil
		}
	}
	return false, fmt.Errorf("unsupported operator %q", c.Op)
}

func equal(a, b any) bool {
	if n, err := compare(a, b); err == nil {
		return n == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders numbers of any width, strings, booleans and times.
func compare(a, b any) (int, error) {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt), nil
		}
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isInt(av) && isInt(bv):
		return cmp.Compare(av.Int(), bv.Int()), nil
	case isUint(av) && isUint(bv):
		return cmp.Compare(av.Uint(), bv.Uint()), nil
	case isNumber(av) && isNumber(bv):
		return cmp.Compare(toFloat(av), toFloat(bv)), nil
	case av.Kind() == reflect.String && bv.Kind() == reflect.String:
		return cmp.Compare(av.String(), bv.String()), nil
	case av.Kind() == reflect.Bool && bv.Kind() == reflect.Bool:
		x, y := av.Bool(), bv.Bool()
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		default:
			return 1, nil
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumber(v reflect.Value) bool {
	return isInt(v) || isUint(v) || v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v):
		return float64(v.Int())
	case isUint(v):
		return float64(v.Uint())
	}
	return v.Float()
}

// like matches SQL LIKE patterns: % is any run, _ is one character.
func like(s, pattern string) bool {
	sr, pr := []rune(s), []rune(pattern)
	// dp[j]: pattern[:i] matches s[:j]
	dp := make([]bool, len(sr)+1)
	dp[0] = true
	for _, p := range pr {
		next := make([]bool, len(sr)+1)
		if p == '%' {
			seen := false
			for j := 0; j <= len(sr); j++ {
				seen = seen || dp[j]
				next[j] = seen
			}
		} else {
			for j := 1; j <= len(sr); j++ {
				next[j] = dp[j-1] && (p == '_' || p == sr[j-1])
			}
		}
		dp = next
	}
	return dp[len(sr)]
}
