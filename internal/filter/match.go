package filter

import (
	"fmt"
	"strings"

	"ralph-api/internal/kinds"
	"ralph-api/internal/store"
)

// Match evaluates a lookup against an attribute value. have is nil when the
// attribute is unset. raw must have passed ParseObjectQuery's checks.
func Match(f *kinds.Field, op store.Op, have any, raw string) bool {
	if op == store.OpIsNull {
		want, err := ParseBool(raw)
		if err != nil {
			return false
		}
		return (have == nil) == want
	}
	if have == nil {
		return false
	}

	switch op {
	case store.OpIExact:
		return strings.EqualFold(text(have), raw)
	case store.OpContains:
		return strings.Contains(text(have), raw)
	case store.OpIContains:
		return strings.Contains(strings.ToLower(text(have)), strings.ToLower(raw))
	case store.OpStartsWith:
		return strings.HasPrefix(text(have), raw)
	case store.OpIStartsWith:
		return strings.HasPrefix(strings.ToLower(text(have)), strings.ToLower(raw))
	case store.OpEndsWith:
		return strings.HasSuffix(text(have), raw)
	case store.OpIEndsWith:
		return strings.HasSuffix(strings.ToLower(text(have)), strings.ToLower(raw))
	}

	want, err := f.Parse(raw)
	if err != nil {
		return false
	}
	c, ok := Compare(have, want)
	if !ok {
		return false
	}
	switch op {
	case store.OpExact:
		return c == 0
	case store.OpLT:
		return c < 0
	case store.OpLTE:
		return c <= 0
	case store.OpGT:
		return c > 0
	case store.OpGTE:
		return c >= 0
	}
	return false
}

// Compare orders two attribute values of the same type. ok is false when
// the values are not comparable.
func Compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case int64:
		bv, ok := toInt(b)
		if !ok {
			return 0, false
		}
		return cmpOrdered(av, bv), true
	case int:
		bv, ok := toInt(b)
		if !ok {
			return 0, false
		}
		return cmpOrdered(int64(av), bv), true
	case float64:
		var bv float64
		switch x := b.(type) {
		case float64:
			bv = x
		case int64:
			bv = float64(x)
		default:
			return 0, false
		}
		return cmpOrdered(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
