package runtime

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ToString renders any runtime value the way an `{{ }}` output would,
// without escaping (spec §4.6 suppressValue handles escaping on top).
func ToString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case Undefined:
		return ""
	case SafeString:
		return string(x)
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return formatFloat(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case []interface{}:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = reprValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		return reprMap(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func reprValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return "'" + s + "'"
	}
	return ToString(v)
}

func reprMap(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = "'" + k + "': " + reprValue(m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Truthy implements Jinja's truthiness rules: false, 0, "", nil, Undefined,
// and empty collections are falsy; everything else is truthy.
func Truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil, Undefined:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case SafeString:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case []interface{}:
		return len(x) > 0
	case map[string]interface{}:
		return len(x) > 0
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
			return rv.Len() > 0
		}
		return true
	}
}

// ToNumber coerces v to float64 for arithmetic, returning ok=false for
// values that cannot be interpreted numerically.
func ToNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Add implements `+`: numeric addition when both sides coerce to numbers,
// otherwise falls back to Jinja's strict rule that `+` never concatenates
// strings (that is `~`'s job, see Concat).
func Add(a, b interface{}) (interface{}, error) {
	af, aok := ToNumber(a)
	bf, bok := ToNumber(b)
	if aok && bok {
		return af + bf, nil
	}
	if al, ok := a.([]interface{}); ok {
		if bl, ok := b.([]interface{}); ok {
			out := make([]interface{}, 0, len(al)+len(bl))
			out = append(out, al...)
			out = append(out, bl...)
			return out, nil
		}
	}
	return nil, fmt.Errorf("unsupported operand types for +: %T and %T", a, b)
}

func Sub(a, b interface{}) (interface{}, error) {
	af, aok := ToNumber(a)
	bf, bok := ToNumber(b)
	if !aok || !bok {
		return nil, fmt.Errorf("unsupported operand types for -: %T and %T", a, b)
	}
	return af - bf, nil
}

func Mul(a, b interface{}) (interface{}, error) {
	if s, ok := a.(string); ok {
		if n, ok := ToNumber(b); ok {
			return strings.Repeat(s, int(n)), nil
		}
	}
	af, aok := ToNumber(a)
	bf, bok := ToNumber(b)
	if !aok || !bok {
		return nil, fmt.Errorf("unsupported operand types for *: %T and %T", a, b)
	}
	return af * bf, nil
}

func Div(a, b interface{}) (interface{}, error) {
	af, aok := ToNumber(a)
	bf, bok := ToNumber(b)
	if !aok || !bok {
		return nil, fmt.Errorf("unsupported operand types for /: %T and %T", a, b)
	}
	if bf == 0 {
		return nil, fmt.Errorf("division by zero")
	}
	return af / bf, nil
}

func FloorDiv(a, b interface{}) (interface{}, error) {
	af, aok := ToNumber(a)
	bf, bok := ToNumber(b)
	if !aok || !bok {
		return nil, fmt.Errorf("unsupported operand types for //: %T and %T", a, b)
	}
	if bf == 0 {
		return nil, fmt.Errorf("division by zero")
	}
	q := af / bf
	f := float64(int64(q))
	if f > q {
		f--
	}
	return f, nil
}

func Mod(a, b interface{}) (interface{}, error) {
	af, aok := ToNumber(a)
	bf, bok := ToNumber(b)
	if !aok || !bok {
		return nil, fmt.Errorf("unsupported operand types for %%: %T and %T", a, b)
	}
	if bf == 0 {
		return nil, fmt.Errorf("modulo by zero")
	}
	r := af - bf*float64(int64(af/bf))
	return r, nil
}

func Pow(a, b interface{}) (interface{}, error) {
	af, aok := ToNumber(a)
	bf, bok := ToNumber(b)
	if !aok || !bok {
		return nil, fmt.Errorf("unsupported operand types for **: %T and %T", a, b)
	}
	result := 1.0
	if bf == float64(int64(bf)) && bf >= 0 {
		n := int64(bf)
		for i := int64(0); i < n; i++ {
			result *= af
		}
		return result, nil
	}
	return math.Pow(af, bf), nil
}

// Concat implements `~`: string-coercing concatenation, never numeric.
func Concat(a, b interface{}) interface{} {
	return ToString(a) + ToString(b)
}

// Equal implements `==` with cross-type numeric/string comparison rules
// matching Jinja's permissive equality.
func Equal(a, b interface{}) bool {
	if af, aok := ToNumber(a); aok {
		if bf, bok := ToNumber(b); bok {
			if _, aIsStr := a.(string); !aIsStr {
				if _, bIsStr := b.(string); !bIsStr {
					return af == bf
				}
			}
		}
	}
	return ToString(a) == ToString(b) && sameKind(a, b)
}

func sameKind(a, b interface{}) bool {
	_, aUndef := a.(Undefined)
	_, bUndef := b.(Undefined)
	if aUndef || bUndef {
		return aUndef == bUndef
	}
	return true
}

// Compare implements the ordering operators, returning -1/0/1 the way
// strings.Compare and numeric subtraction would.
func Compare(a, b interface{}) (int, error) {
	if af, aok := ToNumber(a); aok {
		if bf, bok := ToNumber(b); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	as, bs := ToString(a), ToString(b)
	return strings.Compare(as, bs), nil
}

// InOperator implements `needle in haystack` across strings, slices, and
// maps (spec §4.6 inOperator).
func InOperator(needle, haystack interface{}) bool {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(h, s)
	case []interface{}:
		for _, e := range h {
			if Equal(e, needle) {
				return true
			}
		}
		return false
	case map[string]interface{}:
		s, ok := needle.(string)
		if !ok {
			return false
		}
		_, found := h[s]
		return found
	default:
		return false
	}
}

// Keys returns the iteration keys of a mapping value in the stable order
// the runtime's asyncAll/asyncEach helpers rely on (spec §4.6 keys).
func Keys(v interface{}) []string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromIterator normalizes a value used as a `{% for %}` source into a Go
// slice of items, expanding maps into (key, value) pair slices and
// reporting whether the source was a mapping (spec §4.6 fromIterator).
func FromIterator(v interface{}) (items []interface{}, isMap bool) {
	switch x := v.(type) {
	case []interface{}:
		return x, false
	case map[string]interface{}:
		keys := Keys(x)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = []interface{}{k, x[k]}
		}
		return out, true
	case string:
		runes := []rune(x)
		out := make([]interface{}, len(runes))
		for i, r := range runes {
			out[i] = string(r)
		}
		return out, false
	case nil, Undefined:
		return nil, false
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			out := make([]interface{}, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				out[i] = rv.Index(i).Interface()
			}
			return out, false
		}
		return nil, false
	}
}

// MemberLookup implements `target.val` / `target[val]` attribute and
// subscript access, returning Undefined (never an error) for a missing key
// so callers can decide whether to raise via EnsureDefined (spec §4.6).
func MemberLookup(target, key interface{}) interface{} {
	name := ToString(key)
	switch t := target.(type) {
	case map[string]interface{}:
		if v, ok := t[name]; ok {
			return v
		}
		return Undefined{Name: name, Hint: fmt.Sprintf("%q has no attribute %q", "object", name)}
	case []interface{}:
		if idx, ok := ToNumber(key); ok {
			i := int(idx)
			if i < 0 {
				i += len(t)
			}
			if i >= 0 && i < len(t) {
				return t[i]
			}
		}
		return Undefined{Name: name}
	case string:
		if idx, ok := ToNumber(key); ok {
			runes := []rune(t)
			i := int(idx)
			if i < 0 {
				i += len(runes)
			}
			if i >= 0 && i < len(runes) {
				return string(runes[i])
			}
		}
		return Undefined{Name: name}
	case Undefined:
		return Undefined{Name: t.Name + "." + name, Hint: fmt.Sprintf("%q is undefined", t.Name)}
	case nil:
		return Undefined{Name: name}
	default:
		rv := reflect.ValueOf(target)
		if rv.Kind() == reflect.Ptr {
			rv = rv.Elem()
		}
		if rv.Kind() == reflect.Struct {
			f := rv.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
			if f.IsValid() {
				return f.Interface()
			}
		}
		return Undefined{Name: name}
	}
}
