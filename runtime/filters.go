package runtime

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// RegisterBuiltinFilters installs the standard filter set onto env,
// mirroring the core Jinja filter library named in spec §4.6.
func RegisterBuiltinFilters(env *Environment) {
	env.RegisterFilter("upper", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		return CopySafeness(v, strings.ToUpper(ToString(v))), nil
	})
	env.RegisterFilter("lower", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		return CopySafeness(v, strings.ToLower(ToString(v))), nil
	})
	env.RegisterFilter("capitalize", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		s := ToString(v)
		if s == "" {
			return s, nil
		}
		r := []rune(strings.ToLower(s))
		r[0] = unicode.ToUpper(r[0])
		return CopySafeness(v, string(r)), nil
	})
	env.RegisterFilter("title", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		return CopySafeness(v, strings.Title(strings.ToLower(ToString(v)))), nil
	})
	env.RegisterFilter("trim", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		return CopySafeness(v, strings.TrimSpace(ToString(v))), nil
	})
	env.RegisterFilter("safe", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		return MarkSafe(v), nil
	})
	env.RegisterFilter("escape", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		return Escape(v), nil
	})
	env.RegisterFilter("e", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		return Escape(v), nil
	})
	env.RegisterFilter("default", defaultFilter)
	env.RegisterFilter("d", defaultFilter)
	env.RegisterFilter("length", lengthFilter)
	env.RegisterFilter("count", lengthFilter)
	env.RegisterFilter("join", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		sep := ""
		if len(args) > 0 {
			sep = ToString(args[0])
		}
		items, _ := FromIterator(v)
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = ToString(it)
		}
		return strings.Join(parts, sep), nil
	})
	env.RegisterFilter("list", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		items, _ := FromIterator(v)
		return items, nil
	})
	env.RegisterFilter("first", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		items, _ := FromIterator(v)
		if len(items) == 0 {
			return Undefined{Name: "first"}, nil
		}
		return items[0], nil
	})
	env.RegisterFilter("last", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		items, _ := FromIterator(v)
		if len(items) == 0 {
			return Undefined{Name: "last"}, nil
		}
		return items[len(items)-1], nil
	})
	env.RegisterFilter("reverse", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		if s, ok := v.(string); ok {
			r := []rune(s)
			for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
				r[i], r[j] = r[j], r[i]
			}
			return string(r), nil
		}
		items, _ := FromIterator(v)
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[len(items)-1-i] = it
		}
		return out, nil
	})
	env.RegisterFilter("sort", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		items, _ := FromIterator(v)
		out := append([]interface{}{}, items...)
		reverse := Truthy(kw["reverse"])
		sort.SliceStable(out, func(i, j int) bool {
			c, _ := Compare(out[i], out[j])
			if reverse {
				return c > 0
			}
			return c < 0
		})
		return out, nil
	})
	env.RegisterFilter("unique", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		items, _ := FromIterator(v)
		seen := map[string]bool{}
		out := []interface{}{}
		for _, it := range items {
			k := ToString(it)
			if !seen[k] {
				seen[k] = true
				out = append(out, it)
			}
		}
		return out, nil
	})
	env.RegisterFilter("replace", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("replace requires 2 arguments")
		}
		old, new := ToString(args[0]), ToString(args[1])
		count := -1
		if len(args) > 2 {
			if n, ok := ToNumber(args[2]); ok {
				count = int(n)
			}
		}
		return CopySafeness(v, strings.Replace(ToString(v), old, new, count)), nil
	})
	env.RegisterFilter("round", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		f, ok := ToNumber(v)
		if !ok {
			return nil, fmt.Errorf("round: not a number")
		}
		prec := 0.0
		if len(args) > 0 {
			prec, _ = ToNumber(args[0])
		}
		method := "common"
		if len(args) > 1 {
			method = ToString(args[1])
		}
		mult := math.Pow(10, prec)
		switch method {
		case "ceil":
			return math.Ceil(f*mult) / mult, nil
		case "floor":
			return math.Floor(f*mult) / mult, nil
		default:
			return math.Round(f*mult) / mult, nil
		}
	})
	env.RegisterFilter("abs", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		f, ok := ToNumber(v)
		if !ok {
			return nil, fmt.Errorf("abs: not a number")
		}
		return math.Abs(f), nil
	})
	env.RegisterFilter("int", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		f, ok := ToNumber(v)
		if !ok {
			def := 0.0
			if len(args) > 0 {
				def, _ = ToNumber(args[0])
			}
			return math.Trunc(def), nil
		}
		return math.Trunc(f), nil
	})
	env.RegisterFilter("float", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		f, ok := ToNumber(v)
		if !ok {
			if len(args) > 0 {
				f, _ = ToNumber(args[0])
			}
		}
		return f, nil
	})
	env.RegisterFilter("string", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		return ToString(v), nil
	})
	env.RegisterFilter("truncate", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		s := ToString(v)
		length := 255
		if len(args) > 0 {
			if n, ok := ToNumber(args[0]); ok {
				length = int(n)
			}
		}
		if len(s) <= length {
			return CopySafeness(v, s), nil
		}
		end := "..."
		if len(args) > 2 {
			end = ToString(args[2])
		}
		if length-len(end) < 0 {
			return CopySafeness(v, s[:length]), nil
		}
		return CopySafeness(v, s[:length-len(end)]+end), nil
	})
	env.RegisterFilter("wordcount", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		return len(strings.Fields(ToString(v))), nil
	})
	env.RegisterFilter("striptags", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		s := ToString(v)
		var b strings.Builder
		inTag := false
		for _, r := range s {
			switch {
			case r == '<':
				inTag = true
			case r == '>':
				inTag = false
			case !inTag:
				b.WriteRune(r)
			}
		}
		return strings.Join(strings.Fields(b.String()), " "), nil
	})
	env.RegisterFilter("urlencode", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		return urlEncode(ToString(v)), nil
	})
	env.RegisterFilter("attr", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		if len(args) == 0 {
			return Undefined{}, nil
		}
		return MemberLookup(v, args[0]), nil
	})
	env.RegisterFilter("map", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("map requires an attribute name")
		}
		attr := ToString(args[0])
		items, _ := FromIterator(v)
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = MemberLookup(it, attr)
		}
		return out, nil
	})
	env.RegisterFilter("select", selectFilter(false))
	env.RegisterFilter("reject", selectFilter(true))
	env.RegisterFilter("format", func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		converted := make([]interface{}, len(args))
		for i, a := range args {
			converted[i] = a
		}
		return fmt.Sprintf(ToString(v), converted...), nil
	})
}

func defaultFilter(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
	boolean := false
	if len(kw) > 0 {
		boolean = Truthy(kw["boolean"])
	} else if len(args) > 1 {
		boolean = Truthy(args[1])
	}
	isMissing := IsUndefined(v)
	if boolean {
		isMissing = isMissing || !Truthy(v)
	}
	if isMissing {
		if len(args) > 0 {
			return args[0], nil
		}
		return "", nil
	}
	return v, nil
}

func lengthFilter(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
	switch x := v.(type) {
	case string:
		return float64(len([]rune(x))), nil
	case SafeString:
		return float64(len([]rune(string(x)))), nil
	case []interface{}:
		return float64(len(x)), nil
	case map[string]interface{}:
		return float64(len(x)), nil
	case Undefined:
		return 0.0, nil
	default:
		items, _ := FromIterator(v)
		return float64(len(items)), nil
	}
}

func selectFilter(negate bool) Filter {
	return func(env *Environment, v interface{}, args []interface{}, kw map[string]interface{}) (interface{}, error) {
		items, _ := FromIterator(v)
		out := []interface{}{}
		testName := "truthy"
		var testArgs []interface{}
		if len(args) > 0 {
			testName = ToString(args[0])
			testArgs = args[1:]
		}
		for _, it := range items {
			var pass bool
			if testName == "truthy" {
				pass = Truthy(it)
			} else if t, ok := env.Test(testName); ok {
				var err error
				pass, err = t(env, it, testArgs)
				if err != nil {
					return nil, err
				}
			}
			if pass != negate {
				out = append(out, it)
			}
		}
		return out, nil
	}
}

func urlEncode(s string) string {
	var b strings.Builder
	for _, r := range []byte(s) {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' || r == '~' {
			b.WriteByte(r)
		} else {
			b.WriteString("%" + strconv.FormatInt(int64(r), 16))
		}
	}
	return b.String()
}
