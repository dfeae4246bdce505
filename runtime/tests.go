package runtime

import "strings"

// RegisterBuiltinTests installs the standard `is name` predicate set named
// in spec §4.6.
func RegisterBuiltinTests(env *Environment) {
	env.RegisterTest("defined", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		return !IsUndefined(v), nil
	})
	env.RegisterTest("undefined", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		return IsUndefined(v), nil
	})
	env.RegisterTest("none", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		return v == nil, nil
	})
	env.RegisterTest("boolean", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		_, ok := v.(bool)
		return ok, nil
	})
	env.RegisterTest("true", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		b, ok := v.(bool)
		return ok && b, nil
	})
	env.RegisterTest("false", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		b, ok := v.(bool)
		return ok && !b, nil
	})
	env.RegisterTest("odd", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		f, ok := ToNumber(v)
		return ok && int64(f)%2 != 0, nil
	})
	env.RegisterTest("even", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		f, ok := ToNumber(v)
		return ok && int64(f)%2 == 0, nil
	})
	env.RegisterTest("divisibleby", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		if len(args) == 0 {
			return false, nil
		}
		f, ok := ToNumber(v)
		d, ok2 := ToNumber(args[0])
		if !ok || !ok2 || d == 0 {
			return false, nil
		}
		return int64(f)%int64(d) == 0, nil
	})
	env.RegisterTest("string", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		switch v.(type) {
		case string, SafeString:
			return true, nil
		}
		return false, nil
	})
	env.RegisterTest("number", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		switch v.(type) {
		case float64, int, int64:
			return true, nil
		}
		return false, nil
	})
	env.RegisterTest("mapping", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		_, ok := v.(map[string]interface{})
		return ok, nil
	})
	env.RegisterTest("iterable", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		items, _ := FromIterator(v)
		return items != nil || isIterableType(v), nil
	})
	env.RegisterTest("sequence", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		switch v.(type) {
		case []interface{}, string, SafeString:
			return true, nil
		}
		return false, nil
	})
	env.RegisterTest("sameas", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		if len(args) == 0 {
			return false, nil
		}
		return v == args[0], nil
	})
	env.RegisterTest("equalto", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		if len(args) == 0 {
			return false, nil
		}
		return Equal(v, args[0]), nil
	})
	env.RegisterTest("eq", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		if len(args) == 0 {
			return false, nil
		}
		return Equal(v, args[0]), nil
	})
	env.RegisterTest("greaterthan", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		if len(args) == 0 {
			return false, nil
		}
		c, err := Compare(v, args[0])
		return c > 0, err
	})
	env.RegisterTest("lessthan", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		if len(args) == 0 {
			return false, nil
		}
		c, err := Compare(v, args[0])
		return c < 0, err
	})
	env.RegisterTest("callable", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		switch v.(type) {
		case *Macro, callerValue:
			return true, nil
		}
		return false, nil
	})
	env.RegisterTest("lower", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		s := ToString(v)
		return s == strings.ToLower(s), nil
	})
	env.RegisterTest("upper", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		s := ToString(v)
		return s == strings.ToUpper(s), nil
	})
	env.RegisterTest("in", func(env *Environment, v interface{}, args []interface{}) (bool, error) {
		if len(args) == 0 {
			return false, nil
		}
		return InOperator(v, args[0]), nil
	})
}

func isIterableType(v interface{}) bool {
	switch v.(type) {
	case string, SafeString, map[string]interface{}, []interface{}:
		return true
	}
	return false
}
