package runtime

import (
	"fmt"

	"github.com/deicod/gojinja/frame"
)

// KeywordArgs is the marshalled form of a call's trailing `name=value, ...`
// arguments (spec §3 FunCall invariant: a trailing Dict flagged IsKeywords
// becomes one of these rather than an ordinary positional dict value).
type KeywordArgs map[string]interface{}

// MakeKeywordArgs builds a KeywordArgs value from evaluated pairs, emitted
// by the compiler wherever a FunCall's argument list ends in keyword form.
func MakeKeywordArgs(pairs map[string]interface{}) KeywordArgs { return KeywordArgs(pairs) }

// IsKeywordArgs reports whether v is a marshalled keyword-argument bundle.
func IsKeywordArgs(v interface{}) bool {
	_, ok := v.(KeywordArgs)
	return ok
}

// GetKeywordArgs extracts the bundle's map, or nil if v is not one.
func GetKeywordArgs(v interface{}) map[string]interface{} {
	if k, ok := v.(KeywordArgs); ok {
		return map[string]interface{}(k)
	}
	return nil
}

// NumArgs reports how many of args are positional, i.e. excluding a
// trailing KeywordArgs bundle.
func NumArgs(args []interface{}) int {
	if len(args) > 0 && IsKeywordArgs(args[len(args)-1]) {
		return len(args) - 1
	}
	return len(args)
}

// SplitArgs separates a raw FunCall argument slice into positional values
// and a keyword map, per the NumArgs/IsKeywordArgs convention above.
func SplitArgs(args []interface{}) ([]interface{}, map[string]interface{}) {
	n := NumArgs(args)
	kwargs := map[string]interface{}{}
	if n < len(args) {
		kwargs = GetKeywordArgs(args[len(args)-1])
	}
	return args[:n], kwargs
}

// Macro is the callable value a compiled {% macro %} produces. Invoke binds positional and keyword arguments (falling back to
// Defaults, then Undefined) into a fresh isolated Frame and runs Body,
// returning the captured output marked safe (macro output is never
// re-escaped, matching the teacher's and spec's autoescape carve-out).
type Macro struct {
	Name     string
	ArgNames []string
	Defaults map[string]interface{}
	Body     Proc
	CallerIs bool // not set by the compiler; false for every compiled macro
}

// Invoke runs the macro against positional args and kwargs, optionally
// binding a `caller` Proc for `{% call %}` blocks.
func (m *Macro) Invoke(rc *RenderCtx, ctx *Context, outerFrame *frame.Frame, args []interface{}, kwargs map[string]interface{}, caller Proc) (SafeString, error) {
	fr := outerFrame.Push(true)
	for i, name := range m.ArgNames {
		if i < len(args) {
			fr.Set(name, args[i], false)
			continue
		}
		if v, ok := kwargs[name]; ok {
			fr.Set(name, v, false)
			continue
		}
		if v, ok := m.Defaults[name]; ok {
			fr.Set(name, v, false)
			continue
		}
		fr.Set(name, Undefined{Name: name}, false)
	}
	if caller != nil {
		fr.Set("caller", callerValue{caller}, false)
	}
	rc.PushBuffer()
	err := RunProc(m.Body, rc, ctx, fr)
	out := rc.PopBuffer()
	if err != nil {
		return "", err
	}
	return SafeString(out), nil
}

// callerValue wraps a {% call %} block's Proc so it can be invoked as
// `caller()` from within the called macro's body.
type callerValue struct{ proc Proc }

// CallCaller invokes a bound `caller` value, returning its captured output.
func CallCaller(v interface{}, rc *RenderCtx, ctx *Context, fr *frame.Frame) (SafeString, error) {
	cv, ok := v.(callerValue)
	if !ok {
		return "", fmt.Errorf("'caller' is not callable here")
	}
	rc.PushBuffer()
	err := RunProc(cv.proc, rc, ctx, fr)
	out := rc.PopBuffer()
	if err != nil {
		return "", err
	}
	return SafeString(out), nil
}
