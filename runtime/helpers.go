package runtime

import (
	"fmt"

	"github.com/deicod/gojinja/frame"
	"golang.org/x/sync/errgroup"
)

// SuppressValue renders v for `{{ }}` output, applying HTML-escaping
// unless autoescape is off or v is already SafeString (spec §4.6).
func SuppressValue(v interface{}, autoescape bool) string {
	if !autoescape {
		return ToString(v)
	}
	return string(Escape(v))
}

// ContextOrFrameLookup resolves a Symbol: innermost Frame scope first, then
// the render Context's globals, then the Environment's globals, finally
// Undefined (spec §4.6 contextOrFrameLookup / §4.4 Frame precedence).
func ContextOrFrameLookup(name string, ctx *Context, fr *frame.Frame, env *Environment) interface{} {
	if v, ok := fr.Lookup(name); ok {
		return v
	}
	if ctx != nil {
		if v, ok := ctx.Globals[name]; ok {
			return v
		}
	}
	if env != nil {
		if v, ok := env.Global(name); ok {
			return v
		}
	}
	return Undefined{Name: name}
}

// CallWrap invokes callee (a *Macro, callerValue, or plain Go func taking
// and returning interface{}/error) with positional args and keyword kwargs,
// per spec §4.6's call contract.
func CallWrap(callee interface{}, rc *RenderCtx, ctx *Context, fr *frame.Frame, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	switch c := callee.(type) {
	case *Macro:
		return c.Invoke(rc, ctx, fr, args, kwargs, nil)
	case callerValue:
		return CallCaller(c, rc, ctx, fr)
	case func(args []interface{}, kwargs map[string]interface{}) (interface{}, error):
		return c(args, kwargs)
	case Undefined:
		return nil, fmt.Errorf("%q is undefined and cannot be called", c.Name)
	default:
		return nil, fmt.Errorf("value of type %T is not callable", callee)
	}
}

// HandleError is the single point compiled Procs funnel runtime errors
// through: it attaches template/line/column to a bare error (spec §4.6
// handleError, §7 wrapping rule), leaving an already-spanned *Error as is.
func HandleError(err error, template string, line, col int) error {
	return WrapError(err, template, line, col)
}

// AsyncEach runs body once per item in items strictly sequentially, only
// starting item i+1 after item i's callback fires with no error — the
// ordering spec §4.5/§5 requires for a plain (non-parallel) `{% for %}`
// over an async-filter-bearing array.
func AsyncEach(items []interface{}, body func(item interface{}, idx int, cb Callback)) Proc {
	return func(rc *RenderCtx, ctx *Context, fr *frame.Frame, cb Callback) {
		var run func(i int)
		run = func(i int) {
			if i >= len(items) {
				cb(nil)
				return
			}
			body(items[i], i, func(err error) {
				if err != nil {
					cb(err)
					return
				}
				run(i + 1)
			})
		}
		run(0)
	}
}

// AsyncAll runs body concurrently for every item, then reassembles each
// item's captured output in original order before appending it to rc — the
// spec §4.5 `{% asyncAll %}` ordering guarantee: concurrent execution,
// deterministic output order.
func AsyncAll(items []interface{}, render func(item interface{}, idx int) (string, error)) Proc {
	return func(rc *RenderCtx, ctx *Context, fr *frame.Frame, cb Callback) {
		results := make([]string, len(items))
		g := new(errgroup.Group)
		for i, item := range items {
			i, item := i, item
			g.Go(func() error {
				out, err := render(item, i)
				if err != nil {
					return err
				}
				results[i] = out
				return nil
			})
		}
		err := g.Wait()
		for _, s := range results {
			rc.Write(s)
		}
		cb(err)
	}
}
