package runtime

import "github.com/deicod/gojinja/frame"

// Callback is the continuation a Proc invokes when it finishes, carrying
// any error raised while executing the statement it compiles (spec §4.3's
// CPS suspension-point contract, collapsed here to plain Go closures since
// the compiler targets a closure tree rather than textual IR — see
// compiler.CompileSource).
type Callback func(error)

// ExprCallback is the continuation an ExprProc invokes with its computed
// value, or an error.
type ExprCallback func(interface{}, error)

// Proc is one compiled statement: render Body/Output nodes into rc's
// current buffer, consulting and possibly extending ctx and fr, then call
// cb exactly once. A Proc that contains no suspension point calls cb
// synchronously before returning; one that does (an async filter, an
// asyncEach/asyncAll loop, an async CallExtension) may call cb later, from
// another goroutine.
type Proc func(rc *RenderCtx, ctx *Context, fr *frame.Frame, cb Callback)

// ExprProc is one compiled expression: compute a value and hand it to cb.
type ExprProc func(rc *RenderCtx, ctx *Context, fr *frame.Frame, cb ExprCallback)

// RunProc runs p to completion synchronously, for callers (top-level
// Render, Include/Import resolution) that need a blocking result. It
// panics-free; any error from an async suspension is still delivered
// through the normal callback, just observed here via a blocking channel.
func RunProc(p Proc, rc *RenderCtx, ctx *Context, fr *frame.Frame) error {
	done := make(chan error, 1)
	p(rc, ctx, fr, func(err error) { done <- err })
	return <-done
}

// RunExprProc runs e to completion synchronously.
func RunExprProc(e ExprProc, rc *RenderCtx, ctx *Context, fr *frame.Frame) (interface{}, error) {
	type result struct {
		v   interface{}
		err error
	}
	done := make(chan result, 1)
	e(rc, ctx, fr, func(v interface{}, err error) { done <- result{v, err} })
	r := <-done
	return r.v, r.err
}

// Seq chains Procs so that each runs only after the previous one's
// callback fires with no error, matching the strictly sequential ordering
// spec §5 requires for a template body (as opposed to asyncAll's
// concurrent-but-reassembled ordering).
func Seq(procs ...Proc) Proc {
	return func(rc *RenderCtx, ctx *Context, fr *frame.Frame, cb Callback) {
		var run func(i int)
		run = func(i int) {
			if i >= len(procs) {
				cb(nil)
				return
			}
			procs[i](rc, ctx, fr, func(err error) {
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

// NoopProc does nothing and calls cb(nil) immediately.
func NoopProc(rc *RenderCtx, ctx *Context, fr *frame.Frame, cb Callback) { cb(nil) }
