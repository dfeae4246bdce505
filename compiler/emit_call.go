package compiler

import (
	"fmt"

	"github.com/deicod/gojinja/frame"
	"github.com/deicod/gojinja/nodes"
	"github.com/deicod/gojinja/runtime"
)

// compileFunCall handles both ordinary calls (macro, namespace member) and
// the `super()` intrinsic, recognised here rather than as a dedicated
// parser production since it is lexically indistinguishable from any other
// zero-arg call until resolved against the enclosing block (spec §4.5).
func compileFunCall(x *nodes.FunCall, cc *cctx) runtime.ExprProc {
	if sym, ok := x.Callee.(*nodes.Symbol); ok && sym.Name == "super" && len(x.Args) == 0 {
		return compileSuperCall(x, cc)
	}

	callee := compileExpr(x.Callee, cc)
	args := compileExprList(x.Args, cc)
	line, col := x.Span().Line, x.Span().Col

	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
		callee(rc, ctx, fr, func(calleeVal interface{}, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			evalList(args, rc, ctx, fr, func(vals []interface{}, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				pos, kwargs := runtime.SplitArgs(vals)
				result, err := runtime.CallWrap(calleeVal, rc, ctx, fr, pos, kwargs)
				if err != nil {
					cb(nil, runtime.HandleError(err, rc.Template, line, col))
					return
				}
				cb(result, nil)
			})
		})
	}
}

// compileSuperCall resolves `super()` against the block currently being
// compiled and captures the ancestor implementation's rendered output.
func compileSuperCall(x *nodes.FunCall, cc *cctx) runtime.ExprProc {
	blockName := cc.currentBlock()
	line, col := x.Span().Line, x.Span().Col
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
		if blockName == "" {
			cb(nil, runtime.HandleError(fmt.Errorf("'super' called outside of a block"), rc.Template, line, col))
			return
		}
		superProc, err := ctx.GetSuper(blockName)
		if err != nil {
			cb(nil, runtime.HandleError(err, rc.Template, line, col))
			return
		}
		rc.PushBuffer()
		superProc(rc, ctx, fr, func(err error) {
			out := rc.PopBuffer()
			if err != nil {
				cb(nil, err)
				return
			}
			cb(runtime.SafeString(out), nil)
		})
	}
}

// compileFilter applies a synchronous filter. Args[0] is always the piped
// value expression; any remaining expressions are the filter's own
// arguments, with a trailing KeywordArgs bundle split out per SplitArgs.
func compileFilter(x *nodes.Filter, cc *cctx) runtime.ExprProc {
	value := compileExpr(x.Args[0], cc)
	extra := compileExprList(x.Args[1:], cc)
	name := x.Name
	env := cc.env
	line, col := x.Span().Line, x.Span().Col
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
		value(rc, ctx, fr, func(v interface{}, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			evalList(extra, rc, ctx, fr, func(vals []interface{}, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				pos, kwargs := runtime.SplitArgs(vals)
				f, ok := env.Filter(name)
				if !ok {
					cb(nil, runtime.HandleError(fmt.Errorf("no filter named %q", name), rc.Template, line, col))
					return
				}
				result, err := f(env, v, pos, kwargs)
				if err != nil {
					cb(nil, runtime.HandleError(err, rc.Template, line, col))
					return
				}
				cb(result, nil)
			})
		})
	}
}

// compileFilterAsync is the one expression-level true suspension point:
// it calls the registered AsyncFilter and only invokes cb from that
// filter's own callback, which may fire on another goroutine (spec §4.3).
func compileFilterAsync(x *nodes.FilterAsync, cc *cctx) runtime.ExprProc {
	value := compileExpr(x.Args[0], cc)
	extra := compileExprList(x.Args[1:], cc)
	name := x.Name
	env := cc.env
	line, col := x.Span().Line, x.Span().Col
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
		value(rc, ctx, fr, func(v interface{}, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			evalList(extra, rc, ctx, fr, func(vals []interface{}, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				pos, kwargs := runtime.SplitArgs(vals)
				f, ok := env.AsyncFilter(name)
				if !ok {
					cb(nil, runtime.HandleError(fmt.Errorf("no async filter named %q", name), rc.Template, line, col))
					return
				}
				f(env, v, pos, kwargs, func(result interface{}, err error) {
					if err != nil {
						cb(nil, runtime.HandleError(err, rc.Template, line, col))
						return
					}
					cb(result, nil)
				})
			})
		})
	}
}
