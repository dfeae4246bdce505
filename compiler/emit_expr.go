package compiler

import (
	"fmt"

	"github.com/deicod/gojinja/frame"
	"github.com/deicod/gojinja/nodes"
	"github.com/deicod/gojinja/runtime"
)

// syncExpr adapts a plain (rc, ctx, fr) -> (value, error) function into an
// ExprProc that calls its callback immediately, for the large majority of
// expression kinds that never suspend.
func syncExpr(f func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame) (interface{}, error)) runtime.ExprProc {
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
		v, err := f(rc, ctx, fr)
		cb(v, err)
	}
}

func litExpr(v interface{}) runtime.ExprProc {
	return syncExpr(func(*runtime.RenderCtx, *runtime.Context, *frame.Frame) (interface{}, error) { return v, nil })
}

// compileExpr compiles an expression node into an ExprProc.
func compileExpr(n nodes.Node, cc *cctx) runtime.ExprProc {
	switch x := n.(type) {
	case nil:
		return litExpr(runtime.Undefined{})

	case *nodes.Literal:
		return litExpr(x.Value)

	case *nodes.Symbol:
		name := x.Name
		env := cc.env
		line, col := x.Span().Line, x.Span().Col
		return syncExpr(func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame) (interface{}, error) {
			v := runtime.ContextOrFrameLookup(name, ctx, fr, env)
			return runtime.EnsureDefined(env, v, line, col, rc.Template)
		})

	case *nodes.Group:
		return compileExpr(x.Inner, cc)

	case *nodes.Capture:
		body := compileBody(x.Body, cc)
		return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
			rc.PushBuffer()
			body(rc, ctx, fr, func(err error) {
				out := rc.PopBuffer()
				if err != nil {
					cb(nil, err)
					return
				}
				cb(out, nil)
			})
		}

	case *nodes.ArrayNode:
		items := compileExprList(x.Items, cc)
		return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
			evalList(items, rc, ctx, fr, func(vals []interface{}, err error) { cb(vals, err) })
		}

	case *nodes.Dict:
		return compileDict(x, cc)

	case *nodes.KeywordArgs:
		return compileDict(x.Dict, cc)

	case *nodes.UnaryOp:
		inner := compileExpr(x.Expr, cc)
		op := x.Op
		line, col := x.Span().Line, x.Span().Col
		return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
			inner(rc, ctx, fr, func(v interface{}, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				switch op {
				case nodes.OpNot:
					cb(!runtime.Truthy(v), nil)
				case nodes.OpNeg:
					f, ok := runtime.ToNumber(v)
					if !ok {
						cb(nil, runtime.HandleError(fmt.Errorf("bad operand for unary -: %T", v), rc.Template, line, col))
						return
					}
					cb(-f, nil)
				default:
					f, _ := runtime.ToNumber(v)
					cb(f, nil)
				}
			})
		}

	case *nodes.BinOp:
		return compileBinOp(x, cc)

	case *nodes.Compare:
		return compileCompare(x, cc)

	case *nodes.In:
		left := compileExpr(x.Left, cc)
		right := compileExpr(x.Right, cc)
		negate := x.Negate
		return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
			left(rc, ctx, fr, func(lv interface{}, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				right(rc, ctx, fr, func(rv interface{}, err error) {
					if err != nil {
						cb(nil, err)
						return
					}
					result := runtime.InOperator(lv, rv)
					if negate {
						result = !result
					}
					cb(result, nil)
				})
			})
		}

	case *nodes.Is:
		return compileIs(x, cc)

	case *nodes.InlineIf:
		cond := compileExpr(x.Cond, cc)
		body := compileExpr(x.Body, cc)
		var elseE runtime.ExprProc
		if x.Else != nil {
			elseE = compileExpr(x.Else, cc)
		}
		return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
			cond(rc, ctx, fr, func(cv interface{}, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				if runtime.Truthy(cv) {
					body(rc, ctx, fr, cb)
					return
				}
				if elseE == nil {
					cb(runtime.Undefined{}, nil)
					return
				}
				elseE(rc, ctx, fr, cb)
			})
		}

	case *nodes.LookupVal:
		target := compileExpr(x.Target, cc)
		val := compileExpr(x.Val, cc)
		line, col := x.Span().Line, x.Span().Col
		env := cc.env
		return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
			target(rc, ctx, fr, func(tv interface{}, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				val(rc, ctx, fr, func(vv interface{}, err error) {
					if err != nil {
						cb(nil, err)
						return
					}
					res := runtime.MemberLookup(tv, vv)
					res, err = runtime.EnsureDefined(env, res, line, col, rc.Template)
					cb(res, err)
				})
			})
		}

	case *nodes.FunCall:
		return compileFunCall(x, cc)

	case *nodes.Filter:
		return compileFilter(x, cc)

	case *nodes.FilterAsync:
		return compileFilterAsync(x, cc)

	default:
		return litExpr(runtime.Undefined{})
	}
}

func compileExprList(list nodes.NodeList, cc *cctx) []runtime.ExprProc {
	out := make([]runtime.ExprProc, len(list))
	for i, e := range list {
		out[i] = compileExpr(e, cc)
	}
	return out
}

// evalList evaluates a slice of ExprProcs strictly in order (left-to-right
// evaluation order, matching source order for argument lists and array
// literals) and hands the results to cb.
func evalList(list []runtime.ExprProc, rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb func([]interface{}, error)) {
	out := make([]interface{}, len(list))
	var run func(i int)
	run = func(i int) {
		if i >= len(list) {
			cb(out, nil)
			return
		}
		list[i](rc, ctx, fr, func(v interface{}, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			out[i] = v
			run(i + 1)
		})
	}
	run(0)
}

func compileDict(d *nodes.Dict, cc *cctx) runtime.ExprProc {
	keys := make([]string, len(d.Pairs))
	vals := make([]runtime.ExprProc, len(d.Pairs))
	for i, p := range d.Pairs {
		if lit, ok := p.Key.(*nodes.Literal); ok {
			keys[i] = fmt.Sprintf("%v", lit.Value)
		}
		vals[i] = compileExpr(p.Value, cc)
	}
	isKeywords := d.IsKeywords
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
		evalList(vals, rc, ctx, fr, func(results []interface{}, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			m := make(map[string]interface{}, len(keys))
			for i, k := range keys {
				m[k] = results[i]
			}
			if isKeywords {
				cb(runtime.MakeKeywordArgs(m), nil)
				return
			}
			cb(m, nil)
		})
	}
}

func compileBinOp(x *nodes.BinOp, cc *cctx) runtime.ExprProc {
	left := compileExpr(x.Left, cc)
	op := x.Op
	line, col := x.Span().Line, x.Span().Col

	if op == nodes.OpOr || op == nodes.OpAnd {
		right := compileExpr(x.Right, cc)
		isOr := op == nodes.OpOr
		return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
			left(rc, ctx, fr, func(lv interface{}, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				truthy := runtime.Truthy(lv)
				if (isOr && truthy) || (!isOr && !truthy) {
					cb(lv, nil)
					return
				}
				right(rc, ctx, fr, cb)
			})
		}
	}

	right := compileExpr(x.Right, cc)
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
		left(rc, ctx, fr, func(lv interface{}, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			right(rc, ctx, fr, func(rv interface{}, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				result, err := applyArith(op, lv, rv)
				if err != nil {
					cb(nil, runtime.HandleError(err, rc.Template, line, col))
					return
				}
				cb(result, nil)
			})
		})
	}
}

func applyArith(op string, lv, rv interface{}) (interface{}, error) {
	switch op {
	case nodes.OpAdd:
		return runtime.Add(lv, rv)
	case nodes.OpSub:
		return runtime.Sub(lv, rv)
	case nodes.OpMul:
		return runtime.Mul(lv, rv)
	case nodes.OpDiv:
		return runtime.Div(lv, rv)
	case nodes.OpFloorDiv:
		return runtime.FloorDiv(lv, rv)
	case nodes.OpMod:
		return runtime.Mod(lv, rv)
	case nodes.OpPow:
		return runtime.Pow(lv, rv)
	case nodes.OpConcat:
		return runtime.Concat(lv, rv), nil
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

func compileCompare(x *nodes.Compare, cc *cctx) runtime.ExprProc {
	first := compileExpr(x.Expr, cc)
	rest := make([]runtime.ExprProc, len(x.Ops))
	types := make([]string, len(x.Ops))
	for i, op := range x.Ops {
		rest[i] = compileExpr(op.Expr, cc)
		types[i] = op.Type
	}
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
		first(rc, ctx, fr, func(prev interface{}, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			var step func(i int, prev interface{})
			step = func(i int, prev interface{}) {
				if i >= len(rest) {
					cb(true, nil)
					return
				}
				rest[i](rc, ctx, fr, func(cur interface{}, err error) {
					if err != nil {
						cb(nil, err)
						return
					}
					ok, err := evalCompareOp(types[i], prev, cur)
					if err != nil {
						cb(nil, err)
						return
					}
					if !ok {
						cb(false, nil)
						return
					}
					step(i+1, cur)
				})
			}
			step(0, prev)
		})
	}
}

func evalCompareOp(op string, a, b interface{}) (bool, error) {
	if op == "==" {
		return runtime.Equal(a, b), nil
	}
	if op == "!=" {
		return !runtime.Equal(a, b), nil
	}
	c, err := runtime.Compare(a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case ">":
		return c > 0, nil
	case "<=":
		return c <= 0, nil
	case ">=":
		return c >= 0, nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}
}

func compileIs(x *nodes.Is, cc *cctx) runtime.ExprProc {
	left := compileExpr(x.Left, cc)
	args := compileExprList(x.Args, cc)
	name := x.Name
	negate := x.Negate
	env := cc.env
	line, col := x.Span().Line, x.Span().Col
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.ExprCallback) {
		left(rc, ctx, fr, func(lv interface{}, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			evalList(args, rc, ctx, fr, func(argVals []interface{}, err error) {
				if err != nil {
					cb(nil, err)
					return
				}
				test, ok := env.Test(name)
				if !ok {
					cb(nil, runtime.HandleError(fmt.Errorf("no test named %q", name), rc.Template, line, col))
					return
				}
				result, err := test(env, lv, argVals)
				if err != nil {
					cb(nil, runtime.HandleError(err, rc.Template, line, col))
					return
				}
				if negate {
					result = !result
				}
				cb(result, nil)
			})
		})
	}
}
