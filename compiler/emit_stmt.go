package compiler

import (
	"fmt"

	"github.com/deicod/gojinja/frame"
	"github.com/deicod/gojinja/nodes"
	"github.com/deicod/gojinja/runtime"
)

// compileStmt compiles one statement node into a Proc. A nil return means
// the statement has no render-time effect (e.g. Extends, already resolved
// eagerly by Environment.resolveExtends).
func compileStmt(n nodes.Node, cc *cctx) runtime.Proc {
	switch s := n.(type) {
	case *nodes.TemplateData:
		data := s.Data
		return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
			rc.Write(data)
			cb(nil)
		}

	case *nodes.Output:
		return compileOutput(s, cc)

	case *nodes.Extends:
		return nil

	case *nodes.Block:
		return compileBlockStmt(s, cc)

	case *nodes.If:
		return compileIf(s, cc)

	case *nodes.For:
		return compileFor(s, cc)

	case *nodes.Set:
		return compileSet(s, cc)

	case *nodes.Capture:
		return compileCapture(s, cc)

	case *nodes.With:
		return compileWith(s, cc)

	case *nodes.Macro:
		return compileMacroDecl(s, cc)

	case *nodes.Call:
		return compileCallStmt(s, cc)

	case *nodes.Switch:
		return compileSwitch(s, cc)

	case *nodes.Include:
		return compileInclude(s, cc)

	case *nodes.Import:
		return compileImport(s, cc)

	case *nodes.FromImport:
		return compileFromImport(s, cc)

	case *nodes.CallExtension:
		return compileCallExtension(s, cc)

	case *nodes.Filter:
		return compileFilterStmt(s, cc)

	default:
		return runtime.NoopProc
	}
}

// compileFilterStmt handles `{% filter name(args) %}body{% endfilter %}`,
// which the parser hands back as a bare Filter node used as a statement
// (its Args[0] is the block's own captured body). It is compiled through
// the same expression path as a piped `|` filter and its result written to
// the output, mirroring compileOutput.
func compileFilterStmt(s *nodes.Filter, cc *cctx) runtime.Proc {
	expr := compileExpr(s, cc)
	autoescape := cc.env.Autoescape()
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		expr(rc, ctx, fr, func(v interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			rc.Write(runtime.SuppressValue(v, autoescape))
			cb(nil)
		})
	}
}

func compileOutput(s *nodes.Output, cc *cctx) runtime.Proc {
	parts := compileExprList(s.Children, cc)
	autoescape := cc.env.Autoescape()
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		evalList(parts, rc, ctx, fr, func(vals []interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			for _, v := range vals {
				rc.Write(runtime.SuppressValue(v, autoescape))
			}
			cb(nil)
		})
	}
}

// compileBlockStmt is what runs at the point a `{% block %}` appears in a
// body: it dispatches through the Context's registered override chain
// rather than always running its own body, so a child template's override
// takes effect even though the parent's body (the one actually executing)
// is what lexically contains this statement (spec §4.5).
func compileBlockStmt(s *nodes.Block, cc *cctx) runtime.Proc {
	name := s.Name
	ownBody := compileBlockBody(s, cc)
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		if p, ok := ctx.Block(name); ok {
			p(rc, ctx, fr, cb)
			return
		}
		ownBody(rc, ctx, fr, cb)
	}
}

func compileIf(s *nodes.If, cc *cctx) runtime.Proc {
	cond := compileExpr(s.Cond, cc)
	body := compileBody(s.Body, cc)
	elseBody := compileBody(s.Else, cc)
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		cond(rc, ctx, fr, func(cv interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			if runtime.Truthy(cv) {
				body(rc, ctx, fr, cb)
				return
			}
			elseBody(rc, ctx, fr, cb)
		})
	}
}

// compileFor desugars at compile time into the single-name, tuple-unpack,
// or key/value-over-map shapes named in spec §4.5, iterating strictly
// sequentially (AsyncEach semantics) so suspension points inside the body
// preserve source order; a loop flagged AsyncAll (the parser sets it for
// the `parallel` modifier) instead renders every item concurrently and
// reassembles output in order.
func compileFor(s *nodes.For, cc *cctx) runtime.Proc {
	array := compileExpr(s.Array, cc)
	bodyFr := compileBody(s.Body, cc)
	elseBody := compileBody(s.Else, cc)
	targets := s.Targets
	asyncAll := s.AsyncAll

	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		array(rc, ctx, fr, func(av interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			items, isMap := runtime.FromIterator(av)
			if len(items) == 0 {
				elseBody(rc, ctx, fr, cb)
				return
			}
			bindLoop := func(childFr *frame.Frame, item interface{}, idx int) {
				bindForTargets(childFr, targets, item, isMap)
				childFr.Set("loop", buildLoopInfo(idx, len(items)), false)
			}
			if asyncAll {
				// Each iteration renders into its own forked RenderCtx: the
				// render funcs run concurrently (runtime.AsyncAll launches
				// them via errgroup.Go), so sharing rc's buffer stack across
				// goroutines would race on Push/PopBuffer.
				renderItem := func(item interface{}, idx int) (string, error) {
					itemRC := rc.Fork()
					childFr := fr.Push(false)
					bindLoop(childFr, item, idx)
					err := runtime.RunProc(bodyFr, itemRC, ctx, childFr)
					return itemRC.Output(), err
				}
				runtime.AsyncAll(items, renderItem)(rc, ctx, fr, cb)
				return
			}
			proc := runtime.AsyncEach(items, func(item interface{}, idx int, itemCb runtime.Callback) {
				childFr := fr.Push(false)
				bindLoop(childFr, item, idx)
				bodyFr(rc, ctx, childFr, itemCb)
			})
			proc(rc, ctx, fr, cb)
		})
	}
}

func bindForTargets(fr *frame.Frame, targets []string, item interface{}, isMap bool) {
	if len(targets) == 1 {
		fr.Set(targets[0], item, false)
		return
	}
	pair, _ := item.([]interface{})
	for i, t := range targets {
		if i < len(pair) {
			fr.Set(t, pair[i], false)
		} else {
			fr.Set(t, runtime.Undefined{Name: t}, false)
		}
	}
}

func buildLoopInfo(idx, length int) map[string]interface{} {
	return map[string]interface{}{
		"index":     float64(idx + 1),
		"index0":    float64(idx),
		"revindex":  float64(length - idx),
		"revindex0": float64(length - idx - 1),
		"first":     idx == 0,
		"last":      idx == length-1,
		"length":    float64(length),
	}
}

func compileSet(s *nodes.Set, cc *cctx) runtime.Proc {
	targetNames := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		if sym, ok := t.(*nodes.Symbol); ok {
			targetNames[i] = sym.Name
		}
	}
	if s.Value != nil {
		value := compileExpr(s.Value, cc)
		return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
			value(rc, ctx, fr, func(v interface{}, err error) {
				if err != nil {
					cb(err)
					return
				}
				for _, name := range targetNames {
					fr.Set(name, v, true)
					if fr.IsTopLevel() {
						ctx.Exported[name] = v
					}
				}
				cb(nil)
			})
		}
	}

	body := compileBody(s.Body, cc)
	filterName := s.Filter
	env := cc.env
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		rc.PushBuffer()
		body(rc, ctx, fr, func(err error) {
			out := rc.PopBuffer()
			if err != nil {
				cb(err)
				return
			}
			var value interface{} = out
			if filterName != "" {
				if f, ok := env.Filter(filterName); ok {
					v, ferr := f(env, out, nil, nil)
					if ferr != nil {
						cb(runtime.HandleError(ferr, rc.Template, s.Span().Line, s.Span().Col))
						return
					}
					value = v
				}
			}
			for _, name := range targetNames {
				fr.Set(name, value, true)
				if fr.IsTopLevel() {
					ctx.Exported[name] = value
				}
			}
			cb(nil)
		})
	}
}

func compileCapture(s *nodes.Capture, cc *cctx) runtime.Proc {
	body := compileBody(s.Body, cc)
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		rc.PushBuffer()
		body(rc, ctx, fr, func(err error) {
			out := rc.PopBuffer()
			if err != nil {
				cb(err)
				return
			}
			rc.Write(out)
			cb(nil)
		})
	}
}

func compileWith(s *nodes.With, cc *cctx) runtime.Proc {
	values := compileExprList(s.Values, cc)
	names := s.Names
	body := compileBody(s.Body, cc)
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		evalList(values, rc, ctx, fr, func(vals []interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			childFr := fr.Push(false)
			for i, n := range names {
				if i < len(vals) {
					childFr.Set(n, vals[i], false)
				}
			}
			body(rc, ctx, childFr, cb)
		})
	}
}

func compileMacroDecl(s *nodes.Macro, cc *cctx) runtime.Proc {
	body := compileBody(s.Body, cc)
	defaults := compileExprList(s.Defaults, cc)
	argNames := s.Args
	name := s.Name
	numDefaults := len(s.Defaults)
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		evalList(defaults, rc, ctx, fr, func(defaultVals []interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			defMap := map[string]interface{}{}
			offset := len(argNames) - numDefaults
			for i, v := range defaultVals {
				defMap[argNames[offset+i]] = v
			}
			m := &runtime.Macro{Name: name, ArgNames: argNames, Defaults: defMap, Body: body}
			fr.Set(name, m, false)
			if fr.IsTopLevel() {
				ctx.Exported[name] = m
			}
			cb(nil)
		})
	}
}

// compileCallStmt handles `{% call macro(args) %}body{% endcall %}`: the
// body becomes a bound `caller` Proc passed alongside the macro's own args.
func compileCallStmt(s *nodes.Call, cc *cctx) runtime.Proc {
	callerBody := compileBody(s.Caller.Body, cc)
	callerDefaults := compileExprList(s.Caller.Defaults, cc)
	callerArgs := s.Caller.Args
	callee := compileExpr(s.Call.Callee, cc)
	args := compileExprList(s.Call.Args, cc)
	line, col := s.Span().Line, s.Span().Col

	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		callee(rc, ctx, fr, func(calleeVal interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			evalList(args, rc, ctx, fr, func(vals []interface{}, err error) {
				if err != nil {
					cb(err)
					return
				}
				evalList(callerDefaults, rc, ctx, fr, func(defVals []interface{}, err error) {
					if err != nil {
						cb(err)
						return
					}
					defMap := map[string]interface{}{}
					offset := len(callerArgs) - len(defVals)
					for i, v := range defVals {
						defMap[callerArgs[offset+i]] = v
					}
					callerFr := fr
					callerProc := func(crc *runtime.RenderCtx, cctx2 *runtime.Context, cfr *frame.Frame, ccb runtime.Callback) {
						innerFr := callerFr.Push(true)
						for _, n := range callerArgs {
							if v, ok := defMap[n]; ok {
								innerFr.Set(n, v, false)
							} else {
								innerFr.Set(n, runtime.Undefined{Name: n}, false)
							}
						}
						callerBody(crc, cctx2, innerFr, ccb)
					}
					m, ok := calleeVal.(*runtime.Macro)
					if !ok {
						cb(runtime.HandleError(fmt.Errorf("value of type %T is not callable with a block", calleeVal), rc.Template, line, col))
						return
					}
					pos, kwargs := runtime.SplitArgs(vals)
					out, err := m.Invoke(rc, ctx, fr, pos, kwargs, callerProc)
					if err != nil {
						cb(runtime.HandleError(err, rc.Template, line, col))
						return
					}
					rc.Write(string(out))
					cb(nil)
				})
			})
		})
	}
}

// compileCallExtension invokes a host-registered extension tag: it resolves
// env.getExtension(extName)[prop] and calls it with the evaluated args, one
// content thunk per captured content block, and the tag's autoescape flag
// (spec §4.5). The async variant (CallExtensionAsync) resolves through a
// callback instead of a direct return, matching the suspension-point list
// in spec §4.3.
func compileCallExtension(s *nodes.CallExtension, cc *cctx) runtime.Proc {
	extName := s.ExtName
	prop := s.Prop
	args := compileExprList(s.Args, cc)
	content := compileBody(s.ContentArg, cc)
	async := s.Async
	autoescape := s.Autoescape
	line, col := s.Span().Line, s.Span().Col

	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		ext, ok := cc.env.GetExtension(extName)
		if !ok {
			cb(runtime.HandleError(fmt.Errorf("no extension registered for %q", extName), rc.Template, line, col))
			return
		}
		contentThunks := []func() (string, error){
			func() (string, error) {
				rc.PushBuffer()
				err := runtime.RunProc(content, rc, ctx, fr)
				return rc.PopBuffer(), err
			},
		}
		evalList(args, rc, ctx, fr, func(vals []interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			if async {
				fn, ok := ext.AsyncProps[prop]
				if !ok {
					cb(runtime.HandleError(fmt.Errorf("extension %q has no async property %q", extName, prop), rc.Template, line, col))
					return
				}
				fn(cc.env, vals, contentThunks, autoescape, func(v interface{}, ferr error) {
					if ferr != nil {
						cb(runtime.HandleError(ferr, rc.Template, line, col))
						return
					}
					rc.Write(runtime.SuppressValue(v, autoescape))
					cb(nil)
				})
				return
			}
			fn, ok := ext.Props[prop]
			if !ok {
				cb(runtime.HandleError(fmt.Errorf("extension %q has no property %q", extName, prop), rc.Template, line, col))
				return
			}
			v, ferr := fn(cc.env, vals, contentThunks, autoescape)
			if ferr != nil {
				cb(runtime.HandleError(ferr, rc.Template, line, col))
				return
			}
			rc.Write(runtime.SuppressValue(v, autoescape))
			cb(nil)
		})
	}
}
