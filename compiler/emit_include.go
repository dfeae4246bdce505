package compiler

import (
	"github.com/deicod/gojinja/frame"
	"github.com/deicod/gojinja/nodes"
	"github.com/deicod/gojinja/runtime"
)

// compileInclude implements `{% include %}`. Unlike `{% extends %}`, the
// named template is resolved lazily at render time (spec §4.5): the name
// expression may depend on loop variables or other render-time state.
func compileInclude(s *nodes.Include, cc *cctx) runtime.Proc {
	nameExpr := compileExpr(s.Template, cc)
	ignoreMissing := s.IgnoreMissing
	withContext := s.WithContext
	env := cc.env
	callerTemplate := cc.template
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		nameExpr(rc, ctx, fr, func(nv interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			name := runtime.ToString(nv)
			t, err := env.GetTemplate(name, callerTemplate)
			if err != nil {
				if ignoreMissing {
					cb(nil)
					return
				}
				cb(err)
				return
			}
			data := map[string]interface{}{}
			if withContext {
				for k, v := range ctx.Globals {
					data[k] = v
				}
			}
			out, err := t.Render(data)
			if err != nil {
				cb(err)
				return
			}
			rc.Write(out)
			cb(nil)
		})
	}
}

// compileImport implements `{% import "tpl" as ns %}`, binding the
// imported template's exported names into a map value accessible as
// `ns.name` (spec §4.5).
func compileImport(s *nodes.Import, cc *cctx) runtime.Proc {
	nameExpr := compileExpr(s.Template, cc)
	target := s.Target
	withContext := s.WithContext
	env := cc.env
	callerTemplate := cc.template
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		nameExpr(rc, ctx, fr, func(nv interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			name := runtime.ToString(nv)
			t, err := env.GetTemplate(name, callerTemplate)
			if err != nil {
				cb(err)
				return
			}
			data := map[string]interface{}{}
			if withContext {
				for k, v := range ctx.Globals {
					data[k] = v
				}
			}
			exported, err := t.GetExported(data)
			if err != nil {
				cb(err)
				return
			}
			fr.Set(target, exported, false)
			cb(nil)
		})
	}
}

// compileFromImport implements `{% from "tpl" import a, b as c %}`.
func compileFromImport(s *nodes.FromImport, cc *cctx) runtime.Proc {
	nameExpr := compileExpr(s.Template, cc)
	names := s.Names
	withContext := s.WithContext
	env := cc.env
	callerTemplate := cc.template
	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		nameExpr(rc, ctx, fr, func(nv interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			name := runtime.ToString(nv)
			t, err := env.GetTemplate(name, callerTemplate)
			if err != nil {
				cb(err)
				return
			}
			data := map[string]interface{}{}
			if withContext {
				for k, v := range ctx.Globals {
					data[k] = v
				}
			}
			exported, err := t.GetExported(data)
			if err != nil {
				cb(err)
				return
			}
			for _, imp := range names {
				v, ok := exported[imp.Name]
				if !ok {
					cb(runtime.NewError(runtime.RenderErrorKind, rc.Template, s.Span().Line, s.Span().Col,
						"cannot import %q: template %q does not export that name", imp.Name, name))
					return
				}
				fr.Set(imp.Alias, v, false)
			}
			cb(nil)
		})
	}
}
