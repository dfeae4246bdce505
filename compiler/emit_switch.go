package compiler

import (
	"github.com/deicod/gojinja/frame"
	"github.com/deicod/gojinja/nodes"
	"github.com/deicod/gojinja/runtime"
)

// compileSwitch implements `{% switch %}{% case %}...{% endswitch %}`.
//
// Open question, decided here: a `{% case %}` arm with an empty body is
// fall-through, not a no-op — matching statement, C-style switch rather
// than Python-style matching. Once a case's Expr matches, execution walks
// forward through any immediately following empty-bodied cases without
// re-testing their Expr, running the first non-empty body it finds (or
// falling all the way to `{% default %}` if every remaining case is
// empty). A non-matching case is still skipped entirely, same as always.
func compileSwitch(s *nodes.Switch, cc *cctx) runtime.Proc {
	expr := compileExpr(s.Expr, cc)
	caseExprs := make([]runtime.ExprProc, len(s.Cases))
	caseBodies := make([]runtime.Proc, len(s.Cases))
	caseEmpty := make([]bool, len(s.Cases))
	for i, c := range s.Cases {
		caseExprs[i] = compileExpr(c.Expr, cc)
		caseBodies[i] = compileBody(c.Body, cc)
		caseEmpty[i] = len(c.Body) == 0
	}
	defaultBody := compileBody(s.Default, cc)

	return func(rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
		expr(rc, ctx, fr, func(sv interface{}, err error) {
			if err != nil {
				cb(err)
				return
			}
			var findMatch func(i int)
			findMatch = func(i int) {
				if i >= len(caseExprs) {
					defaultBody(rc, ctx, fr, cb)
					return
				}
				caseExprs[i](rc, ctx, fr, func(cv interface{}, err error) {
					if err != nil {
						cb(err)
						return
					}
					if !runtime.Equal(sv, cv) {
						findMatch(i + 1)
						return
					}
					runFrom(i, caseBodies, caseEmpty, defaultBody, rc, ctx, fr, cb)
				})
			}
			findMatch(0)
		})
	}
}

// runFrom walks forward from a matched case index through consecutive
// empty bodies, running the first non-empty one it finds.
func runFrom(i int, bodies []runtime.Proc, empty []bool, defaultBody runtime.Proc, rc *runtime.RenderCtx, ctx *runtime.Context, fr *frame.Frame, cb runtime.Callback) {
	for i < len(bodies) && empty[i] {
		i++
	}
	if i >= len(bodies) {
		defaultBody(rc, ctx, fr, cb)
		return
	}
	bodies[i](rc, ctx, fr, cb)
}
