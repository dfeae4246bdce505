// Package transformer rewrites a parsed AST so that async filter usages can
// be compiled into continuation-passing form (spec §4.3).
package transformer

import "github.com/deicod/gojinja/nodes"

// AsyncFilters names which filters are registered as async; the
// transformer only rewrites Filter nodes whose Name is present here.
type AsyncFilters map[string]bool

// tempCounter hands out fresh temporary names for FilterAsync results. It is
// local to one Transform call so output is deterministic per compile.
type tempCounter struct{ n int }

func (c *tempCounter) next() string {
	c.n++
	return tempName(c.n)
}

func tempName(n int) string {
	const digits = "0123456789"
	if n < 10 {
		return "t_" + string(digits[n])
	}
	buf := []byte{}
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return "t_" + string(buf)
}

// Transform walks root top-down and replaces each Filter node whose name is
// in async with a FilterAsync node carrying the same name and arguments and
// a fresh temporary name in its Symbol field; the FilterAsync node takes the
// Filter's place in the enclosing expression. An If or For whose condition
// or iterable contains such a rewrite is flagged Async. Expressions are
// searched in output tags, if conditions, for iterables, set values,
// filter-block arguments and extension-tag arguments, and statement bodies
// are searched recursively. Keyword-argument values, dict keys, a call's callee, the
// arguments of an `is` test, and the expressions of other statements
// (include/import targets, with values, macro defaults, call-block
// arguments, switch and case values) are not searched. Subtrees with no
// async filter usage are returned unchanged.
func Transform(root *nodes.Root, async AsyncFilters) *nodes.Root {
	if len(async) == 0 {
		return root
	}
	c := &tempCounter{}
	root.Children = rewriteBody(root.Children, async, c)
	return root
}

// rewriteBody rewrites each statement in a body in turn. A statement that
// contains an async filter has its expression subtree rewritten in place;
// control-flow statements recurse into their own bodies.
func rewriteBody(body nodes.NodeList, async AsyncFilters, c *tempCounter) nodes.NodeList {
	out := make(nodes.NodeList, len(body))
	for i, n := range body {
		out[i] = rewriteStmt(n, async, c)
	}
	return out
}

func rewriteStmt(n nodes.Node, async AsyncFilters, c *tempCounter) nodes.Node {
	switch s := n.(type) {
	case *nodes.Output:
		s.Children = rewriteExprList(s.Children, async, c)
		return s
	case *nodes.If:
		s.Cond, s.Async = rewriteExprFlag(s.Cond, async, c)
		s.Body = rewriteBody(s.Body, async, c)
		s.Else = rewriteBody(s.Else, async, c)
		return s
	case *nodes.For:
		s.Array, s.Async = rewriteExprFlag(s.Array, async, c)
		s.Body = rewriteBody(s.Body, async, c)
		s.Else = rewriteBody(s.Else, async, c)
		return s
	case *nodes.Block:
		s.Body = rewriteBody(s.Body, async, c)
		return s
	case *nodes.Macro:
		s.Body = rewriteBody(s.Body, async, c)
		return s
	case *nodes.Call:
		s.Caller.Body = rewriteBody(s.Caller.Body, async, c)
		return s
	case *nodes.With:
		s.Body = rewriteBody(s.Body, async, c)
		return s
	case *nodes.Capture:
		s.Body = rewriteBody(s.Body, async, c)
		return s
	case *nodes.Set:
		if s.Value != nil {
			s.Value, _ = rewriteExprFlag(s.Value, async, c)
		}
		s.Body = rewriteBody(s.Body, async, c)
		return s
	case *nodes.Switch:
		for i := range s.Cases {
			s.Cases[i].Body = rewriteBody(s.Cases[i].Body, async, c)
		}
		s.Default = rewriteBody(s.Default, async, c)
		return s
	case *nodes.Filter:
		// `{% filter %}...{% endfilter %}` is a statement-level Filter node
		// whose Args[0] is the captured body; recurse so async filters
		// nested inside still get flagged, even though the block's own
		// named filter always applies synchronously.
		for i, a := range s.Args {
			s.Args[i], _ = rewriteExprFlag(a, async, c)
		}
		return s
	case *nodes.CallExtension:
		s.Args = rewriteExprList(s.Args, async, c)
		s.ContentArg = rewriteBody(s.ContentArg, async, c)
		return s
	default:
		return n
	}
}

func rewriteExprList(list nodes.NodeList, async AsyncFilters, c *tempCounter) nodes.NodeList {
	out := make(nodes.NodeList, len(list))
	for i, e := range list {
		out[i], _ = rewriteExprFlag(e, async, c)
	}
	return out
}

// rewriteExprFlag rewrites e and reports whether it (or any subexpression)
// now contains a FilterAsync suspension point.
func rewriteExprFlag(e nodes.Node, async AsyncFilters, c *tempCounter) (nodes.Node, bool) {
	if e == nil {
		return nil, false
	}
	anyAsync := false
	switch x := e.(type) {
	case *nodes.Filter:
		for i, a := range x.Args {
			var got bool
			x.Args[i], got = rewriteExprFlag(a, async, c)
			anyAsync = anyAsync || got
		}
		if async[x.Name] {
			sym := c.next()
			fa := &nodes.FilterAsync{Name: x.Name, Args: x.Args, Symbol: sym}
			fa.Pos = x.Span()
			return fa, true
		}
		return x, anyAsync
	case *nodes.BinOp:
		var l, r bool
		x.Left, l = rewriteExprFlag(x.Left, async, c)
		x.Right, r = rewriteExprFlag(x.Right, async, c)
		return x, l || r
	case *nodes.UnaryOp:
		var got bool
		x.Expr, got = rewriteExprFlag(x.Expr, async, c)
		return x, got
	case *nodes.Compare:
		var got bool
		x.Expr, got = rewriteExprFlag(x.Expr, async, c)
		anyAsync = got
		for i := range x.Ops {
			var g2 bool
			x.Ops[i].Expr, g2 = rewriteExprFlag(x.Ops[i].Expr, async, c)
			anyAsync = anyAsync || g2
		}
		return x, anyAsync
	case *nodes.InlineIf:
		var a, b, cnd bool
		x.Cond, cnd = rewriteExprFlag(x.Cond, async, c)
		x.Body, a = rewriteExprFlag(x.Body, async, c)
		if x.Else != nil {
			x.Else, b = rewriteExprFlag(x.Else, async, c)
		}
		return x, a || b || cnd
	case *nodes.LookupVal:
		var a, b bool
		x.Target, a = rewriteExprFlag(x.Target, async, c)
		x.Val, b = rewriteExprFlag(x.Val, async, c)
		return x, a || b
	case *nodes.FunCall:
		for i, a := range x.Args {
			var got bool
			x.Args[i], got = rewriteExprFlag(a, async, c)
			anyAsync = anyAsync || got
		}
		return x, anyAsync
	case *nodes.Group:
		var got bool
		x.Inner, got = rewriteExprFlag(x.Inner, async, c)
		return x, got
	case *nodes.ArrayNode:
		for i, a := range x.Items {
			var got bool
			x.Items[i], got = rewriteExprFlag(a, async, c)
			anyAsync = anyAsync || got
		}
		return x, anyAsync
	case *nodes.Dict:
		for i := range x.Pairs {
			var got bool
			x.Pairs[i].Value, got = rewriteExprFlag(x.Pairs[i].Value, async, c)
			anyAsync = anyAsync || got
		}
		return x, anyAsync
	case *nodes.In:
		var a, b bool
		x.Left, a = rewriteExprFlag(x.Left, async, c)
		x.Right, b = rewriteExprFlag(x.Right, async, c)
		return x, a || b
	case *nodes.Is:
		var got bool
		x.Left, got = rewriteExprFlag(x.Left, async, c)
		return x, got
	case *nodes.Capture:
		x.Body = rewriteBody(x.Body, async, c)
		return x, false
	default:
		return e, false
	}
}
