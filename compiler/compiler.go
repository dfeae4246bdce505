// Package compiler turns a parsed template into a runtime.Template by
// walking its AST once and emitting a tree of Go closures (runtime.Proc /
// runtime.ExprProc) rather than textual source — the Future/coroutine
// abstraction a compile target is explicitly allowed to take in place of
// literal emitted IR text, since Go has no runtime eval. Suspension points
// (async filters, block/super resolution, asyncAll reassembly) are
// preserved as real CPS callback boundaries in the closures themselves.
package compiler

import (
	"github.com/deicod/gojinja/lexer"
	"github.com/deicod/gojinja/nodes"
	"github.com/deicod/gojinja/parser"
	"github.com/deicod/gojinja/runtime"
	"github.com/deicod/gojinja/transformer"
)

// cctx threads compile-time state through the emit functions: which
// environment (for filter/test/async lookups) and which block, if any, is
// currently being compiled (so a `super()` call inside it knows which
// chain to resolve against).
type cctx struct {
	env         *runtime.Environment
	template    string
	blockStack  []string
}

func (c *cctx) pushBlock(name string) { c.blockStack = append(c.blockStack, name) }
func (c *cctx) popBlock()             { c.blockStack = c.blockStack[:len(c.blockStack)-1] }
func (c *cctx) currentBlock() string {
	if len(c.blockStack) == 0 {
		return ""
	}
	return c.blockStack[len(c.blockStack)-1]
}

// CompileSource lexes, parses, async-transforms, and compiles src into a
// ready-to-render Template. It is wired into runtime.Environment via
// runtime.WithCompileFunc by the façade package (gojinja.go) to avoid a
// runtime<->compiler import cycle.
func CompileSource(env *runtime.Environment, name, src string) (*runtime.Template, error) {
	root, err := parser.Parse(src, name, lexer.DefaultDelimiters())
	if err != nil {
		return nil, toRuntimeError(err, runtime.ParseErrorKind, name)
	}
	root = transformer.Transform(root, transformer.AsyncFilters(env.AsyncFilterNames()))

	cc := &cctx{env: env, template: name}
	t := &runtime.Template{Name: name, Env: env, Blocks: map[string]runtime.Proc{}}
	blockSpans := map[string]nodes.Span{}

	if err := registerBlocks(root.Children, t, cc, blockSpans, name); err != nil {
		return nil, err
	}

	var bodyWithoutDecls nodes.NodeList
	for _, n := range root.Children {
		switch s := n.(type) {
		case *nodes.Extends:
			lit, ok := s.Template.(*nodes.Literal)
			if !ok {
				return nil, runtime.NewError(runtime.CompileErrorKind, name, s.Span().Line, s.Span().Col, "extends target must be a constant string")
			}
			parentName, _ := lit.Value.(string)
			t.ParentName = parentName
		default:
			bodyWithoutDecls = append(bodyWithoutDecls, n)
		}
	}
	t.Body = compileBody(bodyWithoutDecls, cc)
	return t, nil
}

// registerBlocks walks body recursively, compiling every {% block %} it
// finds — including ones nested inside another block, an if, a for, or a
// with (spec §4.2: a nested block is "compiled twice, once as a named
// block") — into t.Blocks, and rejecting a repeated block name as a
// compile-time error (spec §3 invariant, §4.5 Root).
func registerBlocks(body nodes.NodeList, t *runtime.Template, cc *cctx, seen map[string]nodes.Span, name string) error {
	for _, n := range body {
		switch s := n.(type) {
		case *nodes.Block:
			if _, dup := seen[s.Name]; dup {
				return runtime.NewError(runtime.CompileErrorKind, name, s.Span().Line, s.Span().Col, "duplicate block name %q", s.Name)
			}
			seen[s.Name] = s.Span()
			t.Blocks[s.Name] = compileBlockBody(s, cc)
			if err := registerBlocks(s.Body, t, cc, seen, name); err != nil {
				return err
			}
		case *nodes.If:
			if err := registerBlocks(s.Body, t, cc, seen, name); err != nil {
				return err
			}
			if err := registerBlocks(s.Else, t, cc, seen, name); err != nil {
				return err
			}
		case *nodes.For:
			if err := registerBlocks(s.Body, t, cc, seen, name); err != nil {
				return err
			}
			if err := registerBlocks(s.Else, t, cc, seen, name); err != nil {
				return err
			}
		case *nodes.With:
			if err := registerBlocks(s.Body, t, cc, seen, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// toRuntimeError adapts a lexer/parser error into the unified
// *runtime.Error with the given kind. The position travels only inside
// Message (the lexer and parser error text already includes line and
// column); the structured Line and Col fields are left zero, even though
// lexer.Error and parser.Error carry them.
func toRuntimeError(err error, kind runtime.ErrorKind, name string) error {
	if err == nil {
		return nil
	}
	return &runtime.Error{Kind: kind, Message: err.Error(), Template: name}
}

// compileBody compiles a statement list into one sequential Proc.
func compileBody(body nodes.NodeList, cc *cctx) runtime.Proc {
	procs := make([]runtime.Proc, 0, len(body))
	for _, n := range body {
		if p := compileStmt(n, cc); p != nil {
			procs = append(procs, p)
		}
	}
	return runtime.Seq(procs...)
}

// compileBlockBody compiles a block's own body in isolation, tracking the
// block name on cc's stack so a nested `super()` call resolves correctly.
func compileBlockBody(b *nodes.Block, cc *cctx) runtime.Proc {
	cc.pushBlock(b.Name)
	p := compileBody(b.Body, cc)
	cc.popBlock()
	return p
}
