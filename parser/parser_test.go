package parser

import (
	"testing"

	"github.com/deicod/gojinja/lexer"
	"github.com/deicod/gojinja/nodes"
)

func parse(t *testing.T, src string) *nodes.Root {
	t.Helper()
	root, err := Parse(src, "<test>", lexer.DefaultDelimiters())
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", src, err)
	}
	return root
}

func TestParseTemplateDataAndOutput(t *testing.T) {
	root := parse(t, "hi {{ name }}!")
	if len(root.Children) != 3 {
		t.Fatalf("expected 3 top-level nodes, got %d: %#v", len(root.Children), root.Children)
	}
	if _, ok := root.Children[0].(*nodes.TemplateData); !ok {
		t.Fatalf("expected first node to be TemplateData, got %T", root.Children[0])
	}
	out, ok := root.Children[1].(*nodes.Output)
	if !ok {
		t.Fatalf("expected second node to be Output, got %T", root.Children[1])
	}
	if len(out.Children) != 1 {
		t.Fatalf("expected one output expression, got %d", len(out.Children))
	}
	if _, ok := out.Children[0].(*nodes.Symbol); !ok {
		t.Fatalf("expected a Symbol expression, got %T", out.Children[0])
	}
}

func TestParseIfElif(t *testing.T) {
	root := parse(t, "{% if a %}A{% elif b %}B{% else %}C{% endif %}")
	if len(root.Children) != 1 {
		t.Fatalf("expected a single If node, got %d nodes", len(root.Children))
	}
	top, ok := root.Children[0].(*nodes.If)
	if !ok {
		t.Fatalf("expected *nodes.If, got %T", root.Children[0])
	}
	if len(top.Else) != 1 {
		t.Fatalf("expected elif to desugar into a nested If in Else, got %#v", top.Else)
	}
	if _, ok := top.Else[0].(*nodes.If); !ok {
		t.Fatalf("expected elif branch to be a nested If, got %T", top.Else[0])
	}
}

func TestParseForElse(t *testing.T) {
	root := parse(t, "{% for x in items %}{{ x }}{% else %}none{% endfor %}")
	f, ok := root.Children[0].(*nodes.For)
	if !ok {
		t.Fatalf("expected *nodes.For, got %T", root.Children[0])
	}
	if len(f.Targets) != 1 || f.Targets[0] != "x" {
		t.Fatalf("expected single target 'x', got %#v", f.Targets)
	}
	if len(f.Else) == 0 {
		t.Fatalf("expected a non-empty else body")
	}
}

func TestParseExtendsAndBlock(t *testing.T) {
	root := parse(t, `{% extends "base.html" %}{% block body %}hi{% endblock %}`)
	if _, ok := root.Children[0].(*nodes.Extends); !ok {
		t.Fatalf("expected *nodes.Extends first, got %T", root.Children[0])
	}
	b, ok := root.Children[1].(*nodes.Block)
	if !ok {
		t.Fatalf("expected *nodes.Block second, got %T", root.Children[1])
	}
	if b.Name != "body" {
		t.Fatalf("expected block name 'body', got %q", b.Name)
	}
}

func TestParseMacroWithDefault(t *testing.T) {
	root := parse(t, `{% macro greet(name, greeting="hi") %}{{ greeting }}{% endmacro %}`)
	m, ok := root.Children[0].(*nodes.Macro)
	if !ok {
		t.Fatalf("expected *nodes.Macro, got %T", root.Children[0])
	}
	if len(m.Args) != 2 || len(m.Defaults) != 1 {
		t.Fatalf("expected 2 args / 1 trailing default, got args=%v defaults=%v", m.Args, m.Defaults)
	}
}

func TestParseFilterChainAndCallArgs(t *testing.T) {
	root := parse(t, `{{ value | upper | truncate(10, end="...") }}`)
	out := root.Children[0].(*nodes.Output)
	filt, ok := out.Children[0].(*nodes.Filter)
	if !ok {
		t.Fatalf("expected outermost node to be a Filter, got %T", out.Children[0])
	}
	if filt.Name != "truncate" {
		t.Fatalf("expected outermost filter 'truncate', got %q", filt.Name)
	}
	if len(filt.Args) < 2 {
		t.Fatalf("expected piped value plus at least one arg, got %d args", len(filt.Args))
	}
	if _, ok := filt.Args[0].(*nodes.Filter); !ok {
		t.Fatalf("expected the piped-in value to itself be the 'upper' filter, got %T", filt.Args[0])
	}
}

func TestParseSetWithFilterBody(t *testing.T) {
	root := parse(t, `{% set x | upper %}hi{% endset %}`)
	s, ok := root.Children[0].(*nodes.Set)
	if !ok {
		t.Fatalf("expected *nodes.Set, got %T", root.Children[0])
	}
	if s.Value != nil {
		t.Fatalf("expected body-capture Set form to have nil Value")
	}
	if s.Filter != "upper" {
		t.Fatalf("expected trailing filter name 'upper', got %q", s.Filter)
	}
}

func TestParseSwitchCases(t *testing.T) {
	root := parse(t, `{% switch n %}{% case 1 %}one{% case 2 %}{% default %}other{% endswitch %}`)
	sw, ok := root.Children[0].(*nodes.Switch)
	if !ok {
		t.Fatalf("expected *nodes.Switch, got %T", root.Children[0])
	}
	if len(sw.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(sw.Cases))
	}
	if len(sw.Cases[1].Body) != 0 {
		t.Fatalf("expected the second case's body to be empty (fallthrough), got %#v", sw.Cases[1].Body)
	}
	if len(sw.Default) == 0 {
		t.Fatalf("expected a non-empty default body")
	}
}

func TestParseUnterminatedTagIsAnError(t *testing.T) {
	if _, err := Parse("{% if a %}no end", "<test>", lexer.DefaultDelimiters()); err == nil {
		t.Fatalf("expected an error for an unterminated if block")
	}
}

func TestParseForParallelModifier(t *testing.T) {
	root := parse(t, `{% for x in items parallel %}{{ x }}{% endfor %}`)
	f, ok := root.Children[0].(*nodes.For)
	if !ok {
		t.Fatalf("expected *nodes.For, got %T", root.Children[0])
	}
	if !f.AsyncAll {
		t.Fatalf("expected AsyncAll to be set by the 'parallel' modifier")
	}
}

func TestParseCallExtension(t *testing.T) {
	root := parse(t, `{% extension async logger.emit("hi", level=1) %}body{% endextension %}`)
	ce, ok := root.Children[0].(*nodes.CallExtension)
	if !ok {
		t.Fatalf("expected *nodes.CallExtension, got %T", root.Children[0])
	}
	if ce.ExtName != "logger" || ce.Prop != "emit" {
		t.Fatalf("expected logger.emit, got %s.%s", ce.ExtName, ce.Prop)
	}
	if !ce.Async {
		t.Fatalf("expected Async to be set by the 'async' modifier")
	}
	if len(ce.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(ce.Args))
	}
	if len(ce.ContentArg) == 0 {
		t.Fatalf("expected a non-empty captured content body")
	}
}
