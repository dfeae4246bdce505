package gojinja2

import (
	"strings"
	"testing"
)

func TestRenderStringBasic(t *testing.T) {
	out, err := RenderString("Hello, {{ name }}!", map[string]interface{}{"name": "Go"})
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "Hello, Go!" {
		t.Fatalf("expected %q, got %q", "Hello, Go!", out)
	}
}

func TestAutoescapeOnAndOff(t *testing.T) {
	src := "{{ value }}"
	data := map[string]interface{}{"value": "<b>x</b>"}

	on := New()
	t1, err := on.FromString(src)
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	got, err := t1.Render(data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "&lt;b&gt;x&lt;/b&gt;" {
		t.Fatalf("expected escaped output, got %q", got)
	}

	off := New(WithAutoescape(false))
	t2, err := off.FromString(src)
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	got, err = t2.Render(data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "<b>x</b>" {
		t.Fatalf("expected raw output, got %q", got)
	}
}

func TestSafeFilterSuppressesReescaping(t *testing.T) {
	out, err := RenderString(`{{ value | safe }}`, map[string]interface{}{"value": "<i>ok</i>"})
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "<i>ok</i>" {
		t.Fatalf("expected unescaped safe output, got %q", out)
	}
}

func TestForElseEmptyAndNonEmpty(t *testing.T) {
	src := "{% for x in items %}{{ x }},{% else %}empty{% endfor %}"

	out, err := RenderString(src, map[string]interface{}{"items": []interface{}{1.0, 2.0, 3.0}})
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "1,2,3," {
		t.Fatalf("expected %q, got %q", "1,2,3,", out)
	}

	out, err = RenderString(src, map[string]interface{}{"items": []interface{}{}})
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "empty" {
		t.Fatalf("expected %q, got %q", "empty", out)
	}
}

func TestLoopVariables(t *testing.T) {
	src := "{% for x in items %}{{ loop.index }}:{{ loop.first }}:{{ loop.last }} {% endfor %}"
	out, err := RenderString(src, map[string]interface{}{"items": []interface{}{"a", "b"}})
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "1:true:false 2:false:true " {
		t.Fatalf("unexpected loop output: %q", out)
	}
}

func TestInheritanceBlockSuper(t *testing.T) {
	loader := NewMapLoader(map[string]string{
		"base.html":  `A[{% block b %}P{% endblock %}]B`,
		"child.html": `{% extends "base.html" %}{% block b %}C{{ super() }}{% endblock %}`,
	})
	env := New(WithLoader(loader))
	tmpl, err := env.GetTemplate("child.html", "")
	if err != nil {
		t.Fatalf("GetTemplate error: %v", err)
	}
	out, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "A[CP]B" {
		t.Fatalf("expected %q, got %q", "A[CP]B", out)
	}
}

func TestMacroPositionalAndKeywordArgs(t *testing.T) {
	src := `{% macro greet(name, greeting="Hello") %}{{ greeting }}, {{ name }}!{% endmacro %}` +
		`{{ greet("Ada") }}|{{ greet("Lin", greeting="Hi") }}`
	out, err := RenderString(src, nil)
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "Hello, Ada!|Hi, Lin!" {
		t.Fatalf("unexpected macro output: %q", out)
	}
}

func TestCallBlockBindsCaller(t *testing.T) {
	src := `{% macro wrap() %}<{{ caller() }}>{% endmacro %}{% call wrap() %}inner{% endcall %}`
	out, err := RenderString(src, nil)
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "<inner>" {
		t.Fatalf("expected %q, got %q", "<inner>", out)
	}
}

func TestFilterChainNoDoubleEscape(t *testing.T) {
	out, err := RenderString(`{{ value | upper | safe }}`, map[string]interface{}{"value": "<b>x</b>"})
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "<B>X</B>" {
		t.Fatalf("expected %q, got %q", "<B>X</B>", out)
	}
}

func TestAsyncFilterSuspensionPoint(t *testing.T) {
	env := New(WithAsyncFilters("double"))
	env.RegisterAsyncFilter("double", func(env *Environment, v interface{}, args []interface{}, kwargs map[string]interface{}, cb func(interface{}, error)) {
		go func() {
			f, _ := v.(float64)
			cb(f*2, nil)
		}()
	})
	tmpl, err := env.FromString("{{ n | double }}")
	if err != nil {
		t.Fatalf("FromString error: %v", err)
	}
	out, err := tmpl.Render(map[string]interface{}{"n": 21.0})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "42" {
		t.Fatalf("expected %q, got %q", "42", out)
	}
}

func TestSwitchEmptyCaseFallsThrough(t *testing.T) {
	src := `{% switch n %}{% case 1 %}{% case 2 %}two-or-one{% default %}other{% endswitch %}`
	out, err := RenderString(src, map[string]interface{}{"n": 1.0})
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "two-or-one" {
		t.Fatalf("expected fallthrough to run case 2's body, got %q", out)
	}

	out, err = RenderString(src, map[string]interface{}{"n": 3.0})
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "other" {
		t.Fatalf("expected default arm, got %q", out)
	}
}

func TestUndefinedRendersBlankUnlessConfigured(t *testing.T) {
	out, err := RenderString("[{{ missing }}]", nil)
	if err != nil {
		t.Fatalf("RenderString error: %v", err)
	}
	if out != "[]" {
		t.Fatalf("expected blank undefined rendering, got %q", out)
	}

	strict := New(WithThrowOnUndefined(true))
	tmpl, err := strict.FromString("{{ missing }}")
	if err != nil {
		t.Fatalf("FromString error: %v", err)
	}
	if _, err := tmpl.Render(nil); err == nil {
		t.Fatalf("expected error for undefined lookup under throwOnUndefined")
	} else if !strings.Contains(err.Error(), "undefined") {
		t.Fatalf("expected undefined-related error, got %v", err)
	}
}

func TestImportExposesMacroNamespace(t *testing.T) {
	loader := NewMapLoader(map[string]string{
		"lib.html":  `{% macro shout(s) %}{{ s | upper }}!{% endmacro %}`,
		"main.html": `{% import "lib.html" as lib %}{{ lib.shout("hi") }}`,
	})
	env := New(WithLoader(loader))
	tmpl, err := env.GetTemplate("main.html", "")
	if err != nil {
		t.Fatalf("GetTemplate error: %v", err)
	}
	out, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "HI!" {
		t.Fatalf("expected %q, got %q", "HI!", out)
	}
}
