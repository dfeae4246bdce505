package compiler

import (
	"fmt"
	"testing"

	"github.com/deicod/gojinja/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(opts ...runtime.Option) *runtime.Environment {
	all := append([]runtime.Option{runtime.WithCompileFunc(CompileSource)}, opts...)
	return runtime.New(all...)
}

func render(t *testing.T, env *runtime.Environment, src string, data map[string]interface{}) string {
	t.Helper()
	tmpl, err := env.FromString(src)
	require.NoError(t, err)
	out, err := tmpl.Render(data)
	require.NoError(t, err)
	return out
}

func TestFilterBlockAppliesFilterToCapturedBody(t *testing.T) {
	env := newEnv()
	out := render(t, env, `{% filter upper %}hello {{ name }}{% endfilter %}`, map[string]interface{}{"name": "ada"})
	assert.Equal(t, "HELLO ADA", out)
}

func TestSetWithTrailingFilterAppliesToCapturedBody(t *testing.T) {
	env := newEnv()
	out := render(t, env, `{% set greeting | upper %}hi{% endset %}{{ greeting }}`, nil)
	assert.Equal(t, "HI", out)
}

func TestWithStatementScopesBindings(t *testing.T) {
	env := newEnv()
	out := render(t, env, `{% with x = 1 %}{{ x }}{% endwith %}[{{ x }}]`, map[string]interface{}{"x": "outer"})
	assert.Equal(t, "1[outer]", out)
}

func TestKeywordArgumentsReachFilters(t *testing.T) {
	env := newEnv()
	out := render(t, env, `{{ value | default("fallback", boolean=true) }}`, map[string]interface{}{"value": ""})
	assert.Equal(t, "fallback", out)
}

func TestIncludeRendersAnotherTemplate(t *testing.T) {
	loader := runtime.MapLoader{
		"greeting.html": `hi {{ name }}`,
		"main.html":     `{% include "greeting.html" %}!`,
	}
	env := newEnv(runtime.WithLoader(loader))
	tmpl, err := env.GetTemplate("main.html", "")
	require.NoError(t, err)
	out, err := tmpl.Render(map[string]interface{}{"name": "bo"})
	require.NoError(t, err)
	assert.Equal(t, "hi bo!", out)
}

func TestFromImportBindsNamedMacro(t *testing.T) {
	loader := runtime.MapLoader{
		"lib.html":  `{% macro shout(s) %}{{ s | upper }}!{% endmacro %}`,
		"main.html": `{% from "lib.html" import shout %}{{ shout("hey") }}`,
	}
	env := newEnv(runtime.WithLoader(loader))
	tmpl, err := env.GetTemplate("main.html", "")
	require.NoError(t, err)
	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "HEY!", out)
}

func TestMultiLevelInheritanceChainsSuper(t *testing.T) {
	loader := runtime.MapLoader{
		"grandparent.html": `[{% block b %}G{% endblock %}]`,
		"parent.html":       `{% extends "grandparent.html" %}{% block b %}P-{{ super() }}{% endblock %}`,
		"child.html":        `{% extends "parent.html" %}{% block b %}C-{{ super() }}{% endblock %}`,
	}
	env := newEnv(runtime.WithLoader(loader))
	tmpl, err := env.GetTemplate("child.html", "")
	require.NoError(t, err)
	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "[C-P-G]", out)
}

func TestExtendsWithNonConstantTargetIsACompileError(t *testing.T) {
	env := newEnv()
	_, err := env.FromString(`{% extends parent_name %}`)
	assert.Error(t, err)
}

func TestFromImportMissingNameIsARenderError(t *testing.T) {
	loader := runtime.MapLoader{
		"lib.html":  `{% macro shout(s) %}{{ s }}{% endmacro %}`,
		"main.html": `{% from "lib.html" import whisper %}{{ whisper("x") }}`,
	}
	env := newEnv(runtime.WithLoader(loader))
	tmpl, err := env.GetTemplate("main.html", "")
	require.NoError(t, err)
	_, err = tmpl.Render(nil)
	require.Error(t, err)
	var rerr *runtime.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, runtime.RenderErrorKind, rerr.Kind)
}

func TestDuplicateBlockNameIsACompileError(t *testing.T) {
	env := newEnv()
	_, err := env.FromString(`{% block body %}a{% endblock %}{% block body %}b{% endblock %}`)
	require.Error(t, err)
	var rerr *runtime.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, runtime.CompileErrorKind, rerr.Kind)
}

func TestNestedBlockIsOverridableByChildTemplate(t *testing.T) {
	loader := runtime.MapLoader{
		"parent.html": `{% block outer %}[{% block inner %}P{% endblock %}]{% endblock %}`,
		"child.html":  `{% extends "parent.html" %}{% block inner %}C{% endblock %}`,
	}
	env := newEnv(runtime.WithLoader(loader))
	tmpl, err := env.GetTemplate("child.html", "")
	require.NoError(t, err)
	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "[C]", out)
}

func TestCallExtensionInvokesRegisteredSyncProperty(t *testing.T) {
	env := newEnv()
	env.RegisterExtension("greet", runtime.Extension{
		Props: map[string]runtime.ExtensionProp{
			"run": func(env *runtime.Environment, args []interface{}, content []func() (string, error), autoescape bool) (interface{}, error) {
				body, err := content[0]()
				if err != nil {
					return nil, err
				}
				return fmt.Sprintf("%v(%s)", args[0], body), nil
			},
		},
	})
	out := render(t, env, `{% extension greet.run("hi") %}body{% endextension %}`, nil)
	assert.Equal(t, "hi(body)", out)
}

func TestCallExtensionAsyncResolvesThroughCallback(t *testing.T) {
	env := newEnv()
	env.RegisterExtension("greet", runtime.Extension{
		AsyncProps: map[string]runtime.ExtensionPropAsync{
			"run": func(env *runtime.Environment, args []interface{}, content []func() (string, error), autoescape bool, cb func(interface{}, error)) {
				cb("done", nil)
			},
		},
	})
	out := render(t, env, `{% extension async greet.run() %}{% endextension %}`, nil)
	assert.Equal(t, "done", out)
}

func TestCallExtensionUnknownNameIsARenderError(t *testing.T) {
	env := newEnv()
	tmpl, err := env.FromString(`{% extension missing.run() %}{% endextension %}`)
	require.NoError(t, err)
	_, err = tmpl.Render(nil)
	assert.Error(t, err)
}

func TestForParallelReassemblesOutputInOrder(t *testing.T) {
	env := newEnv()
	out := render(t, env, `{% for x in items parallel %}{{ x }}{% endfor %}`, map[string]interface{}{
		"items": []interface{}{"a", "b", "c"},
	})
	assert.Equal(t, "abc", out)
}
