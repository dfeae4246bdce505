package main

import (
	"os"
	"strings"
	"testing"

	"github.com/deicod/gojinja/lexer"
	"github.com/deicod/gojinja/parser"
	"github.com/deicod/gojinja/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReachableTemplatesFindsConstantTargets(t *testing.T) {
	src := `{% extends "base.html" %}` +
		`{% block body %}{% include "partial.html" %}{% endblock %}`
	root, err := parser.Parse(src, "child.html", lexer.DefaultDelimiters())
	require.NoError(t, err)

	got := reachableTemplates(root, "child.html")
	assert.Equal(t, []string{"base.html", "partial.html"}, got)
}

func TestReachableTemplatesIgnoresDynamicTargets(t *testing.T) {
	root, err := parser.Parse(`{% include name %}`, "t.html", lexer.DefaultDelimiters())
	require.NoError(t, err)

	got := reachableTemplates(root, "t.html")
	assert.Empty(t, got)
}

func TestCompileOneReportsBlocksAndIR(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/t.html"
	require.NoError(t, os.WriteFile(path, []byte(`{% block body %}hi {{ name }}{% endblock %}`), 0o644))

	var out strings.Builder
	err := compileOne(&out, path, options{})
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "blocks: body")
	assert.Contains(t, report, "Symbol(name)")
}

func TestCompileOneReturnsRuntimeErrorForNonLiteralExtends(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/t.html"
	require.NoError(t, os.WriteFile(path, []byte(`{% extends parent %}`), 0o644))

	var out strings.Builder
	err := compileOne(&out, path, options{})
	require.Error(t, err)
	_, ok := err.(*runtime.Error)
	assert.True(t, ok, "expected *runtime.Error, got %T", err)
}
