// Package gojinja2 is a Go implementation of a Jinja2-lineage template
// engine: a lexer, parser, async-filter transformer, and closure-tree
// compiler sit behind the runtime.Environment façade re-exported here.
package gojinja2

import (
	"github.com/deicod/gojinja/compiler"
	"github.com/deicod/gojinja/runtime"
)

// Version of the gojinja2 library.
const Version = "0.1.0"

// Template is a compiled, renderable unit produced by an Environment.
type Template = runtime.Template

// Environment is the engine façade: loader, template cache, filters,
// tests, and globals all live here.
type Environment = runtime.Environment

// Context is the render-wide state threaded alongside the lexical frame.
type Context = runtime.Context

// Loader resolves template names to source text.
type Loader = runtime.Loader

// FileSystemLoader serves templates from a go-billy virtual filesystem.
type FileSystemLoader = runtime.FileSystemLoader

// MapLoader serves templates from an in-memory map.
type MapLoader = runtime.MapLoader

// HTTPLoader serves templates fetched over HTTP.
type HTTPLoader = runtime.HTTPLoader

// Macro is the callable value a compiled `{% macro %}` produces.
type Macro = runtime.Macro

// SafeString is output text that must not be re-escaped.
type SafeString = runtime.SafeString

// Undefined represents a missing variable or attribute.
type Undefined = runtime.Undefined

// Error is the unified error type raised across the lex/parse/compile/render
// pipeline.
type Error = runtime.Error

// Option configures an Environment at construction time.
type Option = runtime.Option

var (
	WithLoader           = runtime.WithLoader
	WithCache            = runtime.WithCache
	WithAutoescape       = runtime.WithAutoescape
	WithThrowOnUndefined = runtime.WithThrowOnUndefined
	WithAsyncFilters     = runtime.WithAsyncFilters
	WithGlobal           = runtime.WithGlobal
)

// New builds an Environment wired to compiler.CompileSource, so templates
// compile through the closure-tree code generator without runtime needing
// to import compiler directly (that import would cycle back here).
func New(opts ...Option) *Environment {
	all := append([]Option{runtime.WithCompileFunc(compiler.CompileSource)}, opts...)
	return runtime.New(all...)
}

// NewFileSystemLoader roots a loader at dir on the real OS filesystem.
func NewFileSystemLoader(dir string) *FileSystemLoader {
	return runtime.NewFileSystemLoader(dir)
}

// NewMapLoader wraps templates as an in-memory Loader.
func NewMapLoader(templates map[string]string) MapLoader {
	return runtime.MapLoader(templates)
}

// NewHTTPLoader builds a loader rooted at baseURL.
func NewHTTPLoader(baseURL string) *HTTPLoader {
	return runtime.NewHTTPLoader(baseURL)
}

// FromString compiles src directly against a one-off default Environment,
// for quick one-shot rendering without configuring a loader.
func FromString(src string) (*Template, error) {
	return New().FromString(src)
}

// RenderString compiles and renders src against data in one call.
func RenderString(src string, data map[string]interface{}) (string, error) {
	t, err := FromString(src)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}
