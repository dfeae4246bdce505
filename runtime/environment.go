package runtime

import (
	"fmt"
	"sync"
)

// CompileFunc turns template source into a ready-to-run Template. It is
// injected into Environment rather than imported directly so this package
// never depends on the compiler package, which itself depends on runtime
// for its output types (spec-driven dependency-injection: see
// gojinja.go, the façade that wires compiler.CompileSource in by default).
type CompileFunc func(env *Environment, name, src string) (*Template, error)

// Filter is a registered `{{ value | name(args...) }}` transform.
type Filter func(env *Environment, value interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error)

// AsyncFilter is a Filter whose result is produced asynchronously; the
// transformer rewrites call sites naming one of these into CPS form.
type AsyncFilter func(env *Environment, value interface{}, args []interface{}, kwargs map[string]interface{}, cb func(interface{}, error))

// Test is a registered `is name(args...)` predicate.
type Test func(env *Environment, value interface{}, args []interface{}) (bool, error)

// Environment is the engine façade: it owns the loader, the compiled
// template cache, and every pluggable policy (autoescape, undefined
// handling, filters, tests, globals). Construct one with New and
// functional options, matching the teacher's configuration idiom.
type Environment struct {
	loader           Loader
	cache            TemplateCache
	compileFunc      CompileFunc
	autoescape       bool
	throwOnUndefined bool
	asyncFilterNames map[string]bool

	mu         sync.RWMutex
	filters    map[string]Filter
	async      map[string]AsyncFilter
	tests      map[string]Test
	globals    map[string]interface{}
	extensions map[string]Extension
}

// Option configures an Environment at construction time.
type Option func(*Environment)

// WithLoader installs the Loader used to resolve {% extends/include/import %}.
func WithLoader(l Loader) Option { return func(e *Environment) { e.loader = l } }

// WithCache installs a TemplateCache; defaults to an unbounded MemoryCache.
func WithCache(c TemplateCache) Option { return func(e *Environment) { e.cache = c } }

// WithCompileFunc injects the function used to turn source into a
// Template. The façade package sets this to compiler.CompileSource; tests
// may substitute a stub.
func WithCompileFunc(f CompileFunc) Option { return func(e *Environment) { e.compileFunc = f } }

// WithAutoescape toggles default HTML-escaping of `{{ }}` output.
func WithAutoescape(on bool) Option { return func(e *Environment) { e.autoescape = on } }

// WithThrowOnUndefined makes undefined lookups raise a RenderError instead
// of silently rendering as empty string.
func WithThrowOnUndefined(on bool) Option {
	return func(e *Environment) { e.throwOnUndefined = on }
}

// WithAsyncFilters names the filters that must be compiled through the CPS
// rewrite (spec §4.3); each name must also be registered via RegisterAsyncFilter.
func WithAsyncFilters(names ...string) Option {
	return func(e *Environment) {
		for _, n := range names {
			e.asyncFilterNames[n] = true
		}
	}
}

// WithGlobal seeds a name visible to every template rendered by this
// Environment, resolved when no frame or context binding shadows it.
func WithGlobal(name string, value interface{}) Option {
	return func(e *Environment) { e.globals[name] = value }
}

// New builds an Environment with sensible defaults (in-memory cache,
// autoescape on, undefined lookups render blank) and applies opts.
func New(opts ...Option) *Environment {
	e := &Environment{
		cache:            NewMemoryCache(),
		autoescape:       true,
		asyncFilterNames: map[string]bool{},
		filters:          map[string]Filter{},
		async:            map[string]AsyncFilter{},
		tests:            map[string]Test{},
		globals:          map[string]interface{}{},
		extensions:       map[string]Extension{},
	}
	RegisterBuiltinFilters(e)
	RegisterBuiltinTests(e)
	for _, o := range opts {
		o(e)
	}
	return e
}

// Autoescape reports the environment's default escaping policy.
func (e *Environment) Autoescape() bool { return e.autoescape }

// AsyncFilterNames returns the set of filter names requiring CPS
// compilation, for the transformer to consult.
func (e *Environment) AsyncFilterNames() map[string]bool { return e.asyncFilterNames }

// Global looks up a seeded global value.
func (e *Environment) Global(name string) (interface{}, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.globals[name]
	return v, ok
}

// RegisterFilter adds or replaces a synchronous filter.
func (e *Environment) RegisterFilter(name string, f Filter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters[name] = f
}

// RegisterAsyncFilter adds or replaces an asynchronous filter and marks its
// name for CPS compilation.
func (e *Environment) RegisterAsyncFilter(name string, f AsyncFilter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.async[name] = f
	e.asyncFilterNames[name] = true
}

// RegisterTest adds or replaces a named `is` test.
func (e *Environment) RegisterTest(name string, t Test) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tests[name] = t
}

// Filter looks up a synchronous filter by name.
func (e *Environment) Filter(name string) (Filter, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, ok := e.filters[name]
	return f, ok
}

// AsyncFilter looks up an asynchronous filter by name.
func (e *Environment) AsyncFilter(name string) (AsyncFilter, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, ok := e.async[name]
	return f, ok
}

// Test looks up a named test.
func (e *Environment) Test(name string) (Test, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tests[name]
	return t, ok
}

// GetTemplate resolves name to a compiled Template: the loader resolves
// the name (parentName disambiguates relative lookups performed from
// within another template), a cached Template for the resolved name is
// returned as is, and otherwise the source is loaded, compiled, has its
// {% extends %} chain resolved eagerly, and is cached.
func (e *Environment) GetTemplate(name, parentName string) (*Template, error) {
	resolved := name
	if e.loader != nil {
		r, err := e.loader.Resolve(name, parentName)
		if err != nil {
			return nil, err
		}
		resolved = r
	}
	if t, ok := e.cache.Get(resolved); ok {
		return t, nil
	}
	if e.loader == nil {
		return nil, NewError(CompileErrorKind, name, 0, 0, "no loader configured")
	}
	src, err := e.loader.Load(resolved)
	if err != nil {
		return nil, err
	}
	if e.compileFunc == nil {
		return nil, fmt.Errorf("environment has no compile function configured")
	}
	t, err := e.compileFunc(e, resolved, src)
	if err != nil {
		return nil, err
	}
	if err := e.resolveExtends(t, resolved); err != nil {
		return nil, err
	}
	e.cache.Set(resolved, t)
	return t, nil
}

// FromString compiles src directly, bypassing the loader, and eagerly
// resolves any {% extends %} chain it declares (spec §4.5, §6).
func (e *Environment) FromString(src string) (*Template, error) {
	if e.compileFunc == nil {
		return nil, fmt.Errorf("environment has no compile function configured")
	}
	t, err := e.compileFunc(e, "<string>", src)
	if err != nil {
		return nil, err
	}
	if err := e.resolveExtends(t, "<string>"); err != nil {
		return nil, err
	}
	return t, nil
}

// resolveExtends walks t's declared parent chain eagerly (spec §4.5:
// extends is resolved at compile time, unlike include/import) and records
// the ancestors in t.ParentChain, immediate parent first, so
// Template.registerBlocks can build the super() chain at render time.
func (e *Environment) resolveExtends(t *Template, selfName string) error {
	if t.ParentName == "" {
		return nil
	}
	parent, err := e.GetTemplate(t.ParentName, selfName)
	if err != nil {
		return err
	}
	t.ParentChain = append([]*Template{parent}, parent.ParentChain...)
	return nil
}
