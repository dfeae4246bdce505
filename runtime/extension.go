package runtime

// ExtensionProp is one synchronous named callable a host registers under an
// extension name (spec §4.5/§6: `env.getExtension(name)[prop](context,
// …args, contentThunks…, autoescape)`). content holds one thunk per captured
// content block the `{% ... %}...{% end... %}` tag enclosed; each thunk runs
// its block into an isolated buffer and returns the rendered string.
type ExtensionProp func(env *Environment, args []interface{}, content []func() (string, error), autoescape bool) (interface{}, error)

// ExtensionPropAsync is the CallExtensionAsync counterpart: it resolves via
// cb instead of a direct return, matching the compiler's async suspension
// point for this node (spec §4.5, §4.3 suspension-point list).
type ExtensionPropAsync func(env *Environment, args []interface{}, content []func() (string, error), autoescape bool, cb func(interface{}, error))

// Extension is the "record" spec §6's getExtension(name) contract returns:
// a set of named properties a `{% extension %}` tag can invoke, synchronous
// or asynchronous.
type Extension struct {
	Props      map[string]ExtensionProp
	AsyncProps map[string]ExtensionPropAsync
}

// RegisterExtension installs ext under name, replacing any prior registration.
func (e *Environment) RegisterExtension(name string, ext Extension) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.extensions == nil {
		e.extensions = map[string]Extension{}
	}
	e.extensions[name] = ext
}

// GetExtension looks up a registered extension by name.
func (e *Environment) GetExtension(name string) (Extension, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ext, ok := e.extensions[name]
	return ext, ok
}
