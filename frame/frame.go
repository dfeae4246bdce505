// Package frame implements the lexically scoped name→value stack used at
// render time to honour variable shadowing (spec §4.4).
//
// The teacher's and the spec's notion of a frame is dual-purpose: at
// compile time it maps a name to an emitted identifier, and at render time
// to a value. Because this implementation compiles templates directly to a
// tree of closures rather than to textual source with named identifiers
// (see runtime.Proc), there is nothing for the compile-time half to do —
// every Symbol lookup consults this render-time Frame directly, and the
// "identifier" the spec describes is simply the frame slot itself.
package frame

// Frame is one node of a persistent-by-convention scope stack: Push never
// mutates the parent, so a caller holding an outer Frame still observes it
// unchanged after an inner scope is discarded.
type Frame struct {
	scope    *scope
	topLevel bool
}

type scope struct {
	vars    map[string]interface{}
	isolate bool
	parent  *scope
}

// New returns a fresh top-level Frame, marked so the compiler can treat
// names set in it as exports.
func New() *Frame {
	return &Frame{scope: &scope{vars: map[string]interface{}{}}, topLevel: true}
}

// Push returns a child Frame. When isolate is true, Lookup on the child
// will not traverse into the parent — used for macro bodies, which must not
// see the caller's locals.
func (f *Frame) Push(isolate bool) *Frame {
	return &Frame{scope: &scope{vars: map[string]interface{}{}, isolate: isolate, parent: f.scope}}
}

// Pop returns the parent Frame. Calling Pop on a top-level Frame returns it
// unchanged.
func (f *Frame) Pop() *Frame {
	if f.scope.parent == nil {
		return f
	}
	return &Frame{scope: f.scope.parent, topLevel: f.scope.parent.parent == nil}
}

// IsTopLevel reports whether this Frame is the outermost one for the
// current render, used by the compiler to decide whether a Set should also
// export into the Context (spec §4.5).
func (f *Frame) IsTopLevel() bool { return f.topLevel }

// Lookup searches this scope and its ancestors, stopping at an isolation
// boundary, and reports whether name is bound anywhere in that chain.
func (f *Frame) Lookup(name string) (interface{}, bool) {
	for s := f.scope; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
		if s.isolate {
			return nil, false
		}
	}
	return nil, false
}

// Set binds name in the current scope. When resolveUp is true and name
// already exists in an ancestor scope reachable without crossing an
// isolation boundary, the ancestor's binding is updated in place instead
// (this is how a `{% set %}` inside an `{% if %}` updates the enclosing
// scope's variable rather than shadowing it).
func (f *Frame) Set(name string, value interface{}, resolveUp bool) {
	if resolveUp {
		for s := f.scope; s != nil; s = s.parent {
			if s.isolate {
				break
			}
			if s.parent == nil {
				break
			}
			if _, ok := s.parent.vars[name]; ok {
				s.parent.vars[name] = value
				return
			}
			if s.parent.isolate {
				break
			}
		}
	}
	f.scope.vars[name] = value
}
