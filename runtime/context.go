package runtime

import (
	"strings"

	"github.com/deicod/gojinja/frame"
)

// RenderCtx carries the per-render output machinery: a stack of string
// builders so that Capture ({% set x %}...{% endset %}, {% filter %}) and
// block/super resolution can redirect writes into an isolated buffer
// without the rest of the compiled tree knowing about it.
type RenderCtx struct {
	Env      *Environment
	Template string
	buffers  []*strings.Builder
}

// NewRenderCtx returns a RenderCtx with its single top-level output buffer.
func NewRenderCtx(env *Environment, template string) *RenderCtx {
	rc := &RenderCtx{Env: env, Template: template}
	rc.buffers = []*strings.Builder{{}}
	return rc
}

// Write appends s to the current (innermost) buffer.
func (rc *RenderCtx) Write(s string) {
	rc.buffers[len(rc.buffers)-1].WriteString(s)
}

// PushBuffer opens a fresh isolated buffer, used by Capture and GetSuper.
func (rc *RenderCtx) PushBuffer() {
	rc.buffers = append(rc.buffers, &strings.Builder{})
}

// PopBuffer closes the innermost buffer and returns its contents.
func (rc *RenderCtx) PopBuffer() string {
	n := len(rc.buffers)
	s := rc.buffers[n-1].String()
	rc.buffers = rc.buffers[:n-1]
	return s
}

// Output returns the top-level buffer's contents; valid only once
// rendering has returned to depth 1.
func (rc *RenderCtx) Output() string {
	return rc.buffers[0].String()
}

// Fork returns a new RenderCtx sharing rc's Env/Template but with its own,
// independent buffer stack. asyncAll iterations run concurrently and must
// never Push/PopBuffer on a stack another goroutine might touch at the same
// time; each concurrent iteration gets its own forked RenderCtx instead.
func (rc *RenderCtx) Fork() *RenderCtx {
	return NewRenderCtx(rc.Env, rc.Template)
}

// Context is the render-wide state threaded alongside the lexical Frame:
// the globals a render started with, the block-override chain used by
// GetSuper, and the namespace a completed template exports to an importer.
type Context struct {
	Globals  map[string]interface{}
	Exported map[string]interface{}

	// blocks maps a block name to its implementations ordered
	// most-derived-first: index 0 is the leaf template's {% block %},
	// index 1 its parent's, and so on up the {% extends %} chain. level
	// tracks, per name, which index is "currently executing" so GetSuper
	// can resolve the next one up (spec §4.5 block/super chain).
	blocks map[string][]Proc
	level  map[string]int
}

// NewContext builds a Context seeded with globals; blocks are registered
// separately via RegisterBlock as the extends chain is walked.
func NewContext(globals map[string]interface{}) *Context {
	return &Context{
		Globals:  globals,
		Exported: map[string]interface{}{},
		blocks:   map[string][]Proc{},
		level:    map[string]int{},
	}
}

// RegisterBlock appends p to name's override chain, so the first-registered
// implementation ends up at index 0. Template.registerBlocks registers the
// leaf template's own blocks first and then each ancestor's, walking the
// extends chain leaf-to-root, which puts the leaf's implementation first.
func (c *Context) RegisterBlock(name string, p Proc) {
	c.blocks[name] = append(c.blocks[name], p)
}

// Block returns the most-derived implementation of name, if any is
// registered, establishing it as the current level so GetSuper resolves
// relative to it.
func (c *Context) Block(name string) (Proc, bool) {
	chain := c.blocks[name]
	if len(chain) == 0 {
		return nil, false
	}
	c.level[name] = 0
	return chain[0], true
}

// GetSuper returns the next-ancestor implementation of the block currently
// executing at name's tracked level, per spec §4.5's super() semantics. The
// returned Proc temporarily advances the level tracker for the duration of
// its own execution, so a super() nested inside a super() resolves one
// level further up in turn.
func (c *Context) GetSuper(name string) (Proc, error) {
	chain := c.blocks[name]
	lvl := c.level[name]
	if lvl+1 >= len(chain) {
		return nil, NewError(RenderErrorKind, "", 0, 0, "no super block for %q", name)
	}
	parent := chain[lvl+1]
	return func(rc *RenderCtx, ctx *Context, fr *frame.Frame, cb Callback) {
		prev := ctx.level[name]
		ctx.level[name] = lvl + 1
		parent(rc, ctx, fr, func(err error) {
			ctx.level[name] = prev
			cb(err)
		})
	}, nil
}
