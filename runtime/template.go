package runtime

import "github.com/deicod/gojinja/frame"

// Template is one compiled source unit: its own body Proc, the blocks it
// declares, and (if it carries `{% extends %}`) the chain of ancestor
// Templates resolved eagerly by Environment.resolveExtends (spec §4.5).
type Template struct {
	Name        string
	ParentName  string
	ParentChain []*Template // immediate parent first, root-most ancestor last
	Body        Proc
	Blocks      map[string]Proc
	Env         *Environment
}

// Render executes the template against data, returning its full output.
// When the template extends another, the actual body executed is the
// root-most ancestor's, with every level's block overrides registered so
// {{ super() }} resolves the chain correctly.
func (t *Template) Render(data map[string]interface{}) (string, error) {
	ctx := NewContext(mergeGlobals(t.Env, data))
	t.registerBlocks(ctx)
	rc := NewRenderCtx(t.Env, t.Name)
	fr := frame.New()
	body, templateName := t.effectiveBody()
	rc.Template = templateName
	if err := RunProc(body, rc, ctx, fr); err != nil {
		return "", err
	}
	return rc.Output(), nil
}

// GetExported renders the template for its side effects only (top-level
// `{% set %}` and `{% macro %}` bindings) and returns what it exported,
// for `{% import %}` / `{% from ... import %}` (spec §4.5).
func (t *Template) GetExported(data map[string]interface{}) (map[string]interface{}, error) {
	ctx := NewContext(mergeGlobals(t.Env, data))
	t.registerBlocks(ctx)
	rc := NewRenderCtx(t.Env, t.Name)
	fr := frame.New()
	body, templateName := t.effectiveBody()
	rc.Template = templateName
	if err := RunProc(body, rc, ctx, fr); err != nil {
		return nil, err
	}
	return ctx.Exported, nil
}

// effectiveBody returns the Proc that actually produces output: the
// root-most ancestor's body when this template extends another, or its
// own body otherwise.
func (t *Template) effectiveBody() (Proc, string) {
	if len(t.ParentChain) == 0 {
		return t.Body, t.Name
	}
	root := t.ParentChain[len(t.ParentChain)-1]
	return root.Body, root.Name
}

// registerBlocks installs every level's block implementations into ctx,
// leaf-first, so Context.Block/GetSuper see the override chain in
// most-derived-first order.
func (t *Template) registerBlocks(ctx *Context) {
	for name, p := range t.Blocks {
		ctx.RegisterBlock(name, p)
	}
	for _, anc := range t.ParentChain {
		for name, p := range anc.Blocks {
			ctx.RegisterBlock(name, p)
		}
	}
}

func mergeGlobals(env *Environment, data map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	env.mu.RLock()
	for k, v := range env.globals {
		out[k] = v
	}
	env.mu.RUnlock()
	for k, v := range data {
		out[k] = v
	}
	return out
}
