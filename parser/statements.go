package parser

import (
	"github.com/deicod/gojinja/lexer"
	"github.com/deicod/gojinja/nodes"
)

// parseBlockTag dispatches a {% ... %} tag to its production based on the
// leading keyword. It consumes the full tag including the trailing %},
// and for tags with bodies, the matching end tag too.
func (p *Parser) parseBlockTag() (nodes.Node, error) {
	start := p.span()
	p.advance() // {%
	if !p.at(lexer.Symbol) {
		return nil, p.errorf("expected a tag keyword")
	}
	kw := p.cur().Value
	switch kw {
	case "if":
		return p.parseIf(start)
	case "for":
		return p.parseFor(start)
	case "block":
		return p.parseBlock(start)
	case "extends":
		return p.parseExtends(start)
	case "include":
		return p.parseInclude(start)
	case "import":
		return p.parseImport(start)
	case "from":
		return p.parseFromImport(start)
	case "macro":
		return p.parseMacro(start)
	case "call":
		return p.parseCall(start)
	case "set":
		return p.parseSet(start)
	case "switch":
		return p.parseSwitch(start)
	case "with":
		return p.parseWith(start)
	case "filter":
		return p.parseFilterBlock(start)
	case "extension":
		return p.parseCallExtension(start)
	default:
		return nil, p.errorf("unknown tag %q", kw)
	}
}

func (p *Parser) endTag(kw string) error {
	if _, err := p.expect(lexer.BlockStart); err != nil {
		return err
	}
	if err := p.expectKeyword(kw); err != nil {
		return err
	}
	_, err := p.expect(lexer.BlockEnd)
	return err
}

// parseIf handles `if`/`elif`/`else`/`endif`. elif chains desugar into
// nested If nodes in Else, per spec §3's If(cond, body, else).
func (p *Parser) parseIf(start nodes.Span) (nodes.Node, error) {
	p.advance() // if
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseBody("elif", "else", "endif")
	if err != nil {
		return nil, err
	}
	n := &nodes.If{Cond: cond, Body: body}
	n.Pos = start

	if p.blockTagIsOneOf("elif") {
		p.advance() // {%
		elifNode, err := p.parseIf(start)
		if err != nil {
			return nil, err
		}
		n.Else = nodes.NodeList{elifNode}
		return n, nil
	}
	if p.blockTagIsOneOf("else") {
		p.advance() // {%
		p.advance() // else
		if _, err := p.expect(lexer.BlockEnd); err != nil {
			return nil, err
		}
		elseBody, err := p.parseBody("endif")
		if err != nil {
			return nil, err
		}
		n.Else = elseBody
	}
	if err := p.endTag("endif"); err != nil {
		return nil, err
	}
	return n, nil
}

// parseFor implements the `for`/`else`/`endfor` grammar plus the
// `recursive` modifier (§11 supplemented feature).
func (p *Parser) parseFor(start nodes.Span) (nodes.Node, error) {
	p.advance() // for
	var targets []string
	for {
		if !p.at(lexer.Symbol) {
			return nil, p.errorf("expected loop variable name")
		}
		targets = append(targets, p.advance().Value)
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	arr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	recursive := false
	parallel := false
	for {
		if p.atKeyword("recursive") {
			recursive = true
			p.advance()
			continue
		}
		if p.atKeyword("parallel") {
			parallel = true
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseBody("else", "endfor")
	if err != nil {
		return nil, err
	}
	n := &nodes.For{Targets: targets, Array: arr, Body: body, Recursive: recursive, AsyncAll: parallel}
	n.Pos = start
	if p.blockTagIsOneOf("else") {
		p.advance()
		p.advance()
		if _, err := p.expect(lexer.BlockEnd); err != nil {
			return nil, err
		}
		elseBody, err := p.parseBody("endfor")
		if err != nil {
			return nil, err
		}
		n.Else = elseBody
	}
	if err := p.endTag("endfor"); err != nil {
		return nil, err
	}
	return n, nil
}

// parseBlock handles `{% block name [scoped] %}...{% endblock [name] %}`.
// Nested blocks are permitted per spec §4.2 and are compiled twice by the
// compiler (once inline, once as their own named function).
func (p *Parser) parseBlock(start nodes.Span) (nodes.Node, error) {
	p.advance() // block
	if !p.at(lexer.Symbol) {
		return nil, p.errorf("expected block name")
	}
	name := p.advance().Value
	scoped := false
	if p.atKeyword("scoped") {
		scoped = true
		p.advance()
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseBody("endblock")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.BlockStart); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("endblock"); err != nil {
		return nil, err
	}
	if p.at(lexer.Symbol) {
		p.advance() // optional trailing block name
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	n := &nodes.Block{Name: name, Body: body, Scoped: scoped}
	n.Pos = start
	return n, nil
}

func (p *Parser) parseExtends(start nodes.Span) (nodes.Node, error) {
	p.advance() // extends
	tmpl, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	n := &nodes.Extends{Template: tmpl}
	n.Pos = start
	return n, nil
}

func (p *Parser) parseInclude(start nodes.Span) (nodes.Node, error) {
	p.advance() // include
	tmpl, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	ignoreMissing := false
	withContext := true
	for {
		switch {
		case p.atKeyword("ignore") && p.peekIsKeyword(1, "missing"):
			p.advance()
			p.advance()
			ignoreMissing = true
			continue
		case p.atKeyword("without") && p.peekIsKeyword(1, "context"):
			p.advance()
			p.advance()
			withContext = false
			continue
		case p.atKeyword("with") && p.peekIsKeyword(1, "context"):
			p.advance()
			p.advance()
			withContext = true
			continue
		}
		break
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	n := &nodes.Include{Template: tmpl, IgnoreMissing: ignoreMissing, WithContext: withContext}
	n.Pos = start
	return n, nil
}

func (p *Parser) parseImport(start nodes.Span) (nodes.Node, error) {
	p.advance() // import
	tmpl, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("as"); err != nil {
		return nil, err
	}
	if !p.at(lexer.Symbol) {
		return nil, p.errorf("expected a name after 'as'")
	}
	target := p.advance().Value
	withContext := p.consumeWithContext()
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	n := &nodes.Import{Template: tmpl, Target: target, WithContext: withContext}
	n.Pos = start
	return n, nil
}

func (p *Parser) consumeWithContext() bool {
	if p.atKeyword("with") && p.peekIsKeyword(1, "context") {
		p.advance()
		p.advance()
		return true
	}
	if p.atKeyword("without") && p.peekIsKeyword(1, "context") {
		p.advance()
		p.advance()
		return false
	}
	return false
}

func (p *Parser) parseFromImport(start nodes.Span) (nodes.Node, error) {
	p.advance() // from
	tmpl, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("import"); err != nil {
		return nil, err
	}
	var names []nodes.ImportName
	for {
		if !p.at(lexer.Symbol) {
			return nil, p.errorf("expected an import name")
		}
		name := p.advance().Value
		alias := name
		if p.atKeyword("as") {
			p.advance()
			if !p.at(lexer.Symbol) {
				return nil, p.errorf("expected a name after 'as'")
			}
			alias = p.advance().Value
		}
		names = append(names, nodes.ImportName{Name: name, Alias: alias})
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	withContext := p.consumeWithContext()
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	n := &nodes.FromImport{Template: tmpl, Names: names, WithContext: withContext}
	n.Pos = start
	return n, nil
}

// parseMacro handles `{% macro name(args, kw=default) %}...{% endmacro %}`.
func (p *Parser) parseMacro(start nodes.Span) (nodes.Node, error) {
	p.advance() // macro
	if !p.at(lexer.Symbol) {
		return nil, p.errorf("expected macro name")
	}
	name := p.advance().Value
	args, defaults, err := p.parseMacroParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseBody("endmacro")
	if err != nil {
		return nil, err
	}
	if err := p.endTag("endmacro"); err != nil {
		return nil, err
	}
	n := &nodes.Macro{Name: name, Args: args, Defaults: defaults, Body: body}
	n.Pos = start
	return n, nil
}

// parseMacroParams parses `(a, b, c=1, d=2)`. Defaults is index-aligned to
// the trailing len(Defaults) entries of Args, mirroring Python-style
// keyword-defaultable parameter lists.
func (p *Parser) parseMacroParams() ([]string, []nodes.Node, error) {
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, nil, err
	}
	var args []string
	var defaults []nodes.Node
	for !p.at(lexer.RParen) {
		if !p.at(lexer.Symbol) {
			return nil, nil, p.errorf("expected a parameter name")
		}
		args = append(args, p.advance().Value)
		if p.cur().Kind == lexer.Operator && p.cur().Value == "=" {
			p.advance()
			def, err := p.parseExpression()
			if err != nil {
				return nil, nil, err
			}
			defaults = append(defaults, def)
		} else if len(defaults) > 0 {
			return nil, nil, p.errorf("non-default argument follows default argument")
		}
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, nil, err
	}
	return args, defaults, nil
}

// parseCall handles `{% call [(args)] macro(callArgs) %}body{% endcall %}`.
func (p *Parser) parseCall(start nodes.Span) (nodes.Node, error) {
	p.advance() // call
	var args []string
	var defaults []nodes.Node
	if p.at(lexer.LParen) {
		a, d, err := p.parseMacroParams()
		if err != nil {
			return nil, err
		}
		args, defaults = a, d
	}
	callExpr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	fc, ok := callExpr.(*nodes.FunCall)
	if !ok {
		return nil, p.errorf("expected a macro call after 'call'")
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseBody("endcall")
	if err != nil {
		return nil, err
	}
	if err := p.endTag("endcall"); err != nil {
		return nil, err
	}
	caller := &nodes.Caller{Args: args, Defaults: defaults, Body: body}
	caller.Pos = start
	n := &nodes.Call{Call: fc, Caller: caller}
	n.Pos = start
	return n, nil
}

// parseSet handles `{% set x = expr %}`, `{% set x, y = expr %}`, the
// block-capture form `{% set x %}...{% endset %}`, and the trailing-filter
// form `{% set x | filter %}...{% endset %}`.
func (p *Parser) parseSet(start nodes.Span) (nodes.Node, error) {
	p.advance() // set
	var targets nodes.NodeList
	for {
		t, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if p.cur().Kind == lexer.Operator && p.cur().Value == "=" {
		p.advance()
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.BlockEnd); err != nil {
			return nil, err
		}
		n := &nodes.Set{Targets: targets, Value: val}
		n.Pos = start
		return n, nil
	}
	filterName := ""
	// parsePostfix reads `x | upper` as a Filter applied to the target;
	// peel it back off into the trailing-filter name.
	if f, ok := targets[len(targets)-1].(*nodes.Filter); ok && len(f.Args) == 1 {
		targets[len(targets)-1] = f.Args[0]
		filterName = f.Name
	}
	if p.at(lexer.Pipe) {
		p.advance()
		if !p.at(lexer.Symbol) {
			return nil, p.errorf("expected filter name after '|'")
		}
		filterName = p.advance().Value
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseBody("endset")
	if err != nil {
		return nil, err
	}
	if err := p.endTag("endset"); err != nil {
		return nil, err
	}
	n := &nodes.Set{Targets: targets, Body: body, Filter: filterName}
	n.Pos = start
	return n, nil
}

// parseSwitch handles `{% switch expr %}{% case v %}...{% default %}...{% endswitch %}`.
func (p *Parser) parseSwitch(start nodes.Span) (nodes.Node, error) {
	p.advance() // switch
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	// Skip any stray text/whitespace before the first case.
	if _, err := p.parseBody("case", "default", "endswitch"); err != nil {
		return nil, err
	}
	var cases []nodes.SwitchCase
	var def nodes.NodeList
	for p.blockTagIsOneOf("case") {
		p.advance() // {%
		p.advance() // case
		caseExpr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.BlockEnd); err != nil {
			return nil, err
		}
		body, err := p.parseBody("case", "default", "endswitch")
		if err != nil {
			return nil, err
		}
		cases = append(cases, nodes.SwitchCase{Expr: caseExpr, Body: body})
	}
	if p.blockTagIsOneOf("default") {
		p.advance()
		p.advance()
		if _, err := p.expect(lexer.BlockEnd); err != nil {
			return nil, err
		}
		body, err := p.parseBody("endswitch")
		if err != nil {
			return nil, err
		}
		def = body
	}
	if err := p.endTag("endswitch"); err != nil {
		return nil, err
	}
	n := &nodes.Switch{Expr: expr, Cases: cases, Default: def}
	n.Pos = start
	return n, nil
}

// parseWith handles `{% with a = 1, b = 2 %}...{% endwith %}` (§11).
func (p *Parser) parseWith(start nodes.Span) (nodes.Node, error) {
	p.advance() // with
	var names []string
	var values nodes.NodeList
	for p.at(lexer.Symbol) {
		names = append(names, p.advance().Value)
		if _, err := p.expect(lexer.Operator); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		values = append(values, val)
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseBody("endwith")
	if err != nil {
		return nil, err
	}
	if err := p.endTag("endwith"); err != nil {
		return nil, err
	}
	n := &nodes.With{Names: names, Values: values, Body: body}
	n.Pos = start
	return n, nil
}

// parseFilterBlock handles `{% filter name(args) %}...{% endfilter %}` (§11).
func (p *Parser) parseFilterBlock(start nodes.Span) (nodes.Node, error) {
	p.advance() // filter
	if !p.at(lexer.Symbol) {
		return nil, p.errorf("expected filter name")
	}
	name := p.advance().Value
	var args nodes.NodeList
	if p.at(lexer.LParen) {
		a, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		args = a
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseBody("endfilter")
	if err != nil {
		return nil, err
	}
	if err := p.endTag("endfilter"); err != nil {
		return nil, err
	}
	capture := &nodes.Capture{Body: body}
	capture.Pos = start
	full := append(nodes.NodeList{capture}, args...)
	n := &nodes.Filter{Name: name, Args: full}
	n.Pos = start
	return n, nil
}

// parseCallExtension handles `{% extension [async] name.prop(args) %}content{% endextension %}`,
// a host-registered tag invoked as `env.getExtension(name)[prop](...)` (spec
// §4.5 CallExtension). The captured body becomes the single content thunk
// passed to the extension.
func (p *Parser) parseCallExtension(start nodes.Span) (nodes.Node, error) {
	p.advance() // extension
	async := false
	if p.atKeyword("async") {
		async = true
		p.advance()
	}
	if !p.at(lexer.Symbol) {
		return nil, p.errorf("expected extension name")
	}
	extName := p.advance().Value
	if _, err := p.expect(lexer.Dot); err != nil {
		return nil, err
	}
	if !p.at(lexer.Symbol) {
		return nil, p.errorf("expected extension property name")
	}
	prop := p.advance().Value
	var args nodes.NodeList
	if p.at(lexer.LParen) {
		a, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		args = a
	}
	if _, err := p.expect(lexer.BlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseBody("endextension")
	if err != nil {
		return nil, err
	}
	if err := p.endTag("endextension"); err != nil {
		return nil, err
	}
	n := &nodes.CallExtension{ExtName: extName, Prop: prop, Args: args, ContentArg: body, Async: async, Autoescape: true}
	n.Pos = start
	return n, nil
}
