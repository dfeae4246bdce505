package parser

import (
	"github.com/deicod/gojinja/lexer"
	"github.com/deicod/gojinja/nodes"
)

// parseExpression is the grammar entry point, spec §4.2:
// inlineIf → or → and → not → comparison → concat → add/sub →
// mul/div/floordiv/mod → pow → unary → postfix → primary.
func (p *Parser) parseExpression() (nodes.Node, error) {
	return p.parseInlineIf()
}

func (p *Parser) parseInlineIf() (nodes.Node, error) {
	body, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("if") {
		start := body.Span()
		p.advance()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		var elseExpr nodes.Node
		if p.atKeyword("else") {
			p.advance()
			elseExpr, err = p.parseInlineIf()
			if err != nil {
				return nil, err
			}
		}
		n := &nodes.InlineIf{Cond: cond, Body: body, Else: elseExpr}
		n.Pos = start
		return n, nil
	}
	return body, nil
}

func (p *Parser) parseOr() (nodes.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("or") {
		start := left.Span()
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		n := &nodes.BinOp{Op: nodes.OpOr, Left: left, Right: right}
		n.Pos = start
		left = n
	}
	return left, nil
}

func (p *Parser) parseAnd() (nodes.Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("and") {
		start := left.Span()
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		n := &nodes.BinOp{Op: nodes.OpAnd, Left: left, Right: right}
		n.Pos = start
		left = n
	}
	return left, nil
}

func (p *Parser) parseNot() (nodes.Node, error) {
	if p.atKeyword("not") {
		start := p.span()
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		n := &nodes.UnaryOp{Op: nodes.OpNot, Expr: operand}
		n.Pos = start
		return n, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]string{"==": "==", "!=": "!=", "<": "<", ">": ">", "<=": "<=", ">=": ">="}

// parseComparison implements spec §4.2's "is / in parse at the comparison
// level"; `not in` and `is not` are recognised as single operators. A chain
// of ==, !=, <, >, <=, >= collapses into one Compare node; `in`/`is` stand
// alone at this level (Jinja templates do not chain them with comparisons).
func (p *Parser) parseComparison() (nodes.Node, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	switch {
	case p.atKeyword("in"):
		p.advance()
		rhs, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		n := &nodes.In{Left: left, Right: rhs}
		n.Pos = left.Span()
		return n, nil
	case p.atKeyword("not") && p.peekIsKeyword(1, "in"):
		p.advance()
		p.advance()
		rhs, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		n := &nodes.In{Left: left, Right: rhs, Negate: true}
		n.Pos = left.Span()
		return n, nil
	case p.atKeyword("is"):
		p.advance()
		negate := false
		if p.atKeyword("not") {
			negate = true
			p.advance()
		}
		name, args, err := p.parseTestSpec()
		if err != nil {
			return nil, err
		}
		n := &nodes.Is{Left: left, Name: name, Args: args, Negate: negate}
		n.Pos = left.Span()
		return n, nil
	}
	var ops []nodes.CompareOp
	for p.cur().Kind == lexer.Operator && compareOps[p.cur().Value] != "" {
		op := p.advance().Value
		rhs, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		ops = append(ops, nodes.CompareOp{Type: op, Expr: rhs})
	}
	if len(ops) > 0 {
		n := &nodes.Compare{Expr: left, Ops: ops}
		n.Pos = left.Span()
		return n, nil
	}
	return left, nil
}

func (p *Parser) peekIsKeyword(ahead int, kw string) bool {
	idx := p.pos + ahead
	if idx >= len(p.toks) {
		return false
	}
	t := p.toks[idx]
	return t.Kind == lexer.Symbol && t.Value == kw
}

// parseTestSpec parses the name and optional call-args of an `is` test,
// e.g. `is divisibleby(3)` or `is defined`.
func (p *Parser) parseTestSpec() (string, nodes.NodeList, error) {
	if !p.at(lexer.Symbol) {
		return "", nil, p.errorf("expected test name after 'is'")
	}
	name := p.advance().Value
	var args nodes.NodeList
	if p.at(lexer.LParen) {
		p.advance()
		for !p.at(lexer.RParen) {
			arg, err := p.parseExpression()
			if err != nil {
				return "", nil, err
			}
			args = append(args, arg)
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return "", nil, err
		}
	}
	return name, args, nil
}

func (p *Parser) parseConcat() (nodes.Node, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.Tilde) {
		start := left.Span()
		p.advance()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		n := &nodes.BinOp{Op: nodes.OpConcat, Left: left, Right: right}
		n.Pos = start
		left = n
	}
	return left, nil
}

func (p *Parser) parseAddSub() (nodes.Node, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.Operator && (p.cur().Value == "+" || p.cur().Value == "-") {
		op := p.advance().Value
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		kind := nodes.OpAdd
		if op == "-" {
			kind = nodes.OpSub
		}
		n := &nodes.BinOp{Op: kind, Left: left, Right: right}
		n.Pos = left.Span()
		left = n
	}
	return left, nil
}

func (p *Parser) parseMulDiv() (nodes.Node, error) {
	left, err := p.parsePow()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.Operator && isMulDivOp(p.cur().Value) {
		op := p.advance().Value
		right, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		n := &nodes.BinOp{Op: mulDivKind(op), Left: left, Right: right}
		n.Pos = left.Span()
		left = n
	}
	return left, nil
}

func isMulDivOp(v string) bool {
	return v == "*" || v == "/" || v == "//" || v == "%"
}

func mulDivKind(op string) string {
	switch op {
	case "*":
		return nodes.OpMul
	case "/":
		return nodes.OpDiv
	case "//":
		return nodes.OpFloorDiv
	default:
		return nodes.OpMod
	}
}

func (p *Parser) parsePow() (nodes.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == lexer.Operator && p.cur().Value == "**" {
		p.advance()
		right, err := p.parsePow() // right-associative
		if err != nil {
			return nil, err
		}
		n := &nodes.BinOp{Op: nodes.OpPow, Left: left, Right: right}
		n.Pos = left.Span()
		return n, nil
	}
	return left, nil
}

func (p *Parser) parseUnary() (nodes.Node, error) {
	if p.cur().Kind == lexer.Operator && (p.cur().Value == "-" || p.cur().Value == "+") {
		start := p.span()
		op := p.advance().Value
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		kind := nodes.OpPos
		if op == "-" {
			kind = nodes.OpNeg
		}
		n := &nodes.UnaryOp{Op: kind, Expr: operand}
		n.Pos = start
		return n, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles the left-associative chain of filters, calls, and
// lookups that can trail a primary expression: x.attr, x[i], x(args),
// x | f | g(a).
func (p *Parser) parsePostfix() (nodes.Node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(lexer.Dot):
			p.advance()
			if !p.at(lexer.Symbol) {
				return nil, p.errorf("expected attribute name after '.'")
			}
			name := p.advance().Value
			lit := &nodes.Literal{Value: name}
			lit.Pos = expr.Span()
			n := &nodes.LookupVal{Target: expr, Val: lit}
			n.Pos = expr.Span()
			expr = n
		case p.at(lexer.LBracket):
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBracket); err != nil {
				return nil, err
			}
			n := &nodes.LookupVal{Target: expr, Val: idx}
			n.Pos = expr.Span()
			expr = n
		case p.at(lexer.LParen):
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			n := &nodes.FunCall{Callee: expr, Args: args}
			n.Pos = expr.Span()
			expr = n
		case p.at(lexer.Pipe):
			p.advance()
			if !p.at(lexer.Symbol) {
				return nil, p.errorf("expected filter name after '|'")
			}
			name := p.advance().Value
			var args nodes.NodeList
			if p.at(lexer.LParen) {
				args, err = p.parseCallArgs()
				if err != nil {
					return nil, err
				}
			}
			full := append(nodes.NodeList{expr}, args...)
			n := &nodes.Filter{Name: name, Args: full}
			n.Pos = expr.Span()
			expr = n
		default:
			return expr, nil
		}
	}
}

// parseCallArgs parses `(a, b, name=expr, ...)`. Trailing `name=expr` pairs
// collapse into a single Dict flagged IsKeywords, per spec §3's invariant
// that the last positional argument is keyword-args iff flagged.
func (p *Parser) parseCallArgs() (nodes.NodeList, error) {
	start := p.span()
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	var args nodes.NodeList
	var kwPairs []nodes.Pair
	for !p.at(lexer.RParen) {
		if p.at(lexer.Symbol) && p.peekIsOperator(1, "=") {
			name := p.advance().Value
			p.advance() // =
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			keyLit := &nodes.Literal{Value: name}
			keyLit.Pos = val.Span()
			kwPairs = append(kwPairs, nodes.Pair{Key: keyLit, Value: val})
		} else {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	if len(kwPairs) > 0 {
		d := &nodes.Dict{Pairs: kwPairs, IsKeywords: true}
		d.Pos = start
		kw := &nodes.KeywordArgs{Dict: d}
		kw.Pos = start
		args = append(args, kw)
	}
	return args, nil
}

func (p *Parser) peekIsOperator(ahead int, op string) bool {
	idx := p.pos + ahead
	if idx >= len(p.toks) {
		return false
	}
	t := p.toks[idx]
	return t.Kind == lexer.Operator && t.Value == op
}

func (p *Parser) parsePrimary() (nodes.Node, error) {
	start := p.span()
	switch p.cur().Kind {
	case lexer.Integer:
		v := p.advance().Value
		n := &nodes.Literal{Value: parseIntLiteral(v)}
		n.Pos = start
		return n, nil
	case lexer.Float:
		v := p.advance().Value
		n := &nodes.Literal{Value: parseFloatLiteral(v)}
		n.Pos = start
		return n, nil
	case lexer.String:
		v := p.advance().Value
		n := &nodes.Literal{Value: v}
		n.Pos = start
		return n, nil
	case lexer.Boolean:
		v := p.advance().Value
		n := &nodes.Literal{Value: v == "true"}
		n.Pos = start
		return n, nil
	case lexer.None:
		p.advance()
		n := &nodes.Literal{Value: nil}
		n.Pos = start
		return n, nil
	case lexer.Symbol:
		name := p.advance().Value
		n := &nodes.Symbol{Name: name, Ctx: nodes.CtxLoad}
		n.Pos = start
		return n, nil
	case lexer.LParen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.at(lexer.Comma) {
			// tuple literal, modelled as an ArrayNode
			items := nodes.NodeList{inner}
			for p.at(lexer.Comma) {
				p.advance()
				if p.at(lexer.RParen) {
					break
				}
				item, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := p.expect(lexer.RParen); err != nil {
				return nil, err
			}
			n := &nodes.ArrayNode{Items: items}
			n.Pos = start
			return n, nil
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		g := &nodes.Group{Inner: inner}
		g.Pos = start
		return g, nil
	case lexer.LBracket:
		p.advance()
		var items nodes.NodeList
		for !p.at(lexer.RBracket) {
			item, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.RBracket); err != nil {
			return nil, err
		}
		n := &nodes.ArrayNode{Items: items}
		n.Pos = start
		return n, nil
	case lexer.LBrace:
		return p.parseDict()
	}
	return nil, p.errorf("unexpected token %s %q in expression", p.cur().Kind, p.cur().Value)
}

// parseDict parses `{ key: value, ... }`. Spec §3 invariant: keys must be
// Symbols or string Literals, never general expressions.
func (p *Parser) parseDict() (nodes.Node, error) {
	start := p.span()
	p.advance() // {
	var pairs []nodes.Pair
	for !p.at(lexer.RBrace) {
		var key nodes.Node
		switch p.cur().Kind {
		case lexer.String:
			v := p.advance().Value
			lit := &nodes.Literal{Value: v}
			lit.Pos = p.span()
			key = lit
		case lexer.Symbol:
			v := p.advance().Value
			lit := &nodes.Literal{Value: v}
			lit.Pos = p.span()
			key = lit
		default:
			return nil, p.errorf("dict keys must be a string or a name, got %s", p.cur().Kind)
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, nodes.Pair{Key: key, Value: val})
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	n := &nodes.Dict{Pairs: pairs}
	n.Pos = start
	return n, nil
}

func parseIntLiteral(s string) int64 {
	var v int64
	for _, c := range s {
		v = v*10 + int64(c-'0')
	}
	return v
}

func parseFloatLiteral(s string) float64 {
	var intPart, fracPart string
	for i, c := range s {
		if c == '.' {
			intPart, fracPart = s[:i], s[i+1:]
			break
		}
	}
	var v float64
	for _, c := range intPart {
		v = v*10 + float64(c-'0')
	}
	div := 1.0
	for _, c := range fracPart {
		div *= 10
		v += float64(c-'0') / div
	}
	return v
}
