// Package parser consumes a lexer.Token stream and produces a typed AST of
// nodes.Node values (spec §4.2).
package parser

import (
	"fmt"

	"github.com/deicod/gojinja/lexer"
	"github.com/deicod/gojinja/nodes"
)

// Error is a parse failure naming the offending token's span and the
// expected production, per spec §4.2.
type Error struct {
	Message string
	Line    int
	Col     int
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Message)
}

// Parser walks a token stream with one token of lookahead.
type Parser struct {
	toks []lexer.Token
	pos  int
	name string
}

// Parse tokenizes src with the given delimiters and parses it into a Root.
func Parse(src, templateName string, delim lexer.Delimiters) (*nodes.Root, error) {
	toks, err := lexer.Tokenize(src, delim)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, name: templateName}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.EOF) {
		return nil, p.errorf("unexpected trailing input")
	}
	root := &nodes.Root{Children: body}
	root.Pos = nodes.Span{Line: 1, Col: 1}
	return root, nil
}

func (p *Parser) cur() lexer.Token { return p.toks[p.pos] }

func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) atKeyword(kw string) bool {
	return p.cur().Kind == lexer.Symbol && p.cur().Value == kw
}

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if !p.at(k) {
		return lexer.Token{}, p.errorf("expected %s, got %s %q", k, p.cur().Kind, p.cur().Value)
	}
	return p.advance(), nil
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errorf("expected keyword %q, got %q", kw, p.cur().Value)
	}
	p.advance()
	return nil
}

func (p *Parser) span() nodes.Span {
	return nodes.Span{Line: p.cur().Line, Col: p.cur().Col}
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return &Error{Message: fmt.Sprintf(format, args...), Line: p.cur().Line, Col: p.cur().Col}
}

// parseBody parses statements until EOF or until a block-end keyword
// (endfor, endif, else, elif, endblock, ...) is seen as the next block tag's
// keyword. It never consumes the end tag itself; the caller does.
func (p *Parser) parseBody(endKeywords ...string) (nodes.NodeList, error) {
	var out nodes.NodeList
	for {
		switch p.cur().Kind {
		case lexer.EOF:
			return out, nil
		case lexer.Text:
			t := p.advance()
			td := &nodes.TemplateData{Data: t.Value}
			td.Pos = nodes.Span{Line: t.Line, Col: t.Col}
			out = append(out, td)
		case lexer.VariableStart:
			n, err := p.parseOutput()
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		case lexer.BlockStart:
			if p.blockTagIsOneOf(endKeywords...) {
				return out, nil
			}
			n, err := p.parseBlockTag()
			if err != nil {
				return nil, err
			}
			if n != nil {
				out = append(out, n)
			}
		default:
			return nil, p.errorf("unexpected token %s", p.cur().Kind)
		}
	}
}

// blockTagIsOneOf peeks past a BlockStart token to see whether the
// following keyword matches one of the given names, without consuming
// anything.
func (p *Parser) blockTagIsOneOf(keywords ...string) bool {
	if len(keywords) == 0 {
		return false
	}
	if p.pos+1 >= len(p.toks) {
		return false
	}
	next := p.toks[p.pos+1]
	if next.Kind != lexer.Symbol {
		return false
	}
	for _, kw := range keywords {
		if next.Value == kw {
			return true
		}
	}
	return false
}

func (p *Parser) parseOutput() (nodes.Node, error) {
	start := p.span()
	p.advance() // {{
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.VariableEnd); err != nil {
		return nil, err
	}
	out := &nodes.Output{Children: nodes.NodeList{expr}}
	out.Pos = start
	return out, nil
}
