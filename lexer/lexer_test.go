package lexer

import "testing"

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func containsKind(toks []Token, k Kind) bool {
	for _, t := range toks {
		if t.Kind == k {
			return true
		}
	}
	return false
}

func TestTokenizePlainText(t *testing.T) {
	toks, err := Tokenize("hello world", DefaultDelimiters())
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if !containsKind(toks, Text) {
		t.Fatalf("expected a TEXT token, got %v", kinds(toks))
	}
}

func TestTokenizeVariableExpression(t *testing.T) {
	toks, err := Tokenize("{{ name }}", DefaultDelimiters())
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if !containsKind(toks, VariableStart) || !containsKind(toks, VariableEnd) {
		t.Fatalf("expected VARIABLE_START/END tokens, got %v", kinds(toks))
	}
	if !containsKind(toks, Symbol) {
		t.Fatalf("expected a SYMBOL token for 'name', got %v", kinds(toks))
	}
}

func TestTokenizeBlockTag(t *testing.T) {
	toks, err := Tokenize("{% if x %}y{% endif %}", DefaultDelimiters())
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if !containsKind(toks, BlockStart) || !containsKind(toks, BlockEnd) {
		t.Fatalf("expected BLOCK_START/END tokens, got %v", kinds(toks))
	}
}

func TestTokenizeStringAndNumberLiterals(t *testing.T) {
	toks, err := Tokenize(`{{ "hi" }}{{ 1.5 }}{{ 3 }}`, DefaultDelimiters())
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if !containsKind(toks, String) {
		t.Fatalf("expected a STRING token, got %v", kinds(toks))
	}
	if !containsKind(toks, Float) {
		t.Fatalf("expected a FLOAT token, got %v", kinds(toks))
	}
	if !containsKind(toks, Integer) {
		t.Fatalf("expected an INTEGER token, got %v", kinds(toks))
	}
}

func TestTokenizeComment(t *testing.T) {
	toks, err := Tokenize("before{# a comment #}after", DefaultDelimiters())
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if !containsKind(toks, CommentStart) || !containsKind(toks, CommentEnd) {
		t.Fatalf("expected COMMENT_START/END tokens, got %v", kinds(toks))
	}
}

func TestTokenizeTrimMarkersStripWhitespace(t *testing.T) {
	toks, err := Tokenize("a  {%- if true -%}  b", DefaultDelimiters())
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	var texts []string
	for _, tok := range toks {
		if tok.Kind == Text {
			texts = append(texts, tok.Value)
		}
	}
	if len(texts) != 2 || texts[0] != "a" || texts[1] != "b" {
		t.Fatalf("expected trim markers to strip adjoining whitespace, got texts %q", texts)
	}
}

func TestTokenizeUnterminatedTagErrors(t *testing.T) {
	if _, err := Tokenize("{{ name ", DefaultDelimiters()); err == nil {
		t.Fatalf("expected an error for an unterminated variable tag")
	}
}
