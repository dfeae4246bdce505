package transformer

import (
	"testing"

	"github.com/deicod/gojinja/lexer"
	"github.com/deicod/gojinja/nodes"
	"github.com/deicod/gojinja/parser"
)

func parseRoot(t *testing.T, src string) *nodes.Root {
	t.Helper()
	root, err := parser.Parse(src, "<test>", lexer.DefaultDelimiters())
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", src, err)
	}
	return root
}

func TestTransformRewritesAsyncFilterToFilterAsync(t *testing.T) {
	root := parseRoot(t, `{{ city | geocode }}`)
	root = Transform(root, AsyncFilters{"geocode": true})

	out := root.Children[0].(*nodes.Output)
	if _, ok := out.Children[0].(*nodes.FilterAsync); !ok {
		t.Fatalf("expected geocode filter to become FilterAsync, got %T", out.Children[0])
	}
}

func TestTransformLeavesUnregisteredFiltersAlone(t *testing.T) {
	root := parseRoot(t, `{{ name | upper }}`)
	root = Transform(root, AsyncFilters{"geocode": true})

	out := root.Children[0].(*nodes.Output)
	if _, ok := out.Children[0].(*nodes.Filter); !ok {
		t.Fatalf("expected a synchronous Filter node for 'upper', got %T", out.Children[0])
	}
}

func TestTransformRecursesIntoIfAndForBodies(t *testing.T) {
	root := parseRoot(t, `{% if true %}{{ x | geocode }}{% endif %}{% for y in items %}{{ y | geocode }}{% endfor %}`)
	root = Transform(root, AsyncFilters{"geocode": true})

	ifNode := root.Children[0].(*nodes.If)
	ifOut := ifNode.Body[0].(*nodes.Output)
	if _, ok := ifOut.Children[0].(*nodes.FilterAsync); !ok {
		t.Fatalf("expected async rewrite inside an If body, got %T", ifOut.Children[0])
	}

	forNode := root.Children[1].(*nodes.For)
	forOut := forNode.Body[0].(*nodes.Output)
	if _, ok := forOut.Children[0].(*nodes.FilterAsync); !ok {
		t.Fatalf("expected async rewrite inside a For body, got %T", forOut.Children[0])
	}
}

func TestTransformRecursesIntoFilterBlockBody(t *testing.T) {
	root := parseRoot(t, `{% filter upper %}{{ x | geocode }}{% endfilter %}`)
	root = Transform(root, AsyncFilters{"geocode": true})

	f := root.Children[0].(*nodes.Filter)
	capture := f.Args[0].(*nodes.Capture)
	out := capture.Body[0].(*nodes.Output)
	if _, ok := out.Children[0].(*nodes.FilterAsync); !ok {
		t.Fatalf("expected async rewrite inside a filter block's captured body, got %T", out.Children[0])
	}
}

func TestTransformRecursesIntoCallExtensionArgsAndContent(t *testing.T) {
	root := parseRoot(t, `{% extension logger.emit(city | geocode) %}{{ city | geocode }}{% endextension %}`)
	root = Transform(root, AsyncFilters{"geocode": true})

	ce := root.Children[0].(*nodes.CallExtension)
	if _, ok := ce.Args[0].(*nodes.FilterAsync); !ok {
		t.Fatalf("expected async rewrite inside CallExtension args, got %T", ce.Args[0])
	}
	out := ce.ContentArg[0].(*nodes.Output)
	if _, ok := out.Children[0].(*nodes.FilterAsync); !ok {
		t.Fatalf("expected async rewrite inside CallExtension content, got %T", out.Children[0])
	}
}
