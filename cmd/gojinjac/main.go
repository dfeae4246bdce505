// Command gojinjac precompiles a template file: it tokenizes, parses,
// applies the async-filter transform, and compiles it with
// compiler.CompileSource (an {% extends %} parent is not loaded),
// reporting the discovered block names and the template names the file
// itself references via extends, include, and import rather than
// rendering anything (spec §6). Referenced templates are not opened, so
// names that only they reference are not listed.
package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/deicod/gojinja/compiler"
	"github.com/deicod/gojinja/lexer"
	"github.com/deicod/gojinja/nodes"
	"github.com/deicod/gojinja/parser"
	"github.com/deicod/gojinja/runtime"
	"github.com/deicod/gojinja/transformer"
)

const (
	exitOK      = 0
	exitCompile = 1
	exitIO      = 2
)

var logger = log.New(os.Stderr, "gojinjac: ", log.LstdFlags)

// options is the `{ throwOnUndefined?, asyncFilters?, extensions? }` record
// spec §6 describes, decoded from --options-file and overlaid with flags.
type options struct {
	ThrowOnUndefined bool     `yaml:"throwOnUndefined"`
	AsyncFilters     []string `yaml:"asyncFilters"`
	Extensions       []struct {
		Preprocess string `yaml:"preprocess"`
	} `yaml:"extensions"`
}

func loadOptionsFile(path string) (options, error) {
	var o options
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return o, err
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("decoding %s: %w", path, err)
	}
	return o, nil
}

func main() {
	app := &cli.App{
		Name:  "gojinjac",
		Usage: "precompile templates and report blocks, reachable templates, and IR",
		Commands: []*cli.Command{
			compileCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		if ec, ok := err.(cli.ExitCoder); ok {
			os.Exit(ec.ExitCode())
		}
		logger.Println(err)
		os.Exit(exitIO)
	}
}

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "compile one or more template files",
		ArgsUsage: "FILE [FILE...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "throw-on-undefined", Usage: "fail rendering on an undefined variable lookup"},
			&cli.StringSliceFlag{Name: "async-filter", Usage: "register NAME as an async filter (repeatable)"},
			&cli.StringFlag{Name: "options-file", Usage: "YAML file with { throwOnUndefined, asyncFilters, extensions }"},
			&cli.StringFlag{Name: "o", Aliases: []string{"output"}, Usage: "write the IR report to this path instead of stdout"},
		},
		Action: runCompile,
	}
}

func runCompile(c *cli.Context) error {
	start := time.Now()
	files := c.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("no template files given", exitIO)
	}

	opts, err := loadOptionsFile(c.String("options-file"))
	if err != nil {
		logger.Printf("reading options file: %v", err)
		return cli.Exit("", exitIO)
	}
	if c.Bool("throw-on-undefined") {
		opts.ThrowOnUndefined = true
	}
	opts.AsyncFilters = append(opts.AsyncFilters, c.StringSlice("async-filter")...)
	for _, ext := range opts.Extensions {
		if ext.Preprocess != "" {
			logger.Printf("note: extension preprocess hook %q is declared but not applied (the compile command runs no preprocess hooks)", ext.Preprocess)
		}
	}

	logger.Printf("compiling %d file(s)", len(files))

	var out strings.Builder
	failed := false
	for _, path := range files {
		if err := compileOne(&out, path, opts); err != nil {
			if _, isCompileErr := err.(*runtime.Error); isCompileErr {
				failed = true
				printCompileError(path, err)
				continue
			}
			logger.Printf("%s: %v", path, err)
			return cli.Exit("", exitIO)
		}
	}

	logger.Printf("done in %s", time.Since(start))

	if w := c.String("o"); w != "" {
		if err := os.WriteFile(w, []byte(out.String()), 0o644); err != nil {
			logger.Printf("writing report: %v", err)
			return cli.Exit("", exitIO)
		}
	} else {
		fmt.Print(out.String())
	}

	if failed {
		return cli.Exit("", exitCompile)
	}
	return nil
}

func printCompileError(path string, err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(os.Stderr, "%s: %v\n", path, err)
}

// compileOne parses and compiles a single file, appending a textual report
// (block names, reachable template names, and an IR dump of the AST) to
// out. Parse/compile failures are returned as *runtime.Error so the caller
// can distinguish them from I/O failures.
func compileOne(out *strings.Builder, path string, opts options) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	root, err := parser.Parse(string(src), path, lexer.DefaultDelimiters())
	if err != nil {
		return toRuntimeErr(err, runtime.ParseErrorKind, path)
	}

	async := transformer.AsyncFilters{}
	for _, name := range opts.AsyncFilters {
		async[name] = true
	}
	root = transformer.Transform(root, async)

	env := runtime.New(
		runtime.WithCompileFunc(compiler.CompileSource),
		runtime.WithThrowOnUndefined(opts.ThrowOnUndefined),
		runtime.WithAsyncFilters(opts.AsyncFilters...),
	)
	tmpl, err := compiler.CompileSource(env, path, string(src))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "=== %s ===\n", path)
	fmt.Fprintf(out, "blocks: %s\n", strings.Join(sortedKeys(tmpl.Blocks), ", "))
	fmt.Fprintf(out, "reachable: %s\n", strings.Join(reachableTemplates(root, path), ", "))
	fmt.Fprintln(out, "ir:")
	dumpNode(out, root, 1)
	fmt.Fprintln(out)
	return nil
}

func toRuntimeErr(err error, kind runtime.ErrorKind, path string) error {
	if re, ok := err.(*runtime.Error); ok {
		return re
	}
	return runtime.NewError(kind, path, 0, 0, "%v", err)
}

func sortedKeys(m map[string]runtime.Proc) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// reachableTemplates walks root for Extends/Include/Import/FromImport
// targets that are constant string literals, returning the template names
// root references directly, which a build tool should treat as inputs
// alongside path (spec §11's supplemented precompile diagnostic). The
// referenced templates are not loaded, so their own references are not
// included.
func reachableTemplates(root *nodes.Root, self string) []string {
	seen := map[string]bool{}
	var walk func(nodes.Node)
	record := func(n nodes.Node) {
		if lit, ok := n.(*nodes.Literal); ok {
			if s, ok := lit.Value.(string); ok {
				seen[s] = true
			}
		}
	}
	walk = func(n nodes.Node) {
		switch x := n.(type) {
		case *nodes.Root:
			for _, c := range x.Children {
				walk(c)
			}
		case *nodes.Extends:
			record(x.Template)
		case *nodes.Include:
			record(x.Template)
		case *nodes.Import:
			record(x.Template)
		case *nodes.FromImport:
			record(x.Template)
		case *nodes.If:
			for _, c := range x.Body {
				walk(c)
			}
			for _, c := range x.Else {
				walk(c)
			}
		case *nodes.For:
			for _, c := range x.Body {
				walk(c)
			}
			for _, c := range x.Else {
				walk(c)
			}
		case *nodes.Block:
			for _, c := range x.Body {
				walk(c)
			}
		case *nodes.With:
			for _, c := range x.Body {
				walk(c)
			}
		case *nodes.Macro:
			for _, c := range x.Body {
				walk(c)
			}
		case *nodes.Switch:
			for _, sc := range x.Cases {
				for _, c := range sc.Body {
					walk(c)
				}
			}
			for _, c := range x.Default {
				walk(c)
			}
		}
	}
	walk(root)
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func dumpNode(out *strings.Builder, n nodes.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch x := n.(type) {
	case *nodes.Root:
		for _, c := range x.Children {
			dumpNode(out, c, depth)
		}
	case *nodes.TemplateData:
		fmt.Fprintf(out, "%sText(%q)\n", indent, x.Data)
	case *nodes.Output:
		fmt.Fprintf(out, "%sOutput\n", indent)
		for _, c := range x.Children {
			dumpNode(out, c, depth+1)
		}
	case *nodes.If:
		fmt.Fprintf(out, "%sIf\n", indent)
		dumpNode(out, x.Cond, depth+1)
		for _, c := range x.Body {
			dumpNode(out, c, depth+1)
		}
		if len(x.Else) > 0 {
			fmt.Fprintf(out, "%sElse\n", indent)
			for _, c := range x.Else {
				dumpNode(out, c, depth+1)
			}
		}
	case *nodes.For:
		fmt.Fprintf(out, "%sFor(%s)\n", indent, strings.Join(x.Targets, ", "))
		dumpNode(out, x.Array, depth+1)
		for _, c := range x.Body {
			dumpNode(out, c, depth+1)
		}
	case *nodes.Block:
		fmt.Fprintf(out, "%sBlock(%s)\n", indent, x.Name)
		for _, c := range x.Body {
			dumpNode(out, c, depth+1)
		}
	case *nodes.Extends:
		fmt.Fprintf(out, "%sExtends\n", indent)
		dumpNode(out, x.Template, depth+1)
	case *nodes.Macro:
		fmt.Fprintf(out, "%sMacro(%s)\n", indent, x.Name)
		for _, c := range x.Body {
			dumpNode(out, c, depth+1)
		}
	case *nodes.Symbol:
		fmt.Fprintf(out, "%sSymbol(%s)\n", indent, x.Name)
	case *nodes.Literal:
		fmt.Fprintf(out, "%sLiteral(%v)\n", indent, x.Value)
	case *nodes.Filter:
		fmt.Fprintf(out, "%sFilter(%s)\n", indent, x.Name)
		for _, a := range x.Args {
			dumpNode(out, a, depth+1)
		}
	case *nodes.FilterAsync:
		fmt.Fprintf(out, "%sFilterAsync(%s)\n", indent, x.Name)
		for _, a := range x.Args {
			dumpNode(out, a, depth+1)
		}
	default:
		fmt.Fprintf(out, "%s%T\n", indent, n)
	}
}
