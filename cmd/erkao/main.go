// Command erkao runs a single .ek source file end to end: tokenize,
// compile to a root Function, interpret on a fresh VM. Grounded on
// Dev-Dami-DYMS-Lang/main.go's arg-parsing/extension-check/read-file
// shape, generalized from its lexer/parser/hybrid-engine pipeline to
// this repo's lexer/compiler/vm one. The CLI surface itself is out of
// spec.md's scope, so this stays as thin as the teacher's own main.go.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"erkao/internal/compiler"
	"erkao/internal/lexer"
	"erkao/internal/resolver"
	"erkao/internal/stdlib"
	"erkao/internal/vm"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <file.ek>\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	path := flag.Arg(0)
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".ek" {
		fmt.Fprintf(os.Stderr, "error: only .ek files are supported (got %s)\n", ext)
		os.Exit(1)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	tokens := lexer.Tokenize(string(source))
	root, diags := compiler.Compile(tokens, path, string(source))
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.WithSnippet(string(source)))
		}
		os.Exit(1)
	}

	machine := vm.New(resolver.NewFileResolver())
	stdlib.Register(machine)

	if _, rerr := machine.Interpret(root); rerr != nil {
		fmt.Fprintln(os.Stderr, rerr.WithSnippet(string(source)))
		os.Exit(1)
	}
}
