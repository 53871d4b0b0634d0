// Command wisp runs wisp source files and provides a minimal REPL, a
// thin wrapper delegating the real work to pkg/driver.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wisp/pkg/ast"
	"wisp/pkg/compiler"
	"wisp/pkg/driver"
	"wisp/pkg/errors"
	"wisp/pkg/lexer"
	"wisp/pkg/modules"
	"wisp/pkg/parser"
	"wisp/pkg/source"
	"wisp/pkg/vm"
)

type stdoutSink struct{}

func (stdoutSink) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func main() {
	eval := flag.String("e", "", "evaluate a snippet and print its result")
	dump := flag.Bool("dump-bytecode", false, "print disassembled bytecode instead of running")
	tokens := flag.Bool("dump-tokens", false, "print the lexer's token stream instead of running")
	flag.Parse()

	if *eval != "" {
		runEval(*eval, *dump)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		repl()
		return
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	src := string(data)

	if *tokens {
		dumpTokens(src)
		return
	}

	root := filepath.Dir(path)
	s := driver.New(driver.Options{Stdout: stdoutSink{}, ModuleLoader: modules.NewFilesystemLoader(root)})

	if *dump {
		prog, errs := parse(src, path)
		if len(errs) > 0 {
			reportSyntax(errs)
			os.Exit(1)
		}
		c := compiler.New()
		desc := c.CompileProgram(prog)
		if len(c.Errors()) > 0 {
			reportCompile(c.Errors())
			os.Exit(1)
		}
		fmt.Print(vm.Disassemble(path, desc.Chunk))
		return
	}

	if _, err := s.Run(path, src); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runEval(src string, dump bool) {
	if dump {
		prog, errs := parse(src, "<eval>")
		if len(errs) > 0 {
			reportSyntax(errs)
			os.Exit(1)
		}
		c := compiler.New()
		desc := c.CompileProgram(prog)
		if len(c.Errors()) > 0 {
			reportCompile(c.Errors())
			os.Exit(1)
		}
		fmt.Print(vm.Disassemble("<eval>", desc.Chunk))
		return
	}
	s := driver.New(driver.Options{Stdout: stdoutSink{}})
	v, err := s.Eval(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !v.IsNone() {
		fmt.Println(s.Stringify(v))
	}
}

func repl() {
	s := driver.New(driver.Options{Stdout: stdoutSink{}})
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("wisp> ")
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			fmt.Print("wisp> ")
			continue
		}
		v, err := s.Eval(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		} else if !v.IsNone() {
			fmt.Println(s.Stringify(v))
		}
		fmt.Print("wisp> ")
	}
}

func parse(src, name string) (*ast.Program, []*errors.SyntaxError) {
	p := parser.New(source.New(name, name, src))
	return p.ParseProgram(), p.Errors()
}

func dumpTokens(src string) {
	lx := lexer.New(source.NewEval(src))
	for {
		tok := lx.NextToken()
		fmt.Printf("%-12s %q (line %d)\n", tok.Type, tok.Literal, tok.Line)
		if tok.Type == lexer.EOF {
			break
		}
	}
}

func reportSyntax(errs []*errors.SyntaxError) {
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, e.Error())
	}
}

func reportCompile(errs []*errors.CompileError) {
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, e.Error())
	}
}
