// Package driver wires the lexer, parser, compiler and vm into an
// embedder-facing API: one long-lived VM plus a persistent global
// table across repeated Eval calls, so a REPL session keeps state
// between entries.
package driver

import (
	"fmt"

	"wisp/pkg/ast"
	"wisp/pkg/compiler"
	"wisp/pkg/errors"
	"wisp/pkg/parser"
	"wisp/pkg/source"
	"wisp/pkg/vm"
)

// Options configures a Session.
type Options struct {
	Stdout       vm.Sink
	ModuleLoader vm.ModuleLoader
}

// Session is a persistent embedding context: one VM, one global table,
// surviving across repeated Eval calls.
type Session struct {
	vm *vm.VM
}

func New(opts Options) *Session {
	s := &Session{vm: vm.New(opts.Stdout, opts.ModuleLoader)}
	s.vm.Modules.SetCompiler(func(path, src, display string) (*vm.ModuleDescriptor, error) {
		prog, errs := parseSource(source.New(display, display, src))
		if len(errs) > 0 {
			return nil, diagnosticError(errs)
		}
		c := compiler.New()
		desc := c.CompileModule(path, prog)
		if len(c.Errors()) > 0 {
			return nil, compileDiagnosticError(c.Errors())
		}
		return desc, nil
	})
	return s
}

// Check lexes, parses and compiles src, returning every syntax/compile
// diagnostic without executing anything.
func (s *Session) Check(src string) []errors.WispError {
	prog, errs := parseSource(source.NewEval(src))
	var out []errors.WispError
	for _, e := range errs {
		out = append(out, e)
	}
	if len(errs) > 0 {
		return out
	}
	c := compiler.New()
	c.CompileProgram(prog)
	for _, e := range c.Errors() {
		out = append(out, e)
	}
	return out
}

// Eval compiles and runs src against this session's persistent VM and
// globals, returning the value of its final expression (or None).
func (s *Session) Eval(src string) (vm.Value, error) {
	prog, errs := parseSource(source.NewEval(src))
	if len(errs) > 0 {
		return vm.None(), diagnosticError(errs)
	}
	c := compiler.New()
	desc := c.CompileProgram(prog)
	if len(c.Errors()) > 0 {
		return vm.None(), compileDiagnosticError(c.Errors())
	}
	return s.vm.RunChunk("<eval>", desc.Chunk)
}

// Run compiles and executes a whole source file as the program entry
// point (as opposed to Eval's REPL-entry semantics).
func (s *Session) Run(name, src string) (vm.Value, error) {
	prog, errs := parseSource(source.New(name, name, src))
	if len(errs) > 0 {
		return vm.None(), diagnosticError(errs)
	}
	c := compiler.New()
	desc := c.CompileProgram(prog)
	if len(c.Errors()) > 0 {
		return vm.None(), compileDiagnosticError(c.Errors())
	}
	return s.vm.RunChunk(name, desc.Chunk)
}

// Stringify renders v the way `print` would.
func (s *Session) Stringify(v vm.Value) string { return vm.Stringify(v) }

// VM exposes the underlying VM for embedders that need lower-level access
// (registering additional natives, inspecting Globals, etc).
func (s *Session) VM() *vm.VM { return s.vm }

func parseSource(src *source.File) (*ast.Program, []*errors.SyntaxError) {
	p := parser.New(src)
	prog := p.ParseProgram()
	return prog, p.Errors()
}

func diagnosticError(errs []*errors.SyntaxError) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Errorf("%d syntax errors, first: %s", len(errs), errs[0].Error())
}

func compileDiagnosticError(errs []*errors.CompileError) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Errorf("%d compile errors, first: %s", len(errs), errs[0].Error())
}
