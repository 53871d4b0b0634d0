// Package compiler lowers an ast.Program into bytecode: a Compiler
// holding per-function state, a loop-context stack for break/continue,
// and a two-phase register allocator feeding the manual-refcount
// object model the VM runs on.
package compiler

import (
	"fmt"

	"wisp/pkg/ast"
	"wisp/pkg/errors"
	"wisp/pkg/vm"
)

// LoopContext tracks one enclosing loop's patch points so break/continue
// (optionally labeled) can jump to the right place once the loop's
// bounds are known.
type LoopContext struct {
	label           string
	continueTarget  int // byte offset `continue` jumps back to: the condition check of a while, the body start of a loop; -1 for a counting for-loop, where `continue` is a compile error
	breakOperands   []int
	continueOperands []int // unused: `continue` is always emitted as a direct backward jump
}

// FunctionState is the emitter's state for one function body: its
// builder (+ register allocator), its symbol table, and the loop stack
// active while compiling its body.
type FunctionState struct {
	builder   *Builder
	symtab    *SymbolTable
	parent    *FunctionState
	loops     []*LoopContext
	className string // "" unless compiling a method
	hasParent bool    // whether the owning class has a superclass (for `super` validation)
	isMethod  bool
	params    []*ast.Param

	moduleMode     bool
	moduleVarNames []string
}

// Compiler compiles one source unit (a REPL entry, a module, or a
// function nested within one) into vm bytecode.
type Compiler struct {
	errs []*errors.CompileError
}

func New() *Compiler { return &Compiler{} }

func (c *Compiler) Errors() []*errors.CompileError { return c.errs }

func (c *Compiler) errorf(pos errors.Position, format string, args ...interface{}) {
	c.errs = append(c.errs, &errors.CompileError{Position: pos, Msg: fmt.Sprintf(format, args...)})
}

// CompileProgram compiles a top-level program (REPL entry or script) into
// a FunctionDescriptor whose Chunk is the program's entry point. When the
// last statement is an expression, the chunk returns its value.
func (c *Compiler) CompileProgram(prog *ast.Program) *vm.FunctionDescriptor {
	fs := &FunctionState{builder: NewBuilder(), symtab: NewSymbolTable(nil)}
	stmts := prog.Statements
	if n := len(stmts); n > 0 {
		if es, ok := stmts[n-1].(*ast.ExpressionStatement); ok {
			if fn, isFn := es.Expr.(*ast.FunctionLiteral); !isFn || fn.Name == nil {
				c.compileStatements(fs, stmts[:n-1])
				reg := c.compileExpression(fs, es.Expr)
				fs.builder.Return(reg, es.Pos.Line)
				return &vm.FunctionDescriptor{Name: "<main>", Chunk: fs.builder.Finish()}
			}
		}
	}
	c.compileStatements(fs, stmts)
	fs.builder.ReturnNone(0)
	return &vm.FunctionDescriptor{Name: "<main>", Chunk: fs.builder.Finish()}
}

// CompileModule compiles a program as a module body, returning a
// ModuleDescriptor (its exported variable names are every name bound at
// the top level via `:=`, `fn` or `class`).
func (c *Compiler) CompileModule(path string, prog *ast.Program) *vm.ModuleDescriptor {
	fs := &FunctionState{builder: NewBuilder(), symtab: NewSymbolTable(nil)}
	fs.moduleMode = true
	c.compileStatements(fs, prog.Statements)
	fs.builder.ReturnNone(0)
	return &vm.ModuleDescriptor{Path: path, VarNames: fs.moduleVarNames, Chunk: fs.builder.Finish()}
}

func (c *Compiler) compileStatements(fs *FunctionState, stmts []ast.Statement) {
	for _, s := range stmts {
		c.compileStatement(fs, s)
	}
}

func (c *Compiler) compileStatement(fs *FunctionState, stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		if fn, ok := s.Expr.(*ast.FunctionLiteral); ok && fn.Name != nil {
			c.compileNamedFunction(fs, fn)
			return
		}
		c.compileExpression(fs, s.Expr)
	case *ast.LetStatement:
		reg := c.compileExpression(fs, s.Value)
		if fs.moduleMode && fs.symtab.top.parent == nil {
			idx := fs.builder.AddConstant(vm.Obj(vm.NewString(s.Name.Name)))
			fs.builder.SetModuleVar(reg, idx, s.Pos.Line)
			fs.moduleVarNames = append(fs.moduleVarNames, s.Name.Name)
		}
		if !fs.moduleMode && fs.parent == nil && fs.symtab.top.parent == nil {
			// top-level program binding: also publish it as a global so a
			// later Eval in the same session can read it
			idx := fs.builder.AddConstant(vm.Obj(vm.NewString(s.Name.Name)))
			fs.builder.SetGlobal(reg, idx, s.Pos.Line)
		}
		fs.symtab.Declare(s.Name.Name, reg)
	case *ast.PrintStatement:
		c.compilePrint(fs, s)
	case *ast.IfStatement:
		c.compileIf(fs, s)
	case *ast.WhileStatement:
		c.compileWhile(fs, s)
	case *ast.LoopStatement:
		c.compileLoop(fs, s)
	case *ast.ForRangeStatement:
		c.compileForRange(fs, s)
	case *ast.ForInStatement:
		c.errorf(s.Pos, "generic `for x in iter` is reserved and not implemented")
	case *ast.BreakStatement:
		c.compileBreak(fs, s)
	case *ast.ContinueStatement:
		c.compileContinue(fs, s)
	case *ast.ReturnStatement:
		c.compileReturn(fs, s)
	case *ast.ImportStatement:
		c.compileImport(fs, s)
	case *ast.ClassDeclaration:
		c.compileClass(fs, s)
	case *ast.BlockStatement:
		fs.symtab.PushScope()
		c.compileStatements(fs, s.Statements)
		fs.symtab.PopScope()
	default:
		c.errorf(stmt.Span(), "unsupported statement %T", stmt)
	}
}

func (c *Compiler) compilePrint(fs *FunctionState, s *ast.PrintStatement) {
	if len(s.Args) == 0 {
		fs.builder.Print(0, 0, s.Pos.Line)
		return
	}
	// OpPrint reads a consecutive register block, so the arguments are
	// moved into a group like a call's arguments.
	group := fs.builder.RA.Group(len(s.Args))
	for i, a := range s.Args {
		reg := c.compileExpression(fs, a)
		fs.builder.Move(group[i], reg, s.Pos.Line)
	}
	fs.builder.Print(group[0], len(s.Args), s.Pos.Line)
}

func (c *Compiler) compileIf(fs *FunctionState, s *ast.IfStatement) {
	cond := c.compileExpression(fs, s.Condition)
	jmpFalse := fs.builder.JumpIfFalse(cond, s.Pos.Line)
	fs.symtab.PushScope()
	c.compileStatements(fs, s.Consequence.Statements)
	fs.symtab.PopScope()
	if s.Alternative != nil {
		jmpEnd := fs.builder.Jump(s.Pos.Line)
		fs.builder.PatchJump(jmpFalse)
		c.compileStatement(fs, s.Alternative)
		fs.builder.PatchJump(jmpEnd)
	} else {
		fs.builder.PatchJump(jmpFalse)
	}
}

func (c *Compiler) compileWhile(fs *FunctionState, s *ast.WhileStatement) {
	condStart := fs.builder.here()
	cond := c.compileExpression(fs, s.Condition)
	exitJmp := fs.builder.JumpIfFalse(cond, s.Pos.Line)

	lc := &LoopContext{label: s.Label, continueTarget: condStart}
	fs.loops = append(fs.loops, lc)
	fs.symtab.PushScope()
	c.compileStatements(fs, s.Body.Statements)
	fs.symtab.PopScope()
	fs.loops = fs.loops[:len(fs.loops)-1]

	fs.builder.EmitJumpTo(condStart, s.Pos.Line)
	fs.builder.PatchJump(exitJmp)
	for _, op := range lc.breakOperands {
		fs.builder.PatchJump(op)
	}
	fs.builder.RA.ExtendLoopRange(condStart, fs.builder.here())
}

func (c *Compiler) compileLoop(fs *FunctionState, s *ast.LoopStatement) {
	start := fs.builder.here()
	lc := &LoopContext{label: s.Label, continueTarget: start}
	fs.loops = append(fs.loops, lc)
	fs.symtab.PushScope()
	c.compileStatements(fs, s.Body.Statements)
	fs.symtab.PopScope()
	fs.loops = fs.loops[:len(fs.loops)-1]

	fs.builder.EmitJumpTo(start, s.Pos.Line)
	for _, op := range lc.breakOperands {
		fs.builder.PatchJump(op)
	}
	fs.builder.RA.ExtendLoopRange(start, fs.builder.here())
}

// compileForRange lowers `for i in a..b` / `a..=b` into a counting loop
// using a hidden limit register, re-checked each iteration.
func (c *Compiler) compileForRange(fs *FunctionState, s *ast.ForRangeStatement) {
	fs.symtab.PushScope()
	startReg := c.compileExpression(fs, s.Start)
	limitReg := c.compileExpression(fs, s.End)
	iVar := fs.builder.RA.Alloc()
	fs.builder.Move(iVar, startReg, s.Pos.Line)
	fs.symtab.Declare(s.Var.Name, iVar)

	loopStart := fs.builder.here()
	cmp := fs.builder.RA.Alloc()
	cmpOp := vm.OpLt
	if s.Inclusive {
		cmpOp = vm.OpLe
	}
	fs.builder.Binary(cmpOp, cmp, iVar, limitReg, s.Pos.Line)
	exitJmp := fs.builder.JumpIfFalse(cmp, s.Pos.Line)

	lc := &LoopContext{label: s.Label, continueTarget: -1}
	fs.loops = append(fs.loops, lc)
	c.compileStatements(fs, s.Body.Statements)
	fs.loops = fs.loops[:len(fs.loops)-1]

	one := fs.builder.AddConstant(vm.Int(1))
	oneReg := fs.builder.RA.Alloc()
	fs.builder.LoadConst(oneReg, one, s.Pos.Line)
	fs.builder.Binary(vm.OpAdd, iVar, iVar, oneReg, s.Pos.Line)
	fs.builder.EmitJumpTo(loopStart, s.Pos.Line)
	fs.builder.PatchJump(exitJmp)
	for _, op := range lc.breakOperands {
		fs.builder.PatchJump(op)
	}
	fs.builder.RA.ExtendLoopRange(loopStart, fs.builder.here())
	fs.symtab.PopScope()
}

func (c *Compiler) findLoop(fs *FunctionState, label string) *LoopContext {
	if label == "" {
		if len(fs.loops) == 0 {
			return nil
		}
		return fs.loops[len(fs.loops)-1]
	}
	for i := len(fs.loops) - 1; i >= 0; i-- {
		if fs.loops[i].label == label {
			return fs.loops[i]
		}
	}
	return nil
}

func (c *Compiler) compileBreak(fs *FunctionState, s *ast.BreakStatement) {
	lc := c.findLoop(fs, s.Label)
	if lc == nil {
		c.errorf(s.Pos, "break used outside a loop")
		return
	}
	op := fs.builder.Jump(s.Pos.Line)
	lc.breakOperands = append(lc.breakOperands, op)
}

func (c *Compiler) compileContinue(fs *FunctionState, s *ast.ContinueStatement) {
	lc := c.findLoop(fs, s.Label)
	if lc == nil {
		c.errorf(s.Pos, "continue used outside a loop")
		return
	}
	if lc.continueTarget >= 0 {
		fs.builder.EmitJumpTo(lc.continueTarget, s.Pos.Line)
		return
	}
	c.errorf(s.Pos, "continue is not supported inside a counting for-loop")
}

func (c *Compiler) compileReturn(fs *FunctionState, s *ast.ReturnStatement) {
	if s.Value == nil {
		fs.builder.ReturnNone(s.Pos.Line)
		return
	}
	reg := c.compileExpression(fs, s.Value)
	fs.builder.Return(reg, s.Pos.Line)
}

func (c *Compiler) compileImport(fs *FunctionState, s *ast.ImportStatement) {
	full := ""
	for i, seg := range s.Path {
		if i > 0 {
			full += "."
		}
		full += seg
	}
	idx := fs.builder.AddConstant(vm.Obj(vm.NewString(full)))
	dst := fs.builder.RA.Alloc()
	fs.builder.Import(dst, idx, s.Pos.Line)
	name := s.Alias
	if name == "" {
		name = s.Path[len(s.Path)-1]
	}
	fs.symtab.Declare(name, dst)
}
