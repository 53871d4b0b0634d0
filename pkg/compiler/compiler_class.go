package compiler

import (
	"wisp/pkg/ast"
	"wisp/pkg/vm"
)

// compileNamedFunction handles `fn name(...):` declarations: the name is
// declared against its own register *before* the body is compiled, so a
// recursive call inside the body resolves to it (as a local if the
// recursive call is in the same scope, as an upvalue if it's nested
// deeper) instead of falling through to a global lookup.
func (c *Compiler) compileNamedFunction(fs *FunctionState, lit *ast.FunctionLiteral) {
	dst := fs.builder.RA.Alloc()
	fs.symtab.Declare(lit.Name.Name, dst)

	desc := c.compileFunction(fs, lit, "", false, false)
	idx := fs.builder.AddConstant(vm.NewFuncConstHolder(desc))
	fs.builder.MakeClosure(dst, idx, lit.Pos.Line)

	if fs.moduleMode && fs.symtab.top.parent == nil {
		nameIdx := fs.builder.AddConstant(vm.Obj(vm.NewString(lit.Name.Name)))
		fs.builder.SetModuleVar(dst, nameIdx, lit.Pos.Line)
		fs.moduleVarNames = append(fs.moduleVarNames, lit.Name.Name)
	}
}

// compileClass lowers a `class Name(Parent):` declaration: field defaults
// fold to constants (evalConstLiteral, compiler_expr.go), each method
// compiles as its own nested function with isMethod/className/hasParent
// set so self/super validate correctly, and the resulting
// ClassDescriptor is wrapped as a chunk constant for OpMakeClass.
//
// The class name is always published as a VM global in addition to being
// declared in the enclosing lexical scope: OpMakeClass resolves a
// superclass by looking up ParentName in vm.Globals (vm.go), so a
// subclass declared in a different scope than its parent still finds it.
func (c *Compiler) compileClass(fs *FunctionState, decl *ast.ClassDeclaration) {
	parentName := ""
	if decl.Parent != nil {
		parentName = decl.Parent.Name
	}
	hasParent := parentName != ""

	cdesc := &vm.ClassDescriptor{Name: decl.Name.Name, ParentName: parentName}
	for _, f := range decl.Fields {
		fd := vm.FieldDescriptor{Name: f.Name.Name}
		if f.Default != nil {
			val, ok := c.evalConstLiteral(f.Default)
			if !ok {
				c.errorf(f.Default.Span(), "field default for %q must be a constant expression", f.Name.Name)
			}
			fd.HasDefault = true
			fd.Default = val
		}
		cdesc.Fields = append(cdesc.Fields, fd)
	}
	for _, m := range decl.Methods {
		cdesc.Methods = append(cdesc.Methods, c.compileFunction(fs, m, decl.Name.Name, true, hasParent))
	}

	idx := fs.builder.AddConstant(vm.NewClassConstHolder(cdesc))
	dst := fs.builder.RA.Alloc()
	fs.builder.MakeClass(dst, idx, decl.Pos.Line)

	nameIdx := fs.builder.AddConstant(vm.Obj(vm.NewString(decl.Name.Name)))
	fs.builder.SetGlobal(dst, nameIdx, decl.Pos.Line)
	fs.symtab.Declare(decl.Name.Name, dst)

	if fs.moduleMode && fs.symtab.top.parent == nil {
		fs.builder.SetModuleVar(dst, nameIdx, decl.Pos.Line)
		fs.moduleVarNames = append(fs.moduleVarNames, decl.Name.Name)
	}
}
