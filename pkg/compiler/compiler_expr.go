package compiler

import (
	"strings"

	"wisp/pkg/ast"
	"wisp/pkg/vm"
)

var infixOps = map[string]vm.OpCode{
	"+":  vm.OpAdd,
	"-":  vm.OpSub,
	"*":  vm.OpMul,
	"/":  vm.OpDiv,
	"%":  vm.OpMod,
	"**": vm.OpPow,
	"==": vm.OpEq,
	"!=": vm.OpNotEq,
	"<":  vm.OpLt,
	"<=": vm.OpLe,
	">":  vm.OpGt,
	">=": vm.OpGe,
}

// compileExpression lowers expr into a sequence of instructions that
// leave their result in a freshly-returned virtual register.
func (c *Compiler) compileExpression(fs *FunctionState, expr ast.Expression) int {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		dst := fs.builder.RA.Alloc()
		fs.builder.LoadConst(dst, fs.builder.AddConstant(vm.Int(e.Value)), e.Pos.Line)
		return dst
	case *ast.FloatLiteral:
		dst := fs.builder.RA.Alloc()
		fs.builder.LoadConst(dst, fs.builder.AddConstant(vm.Float(e.Value)), e.Pos.Line)
		return dst
	case *ast.StringLiteral:
		dst := fs.builder.RA.Alloc()
		fs.builder.LoadConst(dst, fs.builder.AddConstant(vm.Obj(vm.NewString(e.Value))), e.Pos.Line)
		return dst
	case *ast.BoolLiteral:
		dst := fs.builder.RA.Alloc()
		fs.builder.LoadBool(dst, e.Value, e.Pos.Line)
		return dst
	case *ast.NoneLiteral:
		dst := fs.builder.RA.Alloc()
		fs.builder.LoadNone(dst, e.Pos.Line)
		return dst
	case *ast.Identifier:
		return c.compileIdentifierRead(fs, e)
	case *ast.SelfExpression:
		if !fs.isMethod {
			c.errorf(e.Pos, "self used outside a method")
		}
		dst := fs.builder.RA.Alloc()
		fs.builder.Self(dst, e.Pos.Line)
		return dst
	case *ast.SuperExpression:
		c.errorf(e.Pos, "super must be used as super.method(...)")
		dst := fs.builder.RA.Alloc()
		fs.builder.LoadNone(dst, e.Pos.Line)
		return dst
	case *ast.PrefixExpression:
		return c.compilePrefix(fs, e)
	case *ast.InfixExpression:
		return c.compileInfix(fs, e)
	case *ast.LogicalExpression:
		return c.compileLogical(fs, e)
	case *ast.AssignmentExpression:
		return c.compileAssignment(fs, e)
	case *ast.CallExpression:
		return c.compileCall(fs, e)
	case *ast.MemberExpression:
		return c.compileMemberRead(fs, e)
	case *ast.IndexExpression:
		return c.compileIndexRead(fs, e)
	case *ast.ListLiteral:
		return c.compileListLiteral(fs, e)
	case *ast.TableLiteral:
		return c.compileTableLiteral(fs, e)
	case *ast.FunctionLiteral:
		return c.compileFunctionLiteral(fs, e)
	default:
		c.errorf(expr.Span(), "unsupported expression %T", expr)
		dst := fs.builder.RA.Alloc()
		fs.builder.LoadNone(dst, expr.Span().Line)
		return dst
	}
}

func (c *Compiler) compileIdentifierRead(fs *FunctionState, id *ast.Identifier) int {
	res := fs.symtab.Resolve(id.Name)
	switch res.Kind {
	case ResolveLocal:
		return res.Reg
	case ResolveUpvalue:
		dst := fs.builder.RA.Alloc()
		fs.builder.GetUpvalue(dst, res.Slot, id.Pos.Line)
		return dst
	default:
		dst := fs.builder.RA.Alloc()
		idx := fs.builder.AddConstant(vm.Obj(vm.NewString(id.Name)))
		fs.builder.GetGlobal(dst, idx, id.Pos.Line)
		return dst
	}
}

func (c *Compiler) compilePrefix(fs *FunctionState, e *ast.PrefixExpression) int {
	right := c.compileExpression(fs, e.Right)
	dst := fs.builder.RA.Alloc()
	switch e.Operator {
	case "-":
		fs.builder.Unary(vm.OpNeg, dst, right, e.Pos.Line)
	case "not":
		fs.builder.Unary(vm.OpNot, dst, right, e.Pos.Line)
	default:
		c.errorf(e.Pos, "unsupported prefix operator %q", e.Operator)
	}
	return dst
}

func (c *Compiler) compileInfix(fs *FunctionState, e *ast.InfixExpression) int {
	if e.Operator == ".." || e.Operator == "..=" {
		c.errorf(e.Pos, "range expressions are only valid as `for x in a..b`")
		dst := fs.builder.RA.Alloc()
		fs.builder.LoadNone(dst, e.Pos.Line)
		return dst
	}
	op, ok := infixOps[e.Operator]
	if !ok {
		c.errorf(e.Pos, "unsupported infix operator %q", e.Operator)
		op = vm.OpAdd
	}
	a := c.compileExpression(fs, e.Left)
	b := c.compileExpression(fs, e.Right)
	dst := fs.builder.RA.Alloc()
	fs.builder.Binary(op, dst, a, b, e.Pos.Line)
	return dst
}

// compileLogical lowers and/or/?? with short-circuit control flow: the
// right side is only evaluated when the left doesn't already decide the
// result.
func (c *Compiler) compileLogical(fs *FunctionState, e *ast.LogicalExpression) int {
	left := c.compileExpression(fs, e.Left)
	dst := fs.builder.RA.Alloc()
	fs.builder.Move(dst, left, e.Pos.Line)

	switch e.Operator {
	case "and":
		skip := fs.builder.JumpIfFalse(dst, e.Pos.Line)
		right := c.compileExpression(fs, e.Right)
		fs.builder.Move(dst, right, e.Pos.Line)
		fs.builder.PatchJump(skip)
	case "or":
		skip := fs.builder.JumpIfTrue(dst, e.Pos.Line)
		right := c.compileExpression(fs, e.Right)
		fs.builder.Move(dst, right, e.Pos.Line)
		fs.builder.PatchJump(skip)
	case "??":
		noneConst := fs.builder.AddConstant(vm.None())
		noneReg := fs.builder.RA.Alloc()
		fs.builder.LoadConst(noneReg, noneConst, e.Pos.Line)
		isNone := fs.builder.RA.Alloc()
		fs.builder.Binary(vm.OpEq, isNone, dst, noneReg, e.Pos.Line)
		skip := fs.builder.JumpIfFalse(isNone, e.Pos.Line)
		right := c.compileExpression(fs, e.Right)
		fs.builder.Move(dst, right, e.Pos.Line)
		fs.builder.PatchJump(skip)
	default:
		c.errorf(e.Pos, "unsupported logical operator %q", e.Operator)
	}
	return dst
}

func (c *Compiler) compileListLiteral(fs *FunctionState, e *ast.ListLiteral) int {
	n := len(e.Elements)
	group := fs.builder.RA.Group(n)
	for i, el := range e.Elements {
		r := c.compileExpression(fs, el)
		fs.builder.Move(group[i], r, e.Pos.Line)
	}
	dst := fs.builder.RA.Alloc()
	first := 0
	if n > 0 {
		first = group[0]
	}
	fs.builder.MakeList(dst, first, n, e.Pos.Line)
	return dst
}

func (c *Compiler) compileTableLiteral(fs *FunctionState, e *ast.TableLiteral) int {
	n := len(e.Entries)
	group := fs.builder.RA.Group(n * 2)
	for i, ent := range e.Entries {
		var keyReg int
		switch k := ent.Key.(type) {
		case *ast.Identifier:
			idx := fs.builder.AddConstant(vm.Obj(vm.NewString(k.Name)))
			keyReg = fs.builder.RA.Alloc()
			fs.builder.LoadConst(keyReg, idx, e.Pos.Line)
		default:
			keyReg = c.compileExpression(fs, ent.Key)
		}
		valReg := c.compileExpression(fs, ent.Value)
		fs.builder.Move(group[i*2], keyReg, e.Pos.Line)
		fs.builder.Move(group[i*2+1], valReg, e.Pos.Line)
	}
	dst := fs.builder.RA.Alloc()
	first := 0
	if n > 0 {
		first = group[0]
	}
	fs.builder.MakeTable(dst, first, n, e.Pos.Line)
	return dst
}

// compileMemberRead lowers `x.y` / `x?.y`, special-casing `super.y` which
// has no runtime object to read a property off — it resolves directly
// against the enclosing method's owning class's parent.
func (c *Compiler) compileMemberRead(fs *FunctionState, e *ast.MemberExpression) int {
	if _, ok := e.Object.(*ast.SuperExpression); ok {
		if !fs.hasParent {
			c.errorf(e.Pos, "super used in a class with no superclass")
		}
		dst := fs.builder.RA.Alloc()
		idx := fs.builder.AddConstant(vm.Obj(vm.NewString(e.Property)))
		fs.builder.GetSuper(dst, idx, e.Pos.Line)
		return dst
	}
	obj := c.compileExpression(fs, e.Object)
	dst := fs.builder.RA.Alloc()
	idx := fs.builder.AddConstant(vm.Obj(vm.NewString(e.Property)))
	fs.builder.GetProp(dst, obj, idx, e.Optional || chainHasOptional(e.Object), e.Pos.Line)
	return dst
}

func (c *Compiler) compileIndexRead(fs *FunctionState, e *ast.IndexExpression) int {
	obj := c.compileExpression(fs, e.Object)
	idx := c.compileExpression(fs, e.Index)
	dst := fs.builder.RA.Alloc()
	fs.builder.GetIndex(dst, obj, idx, e.Optional || chainHasOptional(e.Object), e.Pos.Line)
	return dst
}

// chainHasOptional reports whether a member/index access chain leading up
// to (but not including) expr already went through a `?.`/`?[` link — once
// it has, the rest of the chain must keep treating a `none` receiver as a
// short-circuit instead of faulting, even where the next link itself wasn't
// written with `?.`.
func chainHasOptional(expr ast.Expression) bool {
	switch e := expr.(type) {
	case *ast.MemberExpression:
		return e.Optional || chainHasOptional(e.Object)
	case *ast.IndexExpression:
		return e.Optional || chainHasOptional(e.Object)
	default:
		return false
	}
}

// compileCall lowers a call expression. The callee and its positional
// arguments must land in a contiguous virtual register block (the
// calling convention OpCall relies on), so it reserves one via
// RegAlloc.Group and moves each already-evaluated operand into place
// (builder.go Call's doc comment). Keyword argument names are accepted
// by the grammar but resolved positionally in the order written: the
// bytecode calling convention carries no per-argument names, so true
// name-based reordering at an arbitrary (dynamically dispatched) call
// site isn't implemented.
func (c *Compiler) compileCall(fs *FunctionState, e *ast.CallExpression) int {
	n := len(e.Args)
	group := fs.builder.RA.Group(n + 1)

	calleeReg := c.compileExpression(fs, e.Callee)
	fs.builder.Move(group[0], calleeReg, e.Pos.Line)

	for i, a := range e.Args {
		r := c.compileExpression(fs, a.Value)
		fs.builder.Move(group[i+1], r, e.Pos.Line)
	}

	dst := fs.builder.RA.Alloc()
	fs.builder.Call(dst, group[0], n, e.Pos.Line)
	return dst
}

// ---- assignment ----

// lvalKind tags what compileAssignment's target resolved to.
type lvalKind int

const (
	lvalLocal lvalKind = iota
	lvalUpvalue
	lvalGlobal
	lvalMember
	lvalIndex
)

type lvalue struct {
	kind      lvalKind
	reg       int // lvalLocal: the local's own register
	slot      int // lvalUpvalue: upvalue index
	nameConst int // lvalGlobal/lvalMember: name constant index
	objReg    int // lvalMember/lvalIndex: evaluated object
	idxReg    int // lvalIndex: evaluated index
}

// resolveLValue evaluates target's object/index sub-expressions exactly
// once, so a compound assignment (`x.y += 1`) doesn't double-evaluate a
// side-effecting receiver.
func (c *Compiler) resolveLValue(fs *FunctionState, target ast.Expression) lvalue {
	switch t := target.(type) {
	case *ast.Identifier:
		res := fs.symtab.Resolve(t.Name)
		switch res.Kind {
		case ResolveLocal:
			return lvalue{kind: lvalLocal, reg: res.Reg}
		case ResolveUpvalue:
			return lvalue{kind: lvalUpvalue, slot: res.Slot}
		default:
			idx := fs.builder.AddConstant(vm.Obj(vm.NewString(t.Name)))
			return lvalue{kind: lvalGlobal, nameConst: idx}
		}
	case *ast.MemberExpression:
		obj := c.compileExpression(fs, t.Object)
		idx := fs.builder.AddConstant(vm.Obj(vm.NewString(t.Property)))
		return lvalue{kind: lvalMember, objReg: obj, nameConst: idx}
	case *ast.IndexExpression:
		obj := c.compileExpression(fs, t.Object)
		idx := c.compileExpression(fs, t.Index)
		return lvalue{kind: lvalIndex, objReg: obj, idxReg: idx}
	default:
		c.errorf(target.Span(), "invalid assignment target %T", target)
		return lvalue{kind: lvalGlobal}
	}
}

func (c *Compiler) loadLValue(fs *FunctionState, lv lvalue, line int) int {
	switch lv.kind {
	case lvalLocal:
		return lv.reg
	case lvalUpvalue:
		dst := fs.builder.RA.Alloc()
		fs.builder.GetUpvalue(dst, lv.slot, line)
		return dst
	case lvalMember:
		dst := fs.builder.RA.Alloc()
		fs.builder.GetProp(dst, lv.objReg, lv.nameConst, false, line)
		return dst
	case lvalIndex:
		dst := fs.builder.RA.Alloc()
		fs.builder.GetIndex(dst, lv.objReg, lv.idxReg, false, line)
		return dst
	default:
		dst := fs.builder.RA.Alloc()
		fs.builder.GetGlobal(dst, lv.nameConst, line)
		return dst
	}
}

func (c *Compiler) storeLValue(fs *FunctionState, lv lvalue, valReg, line int) {
	switch lv.kind {
	case lvalLocal:
		fs.builder.Move(lv.reg, valReg, line)
	case lvalUpvalue:
		fs.builder.SetUpvalue(valReg, lv.slot, line)
	case lvalMember:
		fs.builder.SetProp(lv.objReg, lv.nameConst, valReg, line)
	case lvalIndex:
		fs.builder.SetIndex(lv.objReg, lv.idxReg, valReg, line)
	default:
		fs.builder.SetGlobal(valReg, lv.nameConst, line)
	}
}

// compileAssignment lowers `target = value` and the compound forms,
// desugaring the latter to a single read-modify-write of the target's
// lvalue (ast.go's AssignmentExpression doc comment).
func (c *Compiler) compileAssignment(fs *FunctionState, e *ast.AssignmentExpression) int {
	lv := c.resolveLValue(fs, e.Target)

	if e.Operator == "=" {
		val := c.compileExpression(fs, e.Value)
		c.storeLValue(fs, lv, val, e.Pos.Line)
		return val
	}

	if e.Operator == "?=" {
		cur := c.loadLValue(fs, lv, e.Pos.Line)
		noneConst := fs.builder.AddConstant(vm.None())
		noneReg := fs.builder.RA.Alloc()
		fs.builder.LoadConst(noneReg, noneConst, e.Pos.Line)
		isNone := fs.builder.RA.Alloc()
		fs.builder.Binary(vm.OpEq, isNone, cur, noneReg, e.Pos.Line)
		skip := fs.builder.JumpIfFalse(isNone, e.Pos.Line)
		val := c.compileExpression(fs, e.Value)
		fs.builder.Move(cur, val, e.Pos.Line)
		c.storeLValue(fs, lv, cur, e.Pos.Line)
		fs.builder.PatchJump(skip)
		return cur
	}

	base := strings.TrimSuffix(e.Operator, "=")
	op, ok := infixOps[base]
	if !ok {
		c.errorf(e.Pos, "unsupported compound assignment operator %q", e.Operator)
		op = vm.OpAdd
	}
	cur := c.loadLValue(fs, lv, e.Pos.Line)
	rhs := c.compileExpression(fs, e.Value)
	result := fs.builder.RA.Alloc()
	fs.builder.Binary(op, result, cur, rhs, e.Pos.Line)
	c.storeLValue(fs, lv, result, e.Pos.Line)
	return result
}

// ---- function/class literals ----

// compileFunctionLiteral compiles a nested function body into its own
// Chunk, resolves its captured upvalues against the enclosing
// FunctionState, and emits a MakeClosure referencing the result as a
// constant.
func (c *Compiler) compileFunctionLiteral(fs *FunctionState, lit *ast.FunctionLiteral) int {
	desc := c.compileFunction(fs, lit, "", false, false)
	return c.compileClosureValue(fs, desc, lit.Pos.Line)
}

// compileFunction is shared by plain function literals and class methods.
func (c *Compiler) compileFunction(fs *FunctionState, lit *ast.FunctionLiteral, className string, isMethod, hasParent bool) *vm.FunctionDescriptor {
	child := &FunctionState{
		builder:   NewBuilder(),
		symtab:    NewSymbolTable(fs.symtab),
		parent:    fs,
		className: className,
		isMethod:  isMethod,
		hasParent: hasParent,
		params:    lit.Params,
	}

	declaredParams := lit.Params
	if isMethod && len(declaredParams) > 0 && declaredParams[0].Name.Name == "self" &&
		!declaredParams[0].IsVararg && !declaredParams[0].IsKwarg {
		// self always arrives via the receiver slot (OpSelf reads
		// frame.self directly), so an explicit self parameter costs no
		// register and no arity — strip it before allocating params.
		declaredParams = declaredParams[1:]
	}

	paramRegs := child.builder.RA.Group(len(declaredParams))
	params := make([]vm.ParamDescriptor, len(declaredParams))
	for i, p := range declaredParams {
		child.symtab.Declare(p.Name.Name, paramRegs[i])
		pd := vm.ParamDescriptor{Name: p.Name.Name, IsVararg: p.IsVararg, IsKwarg: p.IsKwarg, KeywordOnly: p.Keyword}
		if p.Default != nil {
			val, ok := c.evalConstLiteral(p.Default)
			if !ok {
				c.errorf(p.Default.Span(), "parameter default for %q must be a constant expression", p.Name.Name)
			}
			pd.HasDefault = true
			pd.Default = val
		}
		params[i] = pd
	}

	c.compileStatements(child, lit.Body.Statements)
	child.builder.ReturnNone(lit.Pos.Line)

	upNames := child.symtab.UpvalueNames()
	upSrcs := make([]vm.UpvalueSource, len(upNames))
	for i, name := range upNames {
		outer := fs.symtab.Resolve(name)
		switch outer.Kind {
		case ResolveLocal:
			upSrcs[i] = vm.UpvalueSource{Kind: vm.ParentRegister, Index: outer.Reg}
		case ResolveUpvalue:
			upSrcs[i] = vm.UpvalueSource{Kind: vm.ParentUpvalue, Index: outer.Slot}
		}
	}

	name := ""
	if lit.Name != nil {
		name = lit.Name.Name
	}
	return &vm.FunctionDescriptor{
		Name:     name,
		Params:   params,
		Chunk:    child.builder.Finish(),
		Upvalues: upSrcs,
		IsMethod: isMethod,
	}
}

// compileClosureValue wraps a compiled FunctionDescriptor as a chunk
// constant and emits the MakeClosure that builds the runtime Function
// against the *current* fs (the one whose registers/upvalues the new
// closure's UpvalueSource entries reference).
func (c *Compiler) compileClosureValue(fs *FunctionState, desc *vm.FunctionDescriptor, line int) int {
	idx := fs.builder.AddConstant(vm.NewFuncConstHolder(desc))
	dst := fs.builder.RA.Alloc()
	fs.builder.MakeClosure(dst, idx, line)
	return dst
}

// evalConstLiteral folds a small set of literal expression forms into a
// compile-time Value, used for field/parameter defaults: evaluating
// once at declaration time (rather than threading a per-call init chunk
// through bindParams/instantiate) keeps defaults simple at the cost of
// ruling out non-constant default expressions.
func (c *Compiler) evalConstLiteral(expr ast.Expression) (vm.Value, bool) {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return vm.Int(e.Value), true
	case *ast.FloatLiteral:
		return vm.Float(e.Value), true
	case *ast.StringLiteral:
		return vm.Obj(vm.NewString(e.Value)), true
	case *ast.BoolLiteral:
		return vm.Bool(e.Value), true
	case *ast.NoneLiteral:
		return vm.None(), true
	case *ast.PrefixExpression:
		if e.Operator == "-" {
			if inner, ok := c.evalConstLiteral(e.Right); ok {
				if inner.IsInt() {
					return vm.Int(-inner.AsInt()), true
				}
				if inner.IsFloat() {
					return vm.Float(-inner.AsFloat()), true
				}
			}
		}
	}
	return vm.None(), false
}
