package vm

import (
	"fmt"
	"math"

	"wisp/pkg/errors"
)

const (
	MaxFrames    = 256
	RegsPerFrame = 256
)

// CallFrame is a window into the VM's shared register stack
// ([RegsPerFrame*MaxFrames]Value backing array, CallFrame.registers a
// slice into it) so calls don't allocate a fresh backing array per
// invocation.
type CallFrame struct {
	fn        *Function // nil when running top-level/module code
	className string    // for trace formatting when inside a method
	ip        int
	base      int // offset of this frame's window into the shared stack
	registers []Value
	self      Value      // receiver, or None outside a method
	class     *ClassType // the class a `super` lookup should start above
	destReg   int        // register in the CALLER's window to store the result into
	funcName  string
}

// Sink receives `print` output — the embedder supplies one.
type Sink interface {
	Write(p []byte) (int, error)
}

type VM struct {
	frames     [MaxFrames]CallFrame
	frameCount int
	regStack   [MaxFrames * RegsPerFrame]Value

	Globals *Table
	Modules *ModuleRegistry
	Stdout  Sink

	openUpvalues []*Upvalue
	builtins     map[string]Value
}

func New(stdout Sink, loader ModuleLoader) *VM {
	vm := &VM{
		Globals: NewTable(),
		Stdout:  stdout,
	}
	vm.Modules = NewModuleRegistry(loader)
	vm.builtins = make(map[string]Value)
	registerBuiltins(vm)
	return vm
}

func (vm *VM) currentFrame() *CallFrame { return &vm.frames[vm.frameCount-1] }

// RunChunk executes top-level code (a REPL entry or the root module body)
// in a fresh frame and returns its final expression value, if any.
func (vm *VM) RunChunk(name string, c *Chunk) (Value, error) {
	fn := &Function{Descriptor: &FunctionDescriptor{Name: name, Chunk: c}}
	return vm.call(fn, None(), nil, nil)
}

// RunModule executes a module's top-level chunk, populating its Vars
// table by name as the chunk's module-variable stores run.
func (vm *VM) RunModule(m *Module) error {
	fn := &Function{Descriptor: &FunctionDescriptor{Name: m.Descriptor.Path, Chunk: m.Descriptor.Chunk, Module: m}}
	_, err := vm.call(fn, None(), nil, m)
	return err
}

func (vm *VM) push(v Value, frame *CallFrame, reg int) { frame.registers[reg] = v }

// call runs fn to completion with the given receiver/args, in a new frame
// pushed on top of the shared register stack.
func (vm *VM) call(fn *Function, self Value, args []Value, moduleCtx *Module) (Value, error) {
	if vm.frameCount >= MaxFrames {
		return None(), &errors.RuntimeError{Kind: errors.KindInternalError, Msg: "call stack overflow"}
	}
	base := vm.frameCount * RegsPerFrame
	frame := &vm.frames[vm.frameCount]
	*frame = CallFrame{
		fn:        fn,
		base:      base,
		registers: vm.regStack[base : base+RegsPerFrame],
		self:      self,
		class:     fn.OwnerClass,
		funcName:  fn.Name(),
	}
	vm.frameCount++

	if err := vm.bindParams(frame, fn, args); err != nil {
		vm.frameCount--
		return None(), err
	}

	result, err := vm.run(frame)
	vm.closeUpvaluesFrom(frame.base)
	vm.frameCount--
	if err != nil {
		if re, ok := err.(*errors.RuntimeError); ok {
			re.Trace = append(re.Trace, errors.TraceFrame{FunctionName: frame.funcName, Position: re.Position})
		}
		return None(), err
	}
	return result, nil
}

func (vm *VM) bindParams(frame *CallFrame, fn *Function, args []Value) error {
	params := fn.Descriptor.Params
	posIdx := 0
	namedArgs := map[string]Value{}
	// Positional binding only: the compiler already rewrites keyword
	// arguments into positional ones, so namedArgs stays empty and a
	// **kwargs parameter always receives an empty table.
	for i, p := range params {
		if p.IsVararg {
			var rest []Value
			for posIdx < len(args) {
				rest = append(rest, args[posIdx])
				posIdx++
			}
			frame.registers[i] = Obj(NewList(rest))
			continue
		}
		if p.IsKwarg {
			t := NewTable()
			for k, v := range namedArgs {
				t.Set(k, v)
			}
			frame.registers[i] = Obj(t)
			continue
		}
		if posIdx < len(args) {
			frame.registers[i] = args[posIdx]
			posIdx++
			continue
		}
		if p.HasDefault {
			frame.registers[i] = p.Default
			continue
		}
		return &errors.RuntimeError{Kind: errors.KindArityMismatch, Msg: fmt.Sprintf("%s() missing required argument %q", fn.Name(), p.Name)}
	}
	if posIdx < len(args) {
		return &errors.RuntimeError{Kind: errors.KindArityMismatch, Msg: fmt.Sprintf("%s() takes at most %d positional argument(s) but %d were given", fn.Name(), posIdx, len(args))}
	}
	return nil
}

// run executes frame's chunk until it returns.
func (vm *VM) run(frame *CallFrame) (Value, error) {
	c := frame.fn.Descriptor.Chunk
	for frame.ip < len(c.Code) {
		op := OpCode(c.Code[frame.ip])
		switch op {
		case OpLoadConst:
			dst := c.Code[frame.ip+1]
			idx := u16(c, frame.ip+2)
			frame.registers[dst] = c.Constants[idx]
			frame.ip += 4
		case OpLoadNone:
			frame.registers[c.Code[frame.ip+1]] = None()
			frame.ip += 2
		case OpLoadTrue:
			frame.registers[c.Code[frame.ip+1]] = Bool(true)
			frame.ip += 2
		case OpLoadFalse:
			frame.registers[c.Code[frame.ip+1]] = Bool(false)
			frame.ip += 2
		case OpMove:
			frame.registers[c.Code[frame.ip+1]] = frame.registers[c.Code[frame.ip+2]]
			frame.ip += 3

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
			dst, a, b := c.Code[frame.ip+1], c.Code[frame.ip+2], c.Code[frame.ip+3]
			v, err := vm.arith(op, frame.registers[a], frame.registers[b])
			if err != nil {
				return None(), vm.withPos(err, c, frame.ip)
			}
			frame.registers[dst] = v
			frame.ip += 4
		case OpNeg:
			dst, a := c.Code[frame.ip+1], c.Code[frame.ip+2]
			v := frame.registers[a]
			if v.IsInt() {
				frame.registers[dst] = Int(-v.AsInt())
			} else if v.IsFloat() {
				frame.registers[dst] = Float(-v.AsFloat())
			} else {
				return None(), vm.withPos(&errors.RuntimeError{Kind: errors.KindTypeError, Msg: "unary - requires a number"}, c, frame.ip)
			}
			frame.ip += 3
		case OpNot:
			dst, a := c.Code[frame.ip+1], c.Code[frame.ip+2]
			frame.registers[dst] = Bool(!frame.registers[a].Truthy())
			frame.ip += 3

		case OpEq:
			dst, a, b := c.Code[frame.ip+1], c.Code[frame.ip+2], c.Code[frame.ip+3]
			frame.registers[dst] = Bool(Equal(frame.registers[a], frame.registers[b]))
			frame.ip += 4
		case OpNotEq:
			dst, a, b := c.Code[frame.ip+1], c.Code[frame.ip+2], c.Code[frame.ip+3]
			frame.registers[dst] = Bool(!Equal(frame.registers[a], frame.registers[b]))
			frame.ip += 4
		case OpLt, OpLe, OpGt, OpGe:
			dst, a, b := c.Code[frame.ip+1], c.Code[frame.ip+2], c.Code[frame.ip+3]
			v, err := vm.compare(op, frame.registers[a], frame.registers[b])
			if err != nil {
				return None(), vm.withPos(err, c, frame.ip)
			}
			frame.registers[dst] = v
			frame.ip += 4

		case OpJump:
			rel := int16(u16(c, frame.ip+1))
			frame.ip += 3 + int(rel)
		case OpJumpIfFalse:
			cond := c.Code[frame.ip+1]
			rel := int16(u16(c, frame.ip+2))
			if !frame.registers[cond].Truthy() {
				frame.ip += 4 + int(rel)
			} else {
				frame.ip += 4
			}
		case OpJumpIfTrue:
			cond := c.Code[frame.ip+1]
			rel := int16(u16(c, frame.ip+2))
			if frame.registers[cond].Truthy() {
				frame.ip += 4 + int(rel)
			} else {
				frame.ip += 4
			}

		case OpGetGlobal:
			dst := c.Code[frame.ip+1]
			idx := u16(c, frame.ip+2)
			name := c.Constants[idx].AsObject().(*StringObject).Value
			v, ok := vm.Globals.Get(name)
			if !ok {
				return None(), vm.withPos(&errors.RuntimeError{Kind: errors.KindNameError, Msg: "undefined name " + name}, c, frame.ip)
			}
			frame.registers[dst] = v
			frame.ip += 4
		case OpSetGlobal:
			src := c.Code[frame.ip+1]
			idx := u16(c, frame.ip+2)
			name := c.Constants[idx].AsObject().(*StringObject).Value
			vm.Globals.Set(name, frame.registers[src])
			frame.ip += 4

		case OpGetModuleVar:
			dst := c.Code[frame.ip+1]
			idx := u16(c, frame.ip+2)
			name := c.Constants[idx].AsObject().(*StringObject).Value
			if frame.fn.Descriptor.Module == nil {
				return None(), vm.withPos(&errors.RuntimeError{Kind: errors.KindInternalError, Msg: "module variable access outside a module"}, c, frame.ip)
			}
			v, ok := frame.fn.Descriptor.Module.Vars.Get(name)
			if !ok {
				return None(), vm.withPos(&errors.RuntimeError{Kind: errors.KindNameError, Msg: "undefined module variable " + name}, c, frame.ip)
			}
			frame.registers[dst] = v
			frame.ip += 4
		case OpSetModuleVar:
			src := c.Code[frame.ip+1]
			idx := u16(c, frame.ip+2)
			name := c.Constants[idx].AsObject().(*StringObject).Value
			if frame.fn.Descriptor.Module == nil {
				return None(), vm.withPos(&errors.RuntimeError{Kind: errors.KindInternalError, Msg: "module variable access outside a module"}, c, frame.ip)
			}
			frame.fn.Descriptor.Module.Vars.Set(name, frame.registers[src])
			frame.ip += 4

		case OpGetUpvalue:
			dst, idx := c.Code[frame.ip+1], c.Code[frame.ip+2]
			frame.registers[dst] = frame.fn.Upvalues[idx].Get()
			frame.ip += 3
		case OpSetUpvalue:
			src, idx := c.Code[frame.ip+1], c.Code[frame.ip+2]
			frame.fn.Upvalues[idx].Set(frame.registers[src])
			frame.ip += 3
		case OpCloseUpvalues:
			from := c.Code[frame.ip+1]
			vm.closeUpvaluesFrom(frame.base + int(from))
			frame.ip += 2

		case OpMakeList:
			dst, first, count := c.Code[frame.ip+1], c.Code[frame.ip+2], c.Code[frame.ip+3]
			elems := make([]Value, count)
			copy(elems, frame.registers[first:int(first)+int(count)])
			frame.registers[dst] = Obj(NewList(elems))
			frame.ip += 4
		case OpMakeTable:
			dst, first, count := c.Code[frame.ip+1], c.Code[frame.ip+2], c.Code[frame.ip+3]
			t := NewTable()
			reg := int(first)
			for i := 0; i < int(count); i++ {
				k := frame.registers[reg]
				v := frame.registers[reg+1]
				reg += 2
				var key string
				if k.IsObject() {
					if s, ok := k.AsObject().(*StringObject); ok {
						key = s.Value
					}
				}
				t.Set(key, v)
			}
			frame.registers[dst] = Obj(t)
			frame.ip += 4
		case OpGetIndex, OpGetIndexOpt:
			dst, obj, idx := c.Code[frame.ip+1], c.Code[frame.ip+2], c.Code[frame.ip+3]
			v, err := vm.getIndex(frame.registers[obj], frame.registers[idx], op == OpGetIndexOpt)
			if err != nil {
				return None(), vm.withPos(err, c, frame.ip)
			}
			frame.registers[dst] = v
			frame.ip += 4
		case OpSetIndex:
			obj, idx, val := c.Code[frame.ip+1], c.Code[frame.ip+2], c.Code[frame.ip+3]
			if err := vm.setIndex(frame.registers[obj], frame.registers[idx], frame.registers[val]); err != nil {
				return None(), vm.withPos(err, c, frame.ip)
			}
			frame.ip += 4

		case OpGetProp, OpGetPropOpt:
			dst, obj := c.Code[frame.ip+1], c.Code[frame.ip+2]
			idx := u16(c, frame.ip+3)
			name := c.Constants[idx].AsObject().(*StringObject).Value
			v, err := vm.getProp(frame.registers[obj], name, op == OpGetPropOpt)
			if err != nil {
				return None(), vm.withPos(err, c, frame.ip)
			}
			frame.registers[dst] = v
			frame.ip += 5
		case OpSetProp:
			obj := c.Code[frame.ip+1]
			idx := u16(c, frame.ip+2)
			val := c.Code[frame.ip+4]
			name := c.Constants[idx].AsObject().(*StringObject).Value
			if err := vm.setProp(frame.registers[obj], name, frame.registers[val]); err != nil {
				return None(), vm.withPos(err, c, frame.ip)
			}
			frame.ip += 5

		case OpSelf:
			frame.registers[c.Code[frame.ip+1]] = frame.self
			frame.ip += 2
		case OpGetSuper:
			dst := c.Code[frame.ip+1]
			idx := u16(c, frame.ip+2)
			name := c.Constants[idx].AsObject().(*StringObject).Value
			if frame.class == nil || frame.class.Parent == nil {
				return None(), vm.withPos(&errors.RuntimeError{Kind: errors.KindInternalError, Msg: "super used outside a derived method"}, c, frame.ip)
			}
			method, owner := frame.class.Parent.ResolveMethod(name)
			if method == nil {
				return None(), vm.withPos(&errors.RuntimeError{Kind: errors.KindNameError, Msg: "no such super method " + name}, c, frame.ip)
			}
			_ = owner
			frame.registers[dst] = Obj(NewBoundMethod(frame.self, method))
			frame.ip += 4

		case OpMakeClosure:
			dst := c.Code[frame.ip+1]
			idx := u16(c, frame.ip+2)
			fnVal := c.Constants[idx]
			desc := fnVal.AsObject().(*funcConstHolder).Descriptor
			frame.ip += 4
			ups := make([]*Upvalue, len(desc.Upvalues))
			for i, src := range desc.Upvalues {
				switch src.Kind {
				case ParentRegister:
					ups[i] = vm.findOrCreateUpvalue(frame, src.Index)
				case ParentUpvalue:
					ups[i] = frame.fn.Upvalues[src.Index]
				}
			}
			frame.registers[dst] = Obj(NewFunction(desc, ups))

		case OpMakeClass:
			dst := c.Code[frame.ip+1]
			idx := u16(c, frame.ip+2)
			ctVal := c.Constants[idx]
			holder := ctVal.AsObject().(*classConstHolder)
			var parent *ClassType
			if holder.Descriptor.ParentName != "" {
				pv, ok := vm.Globals.Get(holder.Descriptor.ParentName)
				if !ok {
					return None(), vm.withPos(&errors.RuntimeError{Kind: errors.KindNameError, Msg: "undefined superclass " + holder.Descriptor.ParentName}, c, frame.ip)
				}
				parent, _ = pv.AsObject().(*ClassType)
			}
			methods := make(map[string]*Function)
			ct := NewClassType(holder.Descriptor, parent, methods)
			for _, md := range holder.Descriptor.Methods {
				m := NewFunction(md, nil)
				m.OwnerClass = ct
				methods[md.Name] = m
			}
			frame.registers[dst] = Obj(ct)
			frame.ip += 4

		case OpCall:
			dst, calleeReg, argc := c.Code[frame.ip+1], c.Code[frame.ip+2], c.Code[frame.ip+3]
			callee := frame.registers[calleeReg]
			args := make([]Value, argc)
			copy(args, frame.registers[int(calleeReg)+1:int(calleeReg)+1+int(argc)])
			result, err := vm.dispatchCall(callee, args)
			if err != nil {
				return None(), vm.withPos(err, c, frame.ip)
			}
			frame.registers[dst] = result
			frame.ip += 4

		case OpReturn:
			v := frame.registers[c.Code[frame.ip+1]]
			return v, nil
		case OpReturnNone:
			return None(), nil

		case OpImport:
			dst := c.Code[frame.ip+1]
			idx := u16(c, frame.ip+2)
			path := c.Constants[idx].AsObject().(*StringObject).Value
			mod, err := vm.Modules.Resolve(vm, path, errors.Position{})
			if err != nil {
				return None(), err
			}
			frame.registers[dst] = Obj(mod)
			frame.ip += 4

		case OpPrint:
			first, count := c.Code[frame.ip+1], c.Code[frame.ip+2]
			vm.doPrint(frame.registers[first : int(first)+int(count)])
			frame.ip += 3

		case OpPop:
			frame.ip += 2

		case OpForIterNext:
			return None(), vm.withPos(&errors.RuntimeError{Kind: errors.KindInternalError, Msg: "generic for-in iteration is not implemented"}, c, frame.ip)

		default:
			return None(), vm.withPos(&errors.RuntimeError{Kind: errors.KindInternalError, Msg: fmt.Sprintf("unhandled opcode %s", op)}, c, frame.ip)
		}
	}
	return None(), nil
}

func u16(c *Chunk, offset int) uint16 {
	return uint16(c.Code[offset])<<8 | uint16(c.Code[offset+1])
}

func (vm *VM) withPos(err error, c *Chunk, ip int) error {
	re, ok := err.(*errors.RuntimeError)
	if !ok {
		return err
	}
	if ip < len(c.Lines) {
		re.Position.Line = c.Lines[ip]
	}
	return re
}

// addInt32, subInt32, and mulInt32 compute in int64 and report whether the
// result still fits in int32 — arith falls back to float promotion when it
// doesn't, rather than letting the operation wrap.
func addInt32(a, b int32) (int32, bool) {
	r := int64(a) + int64(b)
	return int32(r), r >= math.MinInt32 && r <= math.MaxInt32
}

func subInt32(a, b int32) (int32, bool) {
	r := int64(a) - int64(b)
	return int32(r), r >= math.MinInt32 && r <= math.MaxInt32
}

func mulInt32(a, b int32) (int32, bool) {
	r := int64(a) * int64(b)
	return int32(r), r >= math.MinInt32 && r <= math.MaxInt32
}

// arith implements the language's numeric promotion rule: two ints stay
// int (except `/` and `**` with a negative exponent, which promote to
// float); any float operand promotes the whole operation to float.
// NaN-producing operations raise NumericError instead of constructing a
// float (floats are the non-NaN subset, value.go Float doc comment).
func (vm *VM) arith(op OpCode, a, b Value) (Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		if op == OpAdd && a.IsObject() && b.IsObject() {
			if as, ok := a.AsObject().(*StringObject); ok {
				if bs, ok := b.AsObject().(*StringObject); ok {
					return Obj(NewString(as.Value + bs.Value)), nil
				}
			}
		}
		return Value{}, &errors.RuntimeError{Kind: errors.KindTypeError, Msg: fmt.Sprintf("unsupported operand types for %s", op)}
	}
	bothInt := a.IsInt() && b.IsInt()
	checked := func(f float64) (Value, error) {
		if math.IsNaN(f) {
			return Value{}, &errors.RuntimeError{Kind: errors.KindNumericError, Msg: "arithmetic produced NaN"}
		}
		return Float(f), nil
	}
	switch op {
	case OpAdd:
		if bothInt {
			if r, ok := addInt32(a.AsInt(), b.AsInt()); ok {
				return Int(r), nil
			}
		}
		return checked(a.AsF64() + b.AsF64())
	case OpSub:
		if bothInt {
			if r, ok := subInt32(a.AsInt(), b.AsInt()); ok {
				return Int(r), nil
			}
		}
		return checked(a.AsF64() - b.AsF64())
	case OpMul:
		if bothInt {
			if r, ok := mulInt32(a.AsInt(), b.AsInt()); ok {
				return Int(r), nil
			}
		}
		return checked(a.AsF64() * b.AsF64())
	case OpDiv:
		if b.AsF64() == 0 {
			return Value{}, &errors.RuntimeError{Kind: errors.KindNumericError, Msg: "division by zero"}
		}
		return Float(a.AsF64() / b.AsF64()), nil
	case OpMod:
		if bothInt {
			if b.AsInt() == 0 {
				return Value{}, &errors.RuntimeError{Kind: errors.KindNumericError, Msg: "modulo by zero"}
			}
			return Int(a.AsInt() % b.AsInt()), nil
		}
		return checked(math.Mod(a.AsF64(), b.AsF64()))
	case OpPow:
		if bothInt && b.AsInt() >= 0 {
			result := int64(1)
			base := int64(a.AsInt())
			overflowed := false
			for i := int32(0); i < b.AsInt(); i++ {
				result *= base
				if result > math.MaxInt32 || result < math.MinInt32 {
					overflowed = true
					break
				}
			}
			if !overflowed {
				return Int(int32(result)), nil
			}
		}
		r := math.Pow(a.AsF64(), b.AsF64())
		if math.IsNaN(r) {
			return Value{}, &errors.RuntimeError{Kind: errors.KindNumericError, Msg: "exponentiation produced NaN"}
		}
		return Float(r), nil
	}
	return Value{}, &errors.RuntimeError{Kind: errors.KindInternalError, Msg: "unreachable arith opcode"}
}

func (vm *VM) compare(op OpCode, a, b Value) (Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		if as, aok := a.AsObject().(*StringObject); aok && a.IsObject() {
			if bs, bok := b.AsObject().(*StringObject); bok && b.IsObject() {
				return Bool(strCompare(op, as.Value, bs.Value)), nil
			}
		}
		return Value{}, &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "comparison requires two numbers or two strings"}
	}
	x, y := a.AsF64(), b.AsF64()
	switch op {
	case OpLt:
		return Bool(x < y), nil
	case OpLe:
		return Bool(x <= y), nil
	case OpGt:
		return Bool(x > y), nil
	case OpGe:
		return Bool(x >= y), nil
	}
	return Value{}, &errors.RuntimeError{Kind: errors.KindInternalError, Msg: "unreachable compare opcode"}
}

func strCompare(op OpCode, a, b string) bool {
	switch op {
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	}
	return false
}

func (vm *VM) doPrint(vals []Value) {
	if vm.Stdout == nil {
		return
	}
	for i, v := range vals {
		if i > 0 {
			vm.Stdout.Write([]byte(" "))
		}
		vm.Stdout.Write([]byte(Stringify(v)))
	}
	vm.Stdout.Write([]byte("\n"))
}

// closeUpvaluesFrom closes every open upvalue whose captured register
// lives at or beyond base (i.e. inside the frame that is about to be
// popped), copying its value out of the shared register stack so it
// survives the frame's window being reused.
func (vm *VM) closeUpvaluesFrom(base int) {
	kept := vm.openUpvalues[:0]
	for _, uv := range vm.openUpvalues {
		if uv.open && uv.slot >= base {
			uv.Close()
			continue
		}
		kept = append(kept, uv)
	}
	vm.openUpvalues = kept
}

func (vm *VM) findOrCreateUpvalue(frame *CallFrame, regIdx int) *Upvalue {
	slot := frame.base + regIdx
	for _, uv := range vm.openUpvalues {
		if uv.open && uv.slot == slot {
			return uv
		}
	}
	uv := newOpenUpvalue(vm.regStack[:], slot)
	vm.openUpvalues = append(vm.openUpvalues, uv)
	return uv
}
