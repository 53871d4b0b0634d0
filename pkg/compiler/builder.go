package compiler

import "wisp/pkg/vm"

// Builder appends instructions to a vm.Chunk, and records every register
// operand with the RegAlloc so the real physical slot can be patched in
// once liveness scanning finishes (regalloc.go).
type Builder struct {
	Chunk *vm.Chunk
	RA    *RegAlloc
}

func NewBuilder() *Builder {
	return &Builder{Chunk: vm.NewChunk(), RA: NewRegAlloc()}
}

func (b *Builder) here() int { return len(b.Chunk.Code) }

func (b *Builder) writeOp(op vm.OpCode, line int) {
	b.Chunk.Code = append(b.Chunk.Code, byte(op))
	b.Chunk.Lines = append(b.Chunk.Lines, line)
}

func (b *Builder) writeByte(v byte, line int) {
	b.Chunk.Code = append(b.Chunk.Code, v)
	b.Chunk.Lines = append(b.Chunk.Lines, line)
}

func (b *Builder) writeU16(v uint16, line int) {
	b.writeByte(byte(v>>8), line)
	b.writeByte(byte(v), line)
}

// writeReg reserves a byte for a register operand and tells RegAlloc it
// was referenced at this offset; the real value is patched in later.
func (b *Builder) writeReg(virtual, line int) {
	b.RA.Use(b.here(), virtual)
	b.writeByte(0, line)
}

func (b *Builder) AddConstant(v vm.Value) int { return b.Chunk.AddConstant(v) }

// ---- emit helpers, one per opcode family ----

func (b *Builder) LoadConst(dst, constIdx, line int) {
	b.writeOp(vm.OpLoadConst, line)
	b.writeReg(dst, line)
	b.writeU16(uint16(constIdx), line)
}

func (b *Builder) LoadNone(dst, line int) {
	b.writeOp(vm.OpLoadNone, line)
	b.writeReg(dst, line)
}

func (b *Builder) LoadBool(dst int, val bool, line int) {
	if val {
		b.writeOp(vm.OpLoadTrue, line)
	} else {
		b.writeOp(vm.OpLoadFalse, line)
	}
	b.writeReg(dst, line)
}

func (b *Builder) Move(dst, src, line int) {
	b.writeOp(vm.OpMove, line)
	b.writeReg(dst, line)
	b.writeReg(src, line)
}

func (b *Builder) Binary(op vm.OpCode, dst, a, bReg, line int) {
	b.writeOp(op, line)
	b.writeReg(dst, line)
	b.writeReg(a, line)
	b.writeReg(bReg, line)
}

func (b *Builder) Unary(op vm.OpCode, dst, a, line int) {
	b.writeOp(op, line)
	b.writeReg(dst, line)
	b.writeReg(a, line)
}

// Jump emits a jump with a placeholder relative offset and returns the
// byte offset of the i16 operand, to be fixed up by PatchJump once the
// target is known.
func (b *Builder) Jump(line int) int {
	b.writeOp(vm.OpJump, line)
	at := b.here()
	b.writeU16(0, line)
	return at
}

func (b *Builder) JumpIfFalse(cond, line int) int {
	b.writeOp(vm.OpJumpIfFalse, line)
	b.writeReg(cond, line)
	at := b.here()
	b.writeU16(0, line)
	return at
}

func (b *Builder) JumpIfTrue(cond, line int) int {
	b.writeOp(vm.OpJumpIfTrue, line)
	b.writeReg(cond, line)
	at := b.here()
	b.writeU16(0, line)
	return at
}

// PatchJump fixes up the placeholder emitted at operandOffset so it
// jumps to the current position.
func (b *Builder) PatchJump(operandOffset int) {
	rel := int16(b.here() - (operandOffset + 2))
	b.Chunk.Code[operandOffset] = byte(uint16(rel) >> 8)
	b.Chunk.Code[operandOffset+1] = byte(uint16(rel))
}

// EmitJumpTo emits an unconditional jump straight to target (used for
// loop back-edges, where the target is already known).
func (b *Builder) EmitJumpTo(target, line int) {
	b.writeOp(vm.OpJump, line)
	at := b.here()
	b.writeU16(0, line)
	rel := int16(target - (at + 2))
	b.Chunk.Code[at] = byte(uint16(rel) >> 8)
	b.Chunk.Code[at+1] = byte(uint16(rel))
}

func (b *Builder) GetGlobal(dst, nameConst, line int) {
	b.writeOp(vm.OpGetGlobal, line)
	b.writeReg(dst, line)
	b.writeU16(uint16(nameConst), line)
}

func (b *Builder) SetGlobal(src, nameConst, line int) {
	b.writeOp(vm.OpSetGlobal, line)
	b.writeReg(src, line)
	b.writeU16(uint16(nameConst), line)
}

func (b *Builder) GetModuleVar(dst, nameConst, line int) {
	b.writeOp(vm.OpGetModuleVar, line)
	b.writeReg(dst, line)
	b.writeU16(uint16(nameConst), line)
}

func (b *Builder) SetModuleVar(src, nameConst, line int) {
	b.writeOp(vm.OpSetModuleVar, line)
	b.writeReg(src, line)
	b.writeU16(uint16(nameConst), line)
}

func (b *Builder) GetUpvalue(dst, idx, line int) {
	b.writeOp(vm.OpGetUpvalue, line)
	b.writeReg(dst, line)
	b.writeByte(byte(idx), line)
}

func (b *Builder) SetUpvalue(src, idx, line int) {
	b.writeOp(vm.OpSetUpvalue, line)
	b.writeReg(src, line)
	b.writeByte(byte(idx), line)
}

func (b *Builder) CloseUpvalues(fromVirtual, line int) {
	b.writeOp(vm.OpCloseUpvalues, line)
	b.writeReg(fromVirtual, line)
}

func (b *Builder) MakeList(dst, first, count, line int) {
	b.writeOp(vm.OpMakeList, line)
	b.writeReg(dst, line)
	b.writeReg(first, line)
	b.writeByte(byte(count), line)
}

func (b *Builder) MakeTable(dst, first, pairCount, line int) {
	b.writeOp(vm.OpMakeTable, line)
	b.writeReg(dst, line)
	b.writeReg(first, line)
	b.writeByte(byte(pairCount), line)
}

func (b *Builder) GetIndex(dst, obj, idx int, optional bool, line int) {
	if optional {
		b.writeOp(vm.OpGetIndexOpt, line)
	} else {
		b.writeOp(vm.OpGetIndex, line)
	}
	b.writeReg(dst, line)
	b.writeReg(obj, line)
	b.writeReg(idx, line)
}

func (b *Builder) SetIndex(obj, idx, val, line int) {
	b.writeOp(vm.OpSetIndex, line)
	b.writeReg(obj, line)
	b.writeReg(idx, line)
	b.writeReg(val, line)
}

func (b *Builder) GetProp(dst, obj, nameConst int, optional bool, line int) {
	if optional {
		b.writeOp(vm.OpGetPropOpt, line)
	} else {
		b.writeOp(vm.OpGetProp, line)
	}
	b.writeReg(dst, line)
	b.writeReg(obj, line)
	b.writeU16(uint16(nameConst), line)
}

func (b *Builder) SetProp(obj, nameConst, val int, line int) {
	b.writeOp(vm.OpSetProp, line)
	b.writeReg(obj, line)
	b.writeU16(uint16(nameConst), line)
	b.writeReg(val, line)
}

func (b *Builder) Self(dst, line int) {
	b.writeOp(vm.OpSelf, line)
	b.writeReg(dst, line)
}

func (b *Builder) GetSuper(dst, nameConst int, line int) {
	b.writeOp(vm.OpGetSuper, line)
	b.writeReg(dst, line)
	b.writeU16(uint16(nameConst), line)
}

func (b *Builder) MakeClosure(dst, funcConst int, line int) {
	b.writeOp(vm.OpMakeClosure, line)
	b.writeReg(dst, line)
	b.writeU16(uint16(funcConst), line)
}

func (b *Builder) MakeClass(dst, classConst int, line int) {
	b.writeOp(vm.OpMakeClass, line)
	b.writeReg(dst, line)
	b.writeU16(uint16(classConst), line)
}

// Call expects calleeReg to be the first of a contiguous virtual
// register block (see RegAlloc.Group) holding the callee followed by
// argc positional arguments; dst may alias calleeReg since the call
// result overwrites it only after the operands are read.
func (b *Builder) Call(dst, calleeReg, argc, line int) {
	b.writeOp(vm.OpCall, line)
	b.writeReg(dst, line)
	b.writeReg(calleeReg, line)
	b.writeByte(byte(argc), line)
}

func (b *Builder) Return(src, line int) {
	b.writeOp(vm.OpReturn, line)
	b.writeReg(src, line)
}

func (b *Builder) ReturnNone(line int) {
	b.writeOp(vm.OpReturnNone, line)
}

func (b *Builder) Import(dst, pathConst, line int) {
	b.writeOp(vm.OpImport, line)
	b.writeReg(dst, line)
	b.writeU16(uint16(pathConst), line)
}

func (b *Builder) Print(first, count, line int) {
	b.writeOp(vm.OpPrint, line)
	b.writeReg(first, line)
	b.writeByte(byte(count), line)
}

// Finish runs the register allocator's liveness scan, patches every
// recorded register operand with its physical slot, and sets the
// chunk's FrameSize — the second phase of emit-then-color register
// allocation.
func (b *Builder) Finish() *vm.Chunk {
	frameSize, mapping := b.RA.Scan()
	for _, p := range b.RA.Patches() {
		phys, ok := mapping[p.virtual]
		if !ok {
			continue
		}
		b.Chunk.Code[p.offset] = byte(phys)
	}
	b.Chunk.FrameSize = frameSize
	return b.Chunk
}
