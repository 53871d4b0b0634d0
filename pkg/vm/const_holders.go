package vm

// funcConstHolder and classConstHolder wrap a *FunctionDescriptor /
// *ClassDescriptor so they can sit in a Chunk's constant pool as an
// ordinary Value (TypeObject); OpMakeClosure/OpMakeClass unwrap them at
// runtime. Neither participates in refcounting in the usual sense since
// descriptors are emit-time immutable and owned by the Chunk, not by any
// particular runtime Value — Retain/Release are no-ops.
type funcConstHolder struct {
	baseObject
	Descriptor *FunctionDescriptor
}

func NewFuncConstHolder(d *FunctionDescriptor) Value {
	return Obj(&funcConstHolder{baseObject: baseObject{rc: 1}, Descriptor: d})
}
func (f *funcConstHolder) Release()          {}
func (f *funcConstHolder) typeName() string { return "function descriptor" }

type classConstHolder struct {
	baseObject
	Descriptor *ClassDescriptor
}

func NewClassConstHolder(d *ClassDescriptor) Value {
	return Obj(&classConstHolder{baseObject: baseObject{rc: 1}, Descriptor: d})
}
func (c *classConstHolder) Release()          {}
func (c *classConstHolder) typeName() string { return "class descriptor" }
