package vm

// Upvalue is a captured variable cell, open while it still points at a
// live slot in the VM's shared register stack and closed (holding its
// own copy) once that frame returns. It indexes into the stack by
// absolute slot rather than a raw pointer, since the backing array is a
// fixed field on VM and frames are just slice windows into it.
type Upvalue struct {
	baseObject
	stack  []Value // the VM's shared regStack, reused across frames
	slot   int      // absolute index into stack while open
	Closed Value
	open   bool
}

func newOpenUpvalue(stack []Value, slot int) *Upvalue {
	return &Upvalue{baseObject: baseObject{rc: 1}, stack: stack, slot: slot, open: true}
}

func (u *Upvalue) Get() Value {
	if u.open {
		return u.stack[u.slot]
	}
	return u.Closed
}

func (u *Upvalue) Set(v Value) {
	if u.open {
		u.stack[u.slot] = v
		return
	}
	u.Closed = v
}

func (u *Upvalue) Close() {
	if !u.open {
		return
	}
	u.Closed = u.stack[u.slot]
	u.open = false
	u.stack = nil
}

func (u *Upvalue) Release() {
	u.rc--
	if u.rc <= 0 {
		release(u.Get())
	}
}
func (u *Upvalue) typeName() string { return "upvalue" }

// Function is the runtime, closed-over instance of a FunctionDescriptor.
type Function struct {
	baseObject
	Descriptor *FunctionDescriptor
	Upvalues   []*Upvalue
	// OwnerClass is set for methods: the class that declares this
	// function, so a `super` lookup inside its body starts one link
	// above the declaring class rather than the most-derived instance
	// class.
	OwnerClass *ClassType
}

func NewFunction(desc *FunctionDescriptor, upvalues []*Upvalue) *Function {
	f := &Function{baseObject: baseObject{rc: 1}, Descriptor: desc, Upvalues: upvalues}
	for _, uv := range upvalues {
		uv.Retain()
	}
	return f
}

func (f *Function) Release() {
	f.rc--
	if f.rc <= 0 {
		for _, uv := range f.Upvalues {
			uv.Release()
		}
		f.Upvalues = nil
	}
}
func (f *Function) typeName() string { return "function" }
func (f *Function) Name() string {
	if f.Descriptor.Name == "" {
		return "<anonymous>"
	}
	return f.Descriptor.Name
}
func (f *Function) Arity() int { return len(f.Descriptor.Params) }

// NativeFn is a Go-implemented builtin. args are the call's arguments as
// passed; each native checks its own arity. It returns a Value or a
// *RuntimeError.
type NativeFn func(vm *VM, args []Value) (Value, error)

type NativeFunction struct {
	baseObject
	Name string
	Fn   NativeFn
}

func NewNativeFunction(name string, fn NativeFn) *NativeFunction {
	return &NativeFunction{baseObject: baseObject{rc: 1}, Name: name, Fn: fn}
}

func (n *NativeFunction) Release()          { n.rc-- }
func (n *NativeFunction) typeName() string { return "native function" }

// BoundMethod pairs a receiver with a Function: the calling-convention
// shape `self.method` produces.
type BoundMethod struct {
	baseObject
	Receiver Value
	Method   *Function
}

func NewBoundMethod(receiver Value, method *Function) *BoundMethod {
	retain(receiver)
	method.Retain()
	return &BoundMethod{baseObject: baseObject{rc: 1}, Receiver: receiver, Method: method}
}

func (b *BoundMethod) Release() {
	b.rc--
	if b.rc <= 0 {
		release(b.Receiver)
		b.Method.Release()
	}
}
func (b *BoundMethod) typeName() string { return "method" }

// ClassProxy pairs a receiver with the ancestor class a `super.method()`
// call should resolve against, so repeated super calls from a chain of
// overrides keep walking up one link at a time.
type ClassProxy struct {
	baseObject
	Receiver Value
	Ancestor *ClassType
}

func NewClassProxy(receiver Value, ancestor *ClassType) *ClassProxy {
	retain(receiver)
	ancestor.Retain()
	return &ClassProxy{baseObject: baseObject{rc: 1}, Receiver: receiver, Ancestor: ancestor}
}

func (p *ClassProxy) Release() {
	p.rc--
	if p.rc <= 0 {
		release(p.Receiver)
		p.Ancestor.Release()
	}
}
func (p *ClassProxy) typeName() string { return "super" }
