package vm

import "wisp/pkg/errors"

// dispatchCall implements the calling convention for every callable kind
// the language has: plain functions, native builtins, bound methods
// (self already captured), super proxies, and class values (calling a
// class constructs an instance and runs __init__ if present).
func (vm *VM) dispatchCall(callee Value, args []Value) (Value, error) {
	if !callee.IsObject() {
		return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "value is not callable"}
	}
	switch fn := callee.AsObject().(type) {
	case *Function:
		return vm.call(fn, None(), args, nil)
	case *NativeFunction:
		return fn.Fn(vm, args)
	case *BoundMethod:
		return vm.call(fn.Method, fn.Receiver, args, nil)
	case *ClassProxy:
		method, owner := fn.Ancestor.ResolveMethod("__init__")
		if method == nil {
			return None(), &errors.RuntimeError{Kind: errors.KindNameError, Msg: "no super method to call"}
		}
		_ = owner
		return vm.call(method, fn.Receiver, args, nil)
	case *ClassType:
		return vm.instantiate(fn, args)
	default:
		return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "value is not callable"}
	}
}

// instantiate allocates a ClassInstance, seeds declared fields with their
// defaults, runs __init__ if the class (or an ancestor) defines one, and
// freezes the instance so no later field can be added
// (Fresh->Initializing->Frozen).
func (vm *VM) instantiate(class *ClassType, args []Value) (Value, error) {
	inst := NewClassInstance(class)
	inst.State = StateInitializing
	for cur := class; cur != nil; cur = cur.Parent {
		for _, f := range cur.Descriptor.Fields {
			if _, exists := inst.Fields[f.Name]; exists {
				continue
			}
			if f.HasDefault {
				inst.SetField(f.Name, f.Default)
			} else {
				inst.SetField(f.Name, None())
			}
		}
	}
	if init, owner := class.ResolveMethod("__init__"); init != nil {
		_ = owner
		if _, err := vm.call(init, Obj(inst), args, nil); err != nil {
			return None(), err
		}
	}
	inst.State = StateFrozen
	return Obj(inst), nil
}

func (vm *VM) getProp(obj Value, name string, optional bool) (Value, error) {
	if obj.IsNone() && optional {
		return None(), nil
	}
	if !obj.IsObject() {
		return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "cannot access property " + name + " on a non-object value"}
	}
	switch o := obj.AsObject().(type) {
	case *ClassInstance:
		if v, ok := o.GetField(name); ok {
			return v, nil
		}
		if m, _ := o.Class.ResolveMethod(name); m != nil {
			return Obj(NewBoundMethod(obj, m)), nil
		}
		return None(), &errors.RuntimeError{Kind: errors.KindKeyError, Msg: "no field or method " + name}
	case *Module:
		if v, ok := o.Vars.Get(name); ok {
			return v, nil
		}
		return None(), &errors.RuntimeError{Kind: errors.KindKeyError, Msg: "module has no member " + name}
	case *Table:
		if v, ok := o.Get(name); ok {
			return v, nil
		}
		if builtin, ok := lookupBuiltinMethod(obj, name); ok {
			return builtin, nil
		}
		return None(), &errors.RuntimeError{Kind: errors.KindKeyError, Msg: "no such key " + name}
	case *ClassType:
		if m, _ := o.ResolveMethod(name); m != nil {
			return Obj(m), nil
		}
		return None(), &errors.RuntimeError{Kind: errors.KindKeyError, Msg: "no such class member " + name}
	default:
		if builtin, ok := lookupBuiltinMethod(obj, name); ok {
			return builtin, nil
		}
		return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "value has no property " + name}
	}
}

func (vm *VM) setProp(obj Value, name string, val Value) error {
	if !obj.IsObject() {
		return &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "cannot set property " + name + " on a non-object value"}
	}
	switch o := obj.AsObject().(type) {
	case *ClassInstance:
		if o.State == StateFrozen {
			if _, exists := o.Fields[name]; !exists {
				return &errors.RuntimeError{Kind: errors.KindKeyError, Msg: "cannot add new field " + name + " after construction"}
			}
		}
		o.SetField(name, val)
		return nil
	case *Table:
		o.Set(name, val)
		return nil
	case *Module:
		o.Vars.Set(name, val)
		return nil
	default:
		return &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "value does not support property assignment"}
	}
}

func (vm *VM) getIndex(obj, idx Value, optional bool) (Value, error) {
	if obj.IsNone() && optional {
		return None(), nil
	}
	if !obj.IsObject() {
		return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "value is not indexable"}
	}
	switch o := obj.AsObject().(type) {
	case *ListObject:
		if !idx.IsInt() {
			return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "list index must be an int"}
		}
		i := int(idx.AsInt())
		if i < 0 {
			i += len(o.Elements)
		}
		if i < 0 || i >= len(o.Elements) {
			return None(), &errors.RuntimeError{Kind: errors.KindIndexError, Msg: "list index out of range"}
		}
		return o.Elements[i], nil
	case *Table:
		key, err := keyOf(idx)
		if err != nil {
			return None(), err
		}
		v, ok := o.Get(key)
		if !ok {
			return None(), &errors.RuntimeError{Kind: errors.KindKeyError, Msg: "no such key " + key}
		}
		return v, nil
	case *StringObject:
		if !idx.IsInt() {
			return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "string index must be an int"}
		}
		runes := []rune(o.Value)
		i := int(idx.AsInt())
		if i < 0 {
			i += len(runes)
		}
		if i < 0 || i >= len(runes) {
			return None(), &errors.RuntimeError{Kind: errors.KindIndexError, Msg: "string index out of range"}
		}
		return Obj(NewString(string(runes[i]))), nil
	default:
		return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "value is not indexable"}
	}
}

func (vm *VM) setIndex(obj, idx, val Value) error {
	if !obj.IsObject() {
		return &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "value is not indexable"}
	}
	switch o := obj.AsObject().(type) {
	case *ListObject:
		if !idx.IsInt() {
			return &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "list index must be an int"}
		}
		i := int(idx.AsInt())
		if i < 0 {
			i += len(o.Elements)
		}
		if i < 0 || i >= len(o.Elements) {
			return &errors.RuntimeError{Kind: errors.KindIndexError, Msg: "list index out of range"}
		}
		release(o.Elements[i])
		retain(val)
		o.Elements[i] = val
		return nil
	case *Table:
		key, err := keyOf(idx)
		if err != nil {
			return err
		}
		o.Set(key, val)
		return nil
	default:
		return &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "value does not support index assignment"}
	}
}

func keyOf(v Value) (string, error) {
	if v.IsObject() {
		if s, ok := v.AsObject().(*StringObject); ok {
			return s.Value, nil
		}
	}
	return "", &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "table keys must be strings"}
}
