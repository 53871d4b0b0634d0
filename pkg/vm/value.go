// Package vm holds the value representation, object model, bytecode
// format and interpreter loop as a single package, merging what would
// otherwise be separate value/bytecode packages specifically to avoid
// the import cycle a Value->Function->Chunk->Value constant pool would
// create.
package vm

import "math"

// ValueType tags the Value union.
type ValueType uint8

const (
	TypeNone ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeObject
)

func (t ValueType) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the tagged union every register, constant and field holds.
// Scalars are inline; everything else is a refcounted Object handle —
// there is no garbage collector, only manual reference counting.
type Value struct {
	typ ValueType
	as  struct {
		boolean bool
		integer int32
		float   float64
		obj     Object
	}
}

func None() Value { return Value{typ: TypeNone} }

func Bool(b bool) Value {
	var v Value
	v.typ = TypeBool
	v.as.boolean = b
	return v
}

func Int(i int32) Value {
	var v Value
	v.typ = TypeInt
	v.as.integer = i
	return v
}

// Float constructs a float Value from the non-NaN subset of float64;
// callers that might produce NaN (e.g. 0.0/0.0) must check before
// calling this and raise NumericError instead.
func Float(f float64) Value {
	var v Value
	v.typ = TypeFloat
	v.as.float = f
	return v
}

func Obj(o Object) Value {
	var v Value
	v.typ = TypeObject
	v.as.obj = o
	return v
}

func (v Value) Type() ValueType { return v.typ }
func (v Value) IsNone() bool    { return v.typ == TypeNone }
func (v Value) IsBool() bool    { return v.typ == TypeBool }
func (v Value) IsInt() bool     { return v.typ == TypeInt }
func (v Value) IsFloat() bool   { return v.typ == TypeFloat }
func (v Value) IsObject() bool  { return v.typ == TypeObject }
func (v Value) IsNumber() bool  { return v.typ == TypeInt || v.typ == TypeFloat }

func (v Value) AsBool() bool    { return v.as.boolean }
func (v Value) AsInt() int32    { return v.as.integer }
func (v Value) AsFloat() float64 { return v.as.float }
func (v Value) AsObject() Object { return v.as.obj }

// AsF64 widens an int-or-float Value to float64 for mixed arithmetic.
func (v Value) AsF64() float64 {
	if v.typ == TypeInt {
		return float64(v.as.integer)
	}
	return v.as.float
}

// Truthy implements the language's truthiness rule: none and false are
// falsey, everything else (including 0 and "") is truthy.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeNone:
		return false
	case TypeBool:
		return v.as.boolean
	default:
		return true
	}
}

// Equal implements value equality: scalars compare structurally within
// their own type, objects compare by the rules of their concrete kind,
// and values of different VM types are never equal — an int and a float
// holding the same magnitude are distinct values.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TypeNone:
		return true
	case TypeBool:
		return a.as.boolean == b.as.boolean
	case TypeInt:
		return a.as.integer == b.as.integer
	case TypeFloat:
		return a.as.float == b.as.float
	case TypeObject:
		return objectsEqual(a.as.obj, b.as.obj)
	}
	return false
}

func objectsEqual(a, b Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	if as, ok := a.(*StringObject); ok {
		if bs, ok := b.(*StringObject); ok {
			return as.Value == bs.Value
		}
		return false
	}
	return a == b // identity for List/Table/Function/Class/Module/instances
}

func isNaN(f float64) bool { return math.IsNaN(f) }
