package vm

import (
	"strconv"
	"strings"
)

// Stringify renders a Value the way `print` and str-conversion builtins
// do: scalars in their literal form, containers recursively, and
// instances/functions/classes by a `<kind ...>` tag.
func Stringify(v Value) string {
	switch v.Type() {
	case TypeNone:
		return "none"
	case TypeBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case TypeInt:
		return strconv.FormatInt(int64(v.AsInt()), 10)
	case TypeFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case TypeObject:
		return stringifyObject(v.AsObject())
	}
	return "?"
}

func stringifyObject(o Object) string {
	switch x := o.(type) {
	case *StringObject:
		return x.Value
	case *ListObject:
		parts := make([]string, len(x.Elements))
		for i, e := range x.Elements {
			parts[i] = reprOf(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Table:
		parts := make([]string, 0, len(x.keys))
		for _, k := range x.keys {
			v, _ := x.Get(k)
			parts = append(parts, k+": "+reprOf(v))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Function:
		return "<function " + x.Name() + ">"
	case *NativeFunction:
		return "<native function " + x.Name + ">"
	case *BoundMethod:
		return "<bound method " + x.Method.Name() + ">"
	case *ClassType:
		return "<class " + x.Descriptor.Name + ">"
	case *ClassInstance:
		return "<" + x.Class.Descriptor.Name + " instance>"
	case *Module:
		return "<module " + x.Descriptor.Path + ">"
	default:
		return "<object>"
	}
}

// reprOf is like Stringify but quotes strings, matching how containers
// print their elements (`["a", 1]` rather than `[a, 1]`).
func reprOf(v Value) string {
	if v.IsObject() {
		if s, ok := v.AsObject().(*StringObject); ok {
			return strconv.Quote(s.Value)
		}
	}
	return Stringify(v)
}
