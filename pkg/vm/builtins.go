package vm

import (
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/width"

	"wisp/pkg/errors"
)

// lookupBuiltinMethod resolves `receiver.name` for the language's three
// built-in container kinds (str/list/table) when getProp's normal
// instance/module/table lookup doesn't apply. Each method closes over
// the receiver the way a ClassInstance bound method does, so
// `x.upper()` reads naturally as "call the bound method upper on x".
func lookupBuiltinMethod(receiver Value, name string) (Value, bool) {
	if !receiver.IsObject() {
		return None(), false
	}
	switch receiver.AsObject().(type) {
	case *StringObject:
		if fn, ok := stringMethods[name]; ok {
			return Obj(NewNativeFunction("str."+name, bindReceiver(receiver, fn))), true
		}
	case *ListObject:
		if fn, ok := listMethods[name]; ok {
			return Obj(NewNativeFunction("list."+name, bindReceiver(receiver, fn))), true
		}
	case *Table:
		if fn, ok := tableMethods[name]; ok {
			return Obj(NewNativeFunction("table."+name, bindReceiver(receiver, fn))), true
		}
	}
	return None(), false
}

type boundNativeFn func(vm *VM, self Value, args []Value) (Value, error)

func bindReceiver(self Value, fn boundNativeFn) NativeFn {
	return func(vm *VM, args []Value) (Value, error) {
		return fn(vm, self, args)
	}
}

func registerBuiltins(vm *VM) {
	vm.Globals.Set("len", Obj(NewNativeFunction("len", builtinLen)))
}

func builtinLen(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return None(), &errors.RuntimeError{Kind: errors.KindArityMismatch, Msg: "len() takes exactly one argument"}
	}
	v := args[0]
	if !v.IsObject() {
		return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "len() requires a str, list or table"}
	}
	switch o := v.AsObject().(type) {
	case *StringObject:
		return Int(int32(utf8.RuneCountInString(o.Value))), nil
	case *ListObject:
		return Int(int32(len(o.Elements))), nil
	case *Table:
		return Int(int32(o.Len())), nil
	}
	return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "len() requires a str, list or table"}
}

var stringMethods = map[string]boundNativeFn{
	"len": func(vm *VM, self Value, args []Value) (Value, error) {
		s := self.AsObject().(*StringObject)
		return Int(int32(utf8.RuneCountInString(s.Value))), nil
	},
	"upper": func(vm *VM, self Value, args []Value) (Value, error) {
		s := self.AsObject().(*StringObject)
		return Obj(NewString(strings.ToUpper(s.Value))), nil
	},
	"lower": func(vm *VM, self Value, args []Value) (Value, error) {
		s := self.AsObject().(*StringObject)
		return Obj(NewString(strings.ToLower(s.Value))), nil
	},
	// match reports whether the receiver matches the regex pattern given
	// as the sole argument, using regexp2 for .NET-flavoured regex
	// syntax (lookahead/lookbehind) that the stdlib regexp (RE2) cannot
	// express.
	"match": func(vm *VM, self Value, args []Value) (Value, error) {
		s := self.AsObject().(*StringObject)
		pattern, err := argString(args, 0, "match")
		if err != nil {
			return None(), err
		}
		re, rerr := regexp2.Compile(pattern, regexp2.None)
		if rerr != nil {
			return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "invalid pattern: " + rerr.Error()}
		}
		m, merr := re.MatchString(s.Value)
		if merr != nil {
			return None(), &errors.RuntimeError{Kind: errors.KindInternalError, Msg: merr.Error()}
		}
		return Bool(m), nil
	},
	// find returns the first match substring, or none if there is no
	// match.
	"find": func(vm *VM, self Value, args []Value) (Value, error) {
		s := self.AsObject().(*StringObject)
		pattern, err := argString(args, 0, "find")
		if err != nil {
			return None(), err
		}
		re, rerr := regexp2.Compile(pattern, regexp2.None)
		if rerr != nil {
			return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "invalid pattern: " + rerr.Error()}
		}
		m, merr := re.FindStringMatch(s.Value)
		if merr != nil {
			return None(), &errors.RuntimeError{Kind: errors.KindInternalError, Msg: merr.Error()}
		}
		if m == nil {
			return None(), nil
		}
		return Obj(NewString(m.String())), nil
	},
	// width normalizes fullwidth/halfwidth forms using x/text/width's
	// east-asian width tables.
	"width": func(vm *VM, self Value, args []Value) (Value, error) {
		s := self.AsObject().(*StringObject)
		return Obj(NewString(width.Narrow.String(s.Value))), nil
	},
}

var listMethods = map[string]boundNativeFn{
	"len": func(vm *VM, self Value, args []Value) (Value, error) {
		l := self.AsObject().(*ListObject)
		return Int(int32(len(l.Elements))), nil
	},
	"push": func(vm *VM, self Value, args []Value) (Value, error) {
		l := self.AsObject().(*ListObject)
		if len(args) != 1 {
			return None(), &errors.RuntimeError{Kind: errors.KindArityMismatch, Msg: "push() takes exactly one argument"}
		}
		l.Push(args[0])
		return None(), nil
	},
	"pop": func(vm *VM, self Value, args []Value) (Value, error) {
		l := self.AsObject().(*ListObject)
		v, ok := l.Pop()
		if !ok {
			return None(), &errors.RuntimeError{Kind: errors.KindIndexError, Msg: "pop() from empty list"}
		}
		return v, nil
	},
	"slice": func(vm *VM, self Value, args []Value) (Value, error) {
		l := self.AsObject().(*ListObject)
		start, end := 0, len(l.Elements)
		if len(args) > 0 {
			if !args[0].IsInt() {
				return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "slice() bounds must be ints"}
			}
			start = int(args[0].AsInt())
		}
		if len(args) > 1 {
			if !args[1].IsInt() {
				return None(), &errors.RuntimeError{Kind: errors.KindTypeError, Msg: "slice() bounds must be ints"}
			}
			end = int(args[1].AsInt())
		}
		return Obj(l.Slice(start, end)), nil
	},
}

var tableMethods = map[string]boundNativeFn{
	"keys": func(vm *VM, self Value, args []Value) (Value, error) {
		t := self.AsObject().(*Table)
		elems := make([]Value, len(t.keys))
		for i, k := range t.keys {
			elems[i] = Obj(NewString(k))
		}
		return Obj(NewList(elems)), nil
	},
	"len": func(vm *VM, self Value, args []Value) (Value, error) {
		t := self.AsObject().(*Table)
		return Int(int32(t.Len())), nil
	},
}

func argString(args []Value, i int, who string) (string, error) {
	if i >= len(args) || !args[i].IsObject() {
		return "", &errors.RuntimeError{Kind: errors.KindTypeError, Msg: who + "() requires a str argument"}
	}
	s, ok := args[i].AsObject().(*StringObject)
	if !ok {
		return "", &errors.RuntimeError{Kind: errors.KindTypeError, Msg: who + "() requires a str argument"}
	}
	return s.Value, nil
}
