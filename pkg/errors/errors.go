// Package errors defines the diagnostic taxonomy shared by the lexer,
// parser, compiler and VM.
package errors

import "fmt"

// WispError is implemented by every diagnostic the core can produce.
type WispError interface {
	error
	Pos() Position
	Phase() string // "Syntax", "Compile", "Runtime"
	Message() string
}

// SyntaxError is produced by the lexer/parser.
type SyntaxError struct {
	Position
	Msg string
}

func (e *SyntaxError) Error() string   { return fmt.Sprintf("SyntaxError at %d:%d: %s", e.Line, e.Column, e.Msg) }
func (e *SyntaxError) Pos() Position   { return e.Position }
func (e *SyntaxError) Phase() string   { return "Syntax" }
func (e *SyntaxError) Message() string { return e.Msg }

// CompileError is produced by the emitter (super misuse, self outside a
// method, break/continue outside a loop, non-constant defaults, the
// reserved generic for-in form, etc).
type CompileError struct {
	Position
	Msg string
}

func (e *CompileError) Error() string   { return fmt.Sprintf("CompileError at %d:%d: %s", e.Line, e.Column, e.Msg) }
func (e *CompileError) Pos() Position   { return e.Position }
func (e *CompileError) Phase() string   { return "Compile" }
func (e *CompileError) Message() string { return e.Msg }

// RuntimeKind enumerates the runtime error taxonomy the VM can raise.
type RuntimeKind string

const (
	KindArityMismatch RuntimeKind = "ArityMismatch"
	KindTypeError     RuntimeKind = "TypeError"
	KindNameError     RuntimeKind = "NameError"
	KindKeyError      RuntimeKind = "KeyError"
	KindIndexError    RuntimeKind = "IndexError"
	KindNumericError  RuntimeKind = "NumericError"
	KindInitError     RuntimeKind = "InitError"
	KindImportError   RuntimeKind = "ImportError"
	KindInternalError RuntimeKind = "InternalError"
)

// TraceFrame names one active call frame at the time a RuntimeError was
// synthesized, used to build a formatted call trace of function names
// and source spans.
type TraceFrame struct {
	FunctionName string
	Position     Position
}

// RuntimeError is produced by the interpreter. It aborts the call chain:
// the source language has no try/catch.
type RuntimeError struct {
	Position
	Kind  RuntimeKind
	Msg   string
	Trace []TraceFrame
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Line, e.Column, e.Msg)
}
func (e *RuntimeError) Pos() Position   { return e.Position }
func (e *RuntimeError) Phase() string   { return "Runtime" }
func (e *RuntimeError) Message() string { return e.Msg }

// FormatTrace renders the error followed by its call trace: one line per
// frame, innermost first.
func (e *RuntimeError) FormatTrace() string {
	out := e.Error()
	for _, f := range e.Trace {
		out += fmt.Sprintf("\n  at %s (%d:%d)", f.FunctionName, f.Position.Line, f.Position.Column)
	}
	return out
}
