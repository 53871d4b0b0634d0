// Package source holds source text and light metadata shared by the lexer,
// parser, compiler, and error reporter.
package source

import "strings"

// File represents a unit of source text together with its display name.
type File struct {
	Name    string // display name, e.g. "main.ws", "<eval>"
	Path    string // filesystem path, empty for eval/REPL sources
	Content string
	lines   []string
}

// New creates a source file backed by a path on disk.
func New(name, path, content string) *File {
	return &File{Name: name, Path: path, Content: content}
}

// NewEval creates a source file for a one-off eval() call.
func NewEval(content string) *File {
	return &File{Name: "<eval>", Content: content}
}

// Lines returns the source split into lines, computed once and cached.
func (f *File) Lines() []string {
	if f.lines == nil {
		f.lines = strings.Split(f.Content, "\n")
	}
	return f.lines
}

// Line returns the 1-based line, or "" if out of range.
func (f *File) Line(n int) string {
	lines := f.Lines()
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

// DisplayPath prefers Path, falling back to Name.
func (f *File) DisplayPath() string {
	if f.Path != "" {
		return f.Path
	}
	return f.Name
}
