package vm

import "wisp/pkg/errors"

// ModuleDescriptor is the emit output of compiling one source file as a
// module: its top-level chunk plus the names it exports as module
// variables.
type ModuleDescriptor struct {
	Path     string
	VarNames []string
	Chunk    *Chunk
}

// Module is a runtime instance of a ModuleDescriptor: its module-variable
// table, populated by running Chunk once.
type Module struct {
	baseObject
	Descriptor *ModuleDescriptor
	Vars       *Table
}

func NewModule(desc *ModuleDescriptor) *Module {
	return &Module{baseObject: baseObject{rc: 1}, Descriptor: desc, Vars: NewTable()}
}

func (m *Module) Release() {
	m.rc--
	if m.rc <= 0 {
		m.Vars.Release()
	}
}
func (m *Module) typeName() string { return "module" }

// ModuleState tracks registry membership during loading, so that a cycle
// (A imports B imports A) surfaces as an ImportError instead of infinite
// recursion.
type ModuleState uint8

const (
	ModuleAbsent ModuleState = iota
	ModuleLoading
	ModuleReady
)

type moduleEntry struct {
	state   ModuleState
	module  *Module
	visited bool
}

// ModuleRegistry resolves dotted import paths to Modules, compiling and
// running each module's chunk exactly once, and raising ImportError on
// cyclic imports.
type ModuleRegistry struct {
	entries map[string]*moduleEntry
	loader  ModuleLoader
	// compile is supplied by the driver to avoid a vm<->compiler import
	// cycle.
	compile ModuleCompiler
}

// ModuleLoader resolves a dotted import path ("a.b.c") to source text.
type ModuleLoader interface {
	Load(path string) (source string, displayName string, err error)
}

// ModuleCompiler compiles module source into a descriptor; set by the
// driver once both vm and compiler packages are constructed.
type ModuleCompiler func(path, source, displayName string) (*ModuleDescriptor, error)

func NewModuleRegistry(loader ModuleLoader) *ModuleRegistry {
	return &ModuleRegistry{entries: make(map[string]*moduleEntry), loader: loader}
}

func (r *ModuleRegistry) SetCompiler(c ModuleCompiler) { r.compile = c }

// Resolve returns the Module for path, loading and running it if this is
// the first reference, or returning the cached instance otherwise.
func (r *ModuleRegistry) Resolve(vmInstance *VM, path string, pos errors.Position) (*Module, error) {
	entry, ok := r.entries[path]
	if ok {
		switch entry.state {
		case ModuleLoading:
			return nil, &errors.RuntimeError{Position: pos, Kind: errors.KindImportError, Msg: "import cycle involving " + path}
		case ModuleReady:
			return entry.module, nil
		}
	}
	entry = &moduleEntry{state: ModuleLoading}
	r.entries[path] = entry

	if r.loader == nil {
		return nil, &errors.RuntimeError{Position: pos, Kind: errors.KindImportError, Msg: "no module loader configured"}
	}
	src, display, err := r.loader.Load(path)
	if err != nil {
		return nil, &errors.RuntimeError{Position: pos, Kind: errors.KindImportError, Msg: "cannot load module " + path + ": " + err.Error()}
	}
	if r.compile == nil {
		return nil, &errors.RuntimeError{Position: pos, Kind: errors.KindImportError, Msg: "module compiler not configured"}
	}
	desc, err := r.compile(path, src, display)
	if err != nil {
		return nil, &errors.RuntimeError{Position: pos, Kind: errors.KindImportError, Msg: err.Error()}
	}

	mod := NewModule(desc)
	entry.module = mod
	if err := vmInstance.RunModule(mod); err != nil {
		entry.state = ModuleAbsent
		return nil, err
	}
	entry.state = ModuleReady
	return mod, nil
}
